package live

import (
	"sync"
)

// dispatcher fans outbound realtime inputs out to a pool of send workers.
// Submit never blocks the caller: when the queue is full the input is handed
// to a detached goroutine instead of being dropped.
type dispatcher struct {
	queue    chan RealtimeInput
	send     func(RealtimeInput) error
	onResult func(in RealtimeInput, err error)

	mu      sync.Mutex
	stopped bool
	quit    chan struct{}
	wg      sync.WaitGroup
}

func newDispatcher(workers, queueSize int, send func(RealtimeInput) error, onResult func(RealtimeInput, error)) *dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	d := &dispatcher{
		queue:    make(chan RealtimeInput, queueSize),
		send:     send,
		onResult: onResult,
		quit:     make(chan struct{}),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

func (d *dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.quit:
			return
		case in := <-d.queue:
			d.deliver(in)
		}
	}
}

func (d *dispatcher) deliver(in RealtimeInput) {
	err := d.send(in)
	if d.onResult != nil {
		d.onResult(in, err)
	}
}

// Submit queues in for sending. It reports false once the dispatcher is stopped.
func (d *dispatcher) Submit(in RealtimeInput) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}

	select {
	case d.queue <- in:
	default:
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(in)
		}()
	}
	return true
}

// Stop discards queued inputs and waits for in-flight sends to return
func (d *dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.quit)
	d.mu.Unlock()

	d.wg.Wait()
}
