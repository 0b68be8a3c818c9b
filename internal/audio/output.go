package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// ErrOutputClosed is returned when scheduling onto a closed output
var ErrOutputClosed = errors.New("audio output is closed")

// Output is a playback context with its own clock, in seconds since creation.
type Output interface {
	// CurrentTime returns the output clock position
	CurrentTime() float64

	// Play queues buf to start at the given output-clock time
	Play(buf *Buffer, at float64) error

	// Close stops playback and releases the device. Safe to call more than once.
	Close() error
}

// OutputOpener creates playback contexts
type OutputOpener interface {
	OpenOutput(sampleRate, channels int) (Output, error)
}

type scheduledBuffer struct {
	buf *Buffer
	at  float64
}

// SinkOutput plays buffers by writing PCM16 to a sink when their start time
// arrives. Buffers are written in the order they were queued.
type SinkOutput struct {
	sink    io.WriteCloser
	epoch   time.Time
	queue   chan scheduledBuffer
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	onClose func() error

	mu        sync.Mutex
	closed    bool
	closeErr  error
	closeOnce sync.Once
	writeErr  error
}

// NewSinkOutput creates an output that streams PCM16 to sink. The output
// clock starts at zero now.
func NewSinkOutput(sink io.WriteCloser) *SinkOutput {
	ctx, cancel := context.WithCancel(context.Background())
	o := &SinkOutput{
		sink:   sink,
		epoch:  time.Now(),
		queue:  make(chan scheduledBuffer, 256),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go o.run()
	return o
}

// CurrentTime returns seconds elapsed since the output was created
func (o *SinkOutput) CurrentTime() float64 {
	return time.Since(o.epoch).Seconds()
}

// Play queues buf for playback at the given output time
func (o *SinkOutput) Play(buf *Buffer, at float64) error {
	if buf == nil {
		return nil
	}

	o.mu.Lock()
	closed, writeErr := o.closed, o.writeErr
	o.mu.Unlock()
	if closed {
		return ErrOutputClosed
	}
	if writeErr != nil {
		return writeErr
	}

	select {
	case o.queue <- scheduledBuffer{buf: buf, at: at}:
		return nil
	case <-o.ctx.Done():
		return ErrOutputClosed
	case <-o.done:
		return ErrOutputClosed
	}
}

func (o *SinkOutput) run() {
	defer close(o.done)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case item := <-o.queue:
			startAt := o.epoch.Add(time.Duration(item.at * float64(time.Second)))
			if wait := time.Until(startAt); wait > 0 {
				timer.Reset(wait)
				select {
				case <-o.ctx.Done():
					return
				case <-timer.C:
				}
			}
			if _, err := o.sink.Write(item.buf.Interleaved()); err != nil {
				o.mu.Lock()
				o.writeErr = fmt.Errorf("write to audio sink: %w", err)
				o.mu.Unlock()
				return
			}
		}
	}
}

// Close stops the playback loop and closes the sink
func (o *SinkOutput) Close() error {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		o.mu.Unlock()

		o.cancel()
		<-o.done

		o.closeErr = o.sink.Close()
		if o.onClose != nil {
			if err := o.onClose(); err != nil && o.closeErr == nil {
				o.closeErr = err
			}
		}
	})
	return o.closeErr
}

// FFplayOpener opens outputs backed by an ffplay process reading PCM16 from stdin
type FFplayOpener struct {
	Path string
}

// OpenOutput starts ffplay for the given format
func (f FFplayOpener) OpenOutput(sampleRate, channels int) (Output, error) {
	path := f.Path
	if path == "" {
		path = "ffplay"
	}
	if _, err := exec.LookPath(path); err != nil {
		return nil, fmt.Errorf("ffplay is required for playback: %w", err)
	}
	if channels <= 0 {
		channels = 1
	}

	cmd := exec.Command(path,
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ch_layout", channelLayout(channels),
		"-i", "pipe:0",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffplay stdin: %w", err)
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffplay: %w", err)
	}

	out := NewSinkOutput(stdin)
	out.onClose = func() error {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		_ = cmd.Wait()
		return nil
	}
	return out, nil
}

func channelLayout(channels int) string {
	if channels == 2 {
		return "stereo"
	}
	return "mono"
}
