package audio

import "sync"

// PlaybackClock holds the output-timeline position at which the next received
// chunk starts. Chunks scheduled through it form a gapless, non-overlapping
// queue regardless of arrival jitter.
type PlaybackClock struct {
	mu   sync.Mutex
	next float64
}

// NewPlaybackClock returns a clock positioned at zero
func NewPlaybackClock() *PlaybackClock {
	return &PlaybackClock{}
}

// Schedule reserves duration seconds of the timeline and returns the start
// time. The start is never earlier than now.
func (c *PlaybackClock) Schedule(now, duration float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.next < now {
		c.next = now
	}
	start := c.next
	if duration > 0 {
		c.next += duration
	}
	return start
}

// Remaining returns how much scheduled audio is still ahead of now, never negative
func (c *PlaybackClock) Remaining(now float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.next > now {
		return c.next - now
	}
	return 0
}

// Next returns the current end of the scheduled timeline
func (c *PlaybackClock) Next() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// Reset rewinds the clock for a new output context
func (c *PlaybackClock) Reset() {
	c.mu.Lock()
	c.next = 0
	c.mu.Unlock()
}
