package video

import (
	"image"
	"sync"
)

// Preview is the live view the camera stream is attached to. The session
// client samples frames from it.
type Preview struct {
	mu     sync.RWMutex
	stream Stream
}

// NewPreview returns an empty preview
func NewPreview() *Preview {
	return &Preview{}
}

// Attach binds a stream to the preview, replacing any previous one
func (p *Preview) Attach(s Stream) {
	p.mu.Lock()
	p.stream = s
	p.mu.Unlock()
}

// Attached returns the stream currently bound to the preview
func (p *Preview) Attached() Stream {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stream
}

// Detach unbinds and returns the attached stream
func (p *Preview) Detach() Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stream
	p.stream = nil
	return s
}

// Frame returns the latest decoded frame, or nil when nothing is attached or
// no frame has been decoded yet
func (p *Preview) Frame() image.Image {
	s := p.Attached()
	if s == nil {
		return nil
	}
	return s.Frame()
}

// Dimensions returns the decoded frame size; zero until a frame is available
func (p *Preview) Dimensions() (int, int) {
	img := p.Frame()
	if img == nil {
		return 0, 0
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
