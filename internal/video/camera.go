package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/intervu/live-interview/internal/observability"
)

// Stream is a live camera capture. Frame returns the most recent decoded
// frame, or nil before the first frame arrives or while the track is disabled.
type Stream interface {
	Frame() image.Image
	SetEnabled(enabled bool)

	// Stop releases the device. Safe to call more than once.
	Stop()
}

// Opener acquires camera streams
type Opener interface {
	Open(ctx context.Context) (Stream, error)
}

// FFmpegCamera captures rawvideo rgb24 frames with ffmpeg
type FFmpegCamera struct {
	Path        string
	InputFormat string
	InputDevice string
	Width       int
	Height      int
	FPS         int
}

// Open starts ffmpeg and begins decoding frames in the background
func (c FFmpegCamera) Open(ctx context.Context) (Stream, error) {
	path := c.Path
	if path == "" {
		path = "ffmpeg"
	}
	if _, err := exec.LookPath(path); err != nil {
		return nil, fmt.Errorf("ffmpeg is required for camera capture: %w", err)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return nil, fmt.Errorf("invalid camera size %dx%d", c.Width, c.Height)
	}
	fps := c.FPS
	if fps <= 0 {
		fps = 15
	}

	size := strconv.Itoa(c.Width) + "x" + strconv.Itoa(c.Height)
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", c.InputFormat,
		"-framerate", strconv.Itoa(fps),
		"-video_size", size,
		"-i", c.InputDevice,
		"-vf", "scale=" + strconv.Itoa(c.Width) + ":" + strconv.Itoa(c.Height),
		"-pix_fmt", "rgb24",
		"-f", "rawvideo",
		"-",
	}

	// Not bound to ctx: the stream outlives the acquiring call and ends on Stop.
	cmd := exec.Command(path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		detail := strings.TrimSpace(stderr.String())
		if err != nil {
			return nil, fmt.Errorf("camera unavailable: %w: %s", err, detail)
		}
		return nil, fmt.Errorf("camera unavailable: ffmpeg exited before capture started: %s", detail)
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		return nil, ctx.Err()
	case <-time.After(250 * time.Millisecond):
	}

	s := newRawStream(stdout, c.Width, c.Height, func() {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(os.Interrupt)
		}
		select {
		case <-waitErr:
		case <-time.After(time.Second):
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
			<-waitErr
		}
	})
	return s, nil
}

// rawStream decodes fixed-size rgb24 frames from r, keeping only the latest
type rawStream struct {
	r      io.ReadCloser
	width  int
	height int
	stop   func()
	logger zerolog.Logger

	enabled atomic.Bool
	mu      sync.RWMutex
	latest  *image.RGBA

	stopOnce sync.Once
	done     chan struct{}
}

func newRawStream(r io.ReadCloser, width, height int, stop func()) *rawStream {
	s := &rawStream{
		r:      r,
		width:  width,
		height: height,
		stop:   stop,
		logger: observability.WithComponent("camera"),
		done:   make(chan struct{}),
	}
	s.enabled.Store(true)
	go s.readLoop()
	return s
}

// NewRawStream decodes rgb24 frames of the given size from r
func NewRawStream(r io.ReadCloser, width, height int) Stream {
	return newRawStream(r, width, height, nil)
}

func (s *rawStream) readLoop() {
	defer close(s.done)

	frameSize := s.width * s.height * 3
	buf := make([]byte, frameSize)
	for {
		if _, err := io.ReadFull(s.r, buf); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				s.logger.Debug().Err(err).Msg("Camera read loop ended")
			}
			return
		}

		img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
		for i, j := 0, 0; i < frameSize; i, j = i+3, j+4 {
			img.Pix[j] = buf[i]
			img.Pix[j+1] = buf[i+1]
			img.Pix[j+2] = buf[i+2]
			img.Pix[j+3] = 0xff
		}

		s.mu.Lock()
		s.latest = img
		s.mu.Unlock()
	}
}

func (s *rawStream) Frame() image.Image {
	if !s.enabled.Load() {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil
	}
	return s.latest
}

func (s *rawStream) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
}

func (s *rawStream) Stop() {
	s.stopOnce.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		_ = s.r.Close()
		<-s.done
	})
}
