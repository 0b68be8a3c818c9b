package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// InputStream is a live microphone capture delivering float samples in [-1,1]
type InputStream interface {
	// ReadBlock fills dst with the next block of samples
	ReadBlock(dst []float32) error

	// SetEnabled mutes (false) or unmutes the track; a muted track yields silence
	SetEnabled(enabled bool)

	// Close stops the capture. Safe to call more than once.
	Close() error
}

// InputOpener acquires microphone streams
type InputOpener interface {
	OpenInput(ctx context.Context, sampleRate int) (InputStream, error)
}

// FFmpegMicrophone captures mono f32le PCM from the system microphone with ffmpeg
type FFmpegMicrophone struct {
	Path        string
	InputFormat string
	InputDevice string
}

// OpenInput starts ffmpeg and waits briefly for an early exit, which is how a
// denied or missing device shows up. ctx bounds only that startup wait; the
// capture runs until Close.
func (m FFmpegMicrophone) OpenInput(ctx context.Context, sampleRate int) (InputStream, error) {
	path := m.Path
	if path == "" {
		path = "ffmpeg"
	}
	if _, err := exec.LookPath(path); err != nil {
		return nil, fmt.Errorf("ffmpeg is required for microphone capture: %w", err)
	}
	format := m.InputFormat
	if format == "" {
		format = "pulse"
	}
	device := m.InputDevice
	if device == "" {
		device = "default"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", format,
		"-i", device,
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "f32le",
		"-",
	}

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
			return nil, fmt.Errorf("microphone unavailable: %w: %s", err, detail)
		}
		return nil, fmt.Errorf("microphone unavailable: ffmpeg exited before capture started: %s", detail)
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		return nil, ctx.Err()
	case <-time.After(250 * time.Millisecond):
	}

	return newPCMInput(stdout, func() error {
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
		return nil
	}), nil
}

// pcmInput decodes a little-endian float32 byte stream into sample blocks
type pcmInput struct {
	r       io.ReadCloser
	stop    func() error
	enabled atomic.Bool
	scratch []byte

	closeOnce sync.Once
	closeErr  error
}

func newPCMInput(r io.ReadCloser, stop func() error) *pcmInput {
	in := &pcmInput{r: r, stop: stop}
	in.enabled.Store(true)
	return in
}

// NewReaderInput wraps a raw f32le stream (a file, a pipe) as an InputStream
func NewReaderInput(r io.ReadCloser) InputStream {
	return newPCMInput(r, nil)
}

func (in *pcmInput) ReadBlock(dst []float32) error {
	need := len(dst) * 4
	if cap(in.scratch) < need {
		in.scratch = make([]byte, need)
	}
	buf := in.scratch[:need]
	if _, err := io.ReadFull(in.r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return err
	}

	if !in.enabled.Load() {
		for i := range dst {
			dst[i] = 0
		}
		return nil
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return nil
}

func (in *pcmInput) SetEnabled(enabled bool) {
	in.enabled.Store(enabled)
}

func (in *pcmInput) Close() error {
	in.closeOnce.Do(func() {
		if in.stop != nil {
			in.closeErr = in.stop()
		}
		if err := in.r.Close(); err != nil && !errors.Is(err, os.ErrClosed) && in.closeErr == nil {
			in.closeErr = err
		}
	})
	return in.closeErr
}
