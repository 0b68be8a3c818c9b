package video

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"testing"
	"time"
)

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestEncodeFrame_HalfScaleJPEG(t *testing.T) {
	blob, err := EncodeFrame(solidFrame(64, 48, color.RGBA{R: 200, A: 255}), 0.5, 60)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if blob.MIMEType != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", blob.MIMEType)
	}

	raw, err := base64.StdEncoding.DecodeString(blob.Data)
	if err != nil {
		t.Fatalf("Expected valid base64, got %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Expected valid jpeg, got %v", err)
	}
	if cfg.Width != 32 || cfg.Height != 24 {
		t.Errorf("Expected 32x24, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestEncodeFrame_Empty(t *testing.T) {
	if _, err := EncodeFrame(nil, 0.5, 60); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Expected ErrEmptyFrame, got %v", err)
	}
	if _, err := EncodeFrame(image.NewRGBA(image.Rect(0, 0, 0, 0)), 0.5, 60); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Expected ErrEmptyFrame, got %v", err)
	}
}

func TestRawStream_LatestFrame(t *testing.T) {
	pr, pw := io.Pipe()
	s := NewRawStream(pr, 2, 1)
	defer s.Stop()

	if s.Frame() != nil {
		t.Error("Expected no frame before data arrives")
	}

	go func() {
		_, _ = pw.Write([]byte{10, 20, 30, 40, 50, 60})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.Frame() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	img := s.Frame()
	if img == nil {
		t.Fatal("Expected a decoded frame")
	}
	r, g, b, _ := img.At(1, 0).RGBA()
	if r>>8 != 40 || g>>8 != 50 || b>>8 != 60 {
		t.Errorf("Unexpected pixel %d,%d,%d", r>>8, g>>8, b>>8)
	}

	s.SetEnabled(false)
	if s.Frame() != nil {
		t.Error("Expected no frame while disabled")
	}
}

func TestRawStream_StopIdempotent(t *testing.T) {
	pr, _ := io.Pipe()
	s := NewRawStream(pr, 2, 2)

	s.Stop()
	s.Stop()
}

type staticStream struct {
	img     image.Image
	stopped int
}

func (s *staticStream) Frame() image.Image { return s.img }
func (s *staticStream) SetEnabled(bool)    {}
func (s *staticStream) Stop()              { s.stopped++ }

func TestPreview_Dimensions(t *testing.T) {
	p := NewPreview()
	if w, h := p.Dimensions(); w != 0 || h != 0 {
		t.Errorf("Expected 0x0 with nothing attached, got %dx%d", w, h)
	}

	s := &staticStream{img: solidFrame(8, 6, color.RGBA{A: 255})}
	p.Attach(s)
	if w, h := p.Dimensions(); w != 8 || h != 6 {
		t.Errorf("Expected 8x6, got %dx%d", w, h)
	}

	if got := p.Detach(); got != s {
		t.Error("Expected Detach to return the attached stream")
	}
	if p.Frame() != nil {
		t.Error("Expected no frame after detach")
	}
}
