package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"
)

func f32le(samples ...float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

func TestReaderInput_ReadBlock(t *testing.T) {
	in := NewReaderInput(io.NopCloser(bytes.NewReader(f32le(0.1, -0.2, 0.3, 0.4))))

	dst := make([]float32, 2)
	if err := in.ReadBlock(dst); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if dst[0] != 0.1 || dst[1] != -0.2 {
		t.Errorf("Unexpected block %v", dst)
	}
	if err := in.ReadBlock(dst); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := in.ReadBlock(dst); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestReaderInput_PartialBlockIsEOF(t *testing.T) {
	in := NewReaderInput(io.NopCloser(bytes.NewReader(f32le(0.1))))

	if err := in.ReadBlock(make([]float32, 4)); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestReaderInput_MutedYieldsSilence(t *testing.T) {
	in := NewReaderInput(io.NopCloser(bytes.NewReader(f32le(0.5, 0.5))))
	in.SetEnabled(false)

	dst := []float32{1, 1}
	if err := in.ReadBlock(dst); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if dst[0] != 0 || dst[1] != 0 {
		t.Errorf("Expected silence while muted, got %v", dst)
	}
}

func TestReaderInput_CloseIdempotent(t *testing.T) {
	in := NewReaderInput(io.NopCloser(bytes.NewReader(nil)))

	if err := in.Close(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := in.Close(); err != nil {
		t.Errorf("Expected no error on second close, got %v", err)
	}
}
