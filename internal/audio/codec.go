package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

const (
	// InputSampleRate is the rate the live API expects for microphone PCM
	InputSampleRate = 16000

	// OutputSampleRate is the rate of PCM returned by the live API
	OutputSampleRate = 24000

	// PCMMimeType tags outbound microphone blocks
	PCMMimeType = "audio/pcm;rate=16000"

	// JPEGMimeType tags outbound camera frames
	JPEGMimeType = "image/jpeg"
)

// Blob is a base64 payload tagged with its MIME type, the envelope used for
// every realtime input event.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Buffer is decoded PCM bound to a sample rate, stored per channel.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// NumberOfChannels returns the channel count
func (b *Buffer) NumberOfChannels() int {
	return len(b.Channels)
}

// Length returns the number of frames in the buffer
func (b *Buffer) Length() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length in seconds
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Length()) / float64(b.SampleRate)
}

// ChannelData returns the samples of one channel
func (b *Buffer) ChannelData(channel int) []float32 {
	if channel < 0 || channel >= len(b.Channels) {
		return nil
	}
	return b.Channels[channel]
}

// Interleaved packs the buffer back into interleaved little-endian PCM16 for a sink
func (b *Buffer) Interleaved() []byte {
	frames := b.Length()
	channels := len(b.Channels)
	out := make([]byte, frames*channels*2)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint16(out[(i*channels+ch)*2:], uint16(floatToPCM16(b.Channels[ch][i])))
		}
	}
	return out
}

// DecodeError reports a malformed inbound audio payload
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode audio: %s: %v", e.Reason, e.Err)
	}
	return "decode audio: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodePCM16 converts float samples in [-1,1] to a base64 little-endian
// 16-bit PCM blob tagged audio/pcm;rate=16000. Out-of-range input is clamped.
func EncodePCM16(samples []float32) Blob {
	return Blob{
		MIMEType: PCMMimeType,
		Data:     base64.StdEncoding.EncodeToString(FloatToPCM16Bytes(samples)),
	}
}

// FloatToPCM16Bytes packs float samples as little-endian signed 16-bit integers
func FloatToPCM16Bytes(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(floatToPCM16(s)))
	}
	return out
}

// DecodePCM16 reverses a base64 PCM16 payload into a Buffer at the given
// sample rate. Interleaved frames are split across channelCount channels.
func DecodePCM16(payload string, sampleRate, channelCount int) (*Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &DecodeError{Reason: "invalid base64", Err: err}
	}
	return DecodePCM16Bytes(raw, sampleRate, channelCount)
}

// DecodePCM16Bytes interprets raw little-endian PCM16 bytes as a Buffer
func DecodePCM16Bytes(raw []byte, sampleRate, channelCount int) (*Buffer, error) {
	if len(raw)%2 != 0 {
		return nil, &DecodeError{Reason: "byte length " + strconv.Itoa(len(raw)) + " is not a multiple of 2"}
	}
	if channelCount <= 0 {
		channelCount = 1
	}
	if sampleRate <= 0 {
		return nil, &DecodeError{Reason: "sample rate must be positive"}
	}

	samples := len(raw) / 2
	frames := samples / channelCount
	buf := &Buffer{
		SampleRate: sampleRate,
		Channels:   make([][]float32, channelCount),
	}
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channelCount; ch++ {
			idx := (i*channelCount + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(raw[idx:]))
			buf.Channels[ch][i] = float32(sample) / 32768.0
		}
	}
	return buf, nil
}

// floatToPCM16 rounds to the nearest 1/32768 step and clamps to the int16 range,
// so decode(encode(s)) stays within 1/32768 of s for every s in [-1,1].
func floatToPCM16(s float32) int16 {
	v := math.Round(float64(s) * 32768)
	if math.IsNaN(v) {
		return 0
	}
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
