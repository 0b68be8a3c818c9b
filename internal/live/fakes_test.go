package live

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"image"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/intervu/live-interview/internal/audio"
	"github.com/intervu/live-interview/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		GeminiAPIKey:      "test-key",
		GeminiLiveModel:   "test-model",
		GeminiVoice:       "Kore",
		InputSampleRate:   16000,
		OutputSampleRate:  24000,
		AudioBlockSize:    4,
		VideoFPS:          50,
		VideoScale:        0.5,
		VideoJPEGQuality:  60,
		CompletionGraceMS: 1000,
		OutboundQueueSize: 8,
		OutboundWorkers:   2,
	}
}

// fakeStream is an in-memory live stream
type fakeStream struct {
	incoming chan *ServerMessage

	mu     sync.Mutex
	sent   []RealtimeInput
	closes int

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		incoming: make(chan *ServerMessage, 32),
		closed:   make(chan struct{}),
	}
}

func (s *fakeStream) SendRealtimeInput(in RealtimeInput) error {
	select {
	case <-s.closed:
		return ErrStreamClosed
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, in)
	return nil
}

func (s *fakeStream) Recv() (*ServerMessage, error) {
	select {
	case msg, ok := <-s.incoming:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-s.closed:
		return nil, ErrStreamClosed
	}
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) Sent() []RealtimeInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RealtimeInput(nil), s.sent...)
}

func (s *fakeStream) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// fakeTransport hands out one stream. When gate is set Dial waits on it.
type fakeTransport struct {
	stream *fakeStream
	err    error
	gate   chan struct{}

	mu    sync.Mutex
	dials int
	setup Setup
}

func (t *fakeTransport) Dial(ctx context.Context, setup Setup) (Stream, error) {
	t.mu.Lock()
	t.dials++
	t.setup = setup
	t.mu.Unlock()

	if t.gate != nil {
		<-t.gate
	}
	if t.err != nil {
		return nil, t.err
	}
	return t.stream, nil
}

func (t *fakeTransport) Dials() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

func (t *fakeTransport) Setup() Setup {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setup
}

// fakeMic feeds blocks pushed on its channel
type fakeMic struct {
	err    error
	blocks chan []float32

	mu      sync.Mutex
	opens   int
	closes  int
	enabled bool

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeMic() *fakeMic {
	return &fakeMic{
		blocks:  make(chan []float32, 16),
		closed:  make(chan struct{}),
		enabled: true,
	}
}

func (m *fakeMic) OpenInput(ctx context.Context, sampleRate int) (audio.InputStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	if m.err != nil {
		return nil, m.err
	}
	return m, nil
}

func (m *fakeMic) ReadBlock(dst []float32) error {
	select {
	case block := <-m.blocks:
		copy(dst, block)
		return nil
	case <-m.closed:
		return io.EOF
	}
}

func (m *fakeMic) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	m.mu.Unlock()
}

func (m *fakeMic) Close() error {
	m.mu.Lock()
	m.closes++
	m.mu.Unlock()
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *fakeMic) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

type playCall struct {
	at       float64
	duration float64
}

// fakeOutput is an output context with a hand-driven clock
type fakeOutput struct {
	mu     sync.Mutex
	now    float64
	plays  []playCall
	closes int
}

func (o *fakeOutput) OpenOutput(sampleRate, channels int) (audio.Output, error) {
	return o, nil
}

func (o *fakeOutput) CurrentTime() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

func (o *fakeOutput) SetTime(now float64) {
	o.mu.Lock()
	o.now = now
	o.mu.Unlock()
}

func (o *fakeOutput) Play(buf *audio.Buffer, at float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.plays = append(o.plays, playCall{at: at, duration: buf.Duration()})
	return nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	o.closes++
	o.mu.Unlock()
	return nil
}

func (o *fakeOutput) Plays() []playCall {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]playCall(nil), o.plays...)
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

// timerRecorder replaces time.AfterFunc so tests fire completion by hand
type timerRecorder struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (r *timerRecorder) afterFunc(d time.Duration, f func()) timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &fakeTimer{delay: d, fn: f}
	r.timers = append(r.timers, t)
	return t
}

func (r *timerRecorder) Timers() []*fakeTimer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*fakeTimer(nil), r.timers...)
}

type callbackRecorder struct {
	mu        sync.Mutex
	volumes   []float64
	errs      []error
	completes int
}

func (r *callbackRecorder) Callbacks() Callbacks {
	return Callbacks{
		OnVolume: func(level float64) {
			r.mu.Lock()
			r.volumes = append(r.volumes, level)
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
		OnComplete: func() {
			r.mu.Lock()
			r.completes++
			r.mu.Unlock()
		},
	}
}

func (r *callbackRecorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *callbackRecorder) Volumes() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.volumes...)
}

func (r *callbackRecorder) Completes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completes
}

type harness struct {
	client    *Client
	transport *fakeTransport
	stream    *fakeStream
	mic       *fakeMic
	output    *fakeOutput
	timers    *timerRecorder
	events    *callbackRecorder
}

func newHarness() *harness {
	h := &harness{
		stream: newFakeStream(),
		mic:    newFakeMic(),
		output: &fakeOutput{},
		timers: &timerRecorder{},
		events: &callbackRecorder{},
	}
	h.transport = &fakeTransport{stream: h.stream}
	h.client = NewClient(testConfig(), h.transport, h.mic, h.output)
	h.client.afterFunc = h.timers.afterFunc
	return h
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	err := h.client.Connect(context.Background(), testProfile(), testPersona(), h.events.Callbacks())
	if err != nil {
		t.Fatalf("Expected connect to succeed, got %v", err)
	}
}

func testProfile() Profile {
	return Profile{Name: "Jordan", ResumeText: "Built distributed systems in Go."}
}

func testPersona() Persona {
	return Persona{CompanyName: "Acme", Role: "Backend Engineer"}
}

// pcmChunk returns base64 PCM16 holding seconds of audio at 24 kHz
func pcmChunk(seconds float64, level int16) string {
	samples := int(seconds * 24000)
	raw := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(level))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func audioMessage(data string) *ServerMessage {
	return &ServerMessage{ServerContent: &ServerContent{
		ModelTurn: &Content{Parts: []Part{{InlineData: &audio.Blob{MIMEType: "audio/pcm;rate=24000", Data: data}}}},
	}}
}

func inputDelta(text string) *ServerMessage {
	return &ServerMessage{ServerContent: &ServerContent{InputTranscription: &Transcription{Text: text}}}
}

func outputDelta(text string) *ServerMessage {
	return &ServerMessage{ServerContent: &ServerContent{OutputTranscription: &Transcription{Text: text}}}
}

func turnComplete() *ServerMessage {
	return &ServerMessage{ServerContent: &ServerContent{TurnComplete: true}}
}

func endInterview(args map[string]any) *ServerMessage {
	return &ServerMessage{ToolCall: &ToolCall{FunctionCalls: []FunctionCall{{ID: "call-1", Name: EndInterviewTool, Args: args}}}}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type staticFrames struct {
	img image.Image
}

func (s staticFrames) Frame() image.Image { return s.img }

var errDenied = errors.New("permission denied")
