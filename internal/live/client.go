package live

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/intervu/live-interview/internal/audio"
	"github.com/intervu/live-interview/internal/config"
	"github.com/intervu/live-interview/internal/observability"
	"github.com/intervu/live-interview/internal/video"
)

// timer is the part of *time.Timer the completion schedule needs
type timer interface {
	Stop() bool
}

func realAfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

// Client runs realtime interview sessions: it streams microphone audio and
// camera frames to the model, plays the model's audio back on a gapless
// timeline and accumulates the turn-by-turn transcript.
//
// A Client may be reconnected after it closed; each Connect starts a fresh
// session with an empty transcript.
type Client struct {
	cfg        *config.Config
	transport  Transport
	microphone audio.InputOpener
	speaker    audio.OutputOpener
	afterFunc  func(time.Duration, func()) timer

	mu         sync.Mutex
	state      State
	generation uint64
	sessionID  string
	logger     zerolog.Logger
	metrics    *observability.SessionMetrics
	callbacks  Callbacks
	micMuted   bool
	open       bool
	failed     bool

	cancel     context.CancelFunc
	mic        audio.InputStream
	output     audio.Output
	stream     Stream
	dispatcher *dispatcher
	clock      *audio.PlaybackClock
	videoLoop  *videoLoop
	completion timer
	endReason  string
	workers    *sync.WaitGroup

	pendingUser      strings.Builder
	pendingAssistant strings.Builder
	history          []TranscriptItem
}

// NewClient creates an idle client
func NewClient(cfg *config.Config, transport Transport, microphone audio.InputOpener, speaker audio.OutputOpener) *Client {
	return &Client{
		cfg:        cfg,
		transport:  transport,
		microphone: microphone,
		speaker:    speaker,
		afterFunc:  realAfterFunc,
		logger:     observability.WithComponent("live_client"),
		clock:      audio.NewPlaybackClock(),
	}
}

// Connect opens the microphone and the playback output, dials the model with
// the interviewer persona and starts streaming. Setup failures are reported
// through OnError and returned; the client is left closed. A Disconnect that
// lands while Connect is in flight makes it return ErrDisconnected after
// releasing everything it acquired.
func (c *Client) Connect(ctx context.Context, profile Profile, persona Persona, callbacks Callbacks) error {
	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateStreaming, StateDraining:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	if c.open {
		// a session that failed mid-stream still holds its devices and goroutines
		c.mu.Unlock()
		c.Disconnect()
		c.mu.Lock()
		if c.state != StateClosed {
			c.mu.Unlock()
			return ErrAlreadyConnected
		}
	}

	c.generation++
	gen := c.generation
	c.state = StateConnecting
	c.callbacks = callbacks
	c.history = nil
	c.pendingUser.Reset()
	c.pendingAssistant.Reset()
	c.endReason = ""
	c.completion = nil
	c.open = true
	c.failed = false
	c.clock = audio.NewPlaybackClock()
	c.sessionID = observability.NewSessionID()
	c.logger = observability.WithSessionID(c.sessionID).With().Str("component", "live_client").Logger()
	c.metrics = observability.NewSessionMetrics(c.sessionID)
	c.metrics.RecordConnectStart()
	sessionCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	workers := new(sync.WaitGroup)
	c.workers = workers
	logger := c.logger
	c.mu.Unlock()

	logger.Info().
		Str("company", persona.CompanyName).
		Str("role", persona.Role).
		Msg("Connecting interview session")

	// Disconnect cancels sessionCtx, which aborts whatever step is in flight
	setupCtx, cancelSetup := context.WithCancel(ctx)
	defer cancelSetup()
	stopOnDisconnect := context.AfterFunc(sessionCtx, cancelSetup)
	defer stopOnDisconnect()

	mic, err := c.microphone.OpenInput(setupCtx, c.cfg.InputSampleRate)
	if err != nil {
		return c.failConnect(gen, &MediaAccessError{Device: "microphone", Err: err})
	}
	if !c.attach(gen, func() {
		mic.SetEnabled(!c.micMuted)
		c.mic = mic
	}) {
		_ = mic.Close()
		return ErrDisconnected
	}

	output, err := c.speaker.OpenOutput(c.cfg.OutputSampleRate, 1)
	if err != nil {
		return c.failConnect(gen, &MediaAccessError{Device: "audio output", Err: err})
	}
	if !c.attach(gen, func() { c.output = output }) {
		_ = output.Close()
		return ErrDisconnected
	}

	setup := Setup{
		Model:               c.cfg.GeminiLiveModel,
		SystemInstruction:   BuildInstruction(profile, persona),
		Tools:               []FunctionDeclaration{EndInterviewDeclaration()},
		ResponseModalities:  []string{"AUDIO"},
		Voice:               c.cfg.GeminiVoice,
		InputTranscription:  true,
		OutputTranscription: true,
	}
	stream, err := c.transport.Dial(setupCtx, setup)
	if err != nil {
		return c.failConnect(gen, &ConnectionError{Op: "dial", Err: err})
	}

	opened := c.attach(gen, func() {
		c.stream = stream
		c.dispatcher = newDispatcher(c.cfg.OutboundWorkers, c.cfg.OutboundQueueSize, stream.SendRealtimeInput, c.sendResult)
		c.state = StateStreaming
		c.metrics.RecordStreaming()

		workers.Add(2)
		go c.pumpAudio(sessionCtx, workers, gen, mic)
		go c.receive(sessionCtx, workers, gen, stream)
	})
	if !opened {
		_ = stream.Close()
		return ErrDisconnected
	}

	logger.Info().Msg("Interview session streaming")
	return nil
}

// attach runs set under the lock if the session gen is still connecting
func (c *Client) attach(gen uint64, set func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen || c.state != StateConnecting {
		return false
	}
	set()
	return true
}

// failConnect closes a session whose setup failed and reports err once. If the
// session was disconnected meanwhile the failure is a consequence of that and
// ErrDisconnected is returned without a callback.
func (c *Client) failConnect(gen uint64, err error) error {
	c.mu.Lock()
	if c.generation != gen || c.state != StateConnecting {
		c.mu.Unlock()
		return ErrDisconnected
	}
	c.failed = true
	onError := c.callbacks.OnError
	metrics := c.metrics
	logger := c.logger
	c.mu.Unlock()

	logger.Error().Err(err).Msg("Failed to connect interview session")
	metrics.RecordError(errorType(err), "live_client")

	c.Disconnect()
	if onError != nil {
		go onError(err)
	}
	return err
}

// Disconnect ends the session from any state. Pending transcription text is
// flushed into the transcript first, then every held resource is released.
// Calling it again is a no-op.
func (c *Client) Disconnect() {
	c.mu.Lock()
	prev := c.state
	c.state = StateClosed
	c.flushPendingLocked()

	cancel := c.cancel
	loop := c.videoLoop
	mic := c.mic
	output := c.output
	stream := c.stream
	disp := c.dispatcher
	completion := c.completion
	workers := c.workers
	metrics := c.metrics
	open, failed := c.open, c.failed
	c.open = false
	c.cancel, c.videoLoop, c.mic, c.output, c.stream, c.dispatcher, c.completion = nil, nil, nil, nil, nil, nil, nil
	c.workers = nil
	logger := c.logger
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if completion != nil {
		completion.Stop()
	}
	if loop != nil {
		loop.stop()
	}
	if mic != nil {
		if err := mic.Close(); err != nil {
			logger.Debug().Err(err).Msg("Error closing microphone")
		}
	}
	if stream != nil {
		if err := stream.Close(); err != nil {
			logger.Debug().Err(err).Msg("Error closing live stream")
		}
	}
	if disp != nil {
		disp.Stop()
	}
	if workers != nil {
		workers.Wait()
	}
	if output != nil {
		if err := output.Close(); err != nil {
			logger.Debug().Err(err).Msg("Error closing audio output")
		}
	}

	if open {
		outcome := "disconnected"
		switch {
		case failed:
			outcome = "failed"
		case prev == StateDraining:
			outcome = "completed"
		}
		metrics.RecordSessionEnd(outcome)
		logger.Info().Str("from_state", prev.String()).Msg("Interview session closed")
	}
}

// StartVideoStream samples frames from src at the configured cadence and
// sends them while streaming. Starting again replaces the running loop.
func (c *Client) StartVideoStream(src FrameSource) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return ErrDisconnected
	}
	old := c.videoLoop
	loop := newVideoLoop()
	c.videoLoop = loop
	c.mu.Unlock()

	if old != nil {
		old.stop()
	}
	go c.sampleVideo(src, loop)
	return nil
}

// SetMicMuted mutes or unmutes the microphone. A muted microphone keeps
// streaming silence.
func (c *Client) SetMicMuted(muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.micMuted = muted
	if c.mic != nil {
		c.mic.SetEnabled(!muted)
	}
}

// Transcript returns a copy of the finalized transcript
func (c *Client) Transcript() []TranscriptItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TranscriptItem, len(c.history))
	copy(out, c.history)
	return out
}

// State returns the lifecycle state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connection returns the coarse connection state
func (c *Client) Connection() ConnectionState {
	return c.State().Connection()
}

// SessionID returns the correlation id of the current or last session
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// EndReason returns the reason the model gave for ending the interview
func (c *Client) EndReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endReason
}

// streamingDispatcher returns the dispatcher if the session may send, else nil
func (c *Client) streamingDispatcher() (*dispatcher, *observability.SessionMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStreaming {
		return nil, c.metrics
	}
	return c.dispatcher, c.metrics
}

func (c *Client) pumpAudio(ctx context.Context, workers *sync.WaitGroup, gen uint64, mic audio.InputStream) {
	defer workers.Done()

	block := make([]float32, c.cfg.AudioBlockSize)
	for {
		if err := mic.ReadBlock(block); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.fail(gen, &MediaAccessError{Device: "microphone", Err: err})
			return
		}

		disp, metrics := c.streamingDispatcher()
		if disp == nil {
			metrics.RecordRealtimeInput("audio", "dropped")
			continue
		}
		blob := audio.EncodePCM16(block)
		if !disp.Submit(RealtimeInput{Audio: &blob}) {
			metrics.RecordRealtimeInput("audio", "dropped")
		}
	}
}

func (c *Client) sendResult(in RealtimeInput, err error) {
	c.mu.Lock()
	metrics := c.metrics
	logger := c.logger
	c.mu.Unlock()

	if err != nil {
		metrics.RecordRealtimeInput(in.Kind(), "error")
		logger.Debug().Err(err).Str("kind", in.Kind()).Msg("Failed to send realtime input")
		return
	}
	metrics.RecordRealtimeInput(in.Kind(), "sent")
	if in.Audio != nil {
		metrics.RecordAudioBytes("out", int64(len(in.Audio.Data)))
	}
}

func (c *Client) receive(ctx context.Context, workers *sync.WaitGroup, gen uint64, stream Stream) {
	defer workers.Done()

	for {
		msg, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) && c.State() == StateDraining {
				return
			}
			c.fail(gen, &ConnectionError{Op: "receive", Err: err})
			return
		}
		c.handleMessage(gen, msg)
	}
}

// fail reports a mid-session error once and closes the session for sending.
// Resources stay held until Disconnect or the next Connect.
func (c *Client) fail(gen uint64, err error) {
	c.mu.Lock()
	if c.generation != gen || c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.failed = true
	onError := c.callbacks.OnError
	metrics := c.metrics
	logger := c.logger
	c.mu.Unlock()

	logger.Error().Err(err).Msg("Interview session failed")
	metrics.RecordError(errorType(err), "live_client")
	if onError != nil {
		go onError(err)
	}
}

func (c *Client) handleMessage(gen uint64, msg *ServerMessage) {
	c.mu.Lock()
	if c.generation != gen || (c.state != StateStreaming && c.state != StateDraining) {
		c.mu.Unlock()
		return
	}
	metrics := c.metrics
	logger := c.logger
	onVolume := c.callbacks.OnVolume
	output := c.output
	clock := c.clock

	content := msg.ServerContent
	if content != nil {
		if t := content.OutputTranscription; t != nil && t.Text != "" {
			c.pendingAssistant.WriteString(t.Text)
		}
		if t := content.InputTranscription; t != nil && t.Text != "" {
			c.pendingUser.WriteString(t.Text)
		}
		if content.TurnComplete {
			c.flushPendingLocked()
		}
	}
	c.mu.Unlock()

	if content != nil {
		metrics.RecordServerEvent("server_content")
		if content.Interrupted {
			metrics.RecordServerEvent("interrupted")
			logger.Debug().Msg("Model turn interrupted")
		}
		if content.ModelTurn != nil && output != nil {
			for _, part := range content.ModelTurn.Parts {
				if part.InlineData == nil || !strings.HasPrefix(part.InlineData.MIMEType, "audio/") {
					continue
				}
				c.playChunk(part.InlineData.Data, output, clock, onVolume, metrics, logger)
			}
		}
	}

	if msg.ToolCall != nil {
		metrics.RecordServerEvent("tool_call")
		for _, call := range msg.ToolCall.FunctionCalls {
			if call.Name != EndInterviewTool {
				logger.Warn().Str("tool", call.Name).Msg("Ignoring unknown tool call")
				continue
			}
			c.beginDrain(gen, call)
			break
		}
	}

	if msg.GoAway != nil {
		metrics.RecordServerEvent("go_away")
		logger.Warn().Str("time_left", msg.GoAway.TimeLeft).Msg("Server will close the session soon")
	}
}

// playChunk decodes one audio payload, reports its volume and queues it at
// the end of the playback timeline. A malformed chunk is skipped.
func (c *Client) playChunk(data string, output audio.Output, clock *audio.PlaybackClock, onVolume func(float64), metrics *observability.SessionMetrics, logger zerolog.Logger) {
	buf, err := audio.DecodePCM16(data, c.cfg.OutputSampleRate, 1)
	if err != nil {
		metrics.RecordError("decode", "live_client")
		logger.Warn().Err(err).Msg("Skipping malformed audio chunk")
		return
	}
	metrics.RecordServerEvent("audio")
	metrics.RecordAudioBytes("in", int64(len(data)))

	if onVolume != nil {
		onVolume(audio.StrideVolume(buf.ChannelData(0)))
	}

	duration := buf.Duration()
	start := clock.Schedule(output.CurrentTime(), duration)
	if err := output.Play(buf, start); err != nil {
		logger.Debug().Err(err).Msg("Failed to queue audio chunk")
		return
	}
	metrics.RecordPlaybackQueued(duration)
}

// beginDrain handles end_interview: outbound media stops and completion fires
// once the queued audio has played plus the grace period.
func (c *Client) beginDrain(gen uint64, call FunctionCall) {
	reason, err := endReason(call)

	c.mu.Lock()
	if c.generation != gen || c.state != StateStreaming {
		c.mu.Unlock()
		return
	}
	c.state = StateDraining
	c.endReason = reason

	remaining := 0.0
	if c.output != nil {
		remaining = c.clock.Remaining(c.output.CurrentTime())
	}
	delay := time.Duration(remaining*float64(time.Second)) + c.cfg.CompletionGrace()
	c.completion = c.afterFunc(delay, func() { c.complete(gen) })
	logger := c.logger
	c.mu.Unlock()

	if err != nil {
		logger.Warn().Err(err).Str("reason", reason).Msg("Malformed end_interview call, using default reason")
	}
	logger.Info().
		Str("reason", reason).
		Dur("delay", delay).
		Msg("Model ended the interview")
}

func (c *Client) complete(gen uint64) {
	c.mu.Lock()
	if c.generation != gen || c.state != StateDraining || c.completion == nil {
		c.mu.Unlock()
		return
	}
	c.completion = nil
	onComplete := c.callbacks.OnComplete
	c.mu.Unlock()

	if onComplete != nil {
		onComplete()
	}
}

// flushPendingLocked turns non-empty pending text into transcript items,
// user before assistant. Callers hold c.mu.
func (c *Client) flushPendingLocked() {
	now := time.Now()
	if text := strings.TrimSpace(c.pendingUser.String()); text != "" {
		c.history = append(c.history, TranscriptItem{Role: RoleUser, Text: text, Timestamp: now})
		c.metrics.RecordTranscriptItem(string(RoleUser))
	}
	c.pendingUser.Reset()
	if text := strings.TrimSpace(c.pendingAssistant.String()); text != "" {
		c.history = append(c.history, TranscriptItem{Role: RoleAssistant, Text: text, Timestamp: now})
		c.metrics.RecordTranscriptItem(string(RoleAssistant))
	}
	c.pendingAssistant.Reset()
}

type videoLoop struct {
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newVideoLoop() *videoLoop {
	return &videoLoop{quit: make(chan struct{}), done: make(chan struct{})}
}

func (l *videoLoop) stop() {
	l.stopOnce.Do(func() { close(l.quit) })
	<-l.done
}

func (c *Client) sampleVideo(src FrameSource, loop *videoLoop) {
	defer close(loop.done)

	ticker := time.NewTicker(c.cfg.VideoInterval())
	defer ticker.Stop()

	for {
		select {
		case <-loop.quit:
			return
		case <-ticker.C:
		}

		disp, metrics := c.streamingDispatcher()
		if disp == nil {
			metrics.RecordRealtimeInput("video", "dropped")
			continue
		}
		frame := src.Frame()
		if frame == nil {
			continue
		}
		blob, err := video.EncodeFrame(frame, c.cfg.VideoScale, c.cfg.VideoJPEGQuality)
		if err != nil {
			metrics.RecordRealtimeInput("video", "dropped")
			continue
		}
		if !disp.Submit(RealtimeInput{Video: &blob}) {
			metrics.RecordRealtimeInput("video", "dropped")
		}
	}
}

func errorType(err error) string {
	var mediaErr *MediaAccessError
	var connErr *ConnectionError
	switch {
	case errors.As(err, &mediaErr):
		return "media_access"
	case errors.As(err, &connErr):
		return "connection"
	default:
		return "unknown"
	}
}
