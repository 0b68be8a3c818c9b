package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/intervu/live-interview/internal/live"
	"github.com/intervu/live-interview/internal/observability"
	"github.com/intervu/live-interview/internal/video"
)

// LiveClient is the part of *live.Client the host drives
type LiveClient interface {
	Connect(ctx context.Context, profile live.Profile, persona live.Persona, callbacks live.Callbacks) error
	StartVideoStream(src live.FrameSource) error
	Disconnect()
	Transcript() []live.TranscriptItem
	Connection() live.ConnectionState
	SetMicMuted(muted bool)
	EndReason() string
}

// Reason says which trigger ended the session
type Reason string

const (
	ReasonUserEnded Reason = "user_ended"
	ReasonCompleted Reason = "completed"
	ReasonDisposed  Reason = "disposed"
	ReasonFailed    Reason = "failed"
)

// Outcome is what the host hands upward once the session is torn down
type Outcome struct {
	Transcript []live.TranscriptItem
	Reason     Reason
	EndReason  string
	Err        error
	Duration   time.Duration

	// GenerateReport is set when the interview ended normally, by the user or
	// by the model
	GenerateReport bool
}

// Status is a snapshot of what the host renders
type Status struct {
	Connection live.ConnectionState
	Volume     float64
	Warning    string
	Err        error
	Elapsed    time.Duration
	MicMuted   bool
	CameraOn   bool
}

// Host owns the camera, drives a live client and guarantees that every exit
// path releases the devices exactly once.
type Host struct {
	client  LiveClient
	camera  video.Opener
	preview *video.Preview
	profile live.Profile
	persona live.Persona
	logger  zerolog.Logger

	mu        sync.Mutex
	mounted   bool
	camStream video.Stream
	warning   string
	err       error
	micMuted  bool
	cameraOn  bool
	connected time.Time
	elapsed   time.Duration

	volume atomic.Uint64

	teardownOnce sync.Once
	done         chan struct{}
	outcome      Outcome
}

// NewHost creates a host for one interview. camera may be nil for audio-only sessions.
func NewHost(client LiveClient, camera video.Opener, profile live.Profile, persona live.Persona) *Host {
	return &Host{
		client:   client,
		camera:   camera,
		preview:  video.NewPreview(),
		profile:  profile,
		persona:  persona,
		logger:   observability.WithComponent("session_host"),
		mounted:  true,
		cameraOn: true,
		done:     make(chan struct{}),
	}
}

// Run acquires the camera, connects the client and blocks until the session
// is torn down by End, model completion, a fatal error, Dispose or ctx.
func (h *Host) Run(ctx context.Context) Outcome {
	h.acquireCamera(ctx)

	callbacks := live.Callbacks{
		OnVolume:   h.setVolume,
		OnError:    func(err error) { h.teardown(ReasonFailed, err) },
		OnComplete: func() { h.teardown(ReasonCompleted, nil) },
	}

	var err error
	if h.isMounted() {
		err = h.client.Connect(ctx, h.profile, h.persona, callbacks)
	} else {
		err = live.ErrDisconnected
	}
	switch {
	case errors.Is(err, live.ErrDisconnected):
		// torn down while connecting
	case err != nil && ctx.Err() != nil:
		h.teardown(ReasonDisposed, nil)
	case err != nil:
		h.teardown(ReasonFailed, err)
	default:
		h.onConnected()
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return h.outcome
		case <-ctx.Done():
			h.teardown(ReasonDisposed, nil)
		case <-ticker.C:
			h.tick()
		}
	}
}

func (h *Host) acquireCamera(ctx context.Context) {
	if h.camera == nil {
		h.setWarning("Camera disabled, continuing with audio only")
		return
	}

	stream, err := h.camera.Open(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Camera unavailable, continuing with audio only")
		h.setWarning("Camera unavailable, continuing with audio only")
		return
	}

	h.mu.Lock()
	if !h.mounted {
		h.mu.Unlock()
		stream.Stop()
		return
	}
	h.camStream = stream
	stream.SetEnabled(h.cameraOn)
	// attached under mu so teardown never sees the handle without the preview
	h.preview.Attach(stream)
	h.mu.Unlock()
}

func (h *Host) onConnected() {
	h.mu.Lock()
	if !h.mounted {
		h.mu.Unlock()
		// disposed while the connection was opening
		h.client.Disconnect()
		return
	}
	h.connected = time.Now()
	h.mu.Unlock()

	if err := h.client.StartVideoStream(h.preview); err != nil {
		h.logger.Debug().Err(err).Msg("Video loop not started")
	}
	h.logger.Info().Msg("Interview session started")
}

func (h *Host) tick() {
	if h.client.Connection() != live.Connected {
		return
	}
	h.mu.Lock()
	if !h.connected.IsZero() {
		h.elapsed = time.Since(h.connected).Truncate(time.Second)
	}
	h.mu.Unlock()
}

// teardown runs once for whichever trigger arrives first. Camera tracks are
// stopped on the host handle and on the preview before the client disconnects.
func (h *Host) teardown(reason Reason, err error) {
	h.teardownOnce.Do(func() {
		h.mu.Lock()
		h.mounted = false
		cam := h.camStream
		h.camStream = nil
		if err != nil {
			h.err = err
		}
		started := h.connected
		h.mu.Unlock()

		if cam != nil {
			cam.Stop()
		}
		if attached := h.preview.Detach(); attached != nil {
			attached.Stop()
		}

		h.client.Disconnect()

		outcome := Outcome{
			Transcript:     h.client.Transcript(),
			Reason:         reason,
			EndReason:      h.client.EndReason(),
			Err:            err,
			GenerateReport: reason == ReasonUserEnded || reason == ReasonCompleted,
		}
		if !started.IsZero() {
			outcome.Duration = time.Since(started)
		}
		h.outcome = outcome

		event := h.logger.Info()
		if err != nil {
			event = h.logger.Error().Err(err)
		}
		event.
			Str("reason", string(reason)).
			Int("transcript_items", len(outcome.Transcript)).
			Msg("Interview session ended")

		close(h.done)
	})
}

// End is the user's end action
func (h *Host) End() {
	h.teardown(ReasonUserEnded, nil)
}

// Dispose tears the session down without requesting a report
func (h *Host) Dispose() {
	h.teardown(ReasonDisposed, nil)
}

// Done is closed once teardown has finished
func (h *Host) Done() <-chan struct{} {
	return h.done
}

// SetMicMuted mutes or unmutes the microphone
func (h *Host) SetMicMuted(muted bool) {
	h.mu.Lock()
	h.micMuted = muted
	h.mu.Unlock()
	h.client.SetMicMuted(muted)
}

// SetCameraEnabled turns the camera track on or off. A disabled camera sends no frames.
func (h *Host) SetCameraEnabled(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cameraOn = enabled
	if h.camStream != nil {
		h.camStream.SetEnabled(enabled)
	}
}

// Preview returns the live view the camera is attached to
func (h *Host) Preview() *video.Preview {
	return h.preview
}

// Status returns the current render state
func (h *Host) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Status{
		Connection: h.client.Connection(),
		Volume:     math.Float64frombits(h.volume.Load()),
		Warning:    h.warning,
		Err:        h.err,
		Elapsed:    h.elapsed,
		MicMuted:   h.micMuted,
		CameraOn:   h.cameraOn && h.camStream != nil,
	}
}

func (h *Host) setVolume(level float64) {
	h.volume.Store(math.Float64bits(level))
}

func (h *Host) isMounted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mounted
}

func (h *Host) setWarning(msg string) {
	h.mu.Lock()
	h.warning = msg
	h.mu.Unlock()
}
