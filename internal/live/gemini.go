package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/intervu/live-interview/internal/config"
	"github.com/intervu/live-interview/internal/observability"
)

const (
	defaultHandshakeTimeout = 15 * time.Second
	writeTimeout            = 10 * time.Second
)

// ErrStreamClosed is returned by Stream operations after Close
var ErrStreamClosed = errors.New("live stream is closed")

// GeminiTransport speaks the Gemini Live BidiGenerateContent protocol over a websocket
type GeminiTransport struct {
	endpoint         string
	apiKey           string
	dialer           *websocket.Dialer
	handshakeTimeout time.Duration
	logger           zerolog.Logger
}

// NewGeminiTransport creates a transport from configuration
func NewGeminiTransport(cfg *config.Config) *GeminiTransport {
	return &GeminiTransport{
		endpoint:         cfg.GeminiLiveURL,
		apiKey:           cfg.GeminiAPIKey,
		dialer:           &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout, ReadBufferSize: 1 << 16, WriteBufferSize: 1 << 16},
		handshakeTimeout: defaultHandshakeTimeout,
		logger:           observability.WithComponent("gemini_live"),
	}
}

// Dial opens the websocket, sends the setup frame and waits for setupComplete
func (t *GeminiTransport) Dial(ctx context.Context, setup Setup) (Stream, error) {
	endpoint, err := url.Parse(t.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid live endpoint: %w", err)
	}
	q := endpoint.Query()
	if t.apiKey != "" {
		q.Set("key", t.apiKey)
	}
	endpoint.RawQuery = q.Encode()

	dialCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, t.handshakeTimeout)
		defer cancel()
	}

	conn, resp, err := t.dialer.DialContext(dialCtx, endpoint.String(), http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	if err := conn.WriteJSON(newSetupMessage(setup)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send setup: %w", err)
	}

	// Unblock the handshake read if ctx ends first
	stop := context.AfterFunc(dialCtx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	deadline := time.Now().Add(t.handshakeTimeout)
	if d, ok := dialCtx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)
	msg, err := readServerMessage(conn)
	stop()
	if err != nil {
		_ = conn.Close()
		if ctxErr := dialCtx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("wait for setupComplete: %w", ctxErr)
		}
		return nil, fmt.Errorf("wait for setupComplete: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	if msg.SetupComplete == nil {
		_ = conn.Close()
		return nil, errors.New("unexpected first server message: setupComplete missing")
	}

	t.logger.Debug().Str("model", setup.Model).Msg("Live session setup complete")
	return &geminiStream{conn: conn}, nil
}

type geminiStream struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
}

func (s *geminiStream) SendRealtimeInput(in RealtimeInput) error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(clientMessage{RealtimeInput: &in})
}

func (s *geminiStream) Recv() (*ServerMessage, error) {
	msg, err := readServerMessage(s.conn)
	if err != nil {
		if s.closed.Load() {
			return nil, ErrStreamClosed
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	return msg, nil
}

func (s *geminiStream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	return nil
}

// readServerMessage reads one frame. The server sends JSON in both text and
// binary frames.
func readServerMessage(conn *websocket.Conn) (*ServerMessage, error) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		var msg ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode server message: %w", err)
		}
		return &msg, nil
	}
}
