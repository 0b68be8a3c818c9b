package live

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/intervu/live-interview/internal/audio"
)

func newLiveTestServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) (string, func()) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn, r)
	}))

	return "ws" + strings.TrimPrefix(server.URL, "http"), server.Close
}

func newTestTransport(endpoint string) *GeminiTransport {
	cfg := testConfig()
	cfg.GeminiLiveURL = endpoint
	return NewGeminiTransport(cfg)
}

func TestGeminiTransport_SetupAndRoundTrip(t *testing.T) {
	setupCh := make(chan map[string]any, 1)
	inputCh := make(chan map[string]any, 1)
	keyCh := make(chan string, 1)

	endpoint, closeServer := newLiveTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		defer conn.Close()
		keyCh <- r.URL.Query().Get("key")

		var setup map[string]any
		if err := conn.ReadJSON(&setup); err != nil {
			return
		}
		setupCh <- setup
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte(`{"setupComplete":{}}`))

		var input map[string]any
		if err := conn.ReadJSON(&input); err != nil {
			return
		}
		inputCh <- input

		_ = conn.WriteJSON(map[string]any{
			"serverContent": map[string]any{
				"outputTranscription": map[string]any{"text": "Hello"},
				"turnComplete":        true,
			},
		})
		_ = conn.WriteJSON(map[string]any{
			"toolCall": map[string]any{
				"functionCalls": []any{map[string]any{"id": "1", "name": "end_interview", "args": map[string]any{"reason": "done"}}},
			},
		})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(50 * time.Millisecond)
	})
	defer closeServer()

	stream, err := newTestTransport(endpoint).Dial(context.Background(), Setup{
		Model:               "test-model",
		SystemInstruction:   "be brief",
		Tools:               []FunctionDeclaration{EndInterviewDeclaration()},
		ResponseModalities:  []string{"AUDIO"},
		Voice:               "Kore",
		InputTranscription:  true,
		OutputTranscription: true,
	})
	if err != nil {
		t.Fatalf("Expected dial to succeed, got %v", err)
	}
	defer stream.Close()

	if key := <-keyCh; key != "test-key" {
		t.Errorf("Expected api key in query, got %q", key)
	}

	setup := (<-setupCh)["setup"].(map[string]any)
	if setup["model"] != "models/test-model" {
		t.Errorf("Unexpected model %v", setup["model"])
	}
	if _, ok := setup["inputAudioTranscription"]; !ok {
		t.Error("Expected inputAudioTranscription in setup")
	}
	if _, ok := setup["outputAudioTranscription"]; !ok {
		t.Error("Expected outputAudioTranscription in setup")
	}
	voice := setup["generationConfig"].(map[string]any)["speechConfig"].(map[string]any)["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)["voiceName"]
	if voice != "Kore" {
		t.Errorf("Expected voice Kore, got %v", voice)
	}

	blob := audio.EncodePCM16([]float32{0.5})
	if err := stream.SendRealtimeInput(RealtimeInput{Audio: &blob}); err != nil {
		t.Fatalf("Expected send to succeed, got %v", err)
	}
	input := (<-inputCh)["realtimeInput"].(map[string]any)["audio"].(map[string]any)
	if input["mimeType"] != "audio/pcm;rate=16000" || input["data"] != blob.Data {
		t.Errorf("Unexpected realtime input %v", input)
	}

	msg, err := stream.Recv()
	if err != nil {
		t.Fatalf("Expected message, got %v", err)
	}
	if msg.ServerContent == nil || msg.ServerContent.OutputTranscription.Text != "Hello" || !msg.ServerContent.TurnComplete {
		t.Errorf("Unexpected server content %+v", msg.ServerContent)
	}

	msg, err = stream.Recv()
	if err != nil {
		t.Fatalf("Expected message, got %v", err)
	}
	if msg.ToolCall == nil || msg.ToolCall.FunctionCalls[0].Args["reason"] != "done" {
		t.Errorf("Unexpected tool call %+v", msg.ToolCall)
	}

	if _, err := stream.Recv(); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF on normal close, got %v", err)
	}
}

func TestGeminiTransport_RejectsMissingSetupComplete(t *testing.T) {
	endpoint, closeServer := newLiveTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		defer conn.Close()
		var setup json.RawMessage
		_ = conn.ReadJSON(&setup)
		_ = conn.WriteJSON(map[string]any{"serverContent": map[string]any{"turnComplete": true}})
	})
	defer closeServer()

	_, err := newTestTransport(endpoint).Dial(context.Background(), Setup{Model: "m"})
	if err == nil || !strings.Contains(err.Error(), "setupComplete") {
		t.Errorf("Expected setupComplete error, got %v", err)
	}
}

func TestGeminiTransport_DialContextCancelled(t *testing.T) {
	endpoint, closeServer := newLiveTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		defer conn.Close()
		var setup json.RawMessage
		_ = conn.ReadJSON(&setup)
		time.Sleep(500 * time.Millisecond)
	})
	defer closeServer()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestTransport(endpoint).Dial(ctx, Setup{Model: "m"})
	if err == nil {
		t.Fatal("Expected dial to fail when the context ends")
	}
	if time.Since(start) > 400*time.Millisecond {
		t.Error("Expected dial to stop waiting once the context ended")
	}
}

func TestGeminiStream_SendAfterClose(t *testing.T) {
	endpoint, closeServer := newLiveTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		defer conn.Close()
		var setup json.RawMessage
		_ = conn.ReadJSON(&setup)
		_ = conn.WriteJSON(map[string]any{"setupComplete": map[string]any{}})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer closeServer()

	stream, err := newTestTransport(endpoint).Dial(context.Background(), Setup{Model: "m"})
	if err != nil {
		t.Fatalf("Expected dial to succeed, got %v", err)
	}
	_ = stream.Close()
	_ = stream.Close()

	blob := audio.EncodePCM16([]float32{0})
	if err := stream.SendRealtimeInput(RealtimeInput{Audio: &blob}); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Expected ErrStreamClosed, got %v", err)
	}
	if _, err := stream.Recv(); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Expected ErrStreamClosed from Recv, got %v", err)
	}
}
