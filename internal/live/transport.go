package live

import (
	"context"

	"github.com/intervu/live-interview/internal/audio"
)

// Transport opens bidirectional sessions with the conversational model
type Transport interface {
	// Dial opens a session and returns once the server accepted the setup
	Dial(ctx context.Context, setup Setup) (Stream, error)
}

// Stream is an open session. SendRealtimeInput may be called concurrently;
// Recv is called from a single goroutine.
type Stream interface {
	SendRealtimeInput(in RealtimeInput) error
	Recv() (*ServerMessage, error)
	Close() error
}

// Setup is the session configuration sent when the stream opens
type Setup struct {
	Model               string
	SystemInstruction   string
	Tools               []FunctionDeclaration
	ResponseModalities  []string
	Voice               string
	InputTranscription  bool
	OutputTranscription bool
}

// FunctionDeclaration describes a tool the model may call
type FunctionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// Schema is the subset of the OpenAPI schema used for tool parameters
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// RealtimeInput carries one audio block or one video frame
type RealtimeInput struct {
	Audio *audio.Blob `json:"audio,omitempty"`
	Video *audio.Blob `json:"video,omitempty"`
}

// Kind returns "audio" or "video" for metrics and logs
func (in RealtimeInput) Kind() string {
	if in.Video != nil {
		return "video"
	}
	return "audio"
}

// ServerMessage is one event delivered by the server
type ServerMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *ServerContent `json:"serverContent,omitempty"`
	ToolCall      *ToolCall      `json:"toolCall,omitempty"`
	GoAway        *GoAway        `json:"goAway,omitempty"`
}

// ServerContent holds model output for the current turn
type ServerContent struct {
	ModelTurn           *Content       `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
}

// Content is a model turn made of parts
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

// Part is one piece of a model turn. Audio arrives as InlineData.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *audio.Blob `json:"inlineData,omitempty"`
}

// Transcription is an incremental transcription fragment
type Transcription struct {
	Text string `json:"text"`
}

// ToolCall carries the functions the model asked to invoke
type ToolCall struct {
	FunctionCalls []FunctionCall `json:"functionCalls"`
}

// FunctionCall is one requested invocation
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// GoAway warns that the server will close the stream soon
type GoAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}
