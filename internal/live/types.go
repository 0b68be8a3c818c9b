package live

import (
	"image"
	"time"
)

// Role identifies the speaker of a transcript item
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TranscriptItem is one finalized utterance turn. Items are never mutated
// after they are appended to the history.
type TranscriptItem struct {
	Role      Role      `json:"role" bson:"role"`
	Text      string    `json:"text" bson:"text"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Profile is the candidate profile. Only Name and a prefix of ResumeText
// reach the interviewer instruction.
type Profile struct {
	ID          string `json:"id" bson:"_id,omitempty"`
	Name        string `json:"name" bson:"name"`
	Email       string `json:"email" bson:"email"`
	Experience  string `json:"experience" bson:"experience"`
	ResumeText  string `json:"resumeText" bson:"resumeText"`
	ResumeScore *int   `json:"resumeScore,omitempty" bson:"resumeScore,omitempty"`
}

// Persona is the company and role the interviewer plays
type Persona struct {
	CompanyName string `json:"companyName" bson:"companyName"`
	Role        string `json:"role" bson:"role"`
}

// State is the client lifecycle state
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnectionState is the coarse view of State the host renders
type ConnectionState string

const (
	Disconnected ConnectionState = "disconnected"
	Connecting   ConnectionState = "connecting"
	Connected    ConnectionState = "connected"
)

// Connection maps a lifecycle state to its connection state
func (s State) Connection() ConnectionState {
	switch s {
	case StateConnecting:
		return Connecting
	case StateStreaming, StateDraining:
		return Connected
	default:
		return Disconnected
	}
}

// Callbacks are the notifications a session delivers to its host.
// OnError and OnComplete run on their own goroutines and may call Disconnect.
type Callbacks struct {
	OnVolume   func(level float64)
	OnError    func(err error)
	OnComplete func()
}

// FrameSource yields the current camera frame, or nil when no frame with
// dimensions is available
type FrameSource interface {
	Frame() image.Image
}
