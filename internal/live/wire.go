package live

import "strings"

// Client frames of the BidiGenerateContent protocol

type clientMessage struct {
	Setup         *setupMessage  `json:"setup,omitempty"`
	RealtimeInput *RealtimeInput `json:"realtimeInput,omitempty"`
}

type setupMessage struct {
	Model                    string            `json:"model"`
	GenerationConfig         *generationConfig `json:"generationConfig,omitempty"`
	SystemInstruction        *Content          `json:"systemInstruction,omitempty"`
	Tools                    []toolSet         `json:"tools,omitempty"`
	InputAudioTranscription  *struct{}         `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}         `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type toolSet struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

func newSetupMessage(s Setup) *clientMessage {
	model := s.Model
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	msg := &setupMessage{
		Model: model,
		GenerationConfig: &generationConfig{
			ResponseModalities: s.ResponseModalities,
		},
	}
	if s.Voice != "" {
		msg.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: s.Voice}},
		}
	}
	if s.SystemInstruction != "" {
		msg.SystemInstruction = &Content{Parts: []Part{{Text: s.SystemInstruction}}}
	}
	if len(s.Tools) > 0 {
		msg.Tools = []toolSet{{FunctionDeclarations: s.Tools}}
	}
	if s.InputTranscription {
		msg.InputAudioTranscription = &struct{}{}
	}
	if s.OutputTranscription {
		msg.OutputAudioTranscription = &struct{}{}
	}
	return &clientMessage{Setup: msg}
}
