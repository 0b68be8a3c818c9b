package main

import (
	"bytes"
	"strings"
	"testing"
)

type recordingControls struct {
	muted   []bool
	camera  []bool
	endings int
}

func (r *recordingControls) SetMicMuted(muted bool)        { r.muted = append(r.muted, muted) }
func (r *recordingControls) SetCameraEnabled(enabled bool) { r.camera = append(r.camera, enabled) }
func (r *recordingControls) End()                          { r.endings++ }

func TestReadCommands_UnknownInputDoesNotEnd(t *testing.T) {
	controls := &recordingControls{}
	var out bytes.Buffer

	readCommands(strings.NewReader("x\nquit\n"), &out, controls)

	if controls.endings != 0 {
		t.Errorf("Expected unknown commands to keep the interview running, got %d endings", controls.endings)
	}
	if !strings.Contains(out.String(), "Unknown command") {
		t.Errorf("Expected help text for unknown input, got %q", out.String())
	}
}

func TestReadCommands_TogglesThenEmptyLineEnds(t *testing.T) {
	controls := &recordingControls{}
	var out bytes.Buffer

	readCommands(strings.NewReader("m\nc\nM\n  \nm\n"), &out, controls)

	if len(controls.muted) != 2 || !controls.muted[0] || controls.muted[1] {
		t.Errorf("Expected mute then unmute, got %v", controls.muted)
	}
	if len(controls.camera) != 1 || controls.camera[0] {
		t.Errorf("Expected the camera turned off once, got %v", controls.camera)
	}
	if controls.endings != 1 {
		t.Errorf("Expected exactly one end, got %d", controls.endings)
	}
}
