package push

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewRequestFrame(t *testing.T) {
	t.Parallel()

	data := map[string]string{"workflow_id": "wf-1"}
	frame, err := NewRequestFrame("frame-1", MethodWorkflowGet, data)
	if err != nil {
		t.Fatalf("NewRequestFrame: %v", err)
	}

	if frame.ID != "frame-1" {
		t.Errorf("ID = %q, want %q", frame.ID, "frame-1")
	}
	if frame.Type != FrameRequest {
		t.Errorf("Type = %q, want %q", frame.Type, FrameRequest)
	}
	if frame.Method != MethodWorkflowGet {
		t.Errorf("Method = %q, want %q", frame.Method, MethodWorkflowGet)
	}
	if frame.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}

	var payload map[string]string
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if payload["workflow_id"] != "wf-1" {
		t.Errorf("payload workflow_id = %q, want %q", payload["workflow_id"], "wf-1")
	}
}

func TestNewResponseFrame(t *testing.T) {
	t.Parallel()

	frame, err := NewResponseFrame("correl-1", map[string]string{"status": "ok"})
	if err != nil {
		t.Fatalf("NewResponseFrame: %v", err)
	}

	if frame.Type != FrameResponse {
		t.Errorf("Type = %q, want %q", frame.Type, FrameResponse)
	}
	if frame.CorrelID != "correl-1" {
		t.Errorf("CorrelID = %q, want %q", frame.CorrelID, "correl-1")
	}
	if frame.ID == "" {
		t.Error("ID should be auto-generated")
	}
}

func TestNewErrorFrame(t *testing.T) {
	t.Parallel()

	frame := NewErrorFrame("correl-2", ErrCodeNotFound, "not found")
	if frame.Type != FrameErr {
		t.Errorf("Type = %q, want %q", frame.Type, FrameErr)
	}
	if frame.CorrelID != "correl-2" {
		t.Errorf("CorrelID = %q, want %q", frame.CorrelID, "correl-2")
	}
	if frame.Error == nil {
		t.Fatal("Error should not be nil")
	}
	if frame.Error.Code != ErrCodeNotFound {
		t.Errorf("Error.Code = %d, want %d", frame.Error.Code, ErrCodeNotFound)
	}
	if frame.Error.Message != "not found" {
		t.Errorf("Error.Message = %q, want %q", frame.Error.Message, "not found")
	}
}

func TestNewEventFrame(t *testing.T) {
	t.Parallel()

	frame, err := NewEventFrame("workflow:wf-1", map[string]string{"task": "design"})
	if err != nil {
		t.Fatalf("NewEventFrame: %v", err)
	}

	if frame.Type != FrameEvent {
		t.Errorf("Type = %q, want %q", frame.Type, FrameEvent)
	}
	if frame.Channel != "workflow:wf-1" {
		t.Errorf("Channel = %q, want %q", frame.Channel, "workflow:wf-1")
	}
}

func TestGenerateFrameID(t *testing.T) {
	t.Parallel()

	id1 := GenerateFrameID()
	if id1 == "" {
		t.Error("GenerateFrameID returned empty string")
	}

	// Should produce unique IDs.
	time.Sleep(time.Millisecond)
	id2 := GenerateFrameID()
	if id1 == id2 {
		t.Error("two calls to GenerateFrameID should produce different IDs")
	}
}

func TestCodecJSONRoundtrip(t *testing.T) {
	t.Parallel()

	codec := &JSONCodec{}
	if codec.Name() != CodecNameJSON {
		t.Errorf("Name = %q, want %q", codec.Name(), CodecNameJSON)
	}

	original := &Frame{
		ID:     "frame-json",
		Type:   FrameRequest,
		Method: MethodTaskComplete,
		Data:   json.RawMessage(`{"workflow_id":"wf-1","task_id":"t-1"}`),
	}

	encoded, err := codec.Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.ID != original.ID {
		t.Errorf("ID = %q, want %q", decoded.ID, original.ID)
	}
	if decoded.Method != original.Method {
		t.Errorf("Method = %q, want %q", decoded.Method, original.Method)
	}
}

func TestCodecMsgpackRoundtrip(t *testing.T) {
	t.Parallel()

	codec := &MsgpackCodec{}
	if codec.Name() != CodecNameMsgpack {
		t.Errorf("Name = %q, want %q", codec.Name(), CodecNameMsgpack)
	}

	original := &Frame{
		ID:      "frame-mp",
		Type:    FrameEvent,
		Channel: "task:t-1",
		Data:    json.RawMessage(`{"state":"completed"}`),
	}

	encoded, err := codec.Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.ID != original.ID {
		t.Errorf("ID = %q, want %q", decoded.ID, original.ID)
	}
	if decoded.Channel != original.Channel {
		t.Errorf("Channel = %q, want %q", decoded.Channel, original.Channel)
	}
}

func TestGetCodec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		expect string
	}{
		{"", CodecNameJSON},
		{"json", CodecNameJSON},
		{"msgpack", CodecNameMsgpack},
		{"unknown", CodecNameJSON},
	}

	for _, tt := range tests {
		codec := GetCodec(tt.format)
		if codec.Name() != tt.expect {
			t.Errorf("GetCodec(%q) = %q, want %q", tt.format, codec.Name(), tt.expect)
		}
	}
}
