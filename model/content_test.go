package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestContentRoundTripPreservesOrder(t *testing.T) {
	original := []Content{
		ReasoningContent{ID: "r1", Text: "thinking about it", Signature: "sig=="},
		TextContent{Text: "Let me check."},
		ToolCallContent{ID: "c1", Name: "grep", Arguments: `{"pattern":"x"}`},
		ToolResultContent{
			ID:        "c1",
			Name:      "grep",
			Arguments: `{"pattern":"x"}`,
			Result: []Content{
				TextContent{Text: "3 matches"},
				ImageContent{Name: "shot.png", Data: "data:image/png;base64,AA=="},
			},
		},
	}

	raws, err := MarshalContentList(original)
	if err != nil {
		t.Fatalf("MarshalContentList: %v", err)
	}
	got, err := UnmarshalContentList(raws)
	if err != nil {
		t.Fatalf("UnmarshalContentList: %v", err)
	}

	if !reflect.DeepEqual(got, original) {
		t.Fatalf("round trip changed content:\n got %#v\nwant %#v", got, original)
	}
}

func TestUnmarshalContentRejectsUnknownType(t *testing.T) {
	if _, err := UnmarshalContent([]byte(`{"type":"video","data":"x"}`)); err == nil {
		t.Fatal("expected error for unknown content type")
	}
	if _, err := UnmarshalContent([]byte(`"just a string"`)); err == nil {
		t.Fatal("expected error for non-envelope content")
	}
}

func TestContentEnvelopeShape(t *testing.T) {
	raw, err := MarshalContent(ToolCallContent{ID: "c1", Name: "grep", Arguments: "{}"})
	if err != nil {
		t.Fatalf("MarshalContent: %v", err)
	}

	var env map[string]any
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env["type"] != ContentTypeToolCall {
		t.Fatalf("type = %v", env["type"])
	}
	if env["id"] != "c1" || env["name"] != "grep" {
		t.Fatalf("envelope = %v", env)
	}
}

func TestTextOf(t *testing.T) {
	content := []Content{
		TextContent{Text: "a"},
		ToolCallContent{ID: "c", Name: "t"},
		ReasoningContent{Text: "invisible"},
		TextContent{Text: "b"},
	}
	if got := TextOf(content); got != "ab" {
		t.Fatalf("TextOf = %q, want ab", got)
	}
}

func TestToolCallsOf(t *testing.T) {
	content := []Content{
		TextContent{Text: "calling"},
		ToolCallContent{ID: "c1", Name: "first"},
		ToolCallContent{ID: "c2", Name: "second"},
	}
	calls := ToolCallsOf(content)
	if len(calls) != 2 || calls[0].ID != "c1" || calls[1].ID != "c2" {
		t.Fatalf("ToolCallsOf = %+v", calls)
	}
}

func TestValidateToolResult(t *testing.T) {
	tests := []struct {
		name    string
		result  []Content
		wantErr bool
	}{
		{"text and files", []Content{TextContent{Text: "ok"}, FileContent{Name: "f"}}, false},
		{"empty", nil, false},
		{"nested tool call", []Content{ToolCallContent{ID: "x"}}, true},
		{"nested tool result", []Content{ToolResultContent{ID: "x"}}, true},
		{"nested reasoning", []Content{ReasoningContent{Text: "no"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateToolResult(ToolResultContent{ID: "c1", Result: tt.result})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageJSONRoundTrip(t *testing.T) {
	msg := NewToolResultMessage(
		ToolCallContent{ID: "c1", Name: "grep", Arguments: "{}"},
		[]Content{TextContent{Text: "found it"}},
	)
	msg.Error = &MessageError{Code: ErrorCodeToolExecution, Message: "partial"}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.Role != RoleUser {
		t.Fatalf("role = %s", got.Role)
	}
	tr, ok := got.Content[0].(ToolResultContent)
	if !ok {
		t.Fatalf("content = %#v", got.Content[0])
	}
	if tr.ID != "c1" || TextOf(tr.Result) != "found it" {
		t.Fatalf("tool result = %+v", tr)
	}
	if got.Error == nil || got.Error.Code != ErrorCodeToolExecution {
		t.Fatalf("error = %+v", got.Error)
	}
	if !got.Timestamp.Equal(msg.Timestamp) {
		t.Fatalf("timestamp changed: %v != %v", got.Timestamp, msg.Timestamp)
	}
}
