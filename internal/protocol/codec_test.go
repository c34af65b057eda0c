package protocol

import (
	"strings"
	"testing"
)

func TestReadRequestValid(t *testing.T) {
	r := NewReader(strings.NewReader(`{"type":"create_session","framerate":"30"}`+"\n"), 0)
	req, err := r.ReadRequest()
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if req.Type != TypeCreateSession || req.Framerate != "30" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestReadRequestToleratesCR(t *testing.T) {
	r := NewReader(strings.NewReader("{\"type\":\"leave_session\"}\r\n"), 0)
	req, err := r.ReadRequest()
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if req.Type != TypeLeaveSession {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestReadRequestRejectsNonObject(t *testing.T) {
	r := NewReader(strings.NewReader(`[1,2,3]`+"\n"), 0)
	if _, err := r.ReadRequest(); err == nil {
		t.Fatal("expected decode error for a non-object top-level value")
	}
}

func TestReadRequestRejectsMissingType(t *testing.T) {
	r := NewReader(strings.NewReader(`{"framerate":"30"}`+"\n"), 0)
	if _, err := r.ReadRequest(); err == nil {
		t.Fatal("expected decode error for a missing type")
	}
}

func TestReadRequestRejectsUnknownType(t *testing.T) {
	r := NewReader(strings.NewReader(`{"type":"delete_everything"}`+"\n"), 0)
	if _, err := r.ReadRequest(); err == nil {
		t.Fatal("expected decode error for an unknown type")
	}
}

func TestReadRequestRejectsWrongTypedField(t *testing.T) {
	r := NewReader(strings.NewReader(`{"type":"create_session","framerate":30}`+"\n"), 0)
	if _, err := r.ReadRequest(); err == nil {
		t.Fatal("expected decode error for a wrong-typed field")
	}
}

func TestReadRequestMultipleLines(t *testing.T) {
	r := NewReader(strings.NewReader("{\"type\":\"start_timecode\"}\n{\"type\":\"stop_timecode\"}\n"), 0)
	first, err := r.ReadRequest()
	if err != nil || first.Type != TypeStartTimecode {
		t.Fatalf("first ReadRequest: %+v, %v", first, err)
	}
	second, err := r.ReadRequest()
	if err != nil || second.Type != TypeStopTimecode {
		t.Fatalf("second ReadRequest: %+v, %v", second, err)
	}
}

func TestReadRequestOversizedLineIsMessageTooLarge(t *testing.T) {
	huge := `{"type":"create_session","framerate":"` + strings.Repeat("x", 200) + `"}` + "\n"
	r := NewReader(strings.NewReader(huge), 32)
	_, err := r.ReadRequest()
	if _, ok := err.(*ErrMessageTooLarge); !ok {
		t.Fatalf("expected *ErrMessageTooLarge, got %T (%v)", err, err)
	}
}

type captureWriter struct {
	lines []string
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.lines = append(c.lines, string(p))
	return len(p), nil
}

func TestWriteMessageProducesOneCompactLine(t *testing.T) {
	cap := &captureWriter{}
	w := NewWriter(cap)
	if err := w.WriteMessage(NewTimecodeUpdate("00:00:01:00")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if len(cap.lines) != 1 {
		t.Fatalf("expected exactly one write, got %d", len(cap.lines))
	}
	line := cap.lines[0]
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("expected trailing newline, got %q", line)
	}
	if strings.Count(line, "\n") != 1 {
		t.Fatalf("expected no embedded newlines, got %q", line)
	}
	if !strings.Contains(line, `"type":"timecode_update"`) {
		t.Fatalf("missing type field: %q", line)
	}
}
