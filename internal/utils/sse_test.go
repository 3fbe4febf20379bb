package utils

import (
	"io"
	"strings"
	"testing"
)

func TestSSEScanner_DataEvents(t *testing.T) {
	input := "data: {\"a\":1}\n\n" +
		": keep-alive comment\n" +
		"data: {\"b\":2}\n\n" +
		"data: [DONE]\n\n"

	scanner := NewSSEScanner(strings.NewReader(input))

	event, err := scanner.Next()
	if err != nil {
		t.Fatalf("first Next returned error: %v", err)
	}
	if event.Data != `{"a":1}` {
		t.Errorf("expected first payload {\"a\":1}, got %q", event.Data)
	}

	event, err = scanner.Next()
	if err != nil {
		t.Fatalf("second Next returned error: %v", err)
	}
	if event.Data != `{"b":2}` {
		t.Errorf("expected second payload {\"b\":2}, got %q", event.Data)
	}

	if _, err = scanner.Next(); err != io.EOF {
		t.Errorf("expected io.EOF at [DONE] sentinel, got %v", err)
	}
}

func TestSSEScanner_NamedEvent(t *testing.T) {
	input := "event: error\ndata: {\"message\":\"boom\"}\n\n"

	scanner := NewSSEScanner(strings.NewReader(input))

	event, err := scanner.Next()
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if event.Name != "error" {
		t.Errorf("expected event name 'error', got %q", event.Name)
	}
	if event.Data != `{"message":"boom"}` {
		t.Errorf("unexpected payload %q", event.Data)
	}
}

func TestSSEScanner_MultiLineData(t *testing.T) {
	input := "data: line one\ndata: line two\n\n"

	scanner := NewSSEScanner(strings.NewReader(input))

	event, err := scanner.Next()
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if event.Data != "line one\nline two" {
		t.Errorf("expected joined payload, got %q", event.Data)
	}
}

func TestSSEScanner_TrailingEventWithoutBlankLine(t *testing.T) {
	scanner := NewSSEScanner(strings.NewReader("data: tail"))

	event, err := scanner.Next()
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if event.Data != "tail" {
		t.Errorf("expected trailing payload 'tail', got %q", event.Data)
	}

	if _, err = scanner.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after trailing event, got %v", err)
	}
}
