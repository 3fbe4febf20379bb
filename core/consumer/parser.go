package consumer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"omnigate/providers/ai"
)

// eventKind classifies one parsed wire event.
type eventKind int

const (
	eventFrame eventKind = iota
	eventDone
	eventHeartbeat
	eventAbort
	eventError
)

// wireEvent is one decoded SSE block from the gateway.
type wireEvent struct {
	kind    eventKind
	frame   ai.Frame
	message string
}

// parserState tracks whether the buffer currently holds a complete event.
type parserState int

const (
	// stateAwaitingBoundary means the tail of the buffer is an incomplete
	// event still waiting for its blank-line terminator.
	stateAwaitingBoundary parserState = iota
	// stateHaveFrame means a full event has been cut and is ready to
	// interpret.
	stateHaveFrame
)

var eventBoundary = []byte("\n\n")

// parser reassembles SSE events from arbitrarily split byte chunks. Bytes are
// appended to an internal buffer and only interpreted once the event boundary
// has arrived; a partial frame at the end of a chunk is never parsed.
type parser struct {
	buffer  []byte
	state   parserState
	pending []byte
}

// feed appends chunk and returns every event completed by it, in order.
func (p *parser) feed(chunk []byte) ([]wireEvent, error) {
	p.buffer = append(p.buffer, chunk...)

	var events []wireEvent
	for {
		if p.state == stateAwaitingBoundary {
			boundary := bytes.Index(p.buffer, eventBoundary)
			if boundary < 0 {
				return events, nil
			}
			p.pending = p.buffer[:boundary]
			p.buffer = p.buffer[boundary+len(eventBoundary):]
			p.state = stateHaveFrame
		}

		event, err := interpret(p.pending)
		p.pending = nil
		p.state = stateAwaitingBoundary
		if err != nil {
			return events, err
		}
		if event != nil {
			events = append(events, *event)
		}
	}
}

// interpret decodes one raw SSE block. Returns nil for empty blocks.
func interpret(raw []byte) (*wireEvent, error) {
	name := ""
	data := ""
	comment := false

	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case line == "":
		case strings.HasPrefix(line, ":"):
			comment = true
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data != "" {
				data += "\n"
			}
			data += strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
		}
	}

	if comment && name == "" && data == "" {
		return &wireEvent{kind: eventHeartbeat}, nil
	}

	switch name {
	case "abort":
		return &wireEvent{kind: eventAbort, message: eventMessage(data)}, nil
	case "error":
		return &wireEvent{kind: eventError, message: eventMessage(data)}, nil
	}

	if data == "" {
		return nil, nil
	}
	if data == "[DONE]" {
		return &wireEvent{kind: eventDone}, nil
	}

	var frame ai.Frame
	if err := json.Unmarshal([]byte(data), &frame); err != nil {
		return nil, fmt.Errorf("malformed frame %q: %w", data, err)
	}
	return &wireEvent{kind: eventFrame, frame: frame}, nil
}

func eventMessage(data string) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return data
}
