package utils

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxSSELineSize is the maximum size of a single SSE line (1 MB). The default
// bufio.Scanner limit is 64 KiB, which is too small for large events such as
// long completions. If a line exceeds this limit Next() returns a wrapped
// bufio.ErrTooLong.
const maxSSELineSize = 1 * 1024 * 1024

// SSEEvent is one decoded server-sent event: the optional event name and the
// joined data payload.
type SSEEvent struct {
	Name string // value of the "event:" field, empty for plain data events
	Data string // joined "data:" lines of the event
}

// SSEScanner reads server-sent events from an io.Reader. It handles multi-line
// data fields, skips comments and blank lines, and detects the [DONE] sentinel
// used by OpenAI-compatible APIs.
type SSEScanner struct {
	scanner *bufio.Scanner
}

// NewSSEScanner creates an SSEScanner reading from reader. Individual SSE
// lines up to maxSSELineSize are supported.
func NewSSEScanner(reader io.Reader) *SSEScanner {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)
	return &SSEScanner{scanner: scanner}
}

// Next returns the next decoded SSE event.
//
// Comment lines (starting with ':') are skipped. Multi-line data fields are
// joined with newlines into a single payload. Returns io.EOF when the stream
// ends or the [DONE] sentinel is encountered.
func (sseScanner *SSEScanner) Next() (SSEEvent, error) {
	var event SSEEvent
	var dataLines []string

	for sseScanner.scanner.Scan() {
		line := sseScanner.scanner.Text()

		// Blank line terminates the current event; flush if it carried data.
		if line == "" {
			if len(dataLines) > 0 || event.Name != "" {
				event.Data = strings.Join(dataLines, "\n")
				return event, nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		if value, ok := strings.CutPrefix(line, "event:"); ok {
			event.Name = strings.TrimSpace(value)
			continue
		}

		if value, ok := strings.CutPrefix(line, "data:"); ok {
			data := strings.TrimSpace(value)

			// [DONE] is the OpenAI-convention end-of-stream sentinel.
			if data == "[DONE]" {
				return SSEEvent{}, io.EOF
			}

			dataLines = append(dataLines, data)
			continue
		}

		// Other SSE fields (id:, retry:) are not used by any supported vendor.
	}

	if err := sseScanner.scanner.Err(); err != nil {
		return SSEEvent{}, fmt.Errorf("SSE scanner error: %w", err)
	}

	// Flush a trailing event that was not terminated by a blank line.
	if len(dataLines) > 0 {
		event.Data = strings.Join(dataLines, "\n")
		return event, nil
	}

	return SSEEvent{}, io.EOF
}
