package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"omnigate/providers/ai"
)

const doneSentinel = "[DONE]"

// sseWriter renders the stream wire protocol: JSON frames as data lines, a
// [DONE] sentinel, named out-of-band events, and comment heartbeats. Every
// write flushes so frames reach the client as they happen.
type sseWriter struct {
	response *echo.Response
}

// newSSEWriter commits the SSE response headers and returns the writer.
func newSSEWriter(c echo.Context) *sseWriter {
	response := c.Response()
	header := response.Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	response.WriteHeader(http.StatusOK)
	return &sseWriter{response: response}
}

func (w *sseWriter) flush() {
	w.response.Flush()
}

// writeFrame serializes one frame as a data event.
func (w *sseWriter) writeFrame(frame ai.Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if _, err := fmt.Fprintf(w.response, "data: %s\n\n", payload); err != nil {
		return err
	}
	w.flush()
	return nil
}

// writeDone emits the end-of-stream sentinel.
func (w *sseWriter) writeDone() error {
	if _, err := fmt.Fprintf(w.response, "data: %s\n\n", doneSentinel); err != nil {
		return err
	}
	w.flush()
	return nil
}

// writeEvent emits a named out-of-band event ("abort", "error") with a small
// JSON message payload.
func (w *sseWriter) writeEvent(name, message string) error {
	payload, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if _, err := fmt.Fprintf(w.response, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	w.flush()
	return nil
}

// writeHeartbeat emits an SSE comment that keeps intermediaries from closing
// an idle connection. Consumers skip comment lines entirely.
func (w *sseWriter) writeHeartbeat() error {
	if _, err := fmt.Fprint(w.response, ":heartbeat\n\n"); err != nil {
		return err
	}
	w.flush()
	return nil
}
