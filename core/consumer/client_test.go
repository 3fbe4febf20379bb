package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"omnigate/providers/ai"
)

func TestClientStreamAgainstStubGateway(t *testing.T) {
	var stopCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(writer http.ResponseWriter, request *http.Request) {
		var body ai.CompletionRequest
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !body.Stream {
			t.Error("client must request streaming")
		}

		writer.Header().Set("Content-Type", "text/event-stream")
		flush := func() {
			if flusher, ok := writer.(http.Flusher); ok {
				flusher.Flush()
			}
		}
		fmt.Fprint(writer, `data: {"id":"req-7","vendor":"openai","model":"gpt-4o","content":""}`+"\n\n")
		flush()
		fmt.Fprint(writer, `data: {"id":"req-7","vendor":"openai","model":"gpt-4o","content":"Streamed reply"}`+"\n\n")
		flush()
		fmt.Fprint(writer, `data: {"id":"req-7","vendor":"openai","model":"gpt-4o","content":"","finish_reason":"stop"}`+"\n\n")
		fmt.Fprint(writer, "data: [DONE]\n\n")
		flush()
	})
	mux.HandleFunc("/v1/chat/stop", func(writer http.ResponseWriter, request *http.Request) {
		stopCalls.Add(1)
		writer.Header().Set("Content-Type", "application/json")
		fmt.Fprint(writer, `{"status":"ok","stopped":false}`)
	})

	gateway := httptest.NewServer(mux)
	defer gateway.Close()

	client := NewClient(gateway.URL)
	text, metrics, err := client.Stream(context.Background(), ai.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []ai.ChatMessage{{Role: ai.RoleUser, Content: "Hi!"}},
	}, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if text != "Streamed reply" {
		t.Errorf("transcript %q", text)
	}
	if !metrics.IsComplete {
		t.Errorf("metrics not complete: %+v", metrics)
	}
	if stopCalls.Load() != 0 {
		t.Errorf("no stop call expected for a completed stream, got %d", stopCalls.Load())
	}
}

func TestClientStopEndpoint(t *testing.T) {
	var lastRequestID string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/stop", func(writer http.ResponseWriter, request *http.Request) {
		var body struct {
			RequestID string `json:"request_id"`
		}
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			t.Errorf("decode stop body: %v", err)
		}
		lastRequestID = body.RequestID
		writer.Header().Set("Content-Type", "application/json")
		fmt.Fprint(writer, `{"status":"ok","stopped":true}`)
	})

	gateway := httptest.NewServer(mux)
	defer gateway.Close()

	client := NewClient(gateway.URL)
	if err := client.Stop(context.Background(), "req-42"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if lastRequestID != "req-42" {
		t.Errorf("stop forwarded wrong id %q", lastRequestID)
	}
}
