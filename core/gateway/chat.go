package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"omnigate/core/breaker"
	"omnigate/core/cost"
	"omnigate/core/registry"
	"omnigate/providers/ai"
	"omnigate/providers/observability"
)

// handleChatCompletions validates the request, resolves the vendor adapter,
// and serves either a single JSON response or an SSE frame stream.
func (s *Server) handleChatCompletions(c echo.Context) error {
	var request ai.CompletionRequest
	if err := decodeRequestBody(c, &request); err != nil {
		return err
	}
	if err := request.Validate(); err != nil {
		return err
	}

	vendor, provider, err := s.resolve(c, &request)
	if err != nil {
		return err
	}

	if request.Stream {
		return s.streamCompletion(c, vendor, provider, request)
	}
	return s.completeOnce(c, vendor, provider, request)
}

// resolve picks the vendor from the model reference (or the default vendor
// for unqualified models) and returns the adapter to call. A bearer
// credential in the Authorization header is forwarded to a fresh adapter
// instance instead of the shared one.
func (s *Server) resolve(c echo.Context, request *ai.CompletionRequest) (string, ai.StreamProvider, error) {
	vendor := s.registry.DefaultVendor()
	if strings.Contains(request.Model, "/") {
		refVendor, modelID, err := ai.SplitModelRef(request.Model)
		if err != nil {
			return "", nil, err
		}
		if _, lookupErr := s.registry.Get(refVendor); lookupErr == nil {
			vendor = refVendor
			request.Model = modelID
		}
		// An unregistered prefix is left in place: OpenRouter model ids
		// carry their upstream vendor as the first segment.
	}

	if bearer := bearerToken(c.Request()); bearer != "" {
		// Caller-supplied credentials bypass the shared breaker so one
		// tenant's bad key cannot trip the circuit for everyone else.
		provider, err := s.registry.WithBearer(vendor, bearer)
		if err != nil {
			return "", nil, toUnknownVendorError(err)
		}
		return vendor, provider, nil
	}

	guarded, ok := s.breakers[vendor]
	if !ok {
		return "", nil, requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("vendor %q is not configured", vendor),
			Type:    "invalid_request_error",
		}
	}
	return vendor, guarded, nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}

func toUnknownVendorError(err error) error {
	if errors.Is(err, registry.ErrUnknownVendor) {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
			Type:    "invalid_request_error",
		}
	}
	return err
}

// completeOnce serves the non-streaming path: one vendor call, one JSON body.
func (s *Server) completeOnce(c echo.Context, vendor string, provider ai.StreamProvider, request ai.CompletionRequest) error {
	start := time.Now()
	response, err := provider.Complete(c.Request().Context(), request)
	s.recordRequest(c, vendor, request.Model, outcome(response, err), false, time.Since(start))
	if err != nil {
		var classified *ai.RequestError
		if errors.As(err, &classified) {
			return classified
		}
		return &ai.RequestError{Kind: ai.ErrorKindProvider, Message: "upstream provider error"}
	}

	if response.Usage.TotalTokens > 0 {
		s.metrics.Counter(observability.MetricVendorTokens).Add(c.Request().Context(), int64(response.Usage.TotalTokens),
			observability.String(observability.AttrVendor, vendor),
			observability.String(observability.AttrModel, request.Model))
		s.recordCost(c.Request().Context(), vendor, request.Model, response.Usage)
	}
	return c.JSON(http.StatusOK, response)
}

type framePair struct {
	frame ai.Frame
	err   error
}

// streamCompletion drives one SSE delivery: it registers the request in the
// in-flight table, advertises the request id in a content-less first frame,
// forwards frames in arrival order, heartbeats while the vendor is silent,
// and tears the stream down when the inactivity watchdog fires.
func (s *Server) streamCompletion(c echo.Context, vendor string, provider ai.StreamProvider, request ai.CompletionRequest) error {
	requestID := uuid.NewString()
	start := time.Now()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	s.inflight.register(requestID, cancel)
	defer s.inflight.remove(requestID)

	stream, err := provider.StreamComplete(ctx, request)

	writer := newSSEWriter(c)
	// First frame announces the request id before any content, so the client
	// can issue a stop call from the very beginning.
	announce := ai.Frame{ID: requestID, Vendor: vendor, Model: request.Model}
	if writeErr := writer.writeFrame(announce); writeErr != nil {
		return nil // client is already gone
	}

	if err != nil {
		// Connection-stage failure: the response is committed, so the error
		// travels as a terminal frame plus an out-of-band error event.
		details := ai.ClassifyVendorError(err)
		if errors.Is(err, breaker.ErrCircuitOpen) {
			details = &ai.ErrorDetails{Message: "provider temporarily unavailable", Kind: ai.ErrorKindCircuitOpen}
		}
		_ = writer.writeEvent("error", details.Message)
		_ = writer.writeFrame(ai.ErrorFrame(requestID, vendor, request.Model, details))
		_ = writer.writeDone()
		s.recordRequest(c, vendor, request.Model, string(details.Kind), true, time.Since(start))
		return nil
	}

	frames := make(chan framePair, 16)
	go func() {
		defer close(frames)
		for frame, iterErr := range stream.Iter() {
			frames <- framePair{frame: frame, err: iterErr}
		}
	}()

	heartbeat := time.NewTicker(s.cfg.Heartbeat())
	defer heartbeat.Stop()
	watchdog := time.NewTimer(s.cfg.Watchdog())
	defer watchdog.Stop()

	status := "ok"
	for {
		select {
		case pair, ok := <-frames:
			if !ok {
				_ = writer.writeDone()
				s.recordRequest(c, vendor, request.Model, status, true, time.Since(start))
				return nil
			}
			watchdog.Reset(s.cfg.Watchdog())

			if pair.err != nil {
				details := ai.ClassifyVendorError(pair.err)
				_ = writer.writeEvent("error", details.Message)
				_ = writer.writeFrame(ai.ErrorFrame(requestID, vendor, request.Model, details))
				status = string(details.Kind)
				continue
			}

			frame := pair.frame
			frame.ID = requestID // advertise the gateway id, not the vendor's
			if writeErr := writer.writeFrame(frame); writeErr != nil {
				// Client disconnect: cancel upstream and drain.
				cancel()
				go drain(frames)
				s.recordRequest(c, vendor, request.Model, "disconnected", true, time.Since(start))
				return nil
			}
			s.metrics.Counter(observability.MetricStreamFrames).Add(ctx, 1,
				observability.String(observability.AttrVendor, vendor))

			if frame.Terminal() {
				status = terminalStatus(frame)
				if frame.FinishReason == ai.FinishAborted {
					// A stop through the endpoint reports differently from a
					// vendor-side abort.
					if s.inflight.wasStopped(requestID) {
						status = "stopped"
					}
					_ = writer.writeEvent("abort", "generation stopped")
				} else if frame.ErrorDetails != nil {
					_ = writer.writeEvent("error", frame.ErrorDetails.Message)
				}
				if frame.Usage != nil && frame.Usage.TotalTokens > 0 {
					s.metrics.Counter(observability.MetricVendorTokens).Add(ctx, int64(frame.Usage.TotalTokens),
						observability.String(observability.AttrVendor, vendor),
						observability.String(observability.AttrModel, request.Model))
					s.recordCost(ctx, vendor, request.Model, *frame.Usage)
				}
			}

		case <-heartbeat.C:
			if writeErr := writer.writeHeartbeat(); writeErr != nil {
				cancel()
				go drain(frames)
				s.recordRequest(c, vendor, request.Model, "disconnected", true, time.Since(start))
				return nil
			}

		case <-watchdog.C:
			slog.Warn("stream watchdog fired", "request_id", requestID, "vendor", vendor)
			cancel()
			go drain(frames)
			details := &ai.ErrorDetails{Message: "stream timed out waiting for the provider", Kind: ai.ErrorKindTimeout}
			_ = writer.writeEvent("error", details.Message)
			_ = writer.writeFrame(ai.ErrorFrame(requestID, vendor, request.Model, details))
			_ = writer.writeDone()
			s.recordRequest(c, vendor, request.Model, string(ai.ErrorKindTimeout), true, time.Since(start))
			return nil
		}
	}
}

func drain(frames <-chan framePair) {
	for range frames {
	}
}

func terminalStatus(frame ai.Frame) string {
	if frame.ErrorDetails != nil {
		return string(frame.ErrorDetails.Kind)
	}
	return "ok"
}

func outcome(response *ai.NormalizedResponse, err error) string {
	if err != nil {
		return "error"
	}
	if response != nil && response.ErrorDetails != nil {
		return string(response.ErrorDetails.Kind)
	}
	return "ok"
}

func (s *Server) recordRequest(c echo.Context, vendor, model, status string, streaming bool, elapsed time.Duration) {
	ctx := c.Request().Context()
	attrs := []observability.Attribute{
		observability.String(observability.AttrVendor, vendor),
		observability.String(observability.AttrModel, model),
		observability.String(observability.AttrStatus, status),
		observability.Bool(observability.AttrStreaming, streaming),
	}
	s.metrics.Counter(observability.MetricGatewayRequests).Add(ctx, 1, attrs...)
	s.metrics.Histogram(observability.MetricGatewayLatency).Record(ctx, float64(elapsed.Milliseconds()),
		observability.String(observability.AttrVendor, vendor),
		observability.String(observability.AttrModel, model))
}

// recordCost publishes the estimated dollar cost of a turn. Unpriced models
// are skipped rather than reported as zero-cost samples.
func (s *Server) recordCost(ctx context.Context, vendor, model string, usage ai.Usage) {
	estimated := cost.Estimate(model, usage)
	if estimated <= 0 {
		return
	}
	s.metrics.Histogram(observability.MetricVendorCost).Record(ctx, estimated,
		observability.String(observability.AttrVendor, vendor),
		observability.String(observability.AttrModel, model))
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
				Type:    "invalid_request_error",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
			Type:    "invalid_request_error",
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Type:    "invalid_request_error",
		}
	}
	return nil
}
