// Package consumer turns a gateway SSE stream back into text: it reassembles
// frames from raw byte chunks, accumulates content, tracks per-turn metrics,
// and drives a render callback at a bounded cadence.
package consumer

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"omnigate/internal/utils"
	"omnigate/providers/ai"
)

const (
	// StoppedMarker is appended to the transcript when the stream is aborted
	// so a partial answer is never mistaken for a complete one.
	StoppedMarker = "[Stopped]"
	// ErrorMarker is appended when generation fails mid-stream.
	ErrorMarker = "[Error occurred during generation]"

	defaultRenderInterval = 100 * time.Millisecond
	readChunkSize         = 4096
)

// Metrics is an immutable snapshot of stream progress. A new value is
// produced per frame; callers can hold one without locking.
type Metrics struct {
	StartTime        time.Time
	TokenCount       int
	TokensPerSecond  float64
	TimeToFirstToken time.Duration
	IsComplete       bool
	Err              error
}

// RenderFunc receives the full accumulated text and the current metrics
// snapshot. The final call always carries the complete transcript.
type RenderFunc func(text string, metrics Metrics)

// StopFunc issues the out-of-band stop call for a request id.
type StopFunc func(requestID string)

// Option configures a Consumer.
type Option func(*Consumer)

// WithRender installs the render callback. A nil render is ignored.
func WithRender(render RenderFunc) Option {
	return func(c *Consumer) {
		if render != nil {
			c.render = render
		}
	}
}

// WithRenderInterval sets the minimum delay between render calls.
func WithRenderInterval(interval time.Duration) Option {
	return func(c *Consumer) { c.renderInterval = interval }
}

// WithStopFunc installs the out-of-band stop call used by Stop.
func WithStopFunc(stop StopFunc) Option {
	return func(c *Consumer) { c.stopFunc = stop }
}

// Consumer consumes one stream. Not reusable across turns.
type Consumer struct {
	render         RenderFunc
	renderInterval time.Duration
	stopFunc       StopFunc

	mu         sync.Mutex
	parser     parser
	text       []byte
	metrics    Metrics
	requestID  string
	firstDelta time.Time
	marked     bool
	cancel     context.CancelFunc
	stopOnce   sync.Once
	lastRender time.Time
}

// New returns a Consumer ready for one Consume call.
func New(opts ...Option) *Consumer {
	c := &Consumer{
		render:         func(string, Metrics) {},
		renderInterval: defaultRenderInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestID returns the gateway request id once the announce frame has been
// seen, empty before that.
func (c *Consumer) RequestID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestID
}

// Snapshot returns the current metrics value.
func (c *Consumer) Snapshot() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// Stop aborts the stream. It is safe to call from any goroutine and
// idempotent: the byte stream is cancelled and, when a request id is known,
// the out-of-band stop call is issued exactly once.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		cancel := c.cancel
		requestID := c.requestID
		stopFunc := c.stopFunc
		c.mu.Unlock()

		if stopFunc != nil && requestID != "" {
			stopFunc(requestID)
		}
		if cancel != nil {
			cancel()
		}
	})
}

// Consume reads the SSE body until [DONE], a terminal failure, or
// cancellation, and returns the final transcript and metrics.
func (c *Consumer) Consume(ctx context.Context, body io.Reader) (string, Metrics, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.cancel = cancel
	c.metrics = Metrics{StartTime: time.Now()}
	c.mu.Unlock()

	chunk := make([]byte, readChunkSize)
	for {
		n, readErr := body.Read(chunk)
		if n > 0 {
			done, err := c.ingest(chunk[:n])
			if err != nil {
				return c.finish(err)
			}
			if done {
				return c.finish(nil)
			}
		}
		if readErr != nil {
			if ctx.Err() != nil || errors.Is(readErr, context.Canceled) {
				c.appendMarker(StoppedMarker)
				return c.finish(nil)
			}
			if readErr == io.EOF {
				// Stream ended without a sentinel; surface what we have.
				return c.finish(io.ErrUnexpectedEOF)
			}
			return c.finish(readErr)
		}
		if ctx.Err() != nil {
			c.appendMarker(StoppedMarker)
			return c.finish(nil)
		}
	}
}

// ingest feeds one chunk through the parser and applies the completed events.
// It reports whether the stream is finished.
func (c *Consumer) ingest(chunk []byte) (bool, error) {
	c.mu.Lock()
	events, err := c.parser.feed(chunk)
	c.mu.Unlock()
	if err != nil {
		return false, err
	}

	for _, event := range events {
		switch event.kind {
		case eventHeartbeat:
			// Keepalive only; metrics untouched.
		case eventDone:
			return true, nil
		case eventAbort:
			c.appendMarker(StoppedMarker)
		case eventError:
			c.appendMarker(ErrorMarker)
		case eventFrame:
			c.applyFrame(event.frame)
		}
	}
	return false, nil
}

func (c *Consumer) applyFrame(frame ai.Frame) {
	c.mu.Lock()

	if c.requestID == "" && frame.ID != "" {
		c.requestID = frame.ID
	}

	if frame.ContentDelta != "" {
		if c.firstDelta.IsZero() {
			c.firstDelta = time.Now()
			c.metrics.TimeToFirstToken = c.firstDelta.Sub(c.metrics.StartTime)
		}
		c.text = append(c.text, frame.ContentDelta...)
	}

	if frame.Terminal() {
		c.metrics.IsComplete = true
		if frame.ErrorDetails != nil {
			switch frame.ErrorDetails.Kind {
			case ai.ErrorKindAborted:
				c.markLocked(StoppedMarker)
			default:
				c.metrics.Err = errors.New(frame.ErrorDetails.Message)
				c.markLocked(ErrorMarker)
			}
		}
	}

	c.updateRateLocked()
	text, metrics := string(c.text), c.metrics
	shouldRender := frame.Terminal() || time.Since(c.lastRender) >= c.renderInterval
	if shouldRender {
		c.lastRender = time.Now()
	}
	c.mu.Unlock()

	if shouldRender {
		c.render(text, metrics)
	}
}

// updateRateLocked recomputes token count and throughput from the transcript.
func (c *Consumer) updateRateLocked() {
	c.metrics.TokenCount = utils.EstimateTokens(string(c.text))
	if !c.firstDelta.IsZero() {
		elapsed := time.Since(c.firstDelta).Seconds()
		if elapsed > 0 {
			c.metrics.TokensPerSecond = float64(c.metrics.TokenCount) / elapsed
		}
	}
}

// appendMarker adds a visible marker to the transcript exactly once.
func (c *Consumer) appendMarker(marker string) {
	c.mu.Lock()
	c.markLocked(marker)
	c.mu.Unlock()
}

func (c *Consumer) markLocked(marker string) {
	if c.marked {
		return
	}
	c.marked = true
	if len(c.text) > 0 {
		c.text = append(c.text, '\n')
	}
	c.text = append(c.text, marker...)
}

// finish produces the final transcript and metrics and forces a last render
// with the complete text.
func (c *Consumer) finish(err error) (string, Metrics, error) {
	c.mu.Lock()
	c.metrics.IsComplete = true
	if err != nil && c.metrics.Err == nil {
		c.metrics.Err = err
	}
	c.updateRateLocked()
	text, metrics := string(c.text), c.metrics
	c.mu.Unlock()

	c.render(text, metrics)
	return text, metrics, err
}
