package ai

import (
	"context"
	"iter"
	"math/rand/v2"
	"strings"
	"time"
)

// Frame is one unit of the streaming contract: a content delta plus identity
// metadata, with FinishReason set only on the terminal frame. Every stream
// consists of zero or more non-terminal frames followed by exactly one
// terminal frame, under every exit path (completion, abort, error, timeout).
type Frame struct {
	ID           string        `json:"id,omitempty"`
	Vendor       string        `json:"vendor,omitempty"`
	Model        string        `json:"model,omitempty"`
	ContentDelta string        `json:"content"`
	FinishReason FinishReason  `json:"finish_reason,omitempty"`
	Usage        *Usage        `json:"usage,omitempty"` // terminal frame only, when the vendor reported it
	ErrorDetails *ErrorDetails `json:"error_details,omitempty"`
}

// Terminal reports whether the frame ends its stream.
func (f Frame) Terminal() bool {
	return f.FinishReason != ""
}

// ErrorFrame builds a terminal frame for a failed stream.
func ErrorFrame(id, vendor, model string, details *ErrorDetails) Frame {
	reason := FinishError
	if details != nil && details.Kind == ErrorKindAborted {
		reason = FinishAborted
	}
	return Frame{
		ID:           id,
		Vendor:       vendor,
		Model:        model,
		FinishReason: reason,
		ErrorDetails: details,
	}
}

// FrameStream wraps a streaming iterator over Frames and provides automatic
// accumulation into a final NormalizedResponse.
//
// Important: callers must consume the stream, either by iterating with Iter()
// (including breaking out of the loop early) or by calling Collect(). The
// underlying adapter may hold open resources (such as an HTTP response body)
// that are only released when the iterator completes or is abandoned via a
// loop break.
type FrameStream struct {
	iterator iter.Seq2[Frame, error]
}

// NewFrameStream creates a FrameStream from a raw iterator. The iterator
// yields Frame values (with nil error) for normal deltas, and may yield a
// non-nil error to signal a transport-level failure the adapter could not
// convert into a terminal frame.
func NewFrameStream(iterator iter.Seq2[Frame, error]) *FrameStream {
	return &FrameStream{iterator: iterator}
}

// Iter returns the underlying iterator for use with range-over-func loops.
//
// Example:
//
//	for frame, err := range stream.Iter() {
//	    if err != nil { handle error }
//	    fmt.Print(frame.ContentDelta)
//	}
func (stream *FrameStream) Iter() iter.Seq2[Frame, error] {
	return stream.iterator
}

// Collect consumes the entire stream and returns the accumulated response.
// A transport error terminates collection and returns the partial response
// alongside the error; content delivered before the failure is preserved.
func (stream *FrameStream) Collect() (*NormalizedResponse, error) {
	var content strings.Builder
	accumulated := &NormalizedResponse{}

	for frame, err := range stream.iterator {
		if err != nil {
			accumulated.Content = content.String()
			return accumulated, err
		}

		if frame.ID != "" {
			accumulated.ID = frame.ID
		}
		if frame.Vendor != "" {
			accumulated.Vendor = frame.Vendor
		}
		if frame.Model != "" {
			accumulated.Model = frame.Model
		}

		content.WriteString(frame.ContentDelta)

		if frame.Terminal() {
			accumulated.FinishReason = frame.FinishReason
			accumulated.ErrorDetails = frame.ErrorDetails
			if frame.Usage != nil {
				accumulated.Usage = *frame.Usage
			}
			break
		}
	}

	accumulated.Content = content.String()
	if accumulated.Usage.TotalTokens == 0 && accumulated.Content != "" {
		accumulated.Usage = EstimateUsage("", accumulated.Content)
	}
	return accumulated, nil
}

// simulatedChunkSize is the rune count of each artificial chunk produced by
// NewSimulatedStream.
const simulatedChunkSize = 24

// simulatedMaxDelay bounds the randomized pause between artificial chunks.
const simulatedMaxDelay = 40 * time.Millisecond

// NewSimulatedStream slices a complete response into small artificial chunks
// with randomized inter-chunk delays, so vendors without reliable incremental
// delivery still honor the frame-by-frame contract. Deltas are strictly
// incremental: each rune of the content is delivered exactly once.
//
// Cancellation is observed between chunks; on early cancellation the stream
// still emits exactly one terminal frame, marked aborted.
func NewSimulatedStream(ctx context.Context, response *NormalizedResponse) *FrameStream {
	iteratorFunc := func(yield func(Frame, error) bool) {
		runes := []rune(response.Content)

		for offset := 0; offset < len(runes); offset += simulatedChunkSize {
			if ctx.Err() != nil {
				yield(ErrorFrame(response.ID, response.Vendor, response.Model, &ErrorDetails{
					Message: "stream cancelled",
					Kind:    ErrorKindAborted,
				}), nil)
				return
			}

			end := min(offset+simulatedChunkSize, len(runes))
			frame := Frame{
				ID:           response.ID,
				Vendor:       response.Vendor,
				Model:        response.Model,
				ContentDelta: string(runes[offset:end]),
			}
			if !yield(frame, nil) {
				return
			}

			// Small randomized pause so the simulated stream paces like a
			// real one instead of arriving as a burst.
			delay := time.Duration(rand.Int64N(int64(simulatedMaxDelay))) //nolint:gosec // non-cryptographic jitter
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}

		reason := response.FinishReason
		if reason == "" {
			reason = FinishStop
		}
		usage := response.Usage
		yield(Frame{
			ID:           response.ID,
			Vendor:       response.Vendor,
			Model:        response.Model,
			FinishReason: reason,
			Usage:        &usage,
			ErrorDetails: response.ErrorDetails,
		}, nil)
	}

	return NewFrameStream(iteratorFunc)
}
