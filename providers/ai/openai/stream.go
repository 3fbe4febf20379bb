package openai

import (
	"context"
	"encoding/json"
	"io"

	"github.com/kaptinlin/jsonrepair"

	"omnigate/internal/utils"
	"omnigate/providers/ai"
)

// StreamComplete implements [ai.StreamProvider] for the chat completions
// endpoint. Pre-stream errors (network, non-2xx) are returned as an error so
// the caller's resilience layer can count them; once SSE delivery has started,
// every failure surfaces as a terminal error frame and already-delivered
// partial content is preserved.
func (p *OpenAIProvider) StreamComplete(ctx context.Context, request ai.CompletionRequest) (*ai.FrameStream, error) {
	if p.apiKey == "" {
		return authErrorStream(request.Model, "OPENAI_API_KEY is not set"), nil
	}

	wireRequest := requestToChatCompletion(request)
	wireRequest.Stream = utils.Ptr(true)
	wireRequest.StreamOptions = &streamOptions{IncludeUsage: true}

	httpResponse, err := utils.DoPostStream(ctx, p.client, p.baseURL+chatCompletionsEndpoint, p.apiKey, wireRequest)
	if err != nil {
		if details := ai.ClassifyVendorError(err); details.Kind == ai.ErrorKindAuth {
			return authErrorStream(request.Model, details.Message), nil
		}
		return nil, err
	}

	sseScanner := utils.NewSSEScanner(httpResponse.Body)

	iteratorFunc := func(yield func(ai.Frame, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		// The finish-reason chunk precedes the usage chunk when
		// stream_options.include_usage is set, so both are held back and the
		// terminal frame is emitted once the sentinel (or an error) arrives.
		var streamID, streamModel string
		var finishReason ai.FinishReason
		var reportedUsage *ai.Usage

		terminal := func(details *ai.ErrorDetails) ai.Frame {
			if details != nil {
				return ai.ErrorFrame(streamID, vendorName, streamModel, details)
			}
			reason := finishReason
			if reason == "" {
				reason = ai.FinishStop
			}
			return ai.Frame{
				ID:           streamID,
				Vendor:       vendorName,
				Model:        streamModel,
				FinishReason: reason,
				Usage:        reportedUsage,
			}
		}

		for {
			// Observe cancellation between frames, never mid-decode.
			if ctx.Err() != nil {
				yield(terminal(&ai.ErrorDetails{Message: "stream cancelled", Kind: ai.ErrorKindAborted}), nil)
				return
			}

			event, sseErr := sseScanner.Next()
			if sseErr == io.EOF {
				yield(terminal(nil), nil)
				return
			}
			if sseErr != nil {
				yield(terminal(ai.ClassifyVendorError(sseErr)), nil)
				return
			}

			chunk, parseErr := unmarshalStreamChunk(event.Data)
			if parseErr != nil {
				yield(terminal(&ai.ErrorDetails{Message: "malformed stream chunk: " + parseErr.Error(), Kind: ai.ErrorKindProvider}), nil)
				return
			}

			if chunk.ID != "" {
				streamID = chunk.ID
			}
			if chunk.Model != "" {
				streamModel = chunk.Model
			}
			if chunk.Usage != nil && chunk.Usage.TotalTokens > 0 {
				reportedUsage = &ai.Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				}
			}

			for _, choice := range chunk.Choices {
				if choice.FinishReason != nil && *choice.FinishReason != "" {
					finishReason = mapFinishReason(*choice.FinishReason)
				}
				if choice.Delta.Content == nil || *choice.Delta.Content == "" {
					continue
				}
				frame := ai.Frame{
					ID:           streamID,
					Vendor:       vendorName,
					Model:        streamModel,
					ContentDelta: *choice.Delta.Content,
				}
				if !yield(frame, nil) {
					return // Caller stopped iterating.
				}
			}
		}
	}

	return ai.NewFrameStream(iteratorFunc), nil
}

// unmarshalStreamChunk decodes one SSE payload. Some OpenAI-compatible hosts
// occasionally emit slightly malformed chunk JSON; rather than aborting the
// whole stream, the payload is run through jsonrepair before giving up.
func unmarshalStreamChunk(payload string) (*chatCompletionStreamChunk, error) {
	var chunk chatCompletionStreamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err == nil {
		return &chunk, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(payload)
	if repairErr != nil {
		return nil, repairErr
	}
	if err := json.Unmarshal([]byte(repaired), &chunk); err != nil {
		return nil, err
	}
	return &chunk, nil
}

// authErrorStream yields a single terminal frame reporting an authentication
// failure, keeping the one-terminal-frame contract for streams that never
// reached the vendor.
func authErrorStream(model, message string) *ai.FrameStream {
	return ai.NewFrameStream(func(yield func(ai.Frame, error) bool) {
		yield(ai.ErrorFrame("", vendorName, model, &ai.ErrorDetails{Message: message, Kind: ai.ErrorKindAuth}), nil)
	})
}
