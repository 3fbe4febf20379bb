package anthropic

import (
	"context"
	"encoding/json"
	"io"

	"omnigate/internal/utils"
	"omnigate/providers/ai"
)

// StreamComplete implements [ai.StreamProvider] for the Messages API.
//
// Anthropic streams true token deltas inside content_block_delta events;
// input tokens arrive in message_start and output tokens in message_delta, so
// usage is accumulated across the stream and attached to the terminal frame.
// Pre-stream errors return as an error; anything after the first SSE byte
// surfaces as a terminal error frame so delivered partial content survives.
func (p *AnthropicProvider) StreamComplete(ctx context.Context, request ai.CompletionRequest) (*ai.FrameStream, error) {
	if p.apiKey == "" {
		return ai.NewFrameStream(func(yield func(ai.Frame, error) bool) {
			yield(ai.ErrorFrame("", vendorName, request.Model, &ai.ErrorDetails{
				Message: "ANTHROPIC_API_KEY is not set",
				Kind:    ai.ErrorKindAuth,
			}), nil)
		}), nil
	}

	wireRequest := requestToAnthropic(request)
	wireRequest.Stream = true

	// Empty apiKey argument: Anthropic authenticates via x-api-key inside
	// buildHeaders, not a bearer token.
	httpResponse, err := utils.DoPostStream(ctx, p.client, p.baseURL+messagesEndpoint, "", wireRequest, p.buildHeaders()...)
	if err != nil {
		if details := ai.ClassifyVendorError(err); details.Kind == ai.ErrorKindAuth {
			return ai.NewFrameStream(func(yield func(ai.Frame, error) bool) {
				yield(ai.ErrorFrame("", vendorName, request.Model, details), nil)
			}), nil
		}
		return nil, err
	}

	sseScanner := utils.NewSSEScanner(httpResponse.Body)

	iteratorFunc := func(yield func(ai.Frame, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		var streamID, streamModel string
		var finishReason ai.FinishReason
		inputTokens, outputTokens := 0, 0

		terminal := func(details *ai.ErrorDetails) ai.Frame {
			if details != nil {
				return ai.ErrorFrame(streamID, vendorName, streamModel, details)
			}
			reason := finishReason
			if reason == "" {
				reason = ai.FinishStop
			}
			frame := ai.Frame{
				ID:           streamID,
				Vendor:       vendorName,
				Model:        streamModel,
				FinishReason: reason,
			}
			if inputTokens+outputTokens > 0 {
				frame.Usage = &ai.Usage{
					PromptTokens:     inputTokens,
					CompletionTokens: outputTokens,
					TotalTokens:      inputTokens + outputTokens,
				}
			}
			return frame
		}

		for {
			if ctx.Err() != nil {
				yield(terminal(&ai.ErrorDetails{Message: "stream cancelled", Kind: ai.ErrorKindAborted}), nil)
				return
			}

			sseEvent, sseErr := sseScanner.Next()
			if sseErr == io.EOF {
				yield(terminal(nil), nil)
				return
			}
			if sseErr != nil {
				yield(terminal(ai.ClassifyVendorError(sseErr)), nil)
				return
			}

			var event streamEvent
			if parseErr := json.Unmarshal([]byte(sseEvent.Data), &event); parseErr != nil {
				yield(terminal(&ai.ErrorDetails{Message: "malformed stream event: " + parseErr.Error(), Kind: ai.ErrorKindProvider}), nil)
				return
			}

			switch event.Type {
			case "message_start":
				if event.Message != nil {
					streamID = event.Message.ID
					streamModel = event.Message.Model
					if event.Message.Usage != nil {
						inputTokens = event.Message.Usage.InputTokens
					}
				}

			case "content_block_delta":
				if event.Delta == nil || event.Delta.Text == "" {
					continue
				}
				frame := ai.Frame{
					ID:           streamID,
					Vendor:       vendorName,
					Model:        streamModel,
					ContentDelta: event.Delta.Text,
				}
				if !yield(frame, nil) {
					return
				}

			case "message_delta":
				if event.Delta != nil && event.Delta.StopReason != "" {
					finishReason = mapStopReason(event.Delta.StopReason)
				}
				if event.Usage != nil {
					outputTokens = event.Usage.OutputTokens
				}

			case "message_stop":
				yield(terminal(nil), nil)
				return

			case "error":
				details := &ai.ErrorDetails{Message: "vendor stream error", Kind: ai.ErrorKindProvider}
				if event.Error != nil {
					details.Message = event.Error.Message
					details.Code = event.Error.Type
				}
				yield(terminal(details), nil)
				return

				// ping, content_block_start, content_block_stop: nothing to forward.
			}
		}
	}

	return ai.NewFrameStream(iteratorFunc), nil
}
