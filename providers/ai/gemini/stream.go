package gemini

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/google/uuid"

	"omnigate/internal/utils"
	"omnigate/providers/ai"
)

// StreamComplete implements [ai.StreamProvider] via the streamGenerateContent
// endpoint with alt=sse. Unlike OpenAI, each Gemini SSE event carries a full
// generateContentResponse snapshot rather than a delta, so the iterator tracks
// the text seen so far and emits only the unseen suffix.
func (p *GeminiProvider) StreamComplete(ctx context.Context, request ai.CompletionRequest) (*ai.FrameStream, error) {
	if p.apiKey == "" {
		return authErrorStream(request.Model, "GEMINI_API_KEY is not set"), nil
	}

	callURL := p.baseURL + "/models/" + request.Model + ":streamGenerateContent?alt=sse"
	wireRequest := requestToGemini(request)

	httpResponse, err := utils.DoPostStream(ctx, p.client, callURL, "", wireRequest, p.authHeader())
	if err != nil {
		if details := ai.ClassifyVendorError(err); details.Kind == ai.ErrorKindAuth {
			return authErrorStream(request.Model, details.Message), nil
		}
		return nil, err
	}

	sseScanner := utils.NewSSEScanner(httpResponse.Body)

	iteratorFunc := func(yield func(ai.Frame, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		// There is no id on the wire, so one stream-scoped id covers every
		// frame. Finish reason and usage arrive on the last snapshot and are
		// held back until EOF so exactly one terminal frame is emitted.
		streamID := uuid.NewString()
		seenText := ""
		var finishReason ai.FinishReason
		var reportedUsage *ai.Usage

		terminal := func(details *ai.ErrorDetails) ai.Frame {
			if details != nil {
				return ai.ErrorFrame(streamID, vendorName, request.Model, details)
			}
			reason := finishReason
			if reason == "" {
				reason = ai.FinishStop
			}
			return ai.Frame{
				ID:           streamID,
				Vendor:       vendorName,
				Model:        request.Model,
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

			var snapshot generateContentResponse
			if parseErr := json.Unmarshal([]byte(event.Data), &snapshot); parseErr != nil {
				yield(terminal(&ai.ErrorDetails{Message: "malformed stream event: " + parseErr.Error(), Kind: ai.ErrorKindProvider}), nil)
				return
			}

			if snapshot.UsageMetadata != nil && snapshot.UsageMetadata.TotalTokenCount > 0 {
				reportedUsage = &ai.Usage{
					PromptTokens:     snapshot.UsageMetadata.PromptTokenCount,
					CompletionTokens: snapshot.UsageMetadata.CandidatesTokenCount,
					TotalTokens:      snapshot.UsageMetadata.TotalTokenCount,
				}
			}
			if len(snapshot.Candidates) > 0 && snapshot.Candidates[0].FinishReason != "" {
				finishReason = mapFinishReason(snapshot.Candidates[0].FinishReason)
			}

			fullText := candidateText(&snapshot)
			if fullText == "" {
				continue
			}
			var delta string
			if strings.HasPrefix(fullText, seenText) {
				// Cumulative snapshot: emit only the unseen suffix. A
				// trailing finish/usage event that repeats the full text
				// extends nothing and yields no frame.
				delta = fullText[len(seenText):]
				seenText = fullText
			} else {
				// Some deployments send incremental parts instead of
				// snapshots; the whole event text is then new.
				delta = fullText
				seenText += fullText
			}
			if delta == "" {
				continue
			}

			frame := ai.Frame{
				ID:           streamID,
				Vendor:       vendorName,
				Model:        request.Model,
				ContentDelta: delta,
			}
			if !yield(frame, nil) {
				return // Caller stopped iterating.
			}
		}
	}

	return ai.NewFrameStream(iteratorFunc), nil
}

func authErrorStream(model, message string) *ai.FrameStream {
	return ai.NewFrameStream(func(yield func(ai.Frame, error) bool) {
		yield(ai.ErrorFrame("", vendorName, model, &ai.ErrorDetails{Message: message, Kind: ai.ErrorKindAuth}), nil)
	})
}
