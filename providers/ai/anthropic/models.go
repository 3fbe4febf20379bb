package anthropic

import (
	"time"

	"omnigate/providers/ai"
)

// defaultMaxTokens is applied when the caller did not set a limit; Anthropic
// requires max_tokens on every request.
const defaultMaxTokens = 4096

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesRequest mirrors the Messages API request shape, limited to the
// fields this gateway forwards.
type messagesRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// messagesResponse mirrors the non-streaming Messages API response.
type messagesResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string          `json:"stop_reason"`
	Usage      *anthropicUsage `json:"usage,omitempty"`
}

// streamEvent is the union of the SSE payloads Anthropic emits during a
// streaming turn. Event identity comes from the Type field; the SSE event
// name mirrors it.
//
// Lifecycle: message_start → content_block_start → content_block_delta(s) →
// content_block_stop → message_delta → message_stop.
type streamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		ID    string          `json:"id"`
		Model string          `json:"model"`
		Usage *anthropicUsage `json:"usage,omitempty"`
	} `json:"message,omitempty"`
	Delta *struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta,omitempty"`
	Usage *anthropicUsage `json:"usage,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// modelsResponse mirrors the GET /models catalog response.
type modelsResponse struct {
	Data []struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"data"`
}

// requestToAnthropic converts a normalized request into the Messages API
// shape. The system prompt moves to the dedicated system field, the history
// is rewritten into the strict user/assistant alternation Anthropic requires,
// and multimodal parts degrade to text (image blocks would need base64
// sources this gateway does not fetch).
func requestToAnthropic(request ai.CompletionRequest) messagesRequest {
	systemPrompt, history := ai.SplitSystemPrompt(request.Messages)

	history = ai.EnforceAlternation(ai.DegradeAllToText(history))

	messages := make([]anthropicMessage, 0, len(history))
	for _, message := range history {
		messages = append(messages, anthropicMessage{
			Role:    string(message.Role),
			Content: message.Text(),
		})
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return messagesRequest{
		Model:       request.Model,
		System:      systemPrompt,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: request.Temperature,
		TopP:        request.TopP,
	}
}

// mapStopReason converts an Anthropic stop reason to the normalized set.
func mapStopReason(reason string) ai.FinishReason {
	switch reason {
	case "max_tokens":
		return ai.FinishLength
	default:
		return ai.FinishStop
	}
}

// responseToNormalized converts a completed Messages API response into the
// normalized shape.
func responseToNormalized(response *messagesResponse, request ai.CompletionRequest, latency time.Duration) *ai.NormalizedResponse {
	var content string
	for _, block := range response.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	normalized := &ai.NormalizedResponse{
		ID:           response.ID,
		Vendor:       vendorName,
		Model:        response.Model,
		CreatedAt:    time.Now().Unix(),
		Content:      content,
		LatencyMs:    latency.Milliseconds(),
		FinishReason: mapStopReason(response.StopReason),
	}

	if response.Usage != nil && response.Usage.InputTokens+response.Usage.OutputTokens > 0 {
		normalized.Usage = ai.Usage{
			PromptTokens:     response.Usage.InputTokens,
			CompletionTokens: response.Usage.OutputTokens,
			TotalTokens:      response.Usage.InputTokens + response.Usage.OutputTokens,
		}
	} else {
		normalized.Usage = ai.EstimateUsage(ai.PromptText(request.Messages), content)
	}

	return normalized
}
