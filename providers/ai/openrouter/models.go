package openrouter

import (
	"time"

	"omnigate/providers/ai"
)

// Wire types mirror the OpenAI chat completions shapes, limited to the fields
// this gateway forwards. OpenRouter accepts the same request body and routes
// it to the upstream behind the model id's vendor prefix.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      *float64      `json:"temperature,omitempty"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	TopP             *float64      `json:"top_p,omitempty"`
	FrequencyPenalty *float64      `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64      `json:"presence_penalty,omitempty"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *usage `json:"usage,omitempty"`
}

type modelsResponse struct {
	Data []struct {
		ID   string `json:"id"`
		Name string `json:"name,omitempty"`
	} `json:"data"`
}

// requestToChatCompletion converts a normalized request. Capability varies
// wildly across routed upstreams, so image parts degrade to text placeholders
// rather than risking a rejection from a text-only model.
func requestToChatCompletion(request ai.CompletionRequest) chatCompletionRequest {
	history := ai.DegradeAllToText(request.Messages)

	messages := make([]chatMessage, 0, len(history))
	for _, message := range history {
		messages = append(messages, chatMessage{
			Role:    string(message.Role),
			Content: message.Text(),
		})
	}

	return chatCompletionRequest{
		Model:            request.Model,
		Messages:         messages,
		Temperature:      request.Temperature,
		MaxTokens:        request.MaxTokens,
		TopP:             request.TopP,
		FrequencyPenalty: request.FrequencyPenalty,
		PresencePenalty:  request.PresencePenalty,
	}
}

func mapFinishReason(reason string) ai.FinishReason {
	switch reason {
	case "length":
		return ai.FinishLength
	default:
		return ai.FinishStop
	}
}

func responseToNormalized(response *chatCompletionResponse, request ai.CompletionRequest, elapsed time.Duration) *ai.NormalizedResponse {
	content := ""
	finishReason := ai.FinishStop
	if len(response.Choices) > 0 {
		content = response.Choices[0].Message.Content
		finishReason = mapFinishReason(response.Choices[0].FinishReason)
	}

	usageReport := ai.EstimateUsage(ai.PromptText(request.Messages), content)
	if response.Usage != nil && response.Usage.TotalTokens > 0 {
		usageReport = ai.Usage{
			PromptTokens:     response.Usage.PromptTokens,
			CompletionTokens: response.Usage.CompletionTokens,
			TotalTokens:      response.Usage.TotalTokens,
		}
	}

	model := response.Model
	if model == "" {
		model = request.Model
	}

	createdAt := response.Created
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}

	return &ai.NormalizedResponse{
		ID:           response.ID,
		Vendor:       vendorName,
		Model:        model,
		CreatedAt:    createdAt,
		Content:      content,
		Usage:        usageReport,
		LatencyMs:    elapsed.Milliseconds(),
		FinishReason: finishReason,
	}
}
