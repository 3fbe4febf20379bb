package openai

import (
	"time"

	"omnigate/providers/ai"
)

// chatContentPart is one element of a multimodal message body on the wire.
type chatContentPart struct {
	Type     string        `json:"type"` // "text" or "image_url"
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

// chatMessage is a single conversation message on the wire. Content is either
// a plain string or a []chatContentPart for multimodal messages.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// chatCompletionRequest mirrors the OpenAI chat completions request shape,
// limited to the fields this gateway forwards.
type chatCompletionRequest struct {
	Model            string         `json:"model"`
	Messages         []chatMessage  `json:"messages"`
	Temperature      *float64       `json:"temperature,omitempty"`
	MaxTokens        int            `json:"max_tokens,omitempty"`
	TopP             *float64       `json:"top_p,omitempty"`
	FrequencyPenalty *float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64       `json:"presence_penalty,omitempty"`
	Stream           *bool          `json:"stream,omitempty"`
	StreamOptions    *streamOptions `json:"stream_options,omitempty"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// chatCompletionResponse mirrors the non-streaming response shape.
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *usage `json:"usage,omitempty"`
}

// chatCompletionStreamChunk mirrors one SSE chunk of the streaming response.
// The final usage chunk (when stream_options.include_usage is set) carries
// empty choices and a non-nil Usage.
type chatCompletionStreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *usage `json:"usage,omitempty"`
}

// modelsResponse mirrors the GET /models catalog response.
type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// requestToChatCompletion converts a normalized request into the OpenAI wire
// shape. System messages stay inline (the messages array is OpenAI's system
// channel) and multimodal parts are forwarded as content part arrays.
func requestToChatCompletion(request ai.CompletionRequest) chatCompletionRequest {
	messages := make([]chatMessage, 0, len(request.Messages))
	for _, message := range request.Messages {
		messages = append(messages, chatMessage{
			Role:    string(message.Role),
			Content: messageContent(message),
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

// messageContent renders the wire content for a message: plain string for
// text-only messages, a part array when images are present.
func messageContent(message ai.ChatMessage) any {
	if len(message.Parts) == 0 {
		return message.Content
	}
	if !message.HasImages() {
		return message.Text()
	}

	parts := make([]chatContentPart, 0, len(message.Parts))
	for _, part := range message.Parts {
		switch part.Type {
		case ai.ContentPartText:
			parts = append(parts, chatContentPart{Type: "text", Text: part.Text})
		case ai.ContentPartImage:
			parts = append(parts, chatContentPart{Type: "image_url", ImageURL: &chatImageURL{URL: part.ImageURL}})
		}
	}
	return parts
}

// mapFinishReason converts an OpenAI finish reason to the normalized set.
func mapFinishReason(reason string) ai.FinishReason {
	switch reason {
	case "length":
		return ai.FinishLength
	default:
		return ai.FinishStop
	}
}

// responseToNormalized converts a completed vendor response into the
// normalized shape, estimating usage when the vendor did not report it.
func responseToNormalized(response *chatCompletionResponse, request ai.CompletionRequest, latency time.Duration) *ai.NormalizedResponse {
	normalized := &ai.NormalizedResponse{
		ID:           response.ID,
		Vendor:       vendorName,
		Model:        response.Model,
		CreatedAt:    response.Created,
		LatencyMs:    latency.Milliseconds(),
		FinishReason: ai.FinishStop,
	}
	if normalized.CreatedAt == 0 {
		normalized.CreatedAt = time.Now().Unix()
	}

	if len(response.Choices) > 0 {
		choice := response.Choices[0]
		normalized.Content = choice.Message.Content
		normalized.FinishReason = mapFinishReason(choice.FinishReason)
	}

	if response.Usage != nil && response.Usage.TotalTokens > 0 {
		normalized.Usage = ai.Usage{
			PromptTokens:     response.Usage.PromptTokens,
			CompletionTokens: response.Usage.CompletionTokens,
			TotalTokens:      response.Usage.TotalTokens,
		}
	} else {
		normalized.Usage = ai.EstimateUsage(ai.PromptText(request.Messages), normalized.Content)
	}

	return normalized
}
