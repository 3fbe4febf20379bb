package gemini

import (
	"time"

	"github.com/google/uuid"

	"omnigate/providers/ai"
)

// Wire types for the generateContent API. Field names follow the vendor's
// JSON casing (camelCase), which differs from the OpenAI-style snake_case.

type generateContentRequest struct {
	SystemInstruction *contentBlock    `json:"system_instruction,omitempty"`
	Contents          []contentBlock   `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type contentBlock struct {
	Role  string     `json:"role,omitempty"`
	Parts []textPart `json:"parts"`
}

type textPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type generateContentResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string         `json:"modelVersion,omitempty"`
}

type candidate struct {
	Content      contentBlock `json:"content"`
	FinishReason string       `json:"finishReason,omitempty"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type modelsResponse struct {
	Models []modelEntry `json:"models"`
}

type modelEntry struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// requestToGemini converts a normalized request into the Gemini wire format.
// The system prompt moves to system_instruction, images degrade to text
// placeholders, and the history is normalized to strict user/model
// alternation since the API rejects consecutive same-role turns.
func requestToGemini(request ai.CompletionRequest) generateContentRequest {
	system, history := ai.SplitSystemPrompt(request.Messages)
	history = ai.EnforceAlternation(ai.DegradeAllToText(history))

	contents := make([]contentBlock, 0, len(history))
	for _, message := range history {
		role := "user"
		if message.Role == ai.RoleAssistant {
			role = "model"
		}
		contents = append(contents, contentBlock{
			Role:  role,
			Parts: []textPart{{Text: message.Text()}},
		})
	}

	wireRequest := generateContentRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     request.Temperature,
			TopP:            request.TopP,
			MaxOutputTokens: request.MaxTokens,
		},
	}
	if system != "" {
		wireRequest.SystemInstruction = &contentBlock{Parts: []textPart{{Text: system}}}
	}
	return wireRequest
}

// candidateText concatenates all text parts of the first candidate. Responses
// occasionally split one turn across several parts.
func candidateText(response *generateContentResponse) string {
	if len(response.Candidates) == 0 {
		return ""
	}
	text := ""
	for _, part := range response.Candidates[0].Content.Parts {
		text += part.Text
	}
	return text
}

func mapFinishReason(reason string) ai.FinishReason {
	switch reason {
	case "MAX_TOKENS":
		return ai.FinishLength
	default:
		return ai.FinishStop
	}
}

func responseToNormalized(response *generateContentResponse, request ai.CompletionRequest, elapsed time.Duration) *ai.NormalizedResponse {
	content := candidateText(response)

	usage := ai.EstimateUsage(ai.PromptText(request.Messages), content)
	if response.UsageMetadata != nil {
		usage = ai.Usage{
			PromptTokens:     response.UsageMetadata.PromptTokenCount,
			CompletionTokens: response.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      response.UsageMetadata.TotalTokenCount,
		}
	}

	finishReason := ai.FinishStop
	if len(response.Candidates) > 0 {
		finishReason = mapFinishReason(response.Candidates[0].FinishReason)
	}

	return &ai.NormalizedResponse{
		ID:           uuid.NewString(),
		Vendor:       vendorName,
		Model:        request.Model,
		CreatedAt:    time.Now().Unix(),
		Content:      content,
		Usage:        usage,
		LatencyMs:    elapsed.Milliseconds(),
		FinishReason: finishReason,
	}
}
