package ai

import (
	"fmt"
	"strings"

	"omnigate/internal/utils"
)

/*
	##### REQUEST SIDE #####
*/

// MessageRole represents the role of a message; compatible with string.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"    // System instructions/configuration
	RoleUser      MessageRole = "user"      // End-user message
	RoleAssistant MessageRole = "assistant" // Model response
)

// ContentPartType identifies the kind of payload carried by a ContentPart.
type ContentPartType string

const (
	// ContentPartText is a plain text fragment.
	ContentPartText ContentPartType = "text"
	// ContentPartImage is a reference to an image (URL or data URI).
	ContentPartImage ContentPartType = "image"
)

// ContentPart is one element of a multimodal message body.
type ContentPart struct {
	Type     ContentPartType `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL string          `json:"image_url,omitempty"`
}

// ChatMessage represents a single message in a conversation. Content holds the
// plain-text body; Parts, when non-empty, carries an ordered multimodal body
// and takes precedence over Content. Messages are immutable once submitted and
// conversation order is chronological.
type ChatMessage struct {
	Role    MessageRole   `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"parts,omitempty"`
}

// Text returns the textual body of the message. For multimodal messages the
// text parts are concatenated in order; image parts contribute nothing here.
func (m ChatMessage) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}

	var builder strings.Builder
	for _, part := range m.Parts {
		if part.Type == ContentPartText && part.Text != "" {
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(part.Text)
		}
	}
	return builder.String()
}

// HasImages reports whether the message carries at least one image part.
func (m ChatMessage) HasImages() bool {
	for _, part := range m.Parts {
		if part.Type == ContentPartImage {
			return true
		}
	}
	return false
}

// Empty reports whether the message has no usable content at all: no text and
// no image parts.
func (m ChatMessage) Empty() bool {
	return m.Text() == "" && !m.HasImages()
}

// CompletionRequest is the normalized request shape accepted by every adapter.
// Model is vendor-qualified ("<vendor>/<modelId>"); adapters receive the bare
// model id after the gateway resolves the vendor.
type CompletionRequest struct {
	Model            string        `json:"model"`
	Messages         []ChatMessage `json:"messages"`
	Temperature      *float64      `json:"temperature,omitempty"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	TopP             *float64      `json:"top_p,omitempty"`
	FrequencyPenalty *float64      `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64      `json:"presence_penalty,omitempty"`
	Stream           bool          `json:"stream,omitempty"`
}

// Validate enforces the request invariants: at least one message, no message
// with empty content, and a present model identifier. Violations are reported
// as validation errors and must be rejected before any vendor call.
func (r CompletionRequest) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return &RequestError{Kind: ErrorKindValidation, Message: "model is required"}
	}
	if len(r.Messages) == 0 {
		return &RequestError{Kind: ErrorKindValidation, Message: "messages must not be empty"}
	}
	for i, message := range r.Messages {
		if message.Empty() {
			return &RequestError{Kind: ErrorKindValidation, Message: fmt.Sprintf("message %d has empty content", i)}
		}
		switch message.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return &RequestError{Kind: ErrorKindValidation, Message: fmt.Sprintf("message %d has unknown role %q", i, message.Role)}
		}
	}
	return nil
}

// SplitModelRef splits a vendor-qualified model identifier "<vendor>/<modelId>"
// into its parts. The model id may itself contain slashes (OpenRouter ids such
// as "meta-llama/llama-3-70b"), so only the first separator is significant.
func SplitModelRef(ref string) (vendor, modelID string, err error) {
	vendor, modelID, found := strings.Cut(ref, "/")
	if !found || vendor == "" || modelID == "" {
		return "", "", &RequestError{
			Kind:    ErrorKindValidation,
			Message: fmt.Sprintf("model %q is not vendor-qualified (expected \"<vendor>/<modelId>\")", ref),
		}
	}
	return vendor, modelID, nil
}

/*
	##### RESPONSE SIDE #####
*/

// FinishReason explains why a turn ended.
type FinishReason string

const (
	FinishStop    FinishReason = "stop"    // Model completed naturally
	FinishLength  FinishReason = "length"  // Token limit reached
	FinishError   FinishReason = "error"   // Vendor or gateway failure
	FinishAborted FinishReason = "aborted" // User or server cancellation
)

// ErrorKind classifies a failure for clients; see also RequestError.
type ErrorKind string

const (
	ErrorKindValidation  ErrorKind = "validation_error"
	ErrorKindAuth        ErrorKind = "auth_error"
	ErrorKindProvider    ErrorKind = "provider_error"
	ErrorKindCircuitOpen ErrorKind = "circuit_open"
	ErrorKindTimeout     ErrorKind = "timeout"
	ErrorKindAborted     ErrorKind = "aborted"
)

// ErrorDetails describes a failure inside a NormalizedResponse or terminal
// Frame. Vendor-specific error types never cross this boundary.
type ErrorDetails struct {
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code,omitempty"`
}

// Usage reports token consumption for a completed turn.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// EstimateUsage builds a Usage from prompt and completion text using the
// words-based token estimate. Used when a vendor does not report usage so the
// field is never absent.
func EstimateUsage(promptText, completionText string) Usage {
	prompt := utils.EstimateTokens(promptText)
	completion := utils.EstimateTokens(completionText)
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

// PromptText concatenates the textual bodies of all request messages; used as
// the input side of estimated usage.
func PromptText(messages []ChatMessage) string {
	var builder strings.Builder
	for _, message := range messages {
		if text := message.Text(); text != "" {
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return builder.String()
}

// NormalizedResponse is the uniform response shape produced exactly once per
// non-streaming call (and by FrameStream.Collect for streaming ones).
type NormalizedResponse struct {
	ID           string        `json:"id"`
	Vendor       string        `json:"vendor"`
	Model        string        `json:"model"`
	CreatedAt    int64         `json:"created_at"`
	Content      string        `json:"content"`
	Usage        Usage         `json:"usage"`
	LatencyMs    int64         `json:"latency_ms"`
	FinishReason FinishReason  `json:"finish_reason"`
	ErrorDetails *ErrorDetails `json:"error_details,omitempty"`
}

// ModelDescriptor identifies one model offered by a vendor.
type ModelDescriptor struct {
	Vendor      string `json:"vendor"`
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
}

// Ref returns the vendor-qualified identifier for the model.
func (d ModelDescriptor) Ref() string {
	return d.Vendor + "/" + d.ID
}

/*
	##### ERRORS #####
*/

// RequestError is a classified gateway-side error. It satisfies the error
// interface and carries the taxonomy kind so callers can map it to transport
// status codes without string matching.
type RequestError struct {
	Kind    ErrorKind
	Message string
	Code    string
}

func (e *RequestError) Error() string {
	return e.Message
}

// Details converts the error into the wire-level ErrorDetails shape.
func (e *RequestError) Details() *ErrorDetails {
	return &ErrorDetails{Message: e.Message, Kind: e.Kind, Code: e.Code}
}
