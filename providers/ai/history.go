package ai

import "strings"

// SplitSystemPrompt extracts system-role messages from the conversation and
// returns them as a single prompt plus the remaining history. Vendors with a
// dedicated system-instruction channel pass the prompt there; vendors without
// one prepend it to the first user turn (see PrependSystemPrompt). Multiple
// system messages are joined in order.
func SplitSystemPrompt(messages []ChatMessage) (systemPrompt string, rest []ChatMessage) {
	var systemParts []string
	rest = make([]ChatMessage, 0, len(messages))

	for _, message := range messages {
		if message.Role == RoleSystem {
			if text := message.Text(); text != "" {
				systemParts = append(systemParts, text)
			}
			continue
		}
		rest = append(rest, message)
	}

	return strings.Join(systemParts, "\n\n"), rest
}

// PrependSystemPrompt folds a system prompt into the first user turn for
// vendors without a dedicated system channel. If the history starts with an
// assistant turn the prompt becomes a new leading user message instead, so no
// message is reordered.
func PrependSystemPrompt(systemPrompt string, messages []ChatMessage) []ChatMessage {
	if systemPrompt == "" {
		return messages
	}

	if len(messages) > 0 && messages[0].Role == RoleUser {
		merged := make([]ChatMessage, len(messages))
		copy(merged, messages)
		merged[0] = ChatMessage{
			Role:    RoleUser,
			Content: systemPrompt + "\n\n" + messages[0].Text(),
		}
		return merged
	}

	return append([]ChatMessage{{Role: RoleUser, Content: systemPrompt}}, messages...)
}

// EnforceAlternation rewrites the history into strictly alternating
// user/assistant turns for vendors that require it. Consecutive same-role
// turns are merged (joined with blank lines) rather than dropped, so the most
// recent user message always survives intact. A history that opens with an
// assistant turn gains a neutral leading user turn, since those vendors
// reject assistant-first conversations.
func EnforceAlternation(messages []ChatMessage) []ChatMessage {
	if len(messages) == 0 {
		return messages
	}

	var result []ChatMessage
	for _, message := range messages {
		text := message.Text()
		if len(result) > 0 && result[len(result)-1].Role == message.Role {
			last := &result[len(result)-1]
			if text != "" {
				if last.Content != "" {
					last.Content += "\n\n"
				}
				last.Content += text
			}
			continue
		}
		result = append(result, ChatMessage{Role: message.Role, Content: text, Parts: message.Parts})
	}

	if result[0].Role == RoleAssistant {
		result = append([]ChatMessage{{Role: RoleUser, Content: "(conversation resumed)"}}, result...)
	}

	return result
}

// DegradeToText flattens a multimodal message to text-only for vendors without
// image support: text parts are concatenated and image parts dropped. The
// message itself is never dropped; a message that was images-only degrades to
// a placeholder so the turn structure stays valid.
func DegradeToText(message ChatMessage) ChatMessage {
	if len(message.Parts) == 0 {
		return message
	}

	text := message.Text()
	if text == "" && message.HasImages() {
		text = "(image omitted)"
	}

	return ChatMessage{Role: message.Role, Content: text}
}

// DegradeAllToText applies DegradeToText to every message in a history.
func DegradeAllToText(messages []ChatMessage) []ChatMessage {
	degraded := make([]ChatMessage, 0, len(messages))
	for _, message := range messages {
		degraded = append(degraded, DegradeToText(message))
	}
	return degraded
}
