package utils

import (
	"fmt"
	"math"
	"strings"
)

const (
	// DefaultMaxStringLength is the default maximum length for truncated strings.
	DefaultMaxStringLength = 500

	// tokensPerWord is the rough conversion factor between whitespace-separated
	// words and model tokens, used when a vendor does not report usage.
	tokensPerWord = 1.3
)

// EstimateTokens approximates the token count of text as ceil(words * 1.3).
// It is a deliberately cheap estimate used only as a fallback so that reported
// usage is never zero for non-empty content.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(math.Ceil(float64(words) * tokensPerWord))
}

// TruncateString shortens s to at most maxLen characters, appending a suffix
// that records the original total length so callers know data was omitted.
// If maxLen is zero or negative, DefaultMaxStringLength is used instead.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxStringLength
	}
	if len(s) <= maxLen {
		return s
	}
	return fmt.Sprintf("%s... (truncated, total: %d chars)", s[:maxLen], len(s))
}
