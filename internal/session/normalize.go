package session

import (
	"strings"
	"time"
	"unicode/utf8"
)

const maxTitleRunes = 200

// ModelCandidate normalizes a model name as recorded by either assistant.
// It returns "" for values that must not be passed back as a --model flag.
func ModelCandidate(model string) string {
	fields := strings.Fields(model)
	if len(fields) == 0 {
		return ""
	}
	first := fields[0]
	if first == "<synthetic>" {
		return ""
	}
	for _, r := range first {
		if !isModelRune(r) {
			return ""
		}
	}
	return first
}

func isModelRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == '.', r == ':', r == '/':
		return true
	}
	return false
}

// EffortCandidate normalizes a Codex reasoning effort ("High" -> "high").
func EffortCandidate(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return ""
	}
	for _, r := range v {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return ""
		}
	}
	return v
}

// SanitizeTitle collapses whitespace and truncates to a display-friendly length.
func SanitizeTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxTitleRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxTitleRunes])
}

// ParseTimestamp accepts the RFC 3339 variants both assistants write.
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

// FromEpoch converts an epoch value in seconds or milliseconds.
func FromEpoch(v int64) time.Time {
	switch {
	case v <= 0:
		return time.Time{}
	case v < 1_000_000_000_000:
		return time.Unix(v, 0)
	default:
		return time.UnixMilli(v)
	}
}

// NormalizeTime truncates to millisecond precision in UTC, the resolution
// sessions are persisted with, so cached and freshly parsed sessions compare
// equal.
func NormalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.UnixMilli(t.UnixMilli()).UTC()
}
