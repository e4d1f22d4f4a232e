package session

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies which assistant produced a session. Sessions from
// different sources are never merged, even when their IDs collide.
type Source string

const (
	ClaudeCode Source = "claude"
	Codex      Source = "codex"
)

// Sources lists every known source in display order.
var Sources = []Source{ClaudeCode, Codex}

func (s Source) Label() string {
	switch s {
	case ClaudeCode:
		return "claude code"
	case Codex:
		return "codex"
	}
	return string(s)
}

// ListLabel is the short form used in list columns.
func (s Source) ListLabel() string {
	if s == ClaudeCode {
		return "cc"
	}
	return s.Label()
}

func (s Source) Valid() bool {
	return s == ClaudeCode || s == Codex
}

// ParseSource accepts the canonical names plus the aliases users type on the
// command line.
func ParseSource(v string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "claude", "cc", "claude-code", "claudecode", "claude code":
		return ClaudeCode, nil
	case "codex":
		return Codex, nil
	}
	return "", fmt.Errorf("unknown source %q (want claude or codex)", v)
}

// Session is one normalized conversation from either source.
type Session struct {
	ID              string    `json:"id"`
	Source          Source    `json:"source"`
	ProjectPath     string    `json:"project_path,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	LastActiveAt    time.Time `json:"last_active_at"`
	Model           string    `json:"model,omitempty"` // empty when never recorded
	ReasoningEffort string    `json:"reasoning_effort,omitempty"`
	TranscriptRef   string    `json:"transcript_ref,omitempty"`
	Title           string    `json:"title,omitempty"`
	SizeBytes       int64     `json:"size_bytes"`
	MessageCount    int       `json:"message_count"`
	// Orphaned is set for Codex sessions whose metadata only ever came from
	// turn_context records, with no session_meta for the same id.
	Orphaned bool `json:"orphaned,omitempty"`
}

// Key is unique across sources.
func (s Session) Key() string {
	return string(s.Source) + "::" + s.ID
}

func (s Session) HasModel() bool {
	return s.Model != ""
}

// ShortID returns the first eight characters of the ID.
func (s Session) ShortID() string {
	if len(s.ID) <= 8 {
		return s.ID
	}
	return s.ID[:8]
}

// HistoryEntry is one line of a source's append-only history log.
type HistoryEntry struct {
	SessionID string
	Timestamp time.Time
	Model     string
	Cwd       string
	Display   string
}
