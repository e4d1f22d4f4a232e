package parse

import (
	"encoding/json"
	"fmt"

	"github.com/Zuo-Peng/cs/internal/scan"
	"github.com/Zuo-Peng/cs/internal/session"
)

// Config locates one source's files.
type Config struct {
	History string
	Roots   []string
}

// Reader turns one source's history and transcript files into sessions.
// Readers share nothing, so the two sources may be read concurrently.
type Reader interface {
	Source() session.Source
	Read() (*Result, error)
}

// NewReader returns the reader for src.
func NewReader(src session.Source, cfg Config, tracker scan.Tracker) (Reader, error) {
	switch src {
	case session.ClaudeCode:
		return NewClaudeReader(cfg, tracker), nil
	case session.Codex:
		return NewCodexReader(cfg, tracker), nil
	}
	return nil, fmt.Errorf("unknown source %q", src)
}

// Discover lists the transcript files a reader for src would open.
func Discover(src session.Source, roots []string) []string {
	if src == session.Codex {
		return scan.CodexFiles(roots)
	}
	return scan.ClaudeFiles(roots)
}

type Result struct {
	Source       session.Source
	Sessions     []session.Session
	History      []session.HistoryEntry
	Fingerprints []scan.Fingerprint
	Warnings     []Warning
}

// Warning records a skipped record or file. Line is 0 for file-level problems.
type Warning struct {
	Path string
	Line int
	Err  error
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", w.Path, w.Line, w.Err)
	}
	return fmt.Sprintf("%s: %v", w.Path, w.Err)
}

// Message is one conversational record from a transcript.
type Message struct {
	Role     string // "user" or "assistant"
	Text     string
	Thinking string
	Model    string
	Tools    []ToolCall
	APIError bool
	Line     int
}

type ToolCall struct {
	Name  string
	Input json.RawMessage
}
