package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Zuo-Peng/cs/internal/scan"
	"github.com/Zuo-Peng/cs/internal/session"
)

// Record kinds Claude Code writes for its own bookkeeping.
var claudeInternalTypes = map[string]bool{
	"file-history-snapshot": true,
	"progress":              true,
	"queue-operation":       true,
}

type claudeRecord struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	IsMeta    bool            `json:"isMeta"`
	APIError  bool            `json:"isApiErrorMessage"`
	Timestamp string          `json:"timestamp"`
	Cwd       string          `json:"cwd"`
	Message   json.RawMessage `json:"message"`
	Summary   string          `json:"summary"` // for type="summary" records
}

type claudeMessage struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
}

type claudeContentBlock struct {
	Type     string          `json:"type"`
	Text     string          `json:"text"`
	Thinking string          `json:"thinking"`
	Name     string          `json:"name"`
	Input    json.RawMessage `json:"input"`
}

type ClaudeReader struct {
	cfg     Config
	tracker scan.Tracker
}

func NewClaudeReader(cfg Config, tracker scan.Tracker) *ClaudeReader {
	return &ClaudeReader{cfg: cfg, tracker: tracker}
}

func (r *ClaudeReader) Source() session.Source { return session.ClaudeCode }

// claudeTranscript is what one transcript contributes before history is merged.
type claudeTranscript struct {
	sess        session.Session
	summary     string
	firstPrompt string
	mtime       time.Time
}

func (r *ClaudeReader) Read() (*Result, error) {
	res := &Result{Source: session.ClaudeCode}

	history, hfp, warnings, herr := readHistory(r.cfg.History, r.tracker)
	res.History = history
	res.Warnings = append(res.Warnings, warnings...)
	if hfp != nil {
		res.Fingerprints = append(res.Fingerprints, *hfp)
	}
	if herr != nil {
		res.Warnings = append(res.Warnings, Warning{Path: r.cfg.History, Err: herr})
	}

	byID := make(map[string]*claudeTranscript)
	files := scan.ClaudeFiles(r.cfg.Roots)
	opened := 0
	for _, path := range files {
		t, fp, warns, err := r.readTranscript(path)
		res.Warnings = append(res.Warnings, warns...)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{Path: path, Err: err})
			continue
		}
		opened++
		res.Fingerprints = append(res.Fingerprints, fp)
		if t == nil {
			continue
		}
		// the same id can exist under two project dirs after a move; keep the newest
		if old, ok := byID[t.sess.ID]; ok && old.sess.LastActiveAt.After(t.sess.LastActiveAt) {
			continue
		}
		byID[t.sess.ID] = t
	}
	if herr != nil && opened == 0 && len(files) > 0 {
		return res, fmt.Errorf("claude: history and transcripts unreadable: %w", herr)
	}

	summaries := summarizeHistory(history)
	for id, h := range summaries {
		t, ok := byID[id]
		if !ok {
			// history-only: the transcript is gone or was never written
			t = &claudeTranscript{sess: session.Session{
				ID:     id,
				Source: session.ClaudeCode,
			}}
			byID[id] = t
		}
		applyHistory(&t.sess, h)
		if t.sess.TranscriptRef == "" {
			t.sess.TranscriptRef = r.guessTranscript(id, t.sess.ProjectPath)
		}
	}

	for id, t := range byID {
		s := t.sess
		switch {
		case t.summary != "":
			s.Title = t.summary
		case summaries[id] != nil && summaries[id].display != "":
			s.Title = summaries[id].display
		case t.firstPrompt != "":
			s.Title = t.firstPrompt
		default:
			s.Title = s.ProjectPath
		}
		finalize(&s, t.mtime)
		res.Sessions = append(res.Sessions, s)
	}
	sort.Slice(res.Sessions, func(i, j int) bool { return res.Sessions[i].ID < res.Sessions[j].ID })
	scan.Sort(res.Fingerprints)
	return res, nil
}

// guessTranscript mirrors Claude Code's layout: <root>/<project with / as ->/<id>.jsonl.
func (r *ClaudeReader) guessTranscript(id, project string) string {
	if project == "" || len(r.cfg.Roots) == 0 {
		return ""
	}
	return filepath.Join(r.cfg.Roots[0], EncodeProjectPath(project), id+".jsonl")
}

// EncodeProjectPath converts a working directory into Claude Code's project
// directory name.
func EncodeProjectPath(project string) string {
	return strings.ReplaceAll(project, "/", "-")
}

func (r *ClaudeReader) readTranscript(path string) (*claudeTranscript, scan.Fingerprint, []Warning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, scan.Fingerprint{}, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, scan.Fingerprint{}, nil, err
	}
	fp, err := r.tracker.FromInfo(path, info)
	if err != nil {
		return nil, scan.Fingerprint{}, nil, err
	}

	t := &claudeTranscript{
		sess: session.Session{
			ID:            strings.TrimSuffix(filepath.Base(path), ".jsonl"),
			Source:        session.ClaudeCode,
			TranscriptRef: path,
			SizeBytes:     info.Size(),
		},
		mtime: info.ModTime(),
	}
	var (
		warnings   []Warning
		embeddedID string
	)
	err = eachLine(f, func(l line) bool {
		if l.TooLong {
			warnings = append(warnings, Warning{Path: path, Line: l.Num, Err: errLineTooLong})
			return true
		}
		var rec claudeRecord
		if err := json.Unmarshal(l.Data, &rec); err != nil {
			if l.Complete {
				warnings = append(warnings, Warning{Path: path, Line: l.Num, Err: err})
			}
			return true
		}
		if claudeInternalTypes[rec.Type] {
			return true
		}
		if embeddedID == "" {
			embeddedID = rec.SessionID
		}
		if rec.Type == "summary" {
			if rec.Summary != "" {
				t.summary = rec.Summary
			}
			return true
		}
		if rec.Cwd != "" && t.sess.ProjectPath == "" {
			t.sess.ProjectPath = rec.Cwd
		}
		t.touch(session.ParseTimestamp(rec.Timestamp))

		if rec.Type != "user" && rec.Type != "assistant" {
			return true
		}
		var msg claudeMessage
		if err := json.Unmarshal(rec.Message, &msg); err != nil {
			warnings = append(warnings, Warning{Path: path, Line: l.Num, Err: fmt.Errorf("message: %w", err)})
			return true
		}
		t.sess.MessageCount++
		if rec.Type == "assistant" {
			if m := session.ModelCandidate(msg.Model); m != "" {
				t.sess.Model = m
			}
			return true
		}
		if t.firstPrompt == "" && !rec.IsMeta {
			if text := extractClaudeContent(msg.Content).Text; isUserPrompt(text) {
				t.firstPrompt = text
			}
		}
		return true
	})
	if err != nil {
		warnings = append(warnings, Warning{Path: path, Err: err})
	}
	if t.sess.ID == "" {
		t.sess.ID = embeddedID
	}
	if t.sess.ID == "" {
		return nil, fp, warnings, nil
	}
	return t, fp, warnings, nil
}

func (t *claudeTranscript) touch(ts time.Time) {
	if ts.IsZero() {
		return
	}
	if t.sess.StartedAt.IsZero() || ts.Before(t.sess.StartedAt) {
		t.sess.StartedAt = ts
	}
	if ts.After(t.sess.LastActiveAt) {
		t.sess.LastActiveAt = ts
	}
}

// isUserPrompt filters out the slash-command and hook echoes Claude Code
// records as user messages.
func isUserPrompt(text string) bool {
	if text == "" {
		return false
	}
	for _, p := range []string{"<local-command", "<command-name", "<command-message", "Caveat:"} {
		if strings.HasPrefix(text, p) {
			return false
		}
	}
	return true
}

type extractedContent struct {
	Text     string
	Thinking string
	Tools    []ToolCall
}

func extractClaudeContent(raw json.RawMessage) extractedContent {
	if len(raw) == 0 {
		return extractedContent{}
	}
	// try string first
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return extractedContent{Text: strings.TrimSpace(s)}
	}

	// try array of content blocks
	var blocks []claudeContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return extractedContent{}
	}
	var (
		textParts  []string
		thinkParts []string
		tools      []ToolCall
	)
	for _, b := range blocks {
		switch b.Type {
		case "text", "input_text", "output_text":
			if b.Text != "" {
				textParts = append(textParts, b.Text)
			}
		case "thinking":
			think := b.Thinking
			if think == "" {
				think = b.Text
			}
			if think != "" {
				thinkParts = append(thinkParts, think)
			}
		case "tool_use":
			tools = append(tools, ToolCall{Name: b.Name, Input: b.Input})
		}
	}
	return extractedContent{
		Text:     strings.TrimSpace(strings.Join(textParts, "\n")),
		Thinking: strings.TrimSpace(strings.Join(thinkParts, "\n")),
		Tools:    tools,
	}
}
