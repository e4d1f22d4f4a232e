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

	"github.com/google/uuid"

	"github.com/Zuo-Peng/cs/internal/scan"
	"github.com/Zuo-Peng/cs/internal/session"
)

// Top-level record in Codex JSONL
type codexRecord struct {
	Timestamp      string          `json:"timestamp"`
	Type           string          `json:"type"`
	SessionID      string          `json:"sessionId"`
	SessionIDSnake string          `json:"session_id"`
	Payload        json.RawMessage `json:"payload"`
}

// payload fields shared by every record kind we read
type codexPayload struct {
	Type           string `json:"type"`
	SessionID      string `json:"sessionId"`
	SessionIDSnake string `json:"session_id"`

	// session_meta
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Cwd       string `json:"cwd"`

	// turn_context
	Model             string `json:"model"`
	Effort            string `json:"effort"`
	CollaborationMode json.RawMessage `json:"collaboration_mode"`

	// response_item / event_msg
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Message json.RawMessage `json:"message"`
}

// text returns event_msg's message when it is a plain string.
func (p codexPayload) text() string {
	var s string
	if err := json.Unmarshal(p.Message, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func (p codexPayload) effort() string {
	if e := session.EffortCandidate(p.Effort); e != "" {
		return e
	}
	var mode struct {
		Settings struct {
			ReasoningEffort string `json:"reasoning_effort"`
		} `json:"settings"`
	}
	if len(p.CollaborationMode) == 0 || json.Unmarshal(p.CollaborationMode, &mode) != nil {
		return ""
	}
	return session.EffortCandidate(mode.Settings.ReasoningEffort)
}

// recordSessionID returns an id a record names explicitly, if any.
func recordSessionID(rec codexRecord, p codexPayload) string {
	for _, id := range []string{rec.SessionID, rec.SessionIDSnake, p.SessionID, p.SessionIDSnake} {
		if id != "" {
			return id
		}
	}
	return ""
}

type CodexReader struct {
	cfg     Config
	tracker scan.Tracker
}

func NewCodexReader(cfg Config, tracker scan.Tracker) *CodexReader {
	return &CodexReader{cfg: cfg, tracker: tracker}
}

func (r *CodexReader) Source() session.Source { return session.Codex }

// codexBuilder accumulates one session id while a rollout streams by.
// Metadata may arrive after the records it describes.
type codexBuilder struct {
	id          string
	sawMeta     bool
	sawTurn     bool
	metaCwd     string
	turnCwd     string
	model       string
	effort      string
	metaStart   time.Time
	first, last time.Time
	messages    int
	firstPrompt string
}

func (b *codexBuilder) touch(ts time.Time) {
	if ts.IsZero() {
		return
	}
	if b.first.IsZero() || ts.Before(b.first) {
		b.first = ts
	}
	if ts.After(b.last) {
		b.last = ts
	}
}

// adopt folds records seen before this id was known into b.
func (b *codexBuilder) adopt(o *codexBuilder) {
	b.sawTurn = b.sawTurn || o.sawTurn
	if b.turnCwd == "" {
		b.turnCwd = o.turnCwd
	}
	if b.model == "" {
		b.model = o.model
	}
	if b.effort == "" {
		b.effort = o.effort
	}
	b.touch(o.first)
	b.touch(o.last)
	b.messages += o.messages
	if o.firstPrompt != "" {
		b.firstPrompt = o.firstPrompt
	}
}

func (b *codexBuilder) build(path string, info os.FileInfo) session.Session {
	s := session.Session{
		ID:              b.id,
		Source:          session.Codex,
		ProjectPath:     b.metaCwd,
		StartedAt:       b.metaStart,
		LastActiveAt:    b.last,
		Model:           b.model,
		ReasoningEffort: b.effort,
		TranscriptRef:   path,
		SizeBytes:       info.Size(),
		MessageCount:    b.messages,
		Title:           b.firstPrompt,
		Orphaned:        !b.sawMeta && b.sawTurn,
	}
	if s.ProjectPath == "" {
		s.ProjectPath = b.turnCwd
	}
	if s.StartedAt.IsZero() || (!b.first.IsZero() && b.first.Before(s.StartedAt)) {
		s.StartedAt = b.first
	}
	return s
}

func (r *CodexReader) Read() (*Result, error) {
	res := &Result{Source: session.Codex}

	history, hfp, warnings, herr := readHistory(r.cfg.History, r.tracker)
	res.History = history
	res.Warnings = append(res.Warnings, warnings...)
	if hfp != nil {
		res.Fingerprints = append(res.Fingerprints, *hfp)
	}
	if herr != nil {
		res.Warnings = append(res.Warnings, Warning{Path: r.cfg.History, Err: herr})
	}

	byID := make(map[string]*session.Session)
	mtimes := make(map[string]time.Time)
	files := scan.CodexFiles(r.cfg.Roots)
	opened := 0
	for _, path := range files {
		sessions, fp, mtime, warns, err := r.readRollout(path)
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
		for i := range sessions {
			s := sessions[i]
			old, seen := byID[s.ID]
			// the mtime follows the copy mergeCodex keeps
			if !seen || s.LastActiveAt.After(old.LastActiveAt) {
				mtimes[s.ID] = mtime
			}
			if seen {
				s = mergeCodex(*old, s)
			}
			byID[s.ID] = &s
		}
	}
	if herr != nil && opened == 0 && len(files) > 0 {
		return res, fmt.Errorf("codex: history and rollouts unreadable: %w", herr)
	}

	summaries := summarizeHistory(history)
	for id, h := range summaries {
		s, ok := byID[id]
		if !ok {
			// history-only: no rollout under any root
			s = &session.Session{ID: id, Source: session.Codex}
			byID[id] = s
		}
		applyHistory(s, h)
		if h.display != "" {
			s.Title = h.display
		}
	}

	for id, s := range byID {
		if s.Title == "" {
			s.Title = s.ProjectPath
		}
		finalize(s, mtimes[id])
		res.Sessions = append(res.Sessions, *s)
	}
	sort.Slice(res.Sessions, func(i, j int) bool { return res.Sessions[i].ID < res.Sessions[j].ID })
	scan.Sort(res.Fingerprints)
	return res, nil
}

// mergeCodex combines the same id seen in two rollouts (e.g. a live and an
// archived copy). The more recently active copy wins; session_meta seen in
// either clears the orphan flag.
func mergeCodex(a, b session.Session) session.Session {
	newer, older := a, b
	if b.LastActiveAt.After(a.LastActiveAt) {
		newer, older = b, a
	}
	newer.Orphaned = a.Orphaned && b.Orphaned
	if newer.Model == "" {
		newer.Model = older.Model
	}
	if newer.ReasoningEffort == "" {
		newer.ReasoningEffort = older.ReasoningEffort
	}
	if newer.ProjectPath == "" {
		newer.ProjectPath = older.ProjectPath
	}
	return newer
}

// RolloutID extracts the session uuid Codex embeds at the end of rollout
// file names (rollout-2025-01-02T10-00-00-<uuid>.jsonl).
func RolloutID(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	if len(stem) < 36 {
		return ""
	}
	candidate := stem[len(stem)-36:]
	if _, err := uuid.Parse(candidate); err != nil {
		return ""
	}
	return strings.ToLower(candidate)
}

func (r *CodexReader) readRollout(path string) ([]session.Session, scan.Fingerprint, time.Time, []Warning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, scan.Fingerprint{}, time.Time{}, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, scan.Fingerprint{}, time.Time{}, nil, err
	}
	fp, err := r.tracker.FromInfo(path, info)
	if err != nil {
		return nil, scan.Fingerprint{}, time.Time{}, nil, err
	}

	var (
		warnings []Warning
		builders = make(map[string]*codexBuilder)
		order    []string
		pending  *codexBuilder // records seen before any identity
		current  = RolloutID(path)
	)
	get := func(id string) *codexBuilder {
		if id == "" {
			if pending == nil {
				pending = &codexBuilder{}
			}
			return pending
		}
		b, ok := builders[id]
		if !ok {
			b = &codexBuilder{id: id}
			builders[id] = b
			order = append(order, id)
		}
		return b
	}

	err = eachLine(f, func(l line) bool {
		if l.TooLong {
			warnings = append(warnings, Warning{Path: path, Line: l.Num, Err: errLineTooLong})
			return true
		}
		var rec codexRecord
		if err := json.Unmarshal(l.Data, &rec); err != nil {
			if l.Complete {
				warnings = append(warnings, Warning{Path: path, Line: l.Num, Err: err})
			}
			return true
		}
		var p codexPayload
		if len(rec.Payload) > 0 {
			if err := json.Unmarshal(rec.Payload, &p); err != nil {
				warnings = append(warnings, Warning{Path: path, Line: l.Num, Err: fmt.Errorf("payload: %w", err)})
				return true
			}
		}
		ts := session.ParseTimestamp(rec.Timestamp)

		if rec.Type == "session_meta" {
			id := p.ID
			if id == "" {
				id = current
			}
			b := get(id)
			if id != "" && pending != nil && b != pending {
				b.adopt(pending)
				pending = nil
			}
			b.sawMeta = true
			if p.Cwd != "" {
				b.metaCwd = p.Cwd
			}
			if st := session.ParseTimestamp(p.Timestamp); !st.IsZero() {
				b.metaStart = st
			} else if !ts.IsZero() && b.metaStart.IsZero() {
				b.metaStart = ts
			}
			b.touch(ts)
			if id != "" {
				current = id
			}
			return true
		}

		id := recordSessionID(rec, p)
		if id == "" {
			id = current
		}
		b := get(id)
		b.touch(ts)

		switch rec.Type {
		case "turn_context":
			b.sawTurn = true
			if p.Cwd != "" {
				b.turnCwd = p.Cwd
			}
			if m := session.ModelCandidate(p.Model); m != "" {
				b.model = m
			}
			if e := p.effort(); e != "" {
				b.effort = e
			}
		case "response_item":
			if p.Type != "message" {
				return true
			}
			b.messages++
			if m := session.ModelCandidate(p.Model); m != "" {
				b.model = m
			}
			if p.Role == "user" && b.firstPrompt == "" {
				if text := extractClaudeContent(p.Content).Text; isCodexPrompt(text) {
					b.firstPrompt = text
				}
			}
		case "event_msg":
			if p.Type == "user_message" && b.firstPrompt == "" {
				if text := p.text(); isCodexPrompt(text) {
					b.firstPrompt = text
				}
			}
		}
		return true
	})
	if err != nil {
		warnings = append(warnings, Warning{Path: path, Err: err})
	}
	if pending != nil {
		warnings = append(warnings, Warning{Path: path, Err: errors.New("records without a session id, skipped")})
	}

	sessions := make([]session.Session, 0, len(order))
	for _, id := range order {
		sessions = append(sessions, builders[id].build(path, info))
	}
	return sessions, fp, info.ModTime(), warnings, nil
}

// isCodexPrompt rejects the context blocks Codex injects as user messages.
func isCodexPrompt(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, p := range []string{"<environment_context>", "<user_instructions>", "# AGENTS.md"} {
		if strings.HasPrefix(text, p) {
			return false
		}
	}
	return true
}
