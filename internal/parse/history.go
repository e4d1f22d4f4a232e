package parse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Zuo-Peng/cs/internal/scan"
	"github.com/Zuo-Peng/cs/internal/session"
)

// historyRecord covers both history formats:
//
//	claude: {"display":"...","timestamp":1759000000000,"project":"/p","sessionId":"..."}
//	codex:  {"session_id":"...","ts":1759000000,"text":"..."}
type historyRecord struct {
	SessionID      string          `json:"sessionId"`
	SessionIDSnake string          `json:"session_id"`
	Timestamp      json.RawMessage `json:"timestamp"`
	TS             json.RawMessage `json:"ts"`
	Display        string          `json:"display"`
	Text           string          `json:"text"`
	Project        string          `json:"project"`
	Cwd            string          `json:"cwd"`
	Model          string          `json:"model"`
}

// readHistory parses a history file. A missing file is not an error and
// yields a nil fingerprint.
func readHistory(path string, tracker scan.Tracker) ([]session.HistoryEntry, *scan.Fingerprint, []Warning, error) {
	if path == "" {
		return nil, nil, nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil, nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("stat history: %w", err)
	}
	fp, err := tracker.FromInfo(path, info)
	if err != nil {
		return nil, nil, nil, err
	}

	var (
		entries  []session.HistoryEntry
		warnings []Warning
	)
	err = eachLine(f, func(l line) bool {
		if l.TooLong {
			warnings = append(warnings, Warning{Path: path, Line: l.Num, Err: errLineTooLong})
			return true
		}
		var rec historyRecord
		if err := json.Unmarshal(l.Data, &rec); err != nil {
			if l.Complete {
				warnings = append(warnings, Warning{Path: path, Line: l.Num, Err: err})
			}
			return true
		}
		id := rec.SessionID
		if id == "" {
			id = rec.SessionIDSnake
		}
		if id == "" {
			return true
		}
		ts := flexibleTime(rec.Timestamp)
		if ts.IsZero() {
			ts = flexibleTime(rec.TS)
		}
		display := rec.Display
		if display == "" {
			display = rec.Text
		}
		cwd := rec.Project
		if cwd == "" {
			cwd = rec.Cwd
		}
		entries = append(entries, session.HistoryEntry{
			SessionID: id,
			Timestamp: ts,
			Model:     session.ModelCandidate(rec.Model),
			Cwd:       cwd,
			Display:   display,
		})
		return true
	})
	if err != nil {
		// keep what was read before the failure
		warnings = append(warnings, Warning{Path: path, Err: err})
	}
	return entries, &fp, warnings, nil
}

// flexibleTime accepts epoch seconds, epoch milliseconds or an RFC 3339 string.
func flexibleTime(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}
		}
		return session.ParseTimestamp(s)
	}
	n, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}
	}
	return session.FromEpoch(int64(n))
}

// historySummary folds every history entry for one session id.
type historySummary struct {
	count    int
	earliest time.Time
	latest   time.Time
	display  string // from the latest entry with one
	cwd      string // from the latest entry with one
	model    string // from the latest entry with one
	modelAt  time.Time
}

func summarizeHistory(entries []session.HistoryEntry) map[string]*historySummary {
	out := make(map[string]*historySummary)
	for _, e := range entries {
		h := out[e.SessionID]
		if h == nil {
			h = &historySummary{earliest: e.Timestamp, latest: e.Timestamp}
			out[e.SessionID] = h
		}
		h.count++
		// later lines win ties so append order stays authoritative
		newest := !e.Timestamp.Before(h.latest)
		if newest {
			h.latest = e.Timestamp
		}
		if !e.Timestamp.IsZero() && (h.earliest.IsZero() || e.Timestamp.Before(h.earliest)) {
			h.earliest = e.Timestamp
		}
		if e.Display != "" && (newest || h.display == "") {
			h.display = e.Display
		}
		if e.Cwd != "" && (newest || h.cwd == "") {
			h.cwd = e.Cwd
		}
		if e.Model != "" && (h.model == "" || !e.Timestamp.Before(h.modelAt)) {
			h.model = e.Model
			h.modelAt = e.Timestamp
		}
	}
	return out
}

// applyHistory fills what a session's own metadata lacks. Own metadata
// always wins; history only supplies absent fields and widens the
// activity window.
func applyHistory(s *session.Session, h *historySummary) {
	if h == nil {
		return
	}
	if s.Model == "" {
		s.Model = h.model
	}
	if s.ProjectPath == "" {
		s.ProjectPath = h.cwd
	}
	if !h.earliest.IsZero() && (s.StartedAt.IsZero() || h.earliest.Before(s.StartedAt)) {
		s.StartedAt = h.earliest
	}
	if h.latest.After(s.LastActiveAt) {
		s.LastActiveAt = h.latest
	}
}

// finalize enforces LastActiveAt >= StartedAt and falls back to the
// transcript mtime when no record carried a timestamp.
func finalize(s *session.Session, mtime time.Time) {
	if s.LastActiveAt.IsZero() {
		s.LastActiveAt = mtime
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = s.LastActiveAt
	}
	if s.LastActiveAt.Before(s.StartedAt) {
		s.LastActiveAt = s.StartedAt
	}
	s.StartedAt = session.NormalizeTime(s.StartedAt)
	s.LastActiveAt = session.NormalizeTime(s.LastActiveAt)
	s.Title = session.SanitizeTitle(s.Title)
}
