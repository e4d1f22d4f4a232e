package parse

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/cs/internal/scan"
	"github.com/Zuo-Peng/cs/internal/session"
)

const claudeID = "0b6c3a52-5f0e-4c8e-9d4c-7f1e2a3b4c5d"

func claudeUser(ts, text string) obj {
	return obj{
		"type": "user", "sessionId": claudeID, "cwd": "/home/me/app", "timestamp": ts,
		"message": obj{"role": "user", "content": text},
	}
}

func claudeAssistant(ts, model, text string) obj {
	return obj{
		"type": "assistant", "sessionId": claudeID, "timestamp": ts,
		"message": obj{
			"role": "assistant", "model": model,
			"content": []obj{{"type": "text", "text": text}, {"type": "tool_use", "name": "Bash", "input": obj{"command": "ls"}}},
		},
	}
}

func claudeFixture(t *testing.T) (Config, string) {
	t.Helper()
	home := t.TempDir()
	root := filepath.Join(home, ".claude", "projects")
	path := filepath.Join(root, "-home-me-app", claudeID+".jsonl")
	writeFile(t, path, jsonl(t,
		obj{"type": "file-history-snapshot", "messageId": "x", "snapshot": obj{}},
		claudeUser("2025-03-01T10:00:00Z", "refactor the parser"),
		obj{"type": "progress", "data": obj{"step": 1}},
		claudeAssistant("2025-03-01T10:00:05Z", "claude-sonnet-4-5", "done"),
		obj{"type": "queue-operation", "operation": "enqueue"},
		claudeAssistant("2025-03-01T10:05:00Z", "<synthetic>", "interrupted"),
	))
	return Config{
		History: filepath.Join(home, ".claude", "history.jsonl"),
		Roots:   []string{root},
	}, path
}

func TestClaudeReaderBasicSession(t *testing.T) {
	t.Parallel()

	cfg, path := claudeFixture(t)
	res, err := NewClaudeReader(cfg, scan.Tracker{}).Read()
	require.NoError(t, err)
	require.Empty(t, res.Warnings)
	require.Len(t, res.Sessions, 1)
	require.Len(t, res.Fingerprints, 1, "missing history is not fingerprinted")

	s := res.Sessions[0]
	require.Equal(t, claudeID, s.ID)
	require.Equal(t, session.ClaudeCode, s.Source)
	require.Equal(t, "/home/me/app", s.ProjectPath)
	require.Equal(t, path, s.TranscriptRef)
	require.Equal(t, "claude-sonnet-4-5", s.Model, "<synthetic> never overrides a real model")
	require.Equal(t, "refactor the parser", s.Title)
	require.Equal(t, 3, s.MessageCount)
	require.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), s.StartedAt)
	require.Equal(t, time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC), s.LastActiveAt)
}

func TestClaudeReaderOwnModelBeatsHistory(t *testing.T) {
	t.Parallel()

	cfg, _ := claudeFixture(t)
	writeFile(t, cfg.History, jsonl(t,
		obj{"sessionId": claudeID, "timestamp": 1740823200000, "display": "from history", "project": "/home/me/app", "model": "claude-opus-4-1"},
	))

	res, err := NewClaudeReader(cfg, scan.Tracker{}).Read()
	require.NoError(t, err)
	s := findSession(t, res, claudeID)
	require.Equal(t, "claude-sonnet-4-5", s.Model)
	require.Equal(t, "from history", s.Title)
	require.Len(t, res.History, 1)
}

func TestClaudeReaderHistoryModelFallbackUsesLatestEntry(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	root := filepath.Join(home, "projects")
	writeFile(t, filepath.Join(root, "-p", claudeID+".jsonl"), jsonl(t,
		claudeUser("2025-03-01T10:00:00Z", "hi"),
	))
	history := filepath.Join(home, "history.jsonl")
	writeFile(t, history, jsonl(t,
		obj{"sessionId": claudeID, "timestamp": 1740823300000, "display": "newest", "model": "claude-opus-4-1"},
		obj{"sessionId": claudeID, "timestamp": 1740823200000, "display": "older", "model": "claude-haiku-4-5"},
		obj{"sessionId": claudeID, "timestamp": 1740823400000, "display": "latest without model"},
		obj{"display": "entry from before session ids", "timestamp": 1740823400000},
	))

	res, err := NewClaudeReader(Config{History: history, Roots: []string{root}}, scan.Tracker{}).Read()
	require.NoError(t, err)
	s := findSession(t, res, claudeID)
	require.Equal(t, "claude-opus-4-1", s.Model)
	require.Equal(t, "latest without model", s.Title)
	require.Equal(t, time.UnixMilli(1740823400000).UTC(), s.LastActiveAt)
	require.Len(t, res.History, 3)
	require.Len(t, res.Fingerprints, 2)
}

func TestClaudeReaderHistoryOnlySession(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	root := filepath.Join(home, "projects")
	history := filepath.Join(home, "history.jsonl")
	writeFile(t, history, jsonl(t,
		obj{"sessionId": "gone", "timestamp": 1740823200000, "display": "deleted transcript", "project": "/home/me/app"},
	))

	res, err := NewClaudeReader(Config{History: history, Roots: []string{root}}, scan.Tracker{}).Read()
	require.NoError(t, err)
	s := findSession(t, res, "gone")
	require.Equal(t, filepath.Join(root, "-home-me-app", "gone.jsonl"), s.TranscriptRef)
	require.Empty(t, s.Model)
	require.Equal(t, "deleted transcript", s.Title)
}

func TestClaudeReaderCorruptLineTolerance(t *testing.T) {
	t.Parallel()

	var clean, dirty strings.Builder
	for i := 0; i < 10_000; i++ {
		ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Second).Format(time.RFC3339)
		rec := jsonl(t, claudeAssistant(ts, "claude-sonnet-4-5", fmt.Sprintf("line %d", i)))
		clean.WriteString(rec)
		dirty.WriteString(rec)
		if i == 5000 {
			dirty.WriteString("{\"type\":\"assistant\",\"message\":\n")
		}
	}

	read := func(content string) *Result {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "-p", claudeID+".jsonl"), content)
		res, err := NewClaudeReader(Config{Roots: []string{root}}, scan.Tracker{}).Read()
		require.NoError(t, err)
		return res
	}
	a, b := read(clean.String()), read(dirty.String())
	require.Empty(t, a.Warnings)
	require.Len(t, b.Warnings, 1)
	require.Equal(t, 5002, b.Warnings[0].Line)

	sa, sb := a.Sessions[0], b.Sessions[0]
	sa.TranscriptRef, sb.TranscriptRef = "", ""
	sa.SizeBytes, sb.SizeBytes = 0, 0
	require.Equal(t, sa, sb)
}

func TestClaudeReaderIgnoresPartialTrailingLine(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "-p", claudeID+".jsonl"),
		jsonl(t, claudeUser("2025-03-01T10:00:00Z", "hi"))+`{"type":"assistant","mess`)
	res, err := NewClaudeReader(Config{Roots: []string{root}}, scan.Tracker{}).Read()
	require.NoError(t, err)
	require.Empty(t, res.Warnings)
	require.Equal(t, 1, res.Sessions[0].MessageCount)
}

func TestClaudeReaderMissingRoots(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	res, err := NewClaudeReader(Config{
		History: filepath.Join(dir, "nope.jsonl"),
		Roots:   []string{filepath.Join(dir, "nope")},
	}, scan.Tracker{}).Read()
	require.NoError(t, err)
	require.Empty(t, res.Sessions)
	require.Empty(t, res.Fingerprints)
}

func TestClaudeReaderEmbeddedIDFallback(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, "-p", ".jsonl")
	writeFile(t, path, jsonl(t, claudeUser("2025-03-01T10:00:00Z", "hi")))
	res, err := NewClaudeReader(Config{Roots: []string{root}}, scan.Tracker{}).Read()
	require.NoError(t, err)
	require.Equal(t, claudeID, res.Sessions[0].ID)
}

func TestReadMessagesClaude(t *testing.T) {
	t.Parallel()

	_, path := claudeFixture(t)
	var msgs []Message
	err := ReadMessages(session.Session{Source: session.ClaudeCode, TranscriptRef: path}, func(m Message) bool {
		msgs = append(msgs, m)
		return true
	})
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "user", msgs[0].Role)
	require.Equal(t, "refactor the parser", msgs[0].Text)
	require.Equal(t, "done", msgs[1].Text)
	require.Len(t, msgs[1].Tools, 1)
	require.Equal(t, "Bash", msgs[1].Tools[0].Name)

	require.ErrorIs(t, ReadMessages(session.Session{}, func(Message) bool { return true }), ErrNoTranscript)
	err = ReadMessages(session.Session{TranscriptRef: path + ".missing"}, func(Message) bool { return true })
	require.ErrorIs(t, err, os.ErrNotExist)
}
