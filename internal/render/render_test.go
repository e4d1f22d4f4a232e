package render

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/cs/internal/search"
	"github.com/Zuo-Peng/cs/internal/session"
	"github.com/Zuo-Peng/cs/internal/stats"
)

var now = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func TestWrapLineSkipsEscapes(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"abcd", "ef"}, wrapLine("abcdef", 4))
	require.Equal(t, []string{"\033[1mab\033[0mcd", "ef"}, wrapLine("\033[1mab\033[0mcdef", 4))
	require.Equal(t, []string{"日本", "語"}, wrapLine("日本語", 4))
	require.Equal(t, []string{""}, wrapLine("", 4))
	require.Equal(t, []string{"abc"}, wrapLine("abc", 0))
}

func TestAgeAndShortPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "-", Age(time.Time{}, now))
	require.Equal(t, "just now", Age(now.Add(-10*time.Second), now))
	require.Equal(t, "3 hours ago", Age(now.Add(-3*time.Hour), now))
	require.Equal(t, "~/src/app", ShortPath("/home/me/src/app", "/home/me"))
	require.Equal(t, "/home/meow", ShortPath("/home/meow", "/home/me"))
}

func TestListPlain(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := List(&buf, []session.Session{
		{ID: "0123456789abcdef", Source: session.ClaudeCode, LastActiveAt: now.Add(-2 * time.Hour), Model: "claude-sonnet-4-5", ProjectPath: "/home/me/app", Title: "fix the login flow"},
		{ID: "019a", Source: session.Codex, LastActiveAt: now.Add(-48 * time.Hour), Title: "add retries"},
	}, ListOptions{Now: now, Home: "/home/me"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "cc    01234567 2 hours ago"))
	require.Contains(t, lines[0], "~/app")
	require.True(t, strings.HasSuffix(lines[0], "fix the login flow"))
	require.True(t, strings.HasPrefix(lines[1], "codex 019a"))
	require.Contains(t, lines[1], " - ")
	require.NotContains(t, buf.String(), "\033[")
}

func TestListColorTruncatesTitle(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := List(&buf, []session.Session{{ID: "abc", Source: session.Codex, LastActiveAt: now, Title: strings.Repeat("x", 300)}},
		ListOptions{Color: true, Width: 100, Now: now})
	require.NoError(t, err)
	require.Contains(t, buf.String(), colorCyan)
	require.Contains(t, buf.String(), "…")
	require.NotContains(t, buf.String(), strings.Repeat("x", 100))
}

func TestSearchResults(t *testing.T) {
	t.Parallel()

	re := regexp.MustCompile("(?i)deploy")
	rep := &search.Report{
		Results: []search.Result{{
			Session: session.Session{ID: "abcdef123456", Source: session.Codex, ProjectPath: "/srv/app", LastActiveAt: now},
			Role:    "user",
			Line:    12,
			Text:    "please Deploy to staging",
		}},
		Skipped: 2,
	}

	var buf bytes.Buffer
	require.NoError(t, SearchResults(&buf, rep, re, SearchOptions{Now: now}))
	out := buf.String()
	require.Contains(t, out, "codex abcdef12 just now /srv/app")
	require.Contains(t, out, "user:12 please Deploy to staging")
	require.Contains(t, out, "(2 transcripts could not be read)")

	buf.Reset()
	require.NoError(t, SearchResults(&buf, rep, re, SearchOptions{Now: now, Color: true}))
	require.Contains(t, buf.String(), colorBoldRed+"Deploy"+colorReset)
}

func TestStatsSections(t *testing.T) {
	t.Parallel()

	rep := stats.Report{
		Computed: now,
		Sources: []stats.SourceStats{
			{
				Source: session.ClaudeCode, Sessions: 1234, Resumable: 1000, HistoryEntries: 56789,
				FirstSession: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
				TopModels:    []stats.ModelCount{{Model: "claude-opus-4", Count: 1200}},
				Daily:        []stats.DayCount{{Day: now.AddDate(0, 0, -1), Count: 4}, {Day: now, Count: 2}},
			},
			{Source: session.Codex, Daily: []stats.DayCount{{Day: now.AddDate(0, 0, -1)}, {Day: now}}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, Stats(&buf, rep, StatsOptions{}))
	out := buf.String()

	require.Contains(t, out, "CLAUDE CODE\n")
	require.Contains(t, out, "Sessions:        1,234 (1,000 resumable)")
	require.Contains(t, out, "History entries: 56,789")
	require.Contains(t, out, "First session:   2024-01-02")
	require.Contains(t, out, "claude-opus-4")
	require.Contains(t, out, "2025-08-01      2 "+strings.Repeat("█", 12))
	require.Contains(t, out, "CODEX\n")
	require.Contains(t, out, "Top models: -")
	require.NotContains(t, out, "Total")
}

func TestConversation(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "s.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		`{"type":"user","message":{"role":"user","content":"first question"}}`,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"thinking","thinking":"hmm"},{"type":"text","text":"first answer"}]}}`,
		`{"type":"user","message":{"role":"user","content":"second question"}}`,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","name":"Bash","input":{"command":"go   test ./..."}}]}}`,
	}, "\n")+"\n"), 0o644))
	s := session.Session{ID: "abc", Source: session.ClaudeCode, ProjectPath: "/p", TranscriptRef: path}

	var buf bytes.Buffer
	require.NoError(t, Conversation(&buf, s, ConversationOptions{}))
	out := buf.String()
	require.Contains(t, out, "--- abc [claude code] /p ---")
	require.Contains(t, out, "USER > line 1")
	require.Contains(t, out, "  first answer")
	require.NotContains(t, out, "hmm")
	require.NotContains(t, out, "[tool]")

	buf.Reset()
	require.NoError(t, Conversation(&buf, s, ConversationOptions{Thinking: true, Tools: true, Tail: 2, HitLine: 3}))
	out = buf.String()
	require.Contains(t, out, "... (2 messages before) ...")
	require.NotContains(t, out, "first question")
	require.Contains(t, out, ">> USER > line 3 <<")
	require.Contains(t, out, "[tool] Bash go test ./...")

	missing := s
	missing.TranscriptRef = filepath.Join(t.TempDir(), "gone.jsonl")
	require.Error(t, Conversation(&buf, missing, ConversationOptions{}))
}
