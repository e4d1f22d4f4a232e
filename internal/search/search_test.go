package search

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/cs/internal/cache"
	"github.com/Zuo-Peng/cs/internal/index"
	"github.com/Zuo-Peng/cs/internal/session"
)

var base = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func claudeTranscript(t *testing.T, dir, id string, texts ...string) session.Session {
	t.Helper()
	path := filepath.Join(dir, id+".jsonl")
	f, err := os.Create(path)
	require.NoError(t, err)
	for _, text := range texts {
		_, err := fmt.Fprintf(f, `{"type":"user","sessionId":%q,"message":{"role":"user","content":%q}}`+"\n", id, text)
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())
	return session.Session{ID: id, Source: session.ClaudeCode, TranscriptRef: path}
}

func codexTranscript(t *testing.T, dir, id string, text string) session.Session {
	t.Helper()
	path := filepath.Join(dir, "rollout-"+id+".jsonl")
	line := fmt.Sprintf(`{"type":"response_item","payload":{"type":"message","role":"assistant","content":[{"type":"output_text","text":%q}]}}`, text)
	require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0o644))
	return session.Session{ID: id, Source: session.Codex, TranscriptRef: path}
}

func at(s session.Session, ago time.Duration) session.Session {
	s.LastActiveAt = base.Add(-ago)
	s.StartedAt = s.LastActiveAt
	return s
}

func TestSearchFirstMatchingLinePerSession(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := at(claudeTranscript(t, dir, "a", "nothing here", "  first DEPLOY step  \nsecond deploy step", "deploy again"), 0)
	b := at(claudeTranscript(t, dir, "b", "unrelated"), time.Hour)
	c := at(codexTranscript(t, dir, "c", "we should Deploy on friday"), 2*time.Hour)

	idx := index.New(
		cache.Partition{Source: session.ClaudeCode, Sessions: []session.Session{a, b}},
		cache.Partition{Source: session.Codex, Sessions: []session.Session{c}},
	)
	rep, err := Search(idx, Options{Pattern: "deploy"})
	require.NoError(t, err)
	require.Len(t, rep.Results, 2)
	require.Equal(t, 3, rep.Scanned)

	require.Equal(t, "a", rep.Results[0].Session.ID)
	require.Equal(t, "first DEPLOY step", rep.Results[0].Text)
	require.Equal(t, 2, rep.Results[0].Line)
	require.Equal(t, "c", rep.Results[1].Session.ID)
	require.Equal(t, "assistant", rep.Results[1].Role)

	rep, err = Search(idx, Options{Pattern: "deploy", Sources: []session.Source{session.Codex}})
	require.NoError(t, err)
	require.Len(t, rep.Results, 1)
	require.Equal(t, session.Codex, rep.Results[0].Session.Source)
}

func TestSearchStopsAtMaxResults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var sessions []session.Session
	for i := range 20 {
		s := at(claudeTranscript(t, dir, fmt.Sprintf("s%02d", i), "match me"), time.Duration(i)*time.Minute)
		if i >= 5 {
			// never opened when the search stops early
			require.NoError(t, os.Remove(s.TranscriptRef))
		}
		sessions = append(sessions, s)
	}
	idx := index.New(cache.Partition{Source: session.ClaudeCode, Sessions: sessions})

	rep, err := Search(idx, Options{Pattern: "match", MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, rep.Results, 5)
	require.Equal(t, 5, rep.Scanned)
	require.Zero(t, rep.Skipped)
	require.Equal(t, "s00", rep.Results[0].Session.ID)
	require.Equal(t, "s04", rep.Results[4].Session.ID)
}

func TestSearchSkipsUnopenableTranscripts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	gone := at(session.Session{ID: "gone", Source: session.ClaudeCode, TranscriptRef: filepath.Join(dir, "gone.jsonl")}, 0)
	noRef := at(session.Session{ID: "noref", Source: session.Codex}, 0)
	ok := at(claudeTranscript(t, dir, "ok", "needle"), time.Hour)

	idx := index.New(
		cache.Partition{Source: session.ClaudeCode, Sessions: []session.Session{gone, ok}},
		cache.Partition{Source: session.Codex, Sessions: []session.Session{noRef}},
	)
	rep, err := Search(idx, Options{Pattern: "needle"})
	require.NoError(t, err)
	require.Equal(t, 1, rep.Skipped)
	require.Len(t, rep.Results, 1)
	require.Equal(t, "ok", rep.Results[0].Session.ID)
}

func TestSearchProjectFilter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := at(claudeTranscript(t, dir, "a", "needle"), 0)
	a.ProjectPath = "/home/me/Web-App"
	b := at(claudeTranscript(t, dir, "b", "needle"), time.Hour)
	b.ProjectPath = "/home/me/cli"

	idx := index.New(cache.Partition{Source: session.ClaudeCode, Sessions: []session.Session{a, b}})
	rep, err := Search(idx, Options{Pattern: "needle", Project: "web-app"})
	require.NoError(t, err)
	require.Len(t, rep.Results, 1)
	require.Equal(t, "a", rep.Results[0].Session.ID)
}

func TestSearchInvalidPattern(t *testing.T) {
	t.Parallel()

	idx := index.New()
	_, err := Search(idx, Options{Pattern: "foo("})
	require.ErrorIs(t, err, ErrInvalidPattern)
	var perr *PatternError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "foo(", perr.Pattern)

}

func TestCompileWhitespacePattern(t *testing.T) {
	t.Parallel()

	re, err := Compile(" ")
	require.NoError(t, err)
	require.True(t, re.MatchString("fix the bug"))
	require.False(t, re.MatchString("fix"))

	re, err = Compile("")
	require.NoError(t, err)
	require.True(t, re.MatchString("anything"))
}

func TestSnippet(t *testing.T) {
	t.Parallel()

	re, err := Compile("needle")
	require.NoError(t, err)
	require.Equal(t, "short needle", Snippet(re, "short needle", 40))

	long := "aaaaaaaaaaaaaaaaaaaa needle bbbbbbbbbbbbbbbbbbbb"
	got := Snippet(re, long, 16)
	require.Contains(t, got, "needle")
	require.True(t, len(got) < len(long))
	require.Equal(t, "...", got[:3])
}
