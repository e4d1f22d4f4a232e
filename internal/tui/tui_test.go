package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/cs/internal/cache"
	"github.com/Zuo-Peng/cs/internal/index"
	"github.com/Zuo-Peng/cs/internal/session"
)

func testIndex(t *testing.T) *index.Index {
	t.Helper()
	dir := t.TempDir()
	transcript := func(name, text string) string {
		path := filepath.Join(dir, name+".jsonl")
		line := `{"type":"user","message":{"role":"user","content":"` + text + `"}}` + "\n"
		require.NoError(t, os.WriteFile(path, []byte(line), 0o644))
		return path
	}
	now := time.Now()
	return index.New(
		cache.Partition{Source: session.ClaudeCode, Sessions: []session.Session{
			{ID: "web-1", Source: session.ClaudeCode, ProjectPath: "/home/me/web", Title: "fix login", LastActiveAt: now, TranscriptRef: transcript("web-1", "fix login please")},
			{ID: "gone", Source: session.ClaudeCode, ProjectPath: "/home/me/web", Title: "deleted", LastActiveAt: now, TranscriptRef: filepath.Join(dir, "missing.jsonl")},
		}},
		cache.Partition{Source: session.Codex, Sessions: []session.Session{
			{ID: "cli-1", Source: session.Codex, ProjectPath: "/home/me/cli", Title: "add retries", Model: "gpt-5", LastActiveAt: now.Add(-time.Hour), TranscriptRef: transcript("cli-1", "add retries to the client")},
		}},
	)
}

func typeText(m model, text string) model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next.(model)
}

func TestPickerListsOnlyResumable(t *testing.T) {
	t.Parallel()

	m := newModel(testIndex(t), Options{})
	require.Len(t, m.all, 2)
	require.Len(t, m.items, 2)
	require.Equal(t, "web-1", m.items[0].sess.ID)
}

func TestPickerFilterAndSelect(t *testing.T) {
	t.Parallel()

	m := newModel(testIndex(t), Options{})
	m = typeText(m, "gpt")
	require.Len(t, m.items, 1)
	require.Equal(t, "cli-1", m.items[0].sess.ID)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m = next.(model)
	require.NotNil(t, m.selected)
	require.Equal(t, "cli-1", m.selected.Session.ID)
	require.Zero(t, m.selected.Line)
}

func TestPickerSourceScope(t *testing.T) {
	t.Parallel()

	m := newModel(testIndex(t), Options{Sources: []session.Source{session.Codex}})
	require.Len(t, m.items, 1)
	require.Equal(t, session.Codex, m.items[0].sess.Source)

	m = newModel(testIndex(t), Options{Project: "WEB"})
	require.Len(t, m.items, 1)
}

func TestPickerSearchMode(t *testing.T) {
	t.Parallel()

	m := newModel(testIndex(t), Options{})
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(model)
	require.Equal(t, modeSearch, m.mode)
	require.Empty(t, m.items)

	m = typeText(m, "retr")
	msg := m.doSearch("retr")()
	next, _ = m.Update(msg)
	m = next.(model)
	require.Len(t, m.items, 1)
	require.Equal(t, "cli-1", m.items[0].sess.ID)
	require.Equal(t, 1, m.items[0].line)
	require.Equal(t, "add retries to the client", m.items[0].excerpt)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, 1, next.(model).selected.Line)

	// results for an older query are dropped
	stale := searchResultMsg{query: "other"}
	next, _ = m.Update(stale)
	require.Len(t, next.(model).items, 1)
}

func TestPickerSearchInvalidPattern(t *testing.T) {
	t.Parallel()

	m := newModel(testIndex(t), Options{Search: true, Query: "("})
	msg := m.doSearch("(")().(searchResultMsg)
	require.Error(t, msg.err)
	next, _ := m.Update(msg)
	require.Error(t, next.(model).searchErr)
}

func TestMatchFilter(t *testing.T) {
	t.Parallel()

	s := session.Session{ID: "abc", Source: session.Codex, Title: "Fix Login", ProjectPath: "/srv/app", Model: "o3"}
	require.True(t, matchFilter(s, ""))
	require.True(t, matchFilter(s, "login app"))
	require.True(t, matchFilter(s, "CODEX o3"))
	require.False(t, matchFilter(s, "login web"))
}

func TestFormatItem(t *testing.T) {
	t.Parallel()

	now := time.Now()
	it := item{sess: session.Session{ID: "x", Source: session.ClaudeCode, Title: "refactor   the\nparser", ProjectPath: "/home/me/p", LastActiveAt: now}}
	lines := formatItem(it, 60, true, now, "/home/me")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "refactor the parser")
	require.Contains(t, lines[1], "~/p")

	it.excerpt = "matched text"
	require.Contains(t, formatItem(it, 60, false, now, "")[1], "matched text")
}

func TestFindHit(t *testing.T) {
	t.Parallel()

	content := strings.Join([]string{"header", "USER > line 1", ">> ASST > line 7 <<", "text"}, "\n")
	require.Equal(t, 2, findHit(content, 7))
	require.Equal(t, -1, findHit(content, 9))
	require.Equal(t, -1, findHit(content, 0))
}
