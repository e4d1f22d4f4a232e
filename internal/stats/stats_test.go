package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/cs/internal/cache"
	"github.com/Zuo-Peng/cs/internal/index"
	"github.com/Zuo-Peng/cs/internal/session"
)

var now = time.Date(2025, 7, 15, 18, 30, 0, 0, time.UTC)

func sess(src session.Source, id, model string, active time.Time) session.Session {
	return session.Session{ID: id, Source: src, Model: model, StartedAt: active.Add(-time.Hour), LastActiveAt: active}
}

func TestComputeKeepsSourcesSeparate(t *testing.T) {
	t.Parallel()

	idx := index.New(
		cache.Partition{Source: session.ClaudeCode, HistoryEntries: 10, Sessions: []session.Session{
			sess(session.ClaudeCode, "a", "claude-opus-4", now.Add(-time.Hour)),
			sess(session.ClaudeCode, "b", "claude-opus-4", now.Add(-26*time.Hour)),
			sess(session.ClaudeCode, "c", "", now.Add(-30*24*time.Hour)),
		}},
		cache.Partition{Source: session.Codex, HistoryEntries: 3, Sessions: []session.Session{
			sess(session.Codex, "x", "gpt-5", now.Add(-2*time.Hour)),
		}},
	)

	rep := Compute(idx, Options{Now: now, Days: 7})
	require.Len(t, rep.Sources, 2)

	cc, ok := rep.For(session.ClaudeCode)
	require.True(t, ok)
	require.Equal(t, 3, cc.Sessions)
	require.Equal(t, 10, cc.HistoryEntries)
	require.Equal(t, []ModelCount{{Model: "claude-opus-4", Count: 2, LastUsed: now.Add(-time.Hour)}}, cc.TopModels)
	require.Equal(t, now.Add(-30*24*time.Hour-time.Hour), cc.FirstSession)

	cx, _ := rep.For(session.Codex)
	require.Equal(t, 1, cx.Sessions)
	require.Equal(t, 3, cx.HistoryEntries)
	require.Len(t, cx.TopModels, 1)
	require.Equal(t, "gpt-5", cx.TopModels[0].Model)

	var ccDaily, cxDaily int
	for i := range cc.Daily {
		ccDaily += cc.Daily[i].Count
		cxDaily += cx.Daily[i].Count
	}
	require.Equal(t, 2, ccDaily, "the 30 day old session is outside the window")
	require.Equal(t, 1, cxDaily)
	require.Equal(t, 1, cx.Hourly[16])
	require.Zero(t, cx.Hourly[17])
	require.Equal(t, 1, cc.Hourly[17])
}

func TestDailyWindowIsZeroFilled(t *testing.T) {
	t.Parallel()

	idx := index.New(cache.Partition{Source: session.Codex, Sessions: []session.Session{
		sess(session.Codex, "today", "", now),
		sess(session.Codex, "edge", "", time.Date(2025, 7, 9, 0, 0, 1, 0, time.UTC)),
		sess(session.Codex, "before", "", time.Date(2025, 7, 8, 23, 59, 59, 0, time.UTC)),
	}})
	rep := Compute(idx, Options{Now: now, Days: 7})
	cx, _ := rep.For(session.Codex)

	require.Len(t, cx.Daily, 7)
	require.Equal(t, time.Date(2025, 7, 9, 0, 0, 0, 0, time.UTC), cx.Daily[0].Day)
	require.Equal(t, time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC), cx.Daily[6].Day)
	require.Equal(t, 1, cx.Daily[0].Count)
	require.Equal(t, 1, cx.Daily[6].Count)
	for _, d := range cx.Daily[1:6] {
		require.Zero(t, d.Count)
	}

	cc, _ := rep.For(session.ClaudeCode)
	require.Zero(t, cc.Sessions)
	require.Len(t, cc.Daily, 7)
	require.Empty(t, cc.TopModels)
	require.True(t, cc.FirstSession.IsZero())
}

func TestDailyUsesLocalCalendar(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*3600)
	localNow := time.Date(2025, 7, 15, 10, 0, 0, 0, tokyo)
	// 2025-07-14T20:00Z is already the 15th in Tokyo
	idx := index.New(cache.Partition{Source: session.ClaudeCode, Sessions: []session.Session{
		sess(session.ClaudeCode, "a", "", time.Date(2025, 7, 14, 20, 0, 0, 0, time.UTC)),
	}})
	cc, _ := Compute(idx, Options{Now: localNow, Days: 2}).For(session.ClaudeCode)
	require.Equal(t, 0, cc.Daily[0].Count)
	require.Equal(t, 1, cc.Daily[1].Count)
	require.Equal(t, 1, cc.Hourly[5])
}

func TestTopModelsTieBreak(t *testing.T) {
	t.Parallel()

	idx := index.New(cache.Partition{Source: session.Codex, Sessions: []session.Session{
		sess(session.Codex, "1", "o3", now.Add(-5*time.Hour)),
		sess(session.Codex, "2", "o3", now.Add(-6*time.Hour)),
		sess(session.Codex, "3", "gpt-5", now.Add(-time.Hour)),
		sess(session.Codex, "4", "gpt-5", now.Add(-7*time.Hour)),
		sess(session.Codex, "5", "gpt-4.1", now.Add(-2*time.Hour)),
		sess(session.Codex, "6", "b-model", now.Add(-3*time.Hour)),
		sess(session.Codex, "7", "a-model", now.Add(-3*time.Hour)),
	}})
	cx, _ := Compute(idx, Options{Now: now, TopModels: 4}).For(session.Codex)

	var names []string
	for _, m := range cx.TopModels {
		names = append(names, m.Model)
	}
	require.Equal(t, []string{"gpt-5", "o3", "gpt-4.1", "a-model"}, names)
	require.Len(t, cx.Daily, DefaultDays)
}

func TestResumableCount(t *testing.T) {
	t.Parallel()

	idx := index.New(cache.Partition{Source: session.ClaudeCode, Sessions: []session.Session{
		sess(session.ClaudeCode, "a", "", now),
		sess(session.ClaudeCode, "b", "", now),
	}})
	cc, _ := Compute(idx, Options{Now: now, Resumable: func(s session.Session) bool { return s.ID == "a" }}).For(session.ClaudeCode)
	require.Equal(t, 2, cc.Sessions)
	require.Equal(t, 1, cc.Resumable)
}
