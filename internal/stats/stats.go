// Package stats aggregates usage numbers per source. Numbers from
// different sources are never combined.
package stats

import (
	"sort"
	"time"

	"github.com/Zuo-Peng/cs/internal/session"
)

const (
	DefaultDays      = 14
	DefaultTopModels = 8
)

// Catalog is the part of the index stats needs.
type Catalog interface {
	All(src session.Source) []session.Session
	HistoryEntries(src session.Source) int
}

type Options struct {
	// Now anchors the daily window; zero means time.Now(). Its location
	// decides calendar days and hours.
	Now       time.Time
	Days      int
	TopModels int
	// Resumable, when set, is used to count resumable sessions.
	Resumable func(session.Session) bool
}

type ModelCount struct {
	Model    string
	Count    int
	LastUsed time.Time
}

type DayCount struct {
	Day   time.Time // local midnight
	Count int
}

type SourceStats struct {
	Source         session.Source
	Sessions       int
	Resumable      int
	HistoryEntries int
	FirstSession   time.Time
	LastSession    time.Time
	TopModels      []ModelCount
	Daily          []DayCount
	Hourly         [24]int
}

type Report struct {
	Computed time.Time
	Sources  []SourceStats
}

func (r Report) For(src session.Source) (SourceStats, bool) {
	for _, s := range r.Sources {
		if s.Source == src {
			return s, true
		}
	}
	return SourceStats{}, false
}

// Compute returns one SourceStats per known source, in display order.
func Compute(cat Catalog, opts Options) Report {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	days := opts.Days
	if days <= 0 {
		days = DefaultDays
	}
	top := opts.TopModels
	if top <= 0 {
		top = DefaultTopModels
	}

	rep := Report{Computed: now}
	for _, src := range session.Sources {
		rep.Sources = append(rep.Sources, computeSource(cat, src, now, days, top, opts.Resumable))
	}
	return rep
}

func computeSource(cat Catalog, src session.Source, now time.Time, days, top int, resumable func(session.Session) bool) SourceStats {
	loc := now.Location()
	st := SourceStats{
		Source:         src,
		HistoryEntries: cat.HistoryEntries(src),
		Daily:          make([]DayCount, days),
	}

	today := midnight(now)
	first := today.AddDate(0, 0, -(days - 1))
	for i := range st.Daily {
		st.Daily[i].Day = first.AddDate(0, 0, i)
	}

	models := make(map[string]*ModelCount)
	for _, s := range cat.All(src) {
		st.Sessions++
		if resumable != nil && resumable(s) {
			st.Resumable++
		}
		if !s.StartedAt.IsZero() && (st.FirstSession.IsZero() || s.StartedAt.Before(st.FirstSession)) {
			st.FirstSession = s.StartedAt
		}
		if s.LastActiveAt.After(st.LastSession) {
			st.LastSession = s.LastActiveAt
		}

		if s.HasModel() {
			mc, ok := models[s.Model]
			if !ok {
				mc = &ModelCount{Model: s.Model}
				models[s.Model] = mc
			}
			mc.Count++
			if s.LastActiveAt.After(mc.LastUsed) {
				mc.LastUsed = s.LastActiveAt
			}
		}

		if s.LastActiveAt.IsZero() {
			continue
		}
		local := s.LastActiveAt.In(loc)
		st.Hourly[local.Hour()]++
		day := midnight(local)
		if day.Before(first) || day.After(today) {
			continue
		}
		// AddDate keeps DST days aligned where a duration division would not
		for i := range st.Daily {
			if st.Daily[i].Day.Equal(day) {
				st.Daily[i].Count++
				break
			}
		}
	}

	st.TopModels = rankModels(models, top)
	return st
}

// rankModels orders by count, then most recent use, then name.
func rankModels(models map[string]*ModelCount, top int) []ModelCount {
	out := make([]ModelCount, 0, len(models))
	for _, mc := range models {
		out = append(out, *mc)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if !a.LastUsed.Equal(b.LastUsed) {
			return a.LastUsed.After(b.LastUsed)
		}
		return a.Model < b.Model
	})
	if len(out) > top {
		out = out[:top]
	}
	return out
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
