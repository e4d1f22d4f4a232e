package index

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Zuo-Peng/cs/internal/cache"
	"github.com/Zuo-Peng/cs/internal/parse"
	"github.com/Zuo-Peng/cs/internal/scan"
	"github.com/Zuo-Peng/cs/internal/session"
)

// Loader builds an Index, re-reading only the sources whose files changed
// since the cached snapshot was written.
type Loader struct {
	CachePath string
	Tracker   scan.Tracker
	Sources   map[session.Source]parse.Config

	// Rebuild ignores any existing cache.
	Rebuild bool

	// NewReader constructs readers for stale sources. Defaults to parse.NewReader.
	NewReader func(session.Source, parse.Config, scan.Tracker) (parse.Reader, error)

	wg sync.WaitGroup
}

// Report describes how a Load was satisfied.
type Report struct {
	Decision cache.Decision
	// CacheErr is why the snapshot could not be used; nil when it loaded.
	CacheErr error
	Rebuilt  []session.Source
	Failed   map[session.Source]error
	Warnings map[session.Source]int
	Elapsed  time.Duration
}

// Load returns the index. A source whose reader fails keeps its previously
// cached sessions (or none); Load itself fails only when every source does.
// If anything was re-read the cache is rewritten in the background; call
// Flush before exiting.
func (l *Loader) Load() (*Index, *Report, error) {
	start := time.Now()
	srcs := l.requested()
	if len(srcs) == 0 {
		return nil, nil, errors.New("no sources configured")
	}

	live := make(map[session.Source][]scan.Fingerprint, len(srcs))
	for _, src := range srcs {
		cfg := l.Sources[src]
		live[src] = l.Tracker.Live(cfg.History, parse.Discover(src, cfg.Roots))
	}

	rep := &Report{
		Failed:   make(map[session.Source]error),
		Warnings: make(map[session.Source]int),
	}

	var snap *cache.Snapshot
	if l.Rebuild {
		rep.CacheErr = errors.New("rebuild requested")
	} else {
		s, err := cache.Load(l.CachePath)
		switch {
		case err == nil:
			snap = s
		case errors.Is(err, cache.ErrNoCache):
			slog.Debug("No session cache", "path", l.CachePath)
		default:
			slog.Warn("Session cache unusable, rebuilding", "path", l.CachePath, "error", err)
		}
		rep.CacheErr = err
	}
	rep.Decision = cache.Validate(snap, live)
	slog.Debug("Cache decision", "kind", rep.Decision.Kind, "stale", rep.Decision.Stale)

	results := l.readStale(rep.Decision.Stale)

	var (
		parts  []cache.Partition
		stored []cache.Partition
		errs   []error
	)
	for _, src := range srcs {
		res, stale := results[src]
		if !stale {
			p := snap.Partitions[src]
			parts = append(parts, p)
			stored = append(stored, p)
			continue
		}
		if res.err != nil {
			rep.Failed[src] = res.err
			errs = append(errs, fmt.Errorf("%s: %w", src, res.err))
			slog.Warn("Read source", "source", src, "error", res.err)
			// fall back to what we knew; its fingerprints will not match, so
			// the next run retries
			p := cache.Partition{Source: src}
			if snap != nil {
				if old, ok := snap.Partitions[src]; ok {
					p = old
				}
			}
			parts = append(parts, p)
			stored = append(stored, p)
			continue
		}

		p := cache.Partition{
			Source:         src,
			Fingerprints:   live[src],
			Sessions:       res.result.Sessions,
			HistoryEntries: len(res.result.History),
			SkippedLines:   len(res.result.Warnings),
		}
		parts = append(parts, p)
		stored = append(stored, p)
		rep.Rebuilt = append(rep.Rebuilt, src)
		rep.Warnings[src] = len(res.result.Warnings)
		if n := len(res.result.Warnings); n > 0 {
			slog.Warn("Skipped lines", "source", src, "count", n)
			for _, w := range res.result.Warnings {
				slog.Debug("Skipped", "source", src, "detail", w.String())
			}
		}
	}

	if len(errs) == len(srcs) {
		return nil, rep, fmt.Errorf("read sessions: %w", errors.Join(errs...))
	}

	// keep partitions for sources this loader was not asked about
	if snap != nil {
		for _, src := range session.Sources {
			if _, ok := l.Sources[src]; ok {
				continue
			}
			if p, ok := snap.Partitions[src]; ok {
				stored = append(stored, p)
			}
		}
	}

	idx := New(parts...)
	if rep.Decision.Kind != cache.Fresh && l.CachePath != "" {
		l.store(cache.NewSnapshot(stored...))
	}
	rep.Elapsed = time.Since(start)
	slog.Debug("Index loaded", "sessions", idx.Len(), "rebuilt", rep.Rebuilt, "elapsed", rep.Elapsed)
	return idx, rep, nil
}

// Flush waits for a pending background cache write.
func (l *Loader) Flush() {
	l.wg.Wait()
}

type readOutcome struct {
	result *parse.Result
	err    error
}

func (l *Loader) readStale(stale []session.Source) map[session.Source]readOutcome {
	newReader := l.NewReader
	if newReader == nil {
		newReader = parse.NewReader
	}

	outcomes := make([]readOutcome, len(stale))
	var g errgroup.Group
	for i, src := range stale {
		g.Go(func() error {
			r, err := newReader(src, l.Sources[src], l.Tracker)
			if err != nil {
				outcomes[i].err = err
				return nil
			}
			start := time.Now()
			res, err := r.Read()
			outcomes[i] = readOutcome{result: res, err: err}
			if err == nil && res == nil {
				outcomes[i].err = errors.New("reader returned no result")
			}
			slog.Debug("Read source", "source", src, "elapsed", time.Since(start))
			return nil
		})
	}
	// readers report through outcomes so one failure never cancels the other
	_ = g.Wait()

	m := make(map[session.Source]readOutcome, len(stale))
	for i, src := range stale {
		m[src] = outcomes[i]
	}
	return m
}

func (l *Loader) store(snap *cache.Snapshot) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := cache.Store(l.CachePath, snap); err != nil {
			slog.Warn("Store session cache", "path", l.CachePath, "error", err)
			return
		}
		slog.Debug("Stored session cache", "path", l.CachePath)
	}()
}

func (l *Loader) requested() []session.Source {
	var out []session.Source
	for _, src := range session.Sources {
		if _, ok := l.Sources[src]; ok {
			out = append(out, src)
		}
	}
	return out
}
