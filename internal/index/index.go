// Package index holds the in-memory session catalog and builds it from the
// cache and the source readers.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"sort"
	"strings"

	"github.com/gowebpki/jcs"

	"github.com/Zuo-Peng/cs/internal/cache"
	"github.com/Zuo-Peng/cs/internal/session"
)

// Index is immutable once built. Sessions are partitioned by source and
// never merged across sources, even when ids collide.
type Index struct {
	bySource map[session.Source][]session.Session
	history  map[session.Source]int
	skipped  map[session.Source]int
}

func New(parts ...cache.Partition) *Index {
	idx := &Index{
		bySource: make(map[session.Source][]session.Session),
		history:  make(map[session.Source]int),
		skipped:  make(map[session.Source]int),
	}
	for _, p := range parts {
		sessions := make([]session.Session, len(p.Sessions))
		copy(sessions, p.Sessions)
		sortNewest(sessions)
		idx.bySource[p.Source] = sessions
		idx.history[p.Source] = p.HistoryEntries
		idx.skipped[p.Source] = p.SkippedLines
	}
	return idx
}

func sortNewest(s []session.Session) {
	sort.SliceStable(s, func(i, j int) bool {
		if !s[i].LastActiveAt.Equal(s[j].LastActiveAt) {
			return s[i].LastActiveAt.After(s[j].LastActiveAt)
		}
		if s[i].ID != s[j].ID {
			return s[i].ID < s[j].ID
		}
		return s[i].Source < s[j].Source
	})
}

// All returns src's sessions, most recently active first, ties by id.
// The slice is shared; callers must not modify it.
func (x *Index) All(src session.Source) []session.Session {
	return x.bySource[src]
}

// Newest merges the given sources into one newest-first list. With no
// arguments every source is included.
func (x *Index) Newest(srcs ...session.Source) []session.Session {
	if len(srcs) == 0 {
		srcs = session.Sources
	}
	var out []session.Session
	for _, src := range srcs {
		out = append(out, x.bySource[src]...)
	}
	sortNewest(out)
	return out
}

func (x *Index) Len() int {
	n := 0
	for _, s := range x.bySource {
		n += len(s)
	}
	return n
}

func (x *Index) HistoryEntries(src session.Source) int { return x.history[src] }

func (x *Index) SkippedLines(src session.Source) int { return x.skipped[src] }

// FindByPrefix resolves a (possibly abbreviated) session id across all
// sources. An exact id match wins over longer ids sharing the prefix. A
// "codex:" or "cc:" qualifier restricts the lookup to one source.
func (x *Index) FindByPrefix(prefix string) (session.Session, error) {
	prefix = strings.TrimSpace(prefix)
	var srcs []session.Source
	if q, rest, ok := strings.Cut(prefix, ":"); ok {
		if src, err := session.ParseSource(q); err == nil {
			srcs = []session.Source{src}
			prefix = strings.TrimSpace(rest)
		}
	}
	if prefix == "" {
		return session.Session{}, ErrNotFound
	}
	var exact, partial []session.Session
	for _, s := range x.Newest(srcs...) {
		switch {
		case s.ID == prefix:
			exact = append(exact, s)
		case strings.HasPrefix(s.ID, prefix):
			partial = append(partial, s)
		}
	}
	switch {
	case len(exact) == 1:
		return exact[0], nil
	case len(exact) > 1:
		return session.Session{}, &AmbiguousError{Prefix: prefix, Matches: exact}
	case len(partial) == 1:
		return partial[0], nil
	case len(partial) > 1:
		return session.Session{}, &AmbiguousError{Prefix: prefix, Matches: partial}
	}
	return session.Session{}, ErrNotFound
}

// Filter yields resumable sessions from every source, newest first, that
// satisfy pred. A nil pred accepts everything.
func (x *Index) Filter(pred func(session.Session) bool) iter.Seq[session.Session] {
	return func(yield func(session.Session) bool) {
		for _, s := range x.Newest() {
			if !Resumable(s) {
				continue
			}
			if pred != nil && !pred(s) {
				continue
			}
			if !yield(s) {
				return
			}
		}
	}
}

// MostRecentModel returns the model of src's most recently active session
// that has one, ignoring excludeID.
func (x *Index) MostRecentModel(src session.Source, excludeID string) string {
	for _, s := range x.bySource[src] {
		if s.ID != excludeID && s.HasModel() {
			return s.Model
		}
	}
	return ""
}

// Partitions returns the index contents in cache form.
func (x *Index) Partitions() []cache.Partition {
	var parts []cache.Partition
	for _, src := range session.Sources {
		sessions, ok := x.bySource[src]
		if !ok {
			continue
		}
		parts = append(parts, cache.Partition{
			Source:         src,
			Sessions:       sessions,
			HistoryEntries: x.history[src],
			SkippedLines:   x.skipped[src],
		})
	}
	return parts
}

// Digest is a stable hash of the catalog contents. Two loads of unchanged
// inputs must produce the same digest whether or not the cache was used.
func (x *Index) Digest() (string, error) {
	type part struct {
		Source         session.Source    `json:"source"`
		HistoryEntries int               `json:"history_entries"`
		Sessions       []session.Session `json:"sessions"`
	}
	var parts []part
	for _, p := range x.Partitions() {
		parts = append(parts, part{Source: p.Source, HistoryEntries: p.HistoryEntries, Sessions: p.Sessions})
	}
	raw, err := json.Marshal(parts)
	if err != nil {
		return "", fmt.Errorf("marshal index: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize index: %w", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// Resumable reports whether sess can be handed to its tool's resume
// command. See CheckResumable for the reasons it may not.
func Resumable(s session.Session) bool {
	return CheckResumable(s) == nil
}

// CheckResumable returns nil when s has an id, a transcript that opens as a
// regular file, and for Codex the session_meta record the CLI looks
// sessions up by. Otherwise the error wraps ErrNotResumable.
func CheckResumable(s session.Session) error {
	if s.ID == "" {
		return fmt.Errorf("%w: session has no id", ErrNotResumable)
	}
	if s.TranscriptRef == "" {
		return fmt.Errorf("%w: %s has no transcript", ErrNotResumable, s.ShortID())
	}
	if s.Source == session.Codex && s.Orphaned {
		return fmt.Errorf("%w: codex session %s has no session_meta record", ErrNotResumable, s.ShortID())
	}
	f, err := os.Open(s.TranscriptRef)
	if err != nil {
		return fmt.Errorf("%w: transcript %s: %w", ErrNotResumable, s.TranscriptRef, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: transcript %s: %w", ErrNotResumable, s.TranscriptRef, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: transcript %s is not a regular file", ErrNotResumable, s.TranscriptRef)
	}
	return nil
}
