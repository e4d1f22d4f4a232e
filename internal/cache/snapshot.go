// Package cache persists the session index between runs so unchanged
// sources are never re-parsed.
package cache

import (
	"errors"

	"github.com/Zuo-Peng/cs/internal/scan"
	"github.com/Zuo-Peng/cs/internal/session"
)

// SchemaVersion must be bumped whenever the stored layout or the parsing
// rules that produced it change; older snapshots are then rebuilt.
const SchemaVersion = 2

var (
	ErrNoCache        = errors.New("no cache file")
	ErrSchemaMismatch = errors.New("cache schema version mismatch")
)

type Snapshot struct {
	SchemaVersion int
	Partitions    map[session.Source]Partition
}

// Partition is everything one source contributed, plus the fingerprints of
// the files it was parsed from.
type Partition struct {
	Source         session.Source
	Fingerprints   []scan.Fingerprint
	Sessions       []session.Session
	HistoryEntries int
	SkippedLines   int
}

func NewSnapshot(parts ...Partition) *Snapshot {
	s := &Snapshot{
		SchemaVersion: SchemaVersion,
		Partitions:    make(map[session.Source]Partition, len(parts)),
	}
	for _, p := range parts {
		s.Partitions[p.Source] = p
	}
	return s
}

type Kind int

const (
	Fresh Kind = iota
	Stale
	Unreadable
)

func (k Kind) String() string {
	switch k {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Unreadable:
		return "unreadable"
	}
	return "unknown"
}

// Decision says which sources must be re-read. Stale is empty when Kind is
// Fresh and lists every source when Kind is Unreadable.
type Decision struct {
	Kind  Kind
	Stale []session.Source
}

func (d Decision) IsStale(src session.Source) bool {
	for _, s := range d.Stale {
		if s == src {
			return true
		}
	}
	return false
}

// Validate compares a loaded snapshot against live fingerprints. A nil
// snapshot (missing, unreadable or from another schema) is Unreadable.
func Validate(snap *Snapshot, live map[session.Source][]scan.Fingerprint) Decision {
	var sources []session.Source
	for _, src := range session.Sources {
		if _, ok := live[src]; ok {
			sources = append(sources, src)
		}
	}
	if snap == nil || snap.SchemaVersion != SchemaVersion {
		return Decision{Kind: Unreadable, Stale: sources}
	}
	var stale []session.Source
	for _, src := range sources {
		part, ok := snap.Partitions[src]
		if !ok || !scan.Equal(part.Fingerprints, live[src]) {
			stale = append(stale, src)
		}
	}
	if len(stale) == 0 {
		return Decision{Kind: Fresh}
	}
	return Decision{Kind: Stale, Stale: stale}
}
