package scan

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/zeebo/xxh3"
)

// Fingerprint is a cheap proxy for "has this file changed".
// Hash is only set when the modification time cannot be trusted.
type Fingerprint struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	ModTime int64  `json:"mtime_ns"`
	Hash    uint64 `json:"hash,omitempty"`
}

// Tracker computes fingerprints. With Hash set every file is content
// hashed; otherwise only files reporting a zero mtime are.
type Tracker struct {
	Hash bool
}

func (t Tracker) Stat(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, err
	}
	return t.FromInfo(path, info)
}

func (t Tracker) FromInfo(path string, info fs.FileInfo) (Fingerprint, error) {
	fp := Fingerprint{
		Path: path,
		Size: info.Size(),
	}
	if mt := info.ModTime(); !mt.IsZero() {
		fp.ModTime = mt.UnixNano()
	}
	if t.Hash || fp.ModTime == 0 {
		sum, err := hashFile(path)
		if err != nil {
			return Fingerprint{}, fmt.Errorf("hash %s: %w", path, err)
		}
		fp.Hash = sum
	}
	return fp, nil
}

func hashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// Sort orders fingerprints by path in place.
func Sort(fps []Fingerprint) {
	sort.Slice(fps, func(i, j int) bool { return fps[i].Path < fps[j].Path })
}

// Equal reports whether two fingerprint sets cover exactly the same paths
// with identical size, mtime and hash. Order does not matter.
func Equal(a, b []Fingerprint) bool {
	if len(a) != len(b) {
		return false
	}
	byPath := make(map[string]Fingerprint, len(a))
	for _, fp := range a {
		byPath[fp.Path] = fp
	}
	if len(byPath) != len(a) {
		return false
	}
	for _, fp := range b {
		old, ok := byPath[fp.Path]
		if !ok || old != fp {
			return false
		}
	}
	return true
}

type Changes struct {
	Added   []string
	Removed []string
	Changed []string
}

func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

func (c Changes) String() string {
	return fmt.Sprintf("added=%d removed=%d changed=%d", len(c.Added), len(c.Removed), len(c.Changed))
}

// Diff lists what changed going from old to cur.
func Diff(old, cur []Fingerprint) Changes {
	prev := make(map[string]Fingerprint, len(old))
	for _, fp := range old {
		prev[fp.Path] = fp
	}
	var c Changes
	for _, fp := range cur {
		p, ok := prev[fp.Path]
		switch {
		case !ok:
			c.Added = append(c.Added, fp.Path)
		case p != fp:
			c.Changed = append(c.Changed, fp.Path)
		}
		delete(prev, fp.Path)
	}
	for path := range prev {
		c.Removed = append(c.Removed, path)
	}
	sort.Strings(c.Added)
	sort.Strings(c.Removed)
	sort.Strings(c.Changed)
	return c
}
