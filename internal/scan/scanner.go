package scan

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
)

// ClaudeFiles returns every Claude Code transcript under roots, sorted.
// Subagent side-chains and session index files are not transcripts.
func ClaudeFiles(roots []string) []string {
	return walkRoots(roots, func(path string, d fs.DirEntry) (bool, error) {
		if d.IsDir() {
			if d.Name() == "subagents" {
				return false, filepath.SkipDir
			}
			return false, nil
		}
		if strings.Contains(d.Name(), "sessions-index") {
			return false, nil
		}
		return true, nil
	})
}

// CodexFiles returns every Codex rollout under roots, sorted.
func CodexFiles(roots []string) []string {
	return walkRoots(roots, func(path string, d fs.DirEntry) (bool, error) {
		return !d.IsDir(), nil
	})
}

type selectFunc func(path string, d fs.DirEntry) (bool, error)

func walkRoots(roots []string, sel selectFunc) []string {
	var (
		mu    sync.Mutex
		files []string
		seen  = make(map[string]struct{})
	)
	for _, root := range roots {
		if root == "" {
			continue
		}
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			slog.Debug("Skipping transcript root", "root", root, "error", err)
			continue
		}
		err = fastwalk.Walk(nil, root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// unreadable dirs are skipped, not fatal
				return nil
			}
			if path == root {
				return nil
			}
			ok, serr := sel(path, d)
			if serr != nil {
				return serr
			}
			if !ok || !d.Type().IsRegular() || filepath.Ext(path) != ".jsonl" {
				return nil
			}
			mu.Lock()
			if _, dup := seen[path]; !dup {
				seen[path] = struct{}{}
				files = append(files, path)
			}
			mu.Unlock()
			return nil
		})
		if err != nil {
			slog.Warn("Walk transcript root", "root", root, "error", err)
		}
	}
	sort.Strings(files)
	return files
}

// Live fingerprints a source without parsing it: the history file, when
// present, plus every transcript the matching reader would open.
func (t Tracker) Live(history string, transcripts []string) []Fingerprint {
	paths := make([]string, 0, len(transcripts)+1)
	if history != "" {
		paths = append(paths, history)
	}
	paths = append(paths, transcripts...)

	fps := make([]Fingerprint, 0, len(paths))
	for _, p := range paths {
		fp, err := t.Stat(p)
		if err != nil {
			// vanished between discovery and stat
			continue
		}
		fps = append(fps, fp)
	}
	Sort(fps)
	return fps
}
