package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/Zuo-Peng/cs/internal/config"
	"github.com/Zuo-Peng/cs/internal/index"
	"github.com/Zuo-Peng/cs/internal/log"
	"github.com/Zuo-Peng/cs/internal/scan"
	"github.com/Zuo-Peng/cs/internal/session"
)

// app carries the global flags and the state shared by every command.
type app struct {
	configPath string
	debug      bool
	rebuild    bool
	noColor    bool

	home   string
	cfg    *config.Config
	loader *index.Loader
}

func (a *app) setup() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("home directory: %w", err)
	}
	a.home = home

	path := a.configPath
	if path == "" {
		path = config.DefaultPath(home, os.Getenv)
	} else if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config file %s not found", path)
	}
	cfg, err := config.LoadFrom(home, path, os.Getenv)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log.Setup(cfg.LogFile, a.debug)
	slog.Debug("Config loaded", "path", cfg.Path, "cache", cfg.CachePath)

	a.loader = &index.Loader{
		CachePath: cfg.CachePath,
		Tracker:   scan.Tracker{Hash: cfg.HashFingerprints},
		Sources:   cfg.Readers(),
		Rebuild:   a.rebuild,
	}
	return nil
}

// load builds the index and reports sources that could not be read.
func (a *app) load() (*index.Index, *index.Report, error) {
	idx, rep, err := a.loader.Load()
	if err != nil {
		return nil, rep, err
	}
	for src, ferr := range rep.Failed {
		fmt.Fprintf(os.Stderr, "warning: %s sessions could not be read: %v\n", src.Label(), ferr)
	}
	return idx, rep, nil
}

// flush waits for a background cache write.
func (a *app) flush() {
	if a.loader != nil {
		a.loader.Flush()
	}
}

func (a *app) color() bool {
	if a.noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// width is the terminal width, or 0 when stdout is not a terminal.
func (a *app) width() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}

func parseSources(values []string) ([]session.Source, error) {
	var out []session.Source
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			src, err := session.ParseSource(part)
			if err != nil {
				return nil, err
			}
			out = append(out, src)
		}
	}
	return out, nil
}

// parseSince accepts a date (2006-01-02, local time), a day count ("7d")
// or a Go duration ("36h").
func parseSince(v string, now time.Time) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", v, now.Location()); err == nil {
		return t, nil
	}
	if n, ok := strings.CutSuffix(v, "d"); ok {
		if days, err := strconv.Atoi(n); err == nil && days >= 0 {
			return now.AddDate(0, 0, -days), nil
		}
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return now.Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("invalid --since %q (want YYYY-MM-DD, 7d or 36h)", v)
}
