// Package search scans session transcripts for a regular expression.
package search

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Zuo-Peng/cs/internal/parse"
	"github.com/Zuo-Peng/cs/internal/session"
)

const DefaultMaxResults = 50

var ErrInvalidPattern = errors.New("invalid search pattern")

// PatternError wraps a regexp compile failure.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid search pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() []error { return []error{ErrInvalidPattern, e.Err} }

// Catalog is the part of the index search needs.
type Catalog interface {
	Newest(srcs ...session.Source) []session.Session
}

type Options struct {
	Sources []session.Source // empty means all
	Pattern string
	// Project keeps sessions whose project path contains it, case-insensitively.
	Project    string
	MaxResults int
}

type Result struct {
	Session session.Session
	Role    string
	Line    int
	Text    string
}

type Report struct {
	Results []Result
	Scanned int
	Skipped int
}

// Search walks sessions newest first and reports, for each session, the
// first trimmed message line the pattern matches. Matching is
// case-insensitive. It stops reading as soon as MaxResults are collected.
func Search(cat Catalog, opts Options) (*Report, error) {
	re, err := Compile(opts.Pattern)
	if err != nil {
		return nil, err
	}
	limit := opts.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	project := strings.ToLower(opts.Project)

	rep := &Report{}
	for _, s := range cat.Newest(opts.Sources...) {
		if len(rep.Results) >= limit {
			break
		}
		if project != "" && !strings.Contains(strings.ToLower(s.ProjectPath), project) {
			continue
		}
		if s.TranscriptRef == "" {
			continue
		}

		rep.Scanned++
		var hit *Result
		err := parse.ReadMessages(s, func(m parse.Message) bool {
			if line, ok := firstMatch(re, m.Text); ok {
				hit = &Result{Session: s, Role: m.Role, Line: m.Line, Text: line}
				return false
			}
			return true
		})
		if err != nil {
			rep.Skipped++
			slog.Debug("Skip transcript", "source", s.Source, "id", s.ID, "error", err)
			continue
		}
		if hit != nil {
			rep.Results = append(rep.Results, *hit)
		}
	}
	if rep.Skipped > 0 {
		slog.Warn("Skipped unreadable transcripts", "count", rep.Skipped)
	}
	return rep, nil
}

// Compile builds the case-insensitive matcher used by Search.
func Compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, &PatternError{Pattern: pattern, Err: err}
	}
	return re, nil
}

func firstMatch(re *regexp.Regexp, text string) (string, bool) {
	for line := range strings.SplitSeq(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && re.MatchString(line) {
			return line, true
		}
	}
	return "", false
}

// Snippet trims line to about width runes centred on the first match,
// marking cut ends with "...".
func Snippet(re *regexp.Regexp, line string, width int) string {
	runes := []rune(line)
	if width <= 0 || len(runes) <= width {
		return line
	}
	loc := re.FindStringIndex(line)
	if loc == nil {
		return string(runes[:width]) + "..."
	}
	matchStart := len([]rune(line[:loc[0]]))
	matchLen := len([]rune(line[loc[0]:loc[1]]))
	start := matchStart - (width-matchLen)/2
	if start < 0 {
		start = 0
	}
	end := start + width
	if end > len(runes) {
		end = len(runes)
		start = max(0, end-width)
	}
	out := string(runes[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out += "..."
	}
	return out
}
