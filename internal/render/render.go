// Package render formats sessions, search hits, stats and transcripts as
// terminal text.
package render

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
)

const (
	colorReset   = "\033[0m"
	colorUser    = "\033[1;34m" // bold blue
	colorAssist  = "\033[1;32m" // bold green
	colorThink   = "\033[2;35m" // dim magenta for thinking
	colorDim     = "\033[2m"
	colorHit     = "\033[43m"   // yellow background
	colorBoldRed = "\033[1;31m" // bold red for matches
	colorCyan    = "\033[36m"
	colorBold    = "\033[1m"
)

// palette is the set of escapes in use; all empty when color is off.
type palette struct {
	reset, user, assist, think, dim, hit, match, source, bold string
}

func newPalette(color bool) palette {
	if !color {
		return palette{}
	}
	return palette{
		reset:  colorReset,
		user:   colorUser,
		assist: colorAssist,
		think:  colorThink,
		dim:    colorDim,
		hit:    colorHit,
		match:  colorBoldRed,
		source: colorCyan,
		bold:   colorBold,
	}
}

func (p palette) wrap(code, s string) string {
	if code == "" {
		return s
	}
	return code + s + p.reset
}

// highlight wraps every match of re in text.
func (p palette) highlight(text string, re *regexp.Regexp) string {
	if re == nil || p.match == "" {
		return text
	}
	return re.ReplaceAllStringFunc(text, func(m string) string {
		return p.match + m + p.reset
	})
}

// indentLines prepends each line of text with the given prefix.
func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// wrapLine breaks a single line into multiple lines that fit within maxWidth
// visible columns, skipping ANSI escape sequences when measuring width.
func wrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0

	i := 0
	for i < len(line) {
		// ESC[ ... m
		if i+1 < len(line) && line[i] == '\033' && line[i+1] == '[' {
			j := i + 2
			for j < len(line) && line[j] != 'm' {
				j++
			}
			if j < len(line) {
				j++
			}
			cur.WriteString(line[i:j])
			i = j
			continue
		}

		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)

		if visW+rw > maxWidth {
			result = append(result, cur.String())
			cur.Reset()
			visW = 0
		}

		cur.WriteRune(r)
		visW += rw
		i += size
	}

	if cur.Len() > 0 {
		result = append(result, cur.String())
	}

	if len(result) == 0 {
		return []string{""}
	}
	return result
}

// fit truncates s to width display columns and pads it to exactly width.
func fit(s string, width int) string {
	s = runewidth.Truncate(s, width, "…")
	return runewidth.FillRight(s, width)
}

// Age renders t relative to now ("3 hours ago"); zero times render as "-".
func Age(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	if now.Sub(t) < time.Minute && !t.After(now) {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// ShortPath replaces the home directory prefix with ~.
func ShortPath(path, home string) string {
	if home != "" && (path == home || strings.HasPrefix(path, home+"/")) {
		return "~" + path[len(home):]
	}
	return path
}
