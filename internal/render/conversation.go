package render

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/cs/internal/parse"
	"github.com/Zuo-Peng/cs/internal/session"
)

type ConversationOptions struct {
	Color    bool
	Width    int // wrap width (0 = no wrap)
	Thinking bool
	Tools    bool
	// Tail keeps only the last N messages; 0 shows everything.
	Tail int
	// Pattern highlights matches in message text.
	Pattern *regexp.Regexp
	// HitLine marks the message read from this transcript line.
	HitLine int
}

// Conversation streams a session transcript to w. It returns
// parse.ErrNoTranscript (wrapped) when the session has nothing to show.
func Conversation(w io.Writer, s session.Session, opts ConversationOptions) error {
	var msgs []parse.Message
	skipped := 0
	err := parse.ReadMessages(s, func(m parse.Message) bool {
		if m.Text == "" && m.Thinking == "" && len(m.Tools) == 0 {
			return true
		}
		msgs = append(msgs, m)
		if opts.Tail > 0 && len(msgs) > opts.Tail {
			msgs = msgs[1:]
			skipped++
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("read %s: %w", s.ShortID(), err)
	}

	p := newPalette(opts.Color)
	var b strings.Builder
	writeLine := func(line string) {
		for _, wl := range wrapLine(line, opts.Width) {
			b.WriteString(wl)
			b.WriteByte('\n')
		}
	}

	header := fmt.Sprintf("--- %s [%s] %s ---", s.ID, s.Source.Label(), s.ProjectPath)
	if s.Model != "" {
		header = fmt.Sprintf("--- %s [%s %s] %s ---", s.ID, s.Source.Label(), s.Model, s.ProjectPath)
	}
	writeLine(p.wrap(p.dim, header))
	if len(msgs) == 0 {
		writeLine("(empty session)")
		_, err := io.WriteString(w, b.String())
		return err
	}
	if skipped > 0 {
		writeLine(p.wrap(p.dim, fmt.Sprintf("... (%d messages before) ...", skipped)))
	}

	separator := p.wrap(p.dim, strings.Repeat("-", 50))
	for i, m := range msgs {
		if i > 0 {
			writeLine(separator)
		}

		label, color := "ASST", p.assist
		if m.Role == "user" {
			label, color = "USER", p.user
		}
		if m.APIError {
			label += " (api error)"
		}
		if opts.HitLine > 0 && m.Line == opts.HitLine {
			writeLine(p.wrap(p.hit, fmt.Sprintf(">> %s > line %d <<", label, m.Line)))
		} else {
			writeLine(p.wrap(color, label+" >") + " " + p.wrap(p.dim, fmt.Sprintf("line %d", m.Line)))
		}

		if opts.Thinking && m.Thinking != "" {
			for _, tl := range strings.Split(indentLines(m.Thinking, "  "), "\n") {
				writeLine(p.wrap(p.think, tl))
			}
		}
		if m.Text != "" {
			for _, tl := range strings.Split(indentLines(p.highlight(m.Text, opts.Pattern), "  "), "\n") {
				writeLine(tl)
			}
		}
		if opts.Tools {
			for _, t := range m.Tools {
				writeLine(p.wrap(p.dim, "  [tool] "+t.Name+" "+toolSummary(t.Input, 80)))
			}
		}
		writeLine("")
	}

	_, err = io.WriteString(w, b.String())
	return err
}

// toolSummary flattens a tool input to one line of at most width columns.
func toolSummary(input json.RawMessage, width int) string {
	if len(input) == 0 {
		return ""
	}
	var v map[string]any
	if err := json.Unmarshal(input, &v); err == nil {
		for _, key := range []string{"command", "file_path", "path", "pattern", "url", "description"} {
			if s, ok := v[key].(string); ok && s != "" {
				return runewidth.Truncate(strings.Join(strings.Fields(s), " "), width, "…")
			}
		}
	}
	return runewidth.Truncate(strings.Join(strings.Fields(string(input)), " "), width, "…")
}
