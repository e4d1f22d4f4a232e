package render

import (
	"fmt"
	"io"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/cs/internal/session"
)

type ListOptions struct {
	Color bool
	Width int // terminal width; 0 means no limit on the title column
	Now   time.Time
	Home  string
}

const (
	colSource  = 5
	colID      = 8
	colAge     = 15
	colModel   = 22
	colProject = 28
)

// List writes one row per session. The caller decides which sessions
// (resumable only, filtered) are passed in.
func List(w io.Writer, sessions []session.Session, opts ListOptions) error {
	p := newPalette(opts.Color)
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	titleW := 0
	if opts.Width > 0 {
		titleW = opts.Width - (colSource + colID + colAge + colModel + colProject + 5)
		if titleW < 10 {
			titleW = 10
		}
	}

	for _, s := range sessions {
		model := s.Model
		if model == "" {
			model = "-"
		}
		title := s.Title
		if titleW > 0 {
			title = runewidth.Truncate(title, titleW, "…")
		}
		_, err := fmt.Fprintf(w, "%s %s %s %s %s %s\n",
			p.wrap(p.source, fit(s.Source.ListLabel(), colSource)),
			p.wrap(p.bold, fit(s.ShortID(), colID)),
			p.wrap(p.dim, fit(Age(s.LastActiveAt, now), colAge)),
			fit(model, colModel),
			fit(ShortPath(s.ProjectPath, opts.Home), colProject),
			title,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
