package render

import (
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/Zuo-Peng/cs/internal/search"
)

type SearchOptions struct {
	Color bool
	Width int
	Now   time.Time
	Home  string
}

// SearchResults writes each hit as a header line plus the matching
// excerpt, with the match highlighted.
func SearchResults(w io.Writer, rep *search.Report, re *regexp.Regexp, opts SearchOptions) error {
	p := newPalette(opts.Color)
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	excerptW := 160
	if opts.Width > 4 {
		excerptW = opts.Width - 4
	}

	for _, r := range rep.Results {
		s := r.Session
		if _, err := fmt.Fprintf(w, "%s %s %s %s\n",
			p.wrap(p.source, s.Source.ListLabel()),
			p.wrap(p.bold, s.ShortID()),
			p.wrap(p.dim, Age(s.LastActiveAt, now)),
			ShortPath(s.ProjectPath, opts.Home),
		); err != nil {
			return err
		}
		excerpt := search.Snippet(re, r.Text, excerptW)
		if _, err := fmt.Fprintf(w, "  %s %s\n", p.wrap(p.dim, fmt.Sprintf("%s:%d", r.Role, r.Line)), p.highlight(excerpt, re)); err != nil {
			return err
		}
	}
	if rep.Skipped > 0 {
		if _, err := fmt.Fprintf(w, "%s\n", p.wrap(p.dim, fmt.Sprintf("(%d transcripts could not be read)", rep.Skipped))); err != nil {
			return err
		}
	}
	return nil
}
