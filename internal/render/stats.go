package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/cs/internal/stats"
)

const (
	frameWidth = 72
	barWidth   = 24
	modelWidth = 34
)

type StatsOptions struct {
	Color bool
}

// Stats writes one section per source, never a combined total.
func Stats(w io.Writer, rep stats.Report, opts StatsOptions) error {
	p := newPalette(opts.Color)
	var b strings.Builder

	title := "Session usage"
	pad := (frameWidth - 2 - runewidth.StringWidth(title)) / 2
	b.WriteString("╭" + strings.Repeat("─", frameWidth-2) + "╮\n")
	b.WriteString("│" + strings.Repeat(" ", pad) + p.wrap(p.bold, title) + strings.Repeat(" ", frameWidth-2-pad-runewidth.StringWidth(title)) + "│\n")
	b.WriteString("╰" + strings.Repeat("─", frameWidth-2) + "╯\n")
	fmt.Fprintf(&b, "Computed: %s\n\n", rep.Computed.Format("2006-01-02 15:04"))

	for _, st := range rep.Sources {
		b.WriteString(p.wrap(p.source, strings.ToUpper(st.Source.Label())) + "\n")
		fmt.Fprintf(&b, "  Sessions:        %s (%s resumable)\n", humanize.Comma(int64(st.Sessions)), humanize.Comma(int64(st.Resumable)))
		fmt.Fprintf(&b, "  History entries: %s\n", humanize.Comma(int64(st.HistoryEntries)))
		first := "-"
		if !st.FirstSession.IsZero() {
			first = st.FirstSession.In(rep.Computed.Location()).Format("2006-01-02")
		}
		fmt.Fprintf(&b, "  First session:   %s\n\n", first)

		if len(st.TopModels) == 0 {
			b.WriteString("  Top models: -\n")
		} else {
			b.WriteString("  Top models:\n")
			for _, m := range st.TopModels {
				fmt.Fprintf(&b, "    %s %s\n", fit(m.Model, modelWidth), humanize.Comma(int64(m.Count)))
			}
		}
		b.WriteString("\n")

		maxDay := 0
		for _, d := range st.Daily {
			maxDay = max(maxDay, d.Count)
		}
		fmt.Fprintf(&b, "  Daily sessions (last %d days):\n", len(st.Daily))
		for _, d := range st.Daily {
			fmt.Fprintf(&b, "    %s %6s %s\n", d.Day.Format("2006-01-02"), humanize.Comma(int64(d.Count)), p.wrap(p.assist, bar(d.Count, maxDay, barWidth)))
		}
		b.WriteString("\n")

		maxHour := 0
		for _, n := range st.Hourly {
			maxHour = max(maxHour, n)
		}
		b.WriteString("  Activity by hour:\n    ")
		for _, n := range st.Hourly {
			b.WriteString(spark(n, maxHour))
		}
		b.WriteString("\n    0     6     12    18   23\n\n")
		b.WriteString(strings.Repeat("-", frameWidth) + "\n\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func bar(count, maxCount, width int) string {
	if maxCount == 0 || width == 0 {
		return ""
	}
	return strings.Repeat("█", min(count*width/maxCount, width))
}

var sparks = []rune(" ▁▂▃▄▅▆▇█")

func spark(n, maxN int) string {
	if maxN == 0 {
		return " "
	}
	return string(sparks[n*(len(sparks)-1)/maxN])
}
