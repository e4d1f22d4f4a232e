package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/cs/internal/render"
	"github.com/Zuo-Peng/cs/internal/session"
)

// linesPerItem is the number of terminal lines each row occupies.
const linesPerItem = 2

// item is one row: a session plus, in search mode, the matching line.
type item struct {
	sess    session.Session
	line    int
	excerpt string
}

// renderList renders the left panel with scrolling.
func (m model) renderList(width, height int) string {
	if len(m.items) == 0 {
		msg := "No sessions"
		if m.mode == modeSearch {
			msg = "No matches"
			if strings.TrimSpace(m.query) == "" {
				msg = "Type a pattern to search transcripts"
			}
		}
		return lipgloss.NewStyle().
			Foreground(colorDim).
			Width(width).
			Height(height).
			Align(lipgloss.Center, lipgloss.Center).
			Render(msg)
	}

	var lines []string
	for i, it := range m.items {
		if i < m.listOffset {
			continue
		}
		if len(lines)+linesPerItem > height {
			break
		}
		lines = append(lines, formatItem(it, width, i == m.cursor, m.now, m.home)...)
	}

	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

// formatItem formats a row as two lines:
//
//	line 1: [>] source  age  title
//	line 2:    project, or the matching excerpt (dimmed)
func formatItem(it item, width int, selected bool, now time.Time, home string) []string {
	var src string
	switch it.sess.Source {
	case session.ClaudeCode:
		src = styleSourceClaude.Render(fmt.Sprintf("%-5s", it.sess.Source.ListLabel()))
	case session.Codex:
		src = styleSourceCodex.Render(fmt.Sprintf("%-5s", it.sess.Source.ListLabel()))
	}

	age := runewidth.FillRight(runewidth.Truncate(render.Age(it.sess.LastActiveAt, now), 14, ""), 14)

	title := strings.Join(strings.Fields(it.sess.Title), " ")
	titleMax := width - 2 - 6 - 15
	if titleMax < 0 {
		titleMax = 0
	}
	title = runewidth.Truncate(title, titleMax, "…")

	line1 := fmt.Sprintf("%s %s %s", src, styleDim.Render(age), title)
	if selected {
		line1 = styleListSelected.Render("> ") + line1
	} else {
		line1 = "  " + line1
	}

	detail := it.excerpt
	if detail == "" {
		detail = render.ShortPath(it.sess.ProjectPath, home)
		if it.sess.Model != "" {
			detail += "  " + it.sess.Model
		}
	}
	detail = strings.Join(strings.Fields(detail), " ")
	detailMax := width - 4
	if detailMax < 0 {
		detailMax = 0
	}
	line2 := "    " + styleDim.Render(runewidth.Truncate(detail, detailMax, "…"))

	return []string{line1, line2}
}

// adjustListScroll keeps the cursor visible within the list viewport.
func (m *model) adjustListScroll(listHeight int) {
	visibleItems := listHeight / linesPerItem
	if visibleItems < 1 {
		visibleItems = 1
	}
	if m.cursor < m.listOffset {
		m.listOffset = m.cursor
	}
	if m.cursor >= m.listOffset+visibleItems {
		m.listOffset = m.cursor - visibleItems + 1
	}
}

// matchFilter reports whether every whitespace-separated term of filter
// occurs (case-insensitively) in the session's title, project, id or model.
func matchFilter(s session.Session, filter string) bool {
	terms := strings.Fields(strings.ToLower(filter))
	if len(terms) == 0 {
		return true
	}
	hay := strings.ToLower(strings.Join([]string{s.Title, s.ProjectPath, s.ID, s.Model, s.Source.ListLabel()}, " "))
	for _, t := range terms {
		if !strings.Contains(hay, t) {
			return false
		}
	}
	return true
}
