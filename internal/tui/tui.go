// Package tui is the interactive session picker.
package tui

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Zuo-Peng/cs/internal/index"
	"github.com/Zuo-Peng/cs/internal/search"
	"github.com/Zuo-Peng/cs/internal/session"
)

const (
	debounceDelay    = 200 * time.Millisecond
	searchMaxResults = 200
)

type tuiMode int

const (
	modeFilter tuiMode = iota
	modeSearch
)

type Options struct {
	Query   string
	Search  bool // start in transcript search mode
	Sources []session.Source
	Project string
	Home    string
}

// Selection is the session the user picked.
type Selection struct {
	Session session.Session
	// Line is the transcript line of the search hit, 0 outside search mode.
	Line int
}

// message types

type searchResultMsg struct {
	query string
	items []item
	re    *regexp.Regexp
	err   error
}

type debounceTickMsg struct {
	query string
}

// model

type model struct {
	idx         *index.Index
	opts        Options
	all         []session.Session // resumable sessions in scope, newest first
	mode        tuiMode
	query       string
	pattern     *regexp.Regexp
	searchErr   error
	items       []item
	cursor      int
	listOffset  int
	filterInput textinput.Model
	preview     viewport.Model
	previewKey  string
	width       int
	height      int
	ready       bool
	quitting    bool
	selected    *Selection
	now         time.Time
	home        string
}

func newModel(idx *index.Index, opts Options) model {
	ti := textinput.New()
	ti.Focus()
	ti.SetValue(opts.Query)
	ti.Prompt = "> "
	ti.PromptStyle = styleInputPrompt
	ti.TextStyle = styleInput
	ti.CharLimit = 256

	project := strings.ToLower(opts.Project)
	all := slices.Collect(idx.Filter(func(s session.Session) bool {
		if len(opts.Sources) > 0 && !slices.Contains(opts.Sources, s.Source) {
			return false
		}
		return project == "" || strings.Contains(strings.ToLower(s.ProjectPath), project)
	}))

	m := model{
		idx:         idx,
		opts:        opts,
		all:         all,
		query:       opts.Query,
		filterInput: ti,
		preview:     viewport.New(0, 0),
		now:         time.Now(),
		home:        opts.Home,
	}
	if opts.Search {
		m.mode = modeSearch
	}
	m.setPlaceholder()
	if m.mode == modeFilter {
		m.applyFilter()
	}
	return m
}

// Run shows the picker and blocks until the user selects a session or
// quits. A nil Selection means nothing was picked. The picker draws on
// stderr so stdout stays free for the caller.
func Run(idx *index.Index, opts Options) (*Selection, error) {
	m := newModel(idx, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithOutput(os.Stderr))
	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("tui: %w", err)
	}
	return finalModel.(model).selected, nil
}

func (m *model) setPlaceholder() {
	if m.mode == modeSearch {
		m.filterInput.Placeholder = "Search transcripts (regex)..."
		m.filterInput.PromptStyle = styleSearchPrompt
		m.filterInput.Prompt = "/ "
	} else {
		m.filterInput.Placeholder = "Filter sessions..."
		m.filterInput.PromptStyle = styleInputPrompt
		m.filterInput.Prompt = "> "
	}
}

// applyFilter recomputes items from the in-memory list; no I/O.
func (m *model) applyFilter() {
	var items []item
	for _, s := range m.all {
		if matchFilter(s, m.query) {
			items = append(items, item{sess: s})
		}
	}
	m.items = items
	m.pattern = nil
	m.searchErr = nil
	m.cursor = 0
	m.listOffset = 0
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.mode == modeSearch && m.query != "" {
		cmds = append(cmds, m.doSearch(m.query))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.preview = newViewport(m.previewWidth(), m.panelHeight())
		m.previewKey = ""
		cmds = append(cmds, m.loadCurrentPreview())
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.Enter):
			if len(m.items) > 0 && m.cursor < len(m.items) {
				it := m.items[m.cursor]
				m.selected = &Selection{Session: it.sess, Line: it.line}
				m.quitting = true
				return m, tea.Quit
			}
			return m, nil

		case key.Matches(msg, keys.Mode):
			if m.mode == modeFilter {
				m.mode = modeSearch
				m.items = nil
				m.cursor, m.listOffset = 0, 0
				if m.query != "" {
					cmds = append(cmds, m.doSearch(m.query))
				}
			} else {
				m.mode = modeFilter
				m.applyFilter()
				cmds = append(cmds, m.loadCurrentPreview())
			}
			m.setPlaceholder()
			m.previewKey = ""
			return m, tea.Batch(cmds...)

		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.adjustListScroll(m.panelHeight())
				cmds = append(cmds, m.loadCurrentPreview())
			}
			return m, tea.Batch(cmds...)

		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.items)-1 {
				m.cursor++
				m.adjustListScroll(m.panelHeight())
				cmds = append(cmds, m.loadCurrentPreview())
			}
			return m, tea.Batch(cmds...)

		case key.Matches(msg, keys.PreviewUp):
			m.preview.LineUp(m.panelHeight() / 2)
			return m, nil

		case key.Matches(msg, keys.PreviewDn):
			m.preview.LineDown(m.panelHeight() / 2)
			return m, nil

		case key.Matches(msg, keys.PageUp):
			m.preview.LineUp(m.panelHeight())
			return m, nil

		case key.Matches(msg, keys.PageDown):
			m.preview.LineDown(m.panelHeight())
			return m, nil
		}

		var tiCmd tea.Cmd
		m.filterInput, tiCmd = m.filterInput.Update(msg)
		cmds = append(cmds, tiCmd)

		newQuery := m.filterInput.Value()
		if newQuery != m.query {
			m.query = newQuery
			if m.mode == modeFilter {
				m.applyFilter()
				cmds = append(cmds, m.loadCurrentPreview())
			} else {
				cmds = append(cmds, m.scheduleDebouncedSearch(newQuery))
			}
		}
		return m, tea.Batch(cmds...)

	case tea.MouseMsg:
		if !m.ready || len(m.items) == 0 {
			return m, nil
		}

		region, itemIdx := m.hitTest(msg.X, msg.Y)

		switch {
		case region == regionList && msg.Button == tea.MouseButtonWheelUp:
			if m.listOffset > 0 {
				m.listOffset--
			}
			return m, nil

		case region == regionList && msg.Button == tea.MouseButtonWheelDown:
			visibleItems := m.panelHeight() / linesPerItem
			maxOffset := max(len(m.items)-visibleItems, 0)
			if m.listOffset < maxOffset {
				m.listOffset++
			}
			return m, nil

		case region == regionList && msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
			if itemIdx >= 0 && itemIdx < len(m.items) && m.cursor != itemIdx {
				m.cursor = itemIdx
				m.adjustListScroll(m.panelHeight())
				cmds = append(cmds, m.loadCurrentPreview())
			}
			return m, tea.Batch(cmds...)

		case region == regionPreview && (msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown):
			var vpCmd tea.Cmd
			m.preview, vpCmd = m.preview.Update(msg)
			return m, vpCmd
		}
		return m, nil

	case debounceTickMsg:
		// stale unless the query is unchanged since the tick was scheduled
		if msg.query == m.query && m.mode == modeSearch {
			cmds = append(cmds, m.doSearch(msg.query))
		}
		return m, tea.Batch(cmds...)

	case searchResultMsg:
		if msg.query != m.query || m.mode != modeSearch {
			return m, nil
		}
		m.cursor = 0
		m.listOffset = 0
		m.previewKey = ""
		m.searchErr = msg.err
		m.items = msg.items
		m.pattern = msg.re
		if msg.err != nil {
			m.preview.SetContent(styleError.Render(msg.err.Error()))
			return m, nil
		}
		if len(m.items) == 0 {
			m.preview.SetContent("")
			return m, nil
		}
		return m, m.loadCurrentPreview()

	case previewRenderedMsg:
		if msg.key == m.previewKey {
			return m, nil
		}
		if len(m.items) == 0 || m.cursor >= len(m.items) || previewCacheKey(m.items[m.cursor]) != msg.key {
			return m, nil
		}
		if msg.err != nil {
			m.preview.SetContent("Preview error: " + msg.err.Error())
		} else {
			m.preview.SetContent(msg.content)
			if msg.hitLine >= 0 {
				m.preview.SetYOffset(msg.hitLine)
			} else {
				m.preview.GotoBottom()
			}
		}
		m.previewKey = msg.key
		return m, nil
	}

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if m.quitting || !m.ready {
		return ""
	}

	listW := m.listWidth()
	previewW := m.previewWidth()
	panelH := m.panelHeight()

	inputRow := m.filterInput.View()

	listPanel := stylePanelBorder.
		Width(listW).
		Height(panelH).
		Render(m.renderList(listW, panelH))

	m.preview.Width = previewW
	m.preview.Height = panelH
	previewPanel := styleActiveBorder.
		Width(previewW).
		Height(panelH).
		Render(m.preview.View())

	panels := lipgloss.JoinHorizontal(lipgloss.Top, listPanel, previewPanel)
	return lipgloss.JoinVertical(lipgloss.Left, inputRow, panels, m.statusBar())
}

// helper methods

func (m model) listWidth() int {
	if m.width <= 0 {
		return 40
	}
	return max(m.width*45/100-4, 20)
}

func (m model) previewWidth() int {
	if m.width <= 0 {
		return 60
	}
	return max(m.width*55/100-4, 20)
}

func (m model) panelHeight() int {
	if m.height <= 0 {
		return 20
	}
	// input row (1) + status bar (1) + borders (4)
	return max(m.height-6, 5)
}

type mouseRegion int

const (
	regionNone mouseRegion = iota
	regionList
	regionPreview
)

// hitTest maps terminal coordinates to a panel region and list item index.
func (m model) hitTest(x, y int) (mouseRegion, int) {
	pH := m.panelHeight()
	contentYStart := 2 // input row (1) + top border (1)
	contentYEnd := contentYStart + pH - 1

	if y < contentYStart || y > contentYEnd {
		return regionNone, -1
	}
	relY := y - contentYStart

	lw := m.listWidth()
	listBoxRight := lw + 1 // col 0=border, 1..lw=content, lw+1=border

	if x >= 1 && x <= lw {
		return regionList, m.listOffset + (relY / linesPerItem)
	}
	if x > listBoxRight+1 {
		return regionPreview, -1
	}
	return regionNone, -1
}

func (m model) statusBar() string {
	var parts []string
	if m.mode == modeSearch {
		parts = append(parts, fmt.Sprintf("%d matches", len(m.items)))
	} else {
		parts = append(parts, fmt.Sprintf("%d/%d sessions", len(m.items), len(m.all)))
	}
	parts = append(parts, "up/dn navigate", "C-u/C-d preview", "Tab filter/search", "Enter resume", "Esc quit")
	return styleStatusBar.Render(strings.Join(parts, " | "))
}

func (m model) doSearch(query string) tea.Cmd {
	idx := m.idx
	opts := search.Options{
		Sources:    m.opts.Sources,
		Project:    m.opts.Project,
		Pattern:    query,
		MaxResults: searchMaxResults,
	}
	return func() tea.Msg {
		if strings.TrimSpace(query) == "" {
			return searchResultMsg{query: query}
		}
		re, err := search.Compile(query)
		if err != nil {
			return searchResultMsg{query: query, err: err}
		}
		rep, err := search.Search(idx, opts)
		if err != nil {
			return searchResultMsg{query: query, err: err}
		}
		items := make([]item, 0, len(rep.Results))
		for _, r := range rep.Results {
			if !index.Resumable(r.Session) {
				continue
			}
			items = append(items, item{sess: r.Session, line: r.Line, excerpt: r.Text})
		}
		return searchResultMsg{query: query, items: items, re: re}
	}
}

func (m model) scheduleDebouncedSearch(query string) tea.Cmd {
	return tea.Tick(debounceDelay, func(time.Time) tea.Msg {
		return debounceTickMsg{query: query}
	})
}

func (m model) loadCurrentPreview() tea.Cmd {
	if !m.ready || len(m.items) == 0 || m.cursor >= len(m.items) {
		return nil
	}
	it := m.items[m.cursor]
	if previewCacheKey(it) == m.previewKey {
		return nil
	}
	return loadPreviewCmd(it, m.pattern, m.previewWidth())
}
