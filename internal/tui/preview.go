package tui

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Zuo-Peng/cs/internal/render"
)

// previewTail bounds how much of a long transcript the preview renders.
const previewTail = 200

// previewRenderedMsg is sent when an async preview render completes.
type previewRenderedMsg struct {
	key     string
	content string
	hitLine int // 0-based line in content to scroll to, -1 for none
	err     error
}

// loadPreviewCmd returns a tea.Cmd that renders the conversation preview async.
func loadPreviewCmd(it item, re *regexp.Regexp, width int) tea.Cmd {
	return func() tea.Msg {
		var buf bytes.Buffer
		opts := render.ConversationOptions{
			Color:   true,
			Width:   width,
			Pattern: re,
			HitLine: it.line,
		}
		if it.line == 0 {
			opts.Tail = previewTail
		}
		err := render.Conversation(&buf, it.sess, opts)
		content := buf.String()
		return previewRenderedMsg{
			key:     previewCacheKey(it),
			content: content,
			hitLine: findHit(content, it.line),
			err:     err,
		}
	}
}

// findHit locates the highlighted header Conversation writes for line.
func findHit(content string, line int) int {
	if line <= 0 {
		return -1
	}
	marker := fmt.Sprintf("> line %d <<", line)
	for i, l := range strings.Split(content, "\n") {
		if strings.Contains(l, marker) {
			return i
		}
	}
	return -1
}

func previewCacheKey(it item) string {
	return fmt.Sprintf("%s:%d", it.sess.Key(), it.line)
}

// newViewport creates a new viewport model with the given dimensions.
func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.Style = stylePanelBorder
	return vp
}
