// Package open shows a session transcript in the user's editor.
package open

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Zuo-Peng/cs/internal/session"
)

// Transcript opens the session's transcript file in $VISUAL, $EDITOR or
// less, positioned at line when the editor supports it.
func Transcript(s session.Session, line int) error {
	if s.TranscriptRef == "" {
		return fmt.Errorf("session %s has no transcript", s.ShortID())
	}
	if _, err := os.Stat(s.TranscriptRef); err != nil {
		return fmt.Errorf("transcript not found: %s", s.TranscriptRef)
	}

	argv := editorArgs(Editor(os.Getenv), s.TranscriptRef, line)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func Editor(getenv func(string) string) string {
	for _, k := range []string{"VISUAL", "EDITOR"} {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
	}
	return "less"
}

// editorArgs builds the argument vector. The editor value may carry its
// own flags ("code -w").
func editorArgs(editor, path string, line int) []string {
	fields := strings.Fields(editor)
	if len(fields) == 0 {
		fields = []string{"less"}
	}
	name := fields[0]
	args := append([]string{}, fields...)
	if line < 1 {
		return append(args, path)
	}

	switch {
	case strings.Contains(name, "vim") || strings.Contains(name, "nvim") || strings.Contains(name, "nano") || strings.Contains(name, "emacs"):
		return append(args, "+"+strconv.Itoa(line), path)
	case strings.Contains(name, "code") || strings.Contains(name, "cursor"):
		return append(args, "--goto", path+":"+strconv.Itoa(line))
	case strings.Contains(name, "less"):
		return append(args, "+"+strconv.Itoa(line), path)
	}
	return append(args, path)
}
