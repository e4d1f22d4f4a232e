// Package resume turns a session into the command line that reopens it in
// its own tool.
package resume

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Zuo-Peng/cs/internal/session"
)

// Config lists, per source, the executables to try in order.
type Config struct {
	Claude []string
	Codex  []string
}

var DefaultConfig = Config{
	Claude: []string{"cc", "claude"},
	Codex:  []string{"c", "codex"},
}

// ModelLookup supplies the fallback model for sessions that never recorded one.
type ModelLookup interface {
	MostRecentModel(src session.Source, excludeID string) string
}

type Flag struct {
	Name  string
	Value string
}

func (f *Flag) args() []string {
	if f == nil {
		return nil
	}
	return []string{f.Name, f.Value}
}

// Directive is everything needed to resume a session. Nothing is executed.
type Directive struct {
	Source      session.Source
	SessionID   string
	Executables []string
	Args        []string
	ModelFlag   *Flag
	EffortFlag  *Flag
	WorkDir     string
	// ModelInherited is set when the model came from another session.
	ModelInherited bool
}

var ErrNoExecutable = errors.New("no resume executable found")

// Build assembles the directive for s. A session without a model inherits
// the most recent model used with the same source; the effort flag only
// exists for Codex.
func Build(models ModelLookup, s session.Session, cfg Config) (Directive, error) {
	if s.ID == "" {
		return Directive{}, errors.New("session has no id")
	}
	d := Directive{
		Source:    s.Source,
		SessionID: s.ID,
		WorkDir:   s.ProjectPath,
	}

	var modelFlag string
	switch s.Source {
	case session.ClaudeCode:
		d.Executables = pick(cfg.Claude, DefaultConfig.Claude)
		d.Args = []string{"--resume", s.ID}
		modelFlag = "--model"
	case session.Codex:
		d.Executables = pick(cfg.Codex, DefaultConfig.Codex)
		d.Args = []string{"resume", s.ID}
		modelFlag = "-m"
		if e := session.EffortCandidate(s.ReasoningEffort); e != "" {
			d.EffortFlag = &Flag{Name: "-c", Value: fmt.Sprintf("model_reasoning_effort=%q", e)}
		}
	default:
		return Directive{}, fmt.Errorf("unknown source %q", s.Source)
	}

	model := session.ModelCandidate(s.Model)
	if model == "" && models != nil {
		model = session.ModelCandidate(models.MostRecentModel(s.Source, s.ID))
		d.ModelInherited = model != ""
	}
	if model != "" {
		d.ModelFlag = &Flag{Name: modelFlag, Value: model}
	}
	return d, nil
}

func pick(configured, fallback []string) []string {
	var out []string
	for _, c := range configured {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// Argv is the full argument vector for executable exe.
func (d Directive) Argv(exe string) []string {
	argv := append([]string{exe}, d.Args...)
	argv = append(argv, d.ModelFlag.args()...)
	return append(argv, d.EffortFlag.args()...)
}

// Resolve returns the first configured executable found by lookPath
// (exec.LookPath when nil).
func (d Directive) Resolve(lookPath func(string) (string, error)) (string, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	for _, exe := range d.Executables {
		if _, err := lookPath(exe); err == nil {
			return exe, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrNoExecutable, strings.Join(d.Executables, ", "))
}

// ShellLine renders the directive as one POSIX shell line that changes to
// the project directory and runs the first executable that exists. Shell
// aliases and functions count, which is why the check is left to the shell.
func (d Directive) ShellLine() string {
	var b strings.Builder
	if d.WorkDir != "" {
		b.WriteString("cd ")
		b.WriteString(Quote(d.WorkDir))
		b.WriteString(" && ")
	}
	for i, exe := range d.Executables {
		if i == 0 {
			b.WriteString("if ")
		} else {
			b.WriteString("; elif ")
		}
		fmt.Fprintf(&b, "command -v %s >/dev/null 2>&1; then %s", Quote(exe), joinQuoted(d.Argv(exe)))
	}
	if len(d.Executables) > 0 {
		fmt.Fprintf(&b, "; else echo %s >&2; false; fi", Quote("no "+d.Source.Label()+" command found"))
	}
	return b.String()
}

// Command is the single command line for the first executable, without
// the directory change or fallbacks.
func (d Directive) Command() string {
	if len(d.Executables) == 0 {
		return ""
	}
	return joinQuoted(d.Argv(d.Executables[0]))
}

func joinQuoted(argv []string) string {
	q := make([]string, len(argv))
	for i, a := range argv {
		q[i] = Quote(a)
	}
	return strings.Join(q, " ")
}

// Quote single-quotes s for a POSIX shell unless it is made only of
// characters that never need quoting.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=@%+,", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
