package main

import (
	"fmt"
	"os"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/cs/internal/index"
	"github.com/Zuo-Peng/cs/internal/resume"
	"github.com/Zuo-Peng/cs/internal/session"
)

func resumeCmd(a *app) *cobra.Command {
	var copyLine, check bool

	cmd := &cobra.Command{
		Use:   "resume <id-prefix>",
		Short: "Print the shell line that resumes a session",
		Long:  "Prints a line for eval: it changes to the session's project directory and runs the first configured executable found on PATH.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, _, err := a.load()
			if err != nil {
				return err
			}
			s, err := idx.FindByPrefix(args[0])
			if err != nil {
				return err
			}
			d, err := directive(idx, s, a.cfg.Resume())
			if err != nil {
				return err
			}
			if check {
				exe, err := d.Resolve(nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "using %s\n", exe)
			}
			if d.ModelInherited {
				fmt.Fprintf(os.Stderr, "note: %s recorded no model, using %s\n", s.ShortID(), d.ModelFlag.Value)
			}

			line := d.ShellLine()
			if copyLine {
				if err := clipboard.WriteAll(line); err != nil {
					return fmt.Errorf("copy to clipboard: %w", err)
				}
				fmt.Fprintln(os.Stderr, "copied to clipboard")
			}
			fmt.Println(line)
			return nil
		},
	}

	cmd.Flags().BoolVar(&copyLine, "copy", false, "Also copy the line to the clipboard")
	cmd.Flags().BoolVar(&check, "check", false, "Fail unless a resume executable is on PATH")

	return cmd
}

// directive refuses sessions the tools could not reopen before building
// the resume line.
func directive(idx *index.Index, s session.Session, cfg resume.Config) (resume.Directive, error) {
	if err := index.CheckResumable(s); err != nil {
		return resume.Directive{}, err
	}
	return resume.Build(idx, s, cfg)
}
