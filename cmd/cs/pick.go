package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/cs/internal/tui"
)

func addPickFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("query", "q", "", "Initial filter text")
	cmd.Flags().BoolP("search", "s", false, "Start in transcript search mode")
	cmd.Flags().StringSlice("source", nil, "Only show these sources (claude, codex)")
	cmd.Flags().String("project", "", "Only show sessions whose project path contains this")
}

// pickCmdRun opens the picker and prints the resume line for the chosen
// session on stdout.
func pickCmdRun(a *app) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("query")
		searchMode, _ := cmd.Flags().GetBool("search")
		rawSources, _ := cmd.Flags().GetStringSlice("source")
		project, _ := cmd.Flags().GetString("project")

		sources, err := parseSources(rawSources)
		if err != nil {
			return err
		}

		idx, _, err := a.load()
		if err != nil {
			return err
		}
		if idx.Len() == 0 {
			return fmt.Errorf("no sessions found (see `cs doctor`)")
		}

		sel, err := tui.Run(idx, tui.Options{
			Query:   query,
			Search:  searchMode,
			Sources: sources,
			Project: project,
			Home:    a.home,
		})
		if err != nil {
			return err
		}
		if sel == nil {
			return nil
		}

		d, err := directive(idx, sel.Session, a.cfg.Resume())
		if err != nil {
			return err
		}
		if d.ModelInherited {
			fmt.Fprintf(os.Stderr, "note: %s recorded no model, using %s\n", sel.Session.ShortID(), d.ModelFlag.Value)
		}
		fmt.Println(d.ShellLine())
		return nil
	}
}
