package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/cs/internal/render"
	"github.com/Zuo-Peng/cs/internal/search"
)

func searchCmd(a *app) *cobra.Command {
	var sources []string
	var project string
	var maxResults int

	cmd := &cobra.Command{
		Use:   "search <regex>",
		Short: "Search transcripts, newest sessions first",
		Long:  `Matches a case-insensitive regular expression against every message line and prints the first hit per session.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srcs, err := parseSources(sources)
			if err != nil {
				return err
			}
			re, err := search.Compile(args[0])
			if err != nil {
				return err
			}

			idx, _, err := a.load()
			if err != nil {
				return err
			}

			rep, err := search.Search(idx, search.Options{
				Sources:    srcs,
				Pattern:    args[0],
				Project:    project,
				MaxResults: maxResults,
			})
			if err != nil {
				return err
			}
			if len(rep.Results) == 0 {
				fmt.Fprintf(os.Stderr, "No matches in %d sessions.\n", rep.Scanned)
				return nil
			}
			return render.SearchResults(os.Stdout, rep, re, render.SearchOptions{
				Color: a.color(),
				Width: a.width(),
				Now:   time.Now(),
				Home:  a.home,
			})
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "Filter by source (claude, codex)")
	cmd.Flags().StringVar(&project, "project", "", "Filter by project path substring")
	cmd.Flags().IntVarP(&maxResults, "max", "n", search.DefaultMaxResults, "Stop after this many sessions match")

	return cmd
}
