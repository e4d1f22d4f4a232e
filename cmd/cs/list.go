package main

import (
	"encoding/json"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/cs/internal/index"
	"github.com/Zuo-Peng/cs/internal/render"
	"github.com/Zuo-Peng/cs/internal/session"
)

func listCmd(a *app) *cobra.Command {
	var sources []string
	var project, since string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List resumable sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srcs, err := parseSources(sources)
			if err != nil {
				return err
			}
			now := time.Now()
			cutoff, err := parseSince(since, now)
			if err != nil {
				return err
			}

			idx, _, err := a.load()
			if err != nil {
				return err
			}

			sessions := selectSessions(idx, listFilter{
				Sources: srcs,
				Project: project,
				Since:   cutoff,
				Limit:   limit,
			})

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if sessions == nil {
					sessions = []session.Session{}
				}
				return enc.Encode(sessions)
			}
			return render.List(os.Stdout, sessions, render.ListOptions{
				Color: a.color(),
				Width: a.width(),
				Now:   now,
				Home:  a.home,
			})
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "Filter by source (claude, codex)")
	cmd.Flags().StringVar(&project, "project", "", "Filter by project path substring")
	cmd.Flags().StringVar(&since, "since", "", "Only sessions active since a date (YYYY-MM-DD) or age (7d, 36h)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results (0 = no limit)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print sessions as JSON")

	return cmd
}

type listFilter struct {
	Sources []session.Source
	Project string
	Since   time.Time
	Limit   int
}

func selectSessions(idx *index.Index, f listFilter) []session.Session {
	project := strings.ToLower(f.Project)
	var out []session.Session
	for s := range idx.Filter(func(s session.Session) bool {
		if len(f.Sources) > 0 && !slices.Contains(f.Sources, s.Source) {
			return false
		}
		if project != "" && !strings.Contains(strings.ToLower(s.ProjectPath), project) {
			return false
		}
		return f.Since.IsZero() || !s.LastActiveAt.Before(f.Since)
	}) {
		out = append(out, s)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}
