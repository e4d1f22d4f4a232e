package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/cs/internal/index"
	"github.com/Zuo-Peng/cs/internal/render"
	"github.com/Zuo-Peng/cs/internal/stats"
)

func statsCmd(a *app) *cobra.Command {
	var days, top int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show usage per source: sessions, models, daily activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, _, err := a.load()
			if err != nil {
				return err
			}
			rep := stats.Compute(idx, stats.Options{
				Days:      days,
				TopModels: top,
				Resumable: index.Resumable,
			})
			return render.Stats(os.Stdout, rep, render.StatsOptions{Color: a.color()})
		},
	}

	cmd.Flags().IntVar(&days, "days", stats.DefaultDays, "Days in the daily activity chart")
	cmd.Flags().IntVar(&top, "top", stats.DefaultTopModels, "Models to list per source")

	return cmd
}
