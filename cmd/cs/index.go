package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/cs/internal/session"
)

func indexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Re-read every source and rewrite the session cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.loader.Rebuild = true

			fmt.Fprintf(os.Stderr, "Reading sources...\n")
			for _, src := range session.Sources {
				sc := a.cfg.Source(src)
				if sc.Disabled {
					fmt.Fprintf(os.Stderr, "  %-12s disabled\n", src.Label())
					continue
				}
				fmt.Fprintf(os.Stderr, "  %-12s %v\n", src.Label(), sc.Roots)
			}

			idx, rep, err := a.load()
			if err != nil {
				return err
			}
			a.flush()

			for _, src := range rep.Rebuilt {
				fmt.Fprintf(os.Stderr, "  %-12s %d sessions, %d history entries, %d skipped lines\n",
					src.Label(), len(idx.All(src)), idx.HistoryEntries(src), rep.Warnings[src])
			}
			fmt.Fprintf(os.Stderr, "Done in %s. Cache: %s\n", rep.Elapsed.Round(time.Millisecond), a.cfg.CachePath)
			return nil
		},
	}
}
