package main

import (
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/cs/internal/open"
)

func openCmd(a *app) *cobra.Command {
	var line int

	cmd := &cobra.Command{
		Use:   "open <id-prefix>",
		Short: "Open the raw transcript in $EDITOR",
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
			return open.Transcript(s, line)
		},
	}

	cmd.Flags().IntVar(&line, "line", 0, "Line to jump to")

	return cmd
}
