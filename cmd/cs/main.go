package main

import (
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/cs/internal/config"
	"github.com/Zuo-Peng/cs/internal/log"
)

var version = "dev"

func main() {
	a := &app{}
	defer log.RecoverPanic(defaultLogFile(), a.flush)

	rootCmd := &cobra.Command{
		Use:   "cs",
		Short: "Browse, search and resume Claude Code and Codex sessions",
		Long: heredoc.Doc(`
			cs keeps a catalog of the sessions Claude Code and Codex leave on disk.

			Without a subcommand it opens an interactive picker and prints the
			shell line that resumes the chosen session, so it composes with eval:

			    eval "$(cs)"
		`),
		Version:           version,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.setup() },
		RunE:              pickCmdRun(a),
	}
	addPickFlags(rootCmd)

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default ~/.config/cs/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Verbose logging to the log file")
	rootCmd.PersistentFlags().BoolVar(&a.rebuild, "rebuild", false, "Ignore the cache and re-read every source")
	rootCmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(listCmd(a))
	rootCmd.AddCommand(searchCmd(a))
	rootCmd.AddCommand(statsCmd(a))
	rootCmd.AddCommand(viewCmd(a))
	rootCmd.AddCommand(resumeCmd(a))
	rootCmd.AddCommand(openCmd(a))
	rootCmd.AddCommand(indexCmd(a))
	rootCmd.AddCommand(doctorCmd(a))

	err := rootCmd.Execute()
	a.flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultLogFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir() + "/cs.log"
	}
	return config.Defaults(home, os.Getenv).LogFile
}
