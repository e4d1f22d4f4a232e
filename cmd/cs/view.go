package main

import (
	"os"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/cs/internal/render"
	"github.com/Zuo-Peng/cs/internal/search"
)

func viewCmd(a *app) *cobra.Command {
	var thinking, tools bool
	var tail, line int
	var pattern string

	cmd := &cobra.Command{
		Use:   "view <id-prefix>",
		Short: "Print a session's conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var re *regexp.Regexp
			if pattern != "" {
				var err error
				if re, err = search.Compile(pattern); err != nil {
					return err
				}
			}

			idx, _, err := a.load()
			if err != nil {
				return err
			}
			s, err := idx.FindByPrefix(args[0])
			if err != nil {
				return err
			}

			return render.Conversation(os.Stdout, s, render.ConversationOptions{
				Color:    a.color(),
				Width:    a.width(),
				Thinking: thinking,
				Tools:    tools,
				Tail:     tail,
				Pattern:  re,
				HitLine:  line,
			})
		},
	}

	cmd.Flags().BoolVar(&thinking, "thinking", false, "Include reasoning blocks")
	cmd.Flags().BoolVar(&tools, "tools", false, "Include tool calls")
	cmd.Flags().IntVar(&tail, "tail", 0, "Only the last N messages (0 = all)")
	cmd.Flags().StringVar(&pattern, "grep", "", "Highlight matches of this regex")
	cmd.Flags().IntVar(&line, "line", 0, "Mark the message at this transcript line")

	return cmd
}
