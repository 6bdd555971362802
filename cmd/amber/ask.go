package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hejijunhao/amber/internal/logging"
)

func newAskCmd(flags *rootFlags) *cobra.Command {
	var (
		sessionID string
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask one or more questions and print the replies",
		Long: `ask runs each argument as one turn of a single conversation, so later
arguments can follow up on earlier ones:

  amber ask "what projects have you built?" "tell me about the log classifier"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			level := logging.ParseLevel(cfg.LogLevel)
			if verbose {
				level = slog.LevelDebug
			}
			logger := logging.Init(false, level)

			a, err := newApp(cmd.Context(), cfg, logger, appOptions{transcriptOut: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			for _, q := range args {
				ans, err := a.pipeline.Ask(cmd.Context(), sessionID, q)
				if err != nil {
					return err
				}
				sessionID = ans.SessionID
				for _, r := range ans.Replies {
					if verbose {
						fmt.Fprintf(out, "[%s %s %.3f] ", r.Kind, r.Label, r.Confidence)
					}
					fmt.Fprintln(out, strings.TrimSpace(r.Text))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id (default: a new one)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show reply kind, topic and confidence")
	return cmd
}
