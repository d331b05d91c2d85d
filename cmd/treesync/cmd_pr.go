package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPRCmd(g *globalOptions) *cobra.Command {
	var title, body, head, base string

	cmd := &cobra.Command{
		Use:   "pr <repo>",
		Short: "Open a pull request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			pr, err := s.engine().CreatePullRequest(cmd.Context(), args[0], title, body, head, base, s.creds)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printSuccess(out, fmt.Sprintf("pull request #%d opened", pr.Number))
			printLabelValue(out, "url", pr.URL)
			printLabelValue(out, "state", pr.State)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "pull request title")
	cmd.Flags().StringVar(&body, "body", "", "pull request body")
	cmd.Flags().StringVar(&head, "head", "", "branch with the changes")
	cmd.Flags().StringVar(&base, "base", "", "branch to merge into (default: repository default)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("head")
	return cmd
}
