package main

import (
	"github.com/spf13/cobra"
)

func newBranchCmd(g *globalOptions) *cobra.Command {
	var base string

	cmd := &cobra.Command{
		Use:   "branch <repo> <name>",
		Short: "Create a branch at the head of a base branch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			res, err := s.engine().CreateBranch(cmd.Context(), args[0], args[1], base, s.creds)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Created {
				printSuccess(out, "branch created")
			} else {
				printWarning(out, "branch already exists")
			}
			printLabelValue(out, "url", res.URL)
			return nil
		},
	}

	cmd.Flags().StringVar(&base, "base", "", "base branch (default: configured base or the repository default)")
	return cmd
}
