package main

import (
	"github.com/spf13/cobra"
)

func newSyncCmd(g *globalOptions) *cobra.Command {
	var message, bundlePath string

	cmd := &cobra.Command{
		Use:   "sync <repo> <branch> [dir]",
		Short: "Replace a branch tree with a directory, creating the branch if needed",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			files, err := loadFiles(argOr(args, 2, "."), bundlePath)
			if err != nil {
				return err
			}

			res, err := s.engine().SyncBranch(cmd.Context(), args[0], args[1], files, s.message(message), s.creds)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case res.Created:
				printSuccess(out, "branch created")
			case res.NoChanges:
				printWarning(out, "no changes")
			default:
				printSuccess(out, "branch updated")
			}
			printLabelValue(out, "branch", res.BranchURL)
			printLabelValue(out, "commit", res.CommitID.Short())
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&bundlePath, "bundle", "", "sync files from a bundle instead of a directory")
	return cmd
}
