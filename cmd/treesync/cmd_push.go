package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPushCmd(g *globalOptions) *cobra.Command {
	var message, bundlePath string

	cmd := &cobra.Command{
		Use:   "push <repo> [dir]",
		Short: "Replace the default branch tree with a directory",
		Long: `Make the contents of dir (or of --bundle) the complete tree of the
repository's default branch. Files on the branch that are not present
locally are deleted by the new commit.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			files, err := loadFiles(argOr(args, 1, "."), bundlePath)
			if err != nil {
				return err
			}

			res, err := s.engine().SyncFullRepository(cmd.Context(), args[0], files, s.message(message), s.creds)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.NoChanges {
				printWarning(out, "no changes")
				return nil
			}
			printSuccess(out, fmt.Sprintf("pushed %d files", len(files)))
			printLabelValue(out, "commit", res.Commit.Short())
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&bundlePath, "bundle", "", "push files from a bundle instead of a directory")
	return cmd
}
