package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/treesync/pkg/bundle"
	"github.com/odvcencio/treesync/pkg/workspace"
)

func newPullCmd(g *globalOptions) *cobra.Command {
	var outDir, bundlePath string

	cmd := &cobra.Command{
		Use:   "pull <repo> [branch]",
		Short: "Download the files of a branch",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (outDir == "") == (bundlePath == "") {
				return fmt.Errorf("exactly one of --out or --bundle is required")
			}
			s, err := g.open(cmd)
			if err != nil {
				return err
			}

			files, err := s.engine().ReadRepository(cmd.Context(), args[0], argOr(args, 1, ""), s.creds)
			if err != nil {
				return err
			}
			if bundlePath != "" {
				if err := bundle.WriteFile(bundlePath, files); err != nil {
					return err
				}
			} else if err := workspace.Write(outDir, files); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), fmt.Sprintf("pulled %d files", len(files)))
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "write files into this directory")
	cmd.Flags().StringVar(&bundlePath, "bundle", "", "write files into a bundle")
	return cmd
}
