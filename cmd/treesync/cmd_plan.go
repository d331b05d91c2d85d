package main

import (
	"github.com/spf13/cobra"
)

func newPlanCmd(g *globalOptions) *cobra.Command {
	var bundlePath string

	cmd := &cobra.Command{
		Use:   "plan <repo> [branch] [dir]",
		Short: "Show what a sync would upload, keep, and delete",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			files, err := loadFiles(argOr(args, 2, "."), bundlePath)
			if err != nil {
				return err
			}

			preview, err := s.engine().PlanBranch(cmd.Context(), args[0], argOr(args, 1, ""), files, s.creds)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if preview.Create {
				printWarning(out, "branch "+preview.Branch.Name+" does not exist and will be created")
			}
			if preview.Plan.Unchanged() {
				printSuccess(out, "up to date")
				return nil
			}
			renderPlan(out, preview.Plan)
			return nil
		},
	}

	cmd.Flags().StringVar(&bundlePath, "bundle", "", "plan files from a bundle instead of a directory")
	return cmd
}
