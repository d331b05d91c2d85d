package main

import (
	"github.com/spf13/cobra"
)

func newCreateCmd(g *globalOptions) *cobra.Command {
	var description, bundlePath string
	var private bool

	cmd := &cobra.Command{
		Use:   "create <name> [dir]",
		Short: "Create a repository and publish a directory as its first commit",
		Long: `Create a repository under the configured owner and make the contents of
dir (or of --bundle) the complete tree of its default branch. If the
repository already exists its URL is printed and nothing is written.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			if private {
				s.cfg.Sync.Private = true
			}
			files, err := loadFiles(argOr(args, 1, "."), bundlePath)
			if err != nil {
				return err
			}

			res, err := s.engine().CreateRepository(cmd.Context(), args[0], description, files, s.creds)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !res.Created {
				printWarning(out, "repository already exists")
				printLabelValue(out, "url", res.URL)
				return nil
			}
			printSuccess(out, "repository created")
			printLabelValue(out, "url", res.URL)
			if res.Commit != "" {
				printLabelValue(out, "commit", res.Commit.Short())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "repository description")
	cmd.Flags().BoolVar(&private, "private", false, "create a private repository")
	cmd.Flags().StringVar(&bundlePath, "bundle", "", "publish files from a bundle instead of a directory")
	return cmd
}
