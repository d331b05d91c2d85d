package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/treesync/pkg/treesync"
)

var version = "0.1.0-dev"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		printError(os.Stderr, err.Error())
		var pf *treesync.PartialFailureError
		if errors.As(err, &pf) {
			if pf.RepositoryCreated {
				fmt.Fprintf(os.Stderr, "  repository was created at %s; rerun push to finish the initial sync\n", pf.RepoURL)
			} else {
				fmt.Fprintf(os.Stderr, "  objects were left on %s; rerun the same command to finish the sync\n", pf.RepoURL)
			}
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:           "treesync",
		Short:         "Synchronize file sets with Git hosting repositories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	g.bind(root)

	root.AddCommand(newVersionCmd())
	root.AddCommand(newCreateCmd(g))
	root.AddCommand(newPushCmd(g))
	root.AddCommand(newSyncCmd(g))
	root.AddCommand(newPullCmd(g))
	root.AddCommand(newBranchCmd(g))
	root.AddCommand(newPRCmd(g))
	root.AddCommand(newPlanCmd(g))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "treesync "+version)
		},
	}
}
