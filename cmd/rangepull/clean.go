package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanq16/rangepull/internal/output"
	"github.com/tanq16/rangepull/internal/rangeutil"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean <output-path>",
		Short: "remove any stray <output>.part* files left by a failed or interrupted transfer",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			removed, err := rangeutil.Clean(args[0])
			if err != nil {
				fail(fmt.Sprintf("clean failed: %v", err))
			}
			output.PrintSuccess(fmt.Sprintf("removed %d part file(s)", removed))
		},
	}
}
