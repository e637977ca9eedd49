package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/nsim/scenario"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario.yaml>",
		Short: "Check a scenario file without running it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := scenario.Load(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"%s is valid: %d nodes, %d links, %d applications\n",
				args[0], len(cfg.Nodes), len(cfg.Links), len(cfg.Applications))

			return nil
		},
	}
}
