// Package cmd provides the command-line interface for nsim.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// envFlags lists the environment variables that provide default values for
// flags. Flags given on the command line take precedence.
var envFlags = map[string]string{
	"NSIM_LOG_LEVEL":    "log-level",
	"NSIM_QUEUE":        "queue",
	"NSIM_RECORD":       "record",
	"NSIM_MONITOR":      "monitor",
	"NSIM_MONITOR_PORT": "monitor-port",
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nsim",
		Short: "nsim runs network scenarios on a discrete event scheduler.",
		Long: `nsim runs network scenarios on a discrete event scheduler. ` +
			`A scenario is a YAML file that declares nodes, links, and ` +
			`applications. Defaults can be set with NSIM_* environment ` +
			`variables or a .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return applyEnv(cmd)
		},
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newValidateCmd())

	return rootCmd
}

// applyEnv loads .env if present and copies the NSIM_* variables into the
// flags that are not set on the command line.
func applyEnv(cmd *cobra.Command) error {
	_ = godotenv.Load()

	for env, flag := range envFlags {
		value, ok := os.LookupEnv(env)
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(flag)
		if f == nil || f.Changed {
			continue
		}

		err := cmd.Flags().Set(flag, value)
		if err != nil {
			return err
		}
	}

	return nil
}

// Execute runs the command line and exits. The exit handlers flush the
// recordings.
func Execute() {
	err := newRootCmd().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
