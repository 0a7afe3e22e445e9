// Package commands wires the daemon's cobra command tree: the implicit
// "serve" default, plus a "config" CLI convenience that reads the same
// config document the daemon itself resolves at startup. Grounded on
// dotcommander-vybe/internal/commands/root.go's Execute shape.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fleetd/internal/config"
)

// Execute runs the fleetd CLI.
func Execute() error {
	var persistRoot string

	root := &cobra.Command{
		Use:           "fleetd",
		Short:         "Persistent local coordination daemon for AI agent fleets",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		// Running fleetd with no subcommand starts the daemon, matching
		// how a long-running service binary is typically invoked.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(persistRoot)
		},
	}

	root.PersistentFlags().StringVar(&persistRoot, "persist-root", "", "Override the persist root (default: $FLEETD_PERSIST_ROOT or ~/fleetd-persist)")

	root.AddCommand(newServeCmd(&persistRoot))
	root.AddCommand(newConfigCmd(&persistRoot))

	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fleetd:", err)
	}
	return err
}

func loadConfig(persistRoot string) (config.Config, error) {
	return config.Load(persistRoot)
}
