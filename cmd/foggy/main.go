// Command foggy runs random-walk experiments on networks.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dd0wney/cluso-foggy/pkg/logging"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "foggy",
		Short: "Capacity-constrained random walks on networks",
		Long: `foggy marches populations of random walkers over weighted graphs and
records how busy every node is over time.

Walkers can move freely, be removed when a node is full (deletory), or wait
in a backlog for the next step (buffered).`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides the experiment and "+logging.EnvLevel+")")

	rootCmd.AddCommand(
		newVersionCmd(),
		newMarchCmd(),
		newWorkerCmd(),
		newInfoCmd(),
		newFluctuationsCmd(),
		newMuCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "foggy version %s\n", version)
		},
	}
}

// newLogger builds the process logger. The --log-level flag wins over
// fallback, which wins over the environment.
func newLogger(cmd *cobra.Command, w io.Writer, fallback string) logging.Logger {
	level := fallback
	if flag, _ := cmd.Flags().GetString("log-level"); flag != "" {
		level = flag
	}
	if level == "" {
		level = os.Getenv(logging.EnvLevel)
	}
	logger := logging.NewJSONLogger(w, logging.ParseLevel(level))
	logging.SetDefaultLogger(logger)
	return logger
}
