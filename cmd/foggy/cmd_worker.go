package main

import (
	"github.com/dd0wney/cluso-foggy/pkg/health"
	"github.com/dd0wney/cluso-foggy/pkg/remote"
	"github.com/spf13/cobra"
)

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Serve walk batches to remote dispatchers",
		Long: `Run a remote walk worker. Experiments with dispatch: remote list the
addresses of their workers in remote_workers.`,
		Example: `  foggy worker --listen tcp://0.0.0.0:7600
  foggy worker --listen tcp://0.0.0.0:7600 --health :7601`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("listen")
			healthAddr, _ := cmd.Flags().GetString("health")
			logger := newLogger(cmd, cmd.ErrOrStderr(), "")

			srv := remote.NewServer(logger)
			if err := srv.Listen(addr); err != nil {
				return err
			}
			defer srv.Close()

			if healthAddr != "" {
				checker := health.NewChecker()
				checker.RegisterLiveness("sessions", health.SessionCheck(srv.Sessions))
				checker.RegisterLiveness("memory", health.MemoryCheck(0))
				defer shutdown(serveHTTP(healthAddr, nil, checker, logger))
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return srv.Serve(ctx)
		},
	}
	cmd.Flags().String("listen", "tcp://0.0.0.0:7600", "Address to listen on")
	cmd.Flags().String("health", "", "Serve /healthz and /readyz on this address")
	return cmd
}
