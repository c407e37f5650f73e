package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRunCommand(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Bring up the demonstration topology and hold it until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := log.WithField("component", "cmd")
			topo, err := buildDemoTopology(entry)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := topo.Run(ctx); err != nil {
				return err
			}
			entry.Info("topology running, waiting for interrupt")

			<-ctx.Done()
			entry.Info("interrupted, tearing down")

			return topo.Destroy(context.Background())
		},
	}
}
