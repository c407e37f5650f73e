package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// newDestroyCommand demonstrates the Run-then-Destroy cycle in one shot.
// Nothing persists a topology across process invocations, so "destroy" here
// builds and runs the same demonstration topology a real caller would
// already be holding a live reference to, then tears it down immediately --
// useful as a smoke test of the cleanup-stack drain path.
func newDestroyCommand(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy",
		Short: "Bring up and immediately tear down the demonstration topology",
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := log.WithField("component", "cmd")
			topo, err := buildDemoTopology(entry)
			if err != nil {
				return err
			}
			if err := topo.Run(cmd.Context()); err != nil {
				return err
			}
			return topo.Destroy(context.Background())
		},
	}
}
