package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// newQueryCommand demonstrates Query's opaque bytes-in/bytes-out contract.
// Like destroy, it runs the demonstration topology for the duration of the
// call rather than attaching to an already-running one.
func newQueryCommand(log *logrus.Logger) *cobra.Command {
	var request string

	cmd := &cobra.Command{
		Use:   "query <node>",
		Short: "Run the demonstration topology and issue one query against a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := log.WithField("component", "cmd")
			topo, err := buildDemoTopology(entry)
			if err != nil {
				return err
			}
			if err := topo.Run(cmd.Context()); err != nil {
				return err
			}
			defer topo.Destroy(context.Background())

			resp, err := topo.Query(cmd.Context(), args[0], []byte(request))
			if err != nil {
				return err
			}
			fmt.Println(string(resp))
			return nil
		},
	}
	cmd.Flags().StringVar(&request, "request", "show status\n", "raw request bytes to send to the node's control socket")
	return cmd
}
