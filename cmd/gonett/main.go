// Command gonett is the illustrative CLI front end for the topology
// orchestrator: it hard-codes one demonstration topology rather than
// parsing a config file (the INI reader is an external collaborator, not
// part of this core), and demonstrates installing a signal handler that
// invokes Destroy on interrupt.
package main

import (
	"os"

	"github.com/moby/sys/reexec"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if reexec.Init() {
		return
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	root := &cobra.Command{
		Use:           "gonett",
		Short:         "Simulate multi-node IP networks with namespaces, veths, and bridges",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(newRunCommand(log))
	root.AddCommand(newDestroyCommand(log))
	root.AddCommand(newQueryCommand(log))

	if err := root.Execute(); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
