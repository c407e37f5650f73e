package main

import (
	"github.com/sirupsen/logrus"

	"gonett/internal/topology"
)

// buildDemoTopology wires a two-routers-direct-link topology (two plain
// RouterNodes joined through one SwitchNode, each with one addressed
// interface) as a hard-coded stand-in for what a real config-file reader
// would otherwise produce.
func buildDemoTopology(log *logrus.Entry) (*topology.Topology, error) {
	topo := topology.New(log)

	if _, err := topo.AddSwitch("s1"); err != nil {
		return nil, err
	}
	if _, err := topo.AddRouter("r1", topology.RouterPlain, ""); err != nil {
		return nil, err
	}
	if _, err := topo.AddRouter("r2", topology.RouterPlain, ""); err != nil {
		return nil, err
	}

	if err := topo.AddInterface("r1", "eth0", nil, "s1"); err != nil {
		return nil, err
	}
	if err := topo.AddInterface("r2", "eth0", nil, "s1"); err != nil {
		return nil, err
	}

	if err := topo.AddAddress("r1", "eth0", "10.0.0.1/24"); err != nil {
		return nil, err
	}
	if err := topo.AddAddress("r2", "eth0", "10.0.0.2/24"); err != nil {
		return nil, err
	}

	return topo, nil
}
