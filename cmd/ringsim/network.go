package main

import (
	"fmt"

	"github.com/nvandessel/ringsim/internal/grid"
	"github.com/nvandessel/ringsim/internal/topology"
)

// builtNetwork is a network with the documents it was built from.
type builtNetwork struct {
	cfg    *topology.Config
	layout *topology.Layout
	net    *grid.Network
}

// buildNetwork loads the configured topology documents and builds the network.
func buildNetwork(e *cmdEnv) (*builtNetwork, error) {
	cfg, layout, err := topology.Load(e.app.Topology.Config, e.app.Topology.LayoutDir)
	if err != nil {
		return nil, err
	}
	net, err := topology.Build(cfg, layout, topology.WithLogger(e.logger))
	if err != nil {
		return nil, fmt.Errorf("building topology: %w", err)
	}
	e.logger.Debug("network built",
		"config", e.app.Topology.Config,
		"buses", len(net.Buses),
		"lines", len(net.Lines))
	return &builtNetwork{cfg: cfg, layout: layout, net: net}, nil
}

// topologyFlags registers the flags that override topology.* settings.
type topologyFlags struct {
	config    string
	layoutDir string
}

func (f *topologyFlags) apply(e *cmdEnv) {
	if f.config != "" {
		e.app.Topology.Config = e.resolve(f.config)
	}
	if f.layoutDir != "" {
		e.app.Topology.LayoutDir = e.resolve(f.layoutDir)
	}
}
