// Command nmos-node runs a single NMOS Node: registration, connection
// management and System API pull behaviours against a Registry
// discovered over DNS-SD. Concrete REST routing is out of this
// module's scope (§1); this entrypoint wires the behaviour tasks a
// Node's HTTP handlers would otherwise call into.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/core"
	"github.com/nmos-community/nmos-core/discovery"
	"github.com/nmos-community/nmos-core/model"
	"github.com/nmos-community/nmos-core/system"
	"github.com/nmos-community/nmos-core/transport"
)

var nodeSeed = flag.String("node-seed", "", "deterministic seed for this Node's resource identity (§3.1); empty generates a random id")

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	cfg := cmn.Defaults(cmn.RoleNode)
	store := model.NewStore(&cmn.Clock{})

	nodeID := model.NewID()
	if *nodeSeed != "" {
		nodeID = model.SeededID(*nodeSeed, "node")
	}
	if err := store.Insert(&model.Node{Envelope: model.Envelope{ID: nodeID, Type: model.TypeNode, Health: model.NeverExpire}}); err != nil {
		cmn.Fatalf("nmos-node: seed own Node resource: %v", err)
	}

	resolver := &discovery.DNSResolver{}
	httpClient := transport.NewHTTPTransport(cfg.RegistrationTimeout)

	srv := core.NewNodeServer(
		cfg, store, nodeID,
		resolver, discovery.NoopAdvertiser{},
		httpClient, httpClient,
		identityAutoResolver, nil,
		func(uri string, document []byte) error {
			cmn.Logf("nmos-node: received global config from %s (%d bytes)", uri, len(document))
			return nil
		},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Run(ctx, 30*time.Second); err != nil {
		cmn.Errorf("nmos-node: exited: %v", err)
		return 1
	}
	return 0
}

// identityAutoResolver is the default auto-resolver: it leaves every
// staged value as-is. A real Node replaces this with one that picks
// concrete interfaces/addresses/ports per its own transport
// capabilities (§6.4); this module's scope stops at the interface.
func identityAutoResolver(_ model.Connectable, staged model.TransportParams) (model.TransportParams, error) {
	return staged, nil
}
