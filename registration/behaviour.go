// Package registration implements the Node registration behaviour
// (§4.3): discover a Registration API candidate, register the Node and
// its descendants, heartbeat against it, and fail over to the next
// candidate or back to discovery on error -- falling back to
// peer-to-peer advertising when no Registry can be found after
// MaxDiscoveryAttempts.
//
// The state machine generalises the teacher's join-cluster/keepalive
// retry loop (ais/target.go's cluster-join path, mirrored in the
// retrieved tgtcp.go's joinCluster/keepalive.ctrl) from "join the one
// configured primary" to "discover, rank and fail over across N
// candidates".
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package registration

import (
	"context"

	"go.uber.org/atomic"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/discovery"
	"github.com/nmos-community/nmos-core/model"
	"github.com/nmos-community/nmos-core/transport"
)

// registerOrder is the order in which a Node's own resources are
// registered once a candidate accepts the Node document itself. It
// happens to match the store's cascade-delete order (§4.1) since both
// are "parents before children", but is declared independently here
// since registration and deletion are different concerns.
var registerOrder = []model.Type{model.TypeDevice, model.TypeSource, model.TypeFlow, model.TypeSender, model.TypeReceiver}

// Behaviour runs the registration state machine for one Node as a
// single supervised goroutine; Run blocks until ctx is cancelled.
type Behaviour struct {
	Cfg        *cmn.Config
	Store      *model.Store // the Node's own resources, not the Registry's catalogue
	NodeID     string
	Resolver   discovery.Resolver
	Advertiser discovery.Advertiser
	Client     transport.RegistrationClient
	Counters   *discovery.ResourceCounters

	state   atomic.Int32
	backoff *cmn.Backoff

	candidates   []discovery.Instance
	candidateIdx int
	attempts     int

	registeredBase   string
	lastHeartbeatSeq int64

	peerStop func()
}

func New(cfg *cmn.Config, store *model.Store, nodeID string, resolver discovery.Resolver, adv discovery.Advertiser, client transport.RegistrationClient) *Behaviour {
	b := &Behaviour{
		Cfg: cfg, Store: store, NodeID: nodeID,
		Resolver: resolver, Advertiser: adv, Client: client,
		Counters: &discovery.ResourceCounters{},
		backoff:  &cmn.Backoff{Min: cfg.Backoff.Min, Max: cfg.Backoff.Max, Factor: cfg.Backoff.Factor},
	}
	b.state.Store(int32(StateDiscovering))
	return b
}

func (b *Behaviour) State() State { return State(b.state.Load()) }

func (b *Behaviour) setState(s State) {
	if State(b.state.Load()) != s {
		cmn.Logf("registration[%s]: %s -> %s", b.NodeID, b.State(), s)
	}
	b.state.Store(int32(s))
}

// Run drives the state machine until ctx is cancelled, matching the
// teacher's Runner.Run(stopCh) convention of treating shutdown as the
// only "normal" exit (it always returns nil).
func (b *Behaviour) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		switch b.State() {
		case StateDiscovering:
			b.runDiscovering(ctx)
		case StateRegistering:
			b.runRegistering(ctx)
		case StateHealthy:
			b.runHealthy(ctx)
		case StatePeerToPeer:
			b.runPeerToPeer(ctx)
		}
	}
	if b.peerStop != nil {
		b.peerStop()
		b.peerStop = nil
	}
	return nil
}
