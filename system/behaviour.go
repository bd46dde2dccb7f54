// Package system implements the System API behaviour (§4.8): discover a
// System API candidate, pull its /global document, deliver it via a
// callback, and sleep a jittered interval before refetching -- dropping
// the current candidate and trying the next on any HTTP error.
//
// It mirrors registration's discover/register/heartbeat shape
// (registration/behaviour.go) generalised down to "no heartbeat, no
// descendants to register, just a periodic GET".
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package system

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/discovery"
	"github.com/nmos-community/nmos-core/transport"
)

// Callback delivers a freshly fetched global-config document. uri is
// the System API base the document came from, for logging/diagnostics.
type Callback func(uri string, document []byte) error

// Behaviour runs the System API pull state machine for one process as a
// single supervised goroutine; Run blocks until ctx is cancelled.
type Behaviour struct {
	Cfg      *cmn.Config
	Resolver discovery.Resolver
	Client   transport.SystemClient
	Deliver  Callback

	state   atomic.Int32
	backoff *cmn.Backoff

	candidates   []discovery.Instance
	candidateIdx int
	attempts     int

	mu      sync.RWMutex
	baseURL string

	sf singleflight.Group
}

func New(cfg *cmn.Config, resolver discovery.Resolver, client transport.SystemClient, deliver Callback) *Behaviour {
	b := &Behaviour{
		Cfg:      cfg,
		Resolver: resolver,
		Client:   client,
		Deliver:  deliver,
		backoff:  &cmn.Backoff{Min: cfg.Backoff.Min, Max: cfg.Backoff.Max, Factor: cfg.Backoff.Factor},
	}
	b.state.Store(int32(StateDiscovering))
	return b
}

func (b *Behaviour) State() State { return State(b.state.Load()) }

func (b *Behaviour) setState(s State) {
	if State(b.state.Load()) != s {
		cmn.Logf("system: %s -> %s", b.State(), s)
	}
	b.state.Store(int32(s))
}

// CurrentBaseURL returns the System API currently believed reachable,
// or "" if none has been found yet.
func (b *Behaviour) CurrentBaseURL() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.baseURL
}

// Run drives the state machine until ctx is cancelled.
func (b *Behaviour) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		switch b.State() {
		case StateDiscovering:
			b.runDiscovering(ctx)
		case StateFetching:
			b.runFetching(ctx)
		case StateSteady:
			b.runSteady(ctx)
		}
	}
	return nil
}
