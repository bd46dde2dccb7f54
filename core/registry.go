/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package core

import (
	"time"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/model"
	"github.com/nmos-community/nmos-core/registry"
)

// RegistryServer wires the Registry-side behaviours (§4.4-§4.6) into
// one supervised Server. Registration/query/subscription handling is
// itself request-driven -- invoked directly from HTTP handlers, which
// are out of this package's scope per §1's "concrete REST path
// registration" non-goal -- so the only long-lived task a Registry
// supervises at boot is its garbage collector; per-subscription pumps
// are started on demand as subscriptions are created, not tied to the
// Registry process's own lifetime.
type RegistryServer struct {
	*Server
	Registry *registry.Registry
	Engine   *registry.Engine
	GC       *registry.GC
}

func NewRegistryServer(cfg *cmn.Config, store *model.Store) *RegistryServer {
	owner := cmn.NewConfigOwner(cfg)
	srv := NewServer(owner, store)

	reg := registry.New(store)
	engine := registry.NewEngine(store)
	gc := registry.NewGC(store, cfg.ExpiryInterval)

	srv.Supervise("gc", gc.Run)

	return &RegistryServer{Server: srv, Registry: reg, Engine: engine, GC: gc}
}

// NewPump builds (but does not start) a per-subscription grain pump for
// q. Callers run it as its own goroutine for the lifetime of the
// subscription's WebSocket connection, per §4.6.
func (r *RegistryServer) NewPump(q registry.Query, maxUpdateRate, keepalive time.Duration, cap int, syncOnOpen bool) *registry.Pump {
	return &registry.Pump{
		Store:         r.Store,
		Query:         q,
		MaxUpdateRate: maxUpdateRate,
		Keepalive:     keepalive,
		Cap:           cap,
		SyncOnOpen:    syncOnOpen,
		Out:           make(chan registry.Grain, cap),
	}
}
