// Package registry implements the Registry-side components named in
// §4.4-§4.6: the garbage collector, the query engine and the
// subscription grain pump. None of these expose HTTP themselves -- the
// concrete REST routing is boilerplate once the data model and state
// machine are correct (§1) -- they are the business logic an HTTP
// handler layer would call into.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package registry

import (
	"context"
	"time"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/model"
)

// GC is the Registry's garbage collector (§4.4): one task per registry
// that periodically sweeps the Node index and cascade-erases any Node
// whose heartbeat has gone silent for longer than ExpiryInterval.
//
// The sleep-then-sweep rhythm is grounded on the teacher's own
// housekeeping task shape (cluster/lom_cache_hk.go's periodic,
// re-armed evictor registered via hk.Reg), generalised from an
// atime-based memory evictor to an expiry-based Node sweep. Store's
// buntdb write transaction already gives the "never deletes while a
// mutation on the same id is in flight" guarantee §4.4 asks for, so GC
// adds no lock of its own.
type GC struct {
	Store          *model.Store
	ExpiryInterval time.Duration

	// Now is overridable for deterministic tests; nil means time.Now.
	Now func() time.Time
}

func NewGC(store *model.Store, expiryInterval time.Duration) *GC {
	return &GC{Store: store, ExpiryInterval: expiryInterval}
}

func (g *GC) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// Run sweeps until ctx is cancelled, sleeping min(ExpiryInterval/2, 1s)
// between sweeps (§4.4).
func (g *GC) Run(ctx context.Context) error {
	interval := g.ExpiryInterval / 2
	if interval <= 0 || interval > time.Second {
		interval = time.Second
	}
	for cmn.SleepCtx(ctx, interval) {
		g.Sweep()
	}
	return nil
}

// Sweep erases (cascading) every Node whose health has lapsed and
// returns the ids removed; exported directly so tests and scenario A
// (§8) can force a sweep without waiting on the timer.
func (g *GC) Sweep() []string {
	now := g.now().Unix()
	var expired []string
	for _, r := range g.Store.ScanType(model.TypeNode) {
		env := r.Envelope()
		if env.Health == model.NeverExpire {
			continue
		}
		if now-env.Health > int64(g.ExpiryInterval/time.Second) {
			expired = append(expired, env.ID)
		}
	}
	for _, id := range expired {
		if err := g.Store.Erase(id, true); err != nil && !cmn.IsNotFound(err) {
			cmn.Warningf("registry: gc erase %s: %v", id, err)
		}
	}
	return expired
}
