/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package connection

import (
	"context"
	"time"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/model"
)

// AutoResolver replaces every "auto" occurrence in staged with a
// concrete value at activation time (§4.7, §6.4). It must be pure and
// fast: it runs with the resource's staged document already committed
// and the fire sequence blocked on its return.
type AutoResolver func(resource model.Connectable, staged model.TransportParams) (model.TransportParams, error)

// TransportfileSetter rebuilds a Sender's manifest (SDP) from its newly
// active transport parameters (§4.7, §6.4; Senders only).
type TransportfileSetter func(sender *model.Sender, active model.TransportParams) (manifest string, err error)

// Manager runs the IS-05 connection state machine (§4.7) for every
// Sender and Receiver in Store: PATCH handling (merge + validate),
// the scheduled-activation timer queue, and the activation firing
// sequence, all driven through model.Store.Modify so the store's own
// write lock, version bump and change feed double as this package's
// concurrency control.
type Manager struct {
	Store               *model.Store
	AutoResolver         AutoResolver
	TransportfileSetter  TransportfileSetter
	MaxActivationSkew    time.Duration

	sched *scheduler
}

func NewManager(store *model.Store, maxSkew time.Duration, resolver AutoResolver, setter TransportfileSetter) *Manager {
	return &Manager{
		Store:               store,
		AutoResolver:         resolver,
		TransportfileSetter:  setter,
		MaxActivationSkew:    maxSkew,
		sched:                newScheduler(),
	}
}

// Run drives the scheduled-activation timer queue until ctx is
// cancelled (§4.7, §5: one goroutine per behaviour task).
func (m *Manager) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		var wait time.Duration
		if at, ok := m.sched.next(); !ok {
			wait = time.Hour
		} else if d := at.Sub(cmn.Now()); d > 0 {
			wait = d
		} else {
			wait = 0
		}

		if wait <= 0 {
			if id, ok := m.sched.popDue(cmn.Now()); ok {
				if err := m.fire(id); err != nil {
					cmn.Warningf("connection: scheduled activation of %s failed: %v", id, err)
				}
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		case <-m.sched.wake:
			timer.Stop()
		}
	}
	return nil
}
