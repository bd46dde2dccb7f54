/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package connection

import (
	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/model"
)

// fire runs the activation sequence for id (§4.7): resolve "auto"
// values, copy staged into active, rebuild a Sender's manifest, clear
// the pending activation request, and (via Store.Modify) bump the
// resource's version and emit a change grain. Called synchronously for
// activate_immediate and from Manager.Run for scheduled activations.
func (m *Manager) fire(id string) error {
	cur, ok := m.Store.Find(id)
	if !ok {
		return cmn.New(cmn.KindNotFound, "connection: resource removed before its activation fired")
	}
	connRes, ok := cur.(model.Connectable)
	if !ok {
		return cmn.Newf(cmn.KindInternal, "connection: %s is not a connectable resource", id)
	}
	staged := connRes.ConnState().Staged

	resolved, err := m.AutoResolver(connRes, staged)
	if err != nil {
		// Testable property: a throwing auto_resolver must leave active
		// byte-identical to its pre-activation state while still clearing
		// the now-failed pending request, so the resource doesn't appear
		// perpetually "about to activate". This is a second, independent
		// Modify rather than folding into the aborted one below, since
		// returning an error from the mutator itself would abort the
		// whole transaction -- including the clear.
		_ = m.Store.Modify(id, func(c model.Resource) (model.Resource, error) {
			next := c.Clone()
			next.(model.Connectable).ConnState().StagedActivation = nil
			return next, nil
		})
		return cmn.Wrap(cmn.KindInternal, err, "connection: auto-resolve")
	}

	return m.Store.Modify(id, func(c model.Resource) (model.Resource, error) {
		next := c.Clone()
		cs := next.(model.Connectable).ConnState()
		cs.Active = resolved
		if cs.StagedMasterEnable != nil {
			cs.MasterEnable = *cs.StagedMasterEnable
			cs.StagedMasterEnable = nil
		}
		cs.StagedActivation = nil
		switch r := next.(type) {
		case *model.Sender:
			if m.TransportfileSetter != nil {
				manifest, err := m.TransportfileSetter(r, resolved)
				if err != nil {
					return nil, cmn.Wrap(cmn.KindInternal, err, "connection: transportfile-setter")
				}
				r.ManifestHref = manifest
			}
			r.Subscription.Active = cs.MasterEnable
			if id, ok := firstString(resolved, "receiver_id"); ok {
				r.Subscription.ReceiverID = &id
			}
		case *model.Receiver:
			// Keep subscription.active in lock-step with the connection
			// API's own active document (§D): the reference implementation
			// treats these as one state, not two independently-settable
			// flags.
			r.Subscription.Active = cs.MasterEnable
			if id, ok := firstString(resolved, "sender_id"); ok {
				r.Subscription.SenderID = &id
			}
		}
		return next, nil
	})
}

// firstString returns the string value of key from the first leg of
// params that carries it.
func firstString(params model.TransportParams, key string) (string, bool) {
	for _, leg := range params {
		if v, ok := leg[key]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}
