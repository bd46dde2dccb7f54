/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package registration

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/discovery"
	"github.com/nmos-community/nmos-core/model"
)

func baseURL(inst discovery.Instance) string {
	return fmt.Sprintf("%s://%s:%d", inst.APIProto, inst.Host, inst.Port)
}

// runRegistering attempts to register the Node and every descendant it
// currently owns against the current candidate (§4.3). On success it
// moves to StateHealthy; on any unrecoverable failure it advances to
// the next candidate, cycling back to StateDiscovering once every
// candidate this round has been tried.
func (b *Behaviour) runRegistering(ctx context.Context) {
	if b.candidateIdx >= len(b.candidates) {
		b.setState(StateDiscovering)
		return
	}
	inst := b.candidates[b.candidateIdx]
	base := baseURL(inst)

	node, ok := b.Store.Find(b.NodeID)
	if !ok {
		cmn.Errorf("registration[%s]: own Node resource not present in store, cannot register", b.NodeID)
		cmn.SleepCtx(ctx, b.backoff.Next())
		return
	}

	ctx, cancel := context.WithTimeout(ctx, b.Cfg.RegistrationTimeout)
	defer cancel()

	if err := b.registerOne(ctx, base, string(model.TypeNode), node); err != nil {
		cmn.Warningf("registration[%s]: register Node against %s: %v", b.NodeID, base, err)
		b.candidateIdx++
		return
	}

	for _, t := range registerOrder {
		for _, r := range b.Store.ScanType(t) {
			if model.NodeOwnerID(r) != b.NodeID {
				continue
			}
			if err := b.registerOne(ctx, base, string(t), r); err != nil {
				cmn.Warningf("registration[%s]: register %s %s against %s: %v", b.NodeID, t, r.Envelope().ID, base, err)
				b.candidateIdx++
				return
			}
		}
	}

	cmn.Logf("registration[%s]: registered against %s", b.NodeID, base)
	b.registeredBase = base
	b.lastHeartbeatSeq = b.Store.HighWaterSeq()
	b.backoff.Reset()
	b.setState(StateHealthy)
}

// registerOne POSTs one resource, retrying exactly once via delete+post
// on a 409 mismatch (§4.3 step 1: "a 409 indicates the registry already
// holds different content under this id; delete it and retry").
func (b *Behaviour) registerOne(ctx context.Context, base, resourceType string, r model.Resource) error {
	body, err := cmn.Marshal(r)
	if err != nil {
		return err
	}
	status, _, err := b.Client.Register(ctx, base, resourceType, body)
	if err != nil {
		return cmn.Wrap(cmn.KindTransient, err, "registration: register")
	}
	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		return nil
	case status == http.StatusConflict:
		if _, derr := b.Client.Delete(ctx, base, resourceType, r.Envelope().ID); derr != nil {
			return cmn.Wrap(cmn.KindTransient, derr, "registration: delete-before-retry")
		}
		status, _, err = b.Client.Register(ctx, base, resourceType, body)
		if err != nil {
			return cmn.Wrap(cmn.KindTransient, err, "registration: retry after delete")
		}
		if status == http.StatusOK || status == http.StatusCreated {
			return nil
		}
		return cmn.Newf(cmn.KindConflict, "registration: retry after delete still returned %d", status)
	default:
		return cmn.Newf(cmn.KindTransient, "registration: unexpected status %d", status)
	}
}
