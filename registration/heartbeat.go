/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package registration

import (
	"context"
	"net/http"

	"github.com/nmos-community/nmos-core/cmn"
)

// runHealthy performs one heartbeat cycle: sleep the configured
// interval, push any resource changes made since the last cycle, then
// POST health/nodes/{id} (§4.3, §3.3). A 404 means the Registry expired
// this Node (§4.4) and it must re-register from scratch against the
// same candidate; any other failure advances to the next candidate.
func (b *Behaviour) runHealthy(ctx context.Context) {
	if !cmn.SleepCtx(ctx, b.Cfg.HeartbeatInterval) {
		return
	}
	if err := b.reregisterChanged(ctx); err != nil {
		cmn.Warningf("registration[%s]: pushing changes before heartbeat: %v", b.NodeID, err)
		b.candidateIdx++
		b.setState(StateRegistering)
		return
	}

	hbCtx, cancel := context.WithTimeout(ctx, b.Cfg.HeartbeatTimeout)
	defer cancel()
	status, err := b.Client.Heartbeat(hbCtx, b.registeredBase, b.NodeID)
	if err != nil {
		cmn.Warningf("registration[%s]: heartbeat against %s: %v", b.NodeID, b.registeredBase, err)
		b.candidateIdx++
		b.setState(StateRegistering)
		return
	}
	switch status {
	case http.StatusOK:
		return
	case http.StatusNotFound:
		cmn.Warningf("registration[%s]: registry no longer holds this node, re-registering", b.NodeID)
		b.setState(StateRegistering)
	default:
		cmn.Warningf("registration[%s]: heartbeat unexpected status %d", b.NodeID, status)
		b.candidateIdx++
		b.setState(StateRegistering)
	}
}

// reregisterChanged pushes every resource change recorded since the
// last heartbeat cycle: an update is re-POSTed, a deletion issues a
// DELETE. It reuses Store.WaitForChange with a zero timeout as a
// non-blocking "what changed since seq" poll rather than adding a
// second query path to Store.
func (b *Behaviour) reregisterChanged(ctx context.Context) error {
	recs, seq := b.Store.WaitForChange(ctx, b.lastHeartbeatSeq, 0)
	if len(recs) == 0 {
		return nil
	}
	last := make(map[string]int, len(recs))
	for i, rec := range recs {
		last[rec.ID] = i
	}
	for i, rec := range recs {
		if last[rec.ID] != i {
			continue
		}
		if rec.Post == nil {
			if _, err := b.Client.Delete(ctx, b.registeredBase, string(rec.Type), rec.ID); err != nil {
				return err
			}
			continue
		}
		if err := b.registerOne(ctx, b.registeredBase, string(rec.Type), rec.Post); err != nil {
			return err
		}
	}
	b.lastHeartbeatSeq = seq
	return nil
}
