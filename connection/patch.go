/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package connection

import (
	"time"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/model"
)

// PatchRequest is the decoded body of a Connection API PATCH (§4.7).
// A nil field means "the PATCH didn't mention this" -- leave it alone.
type PatchRequest struct {
	TransportParams model.TransportParams
	MasterEnable    *bool
	Activation      *model.Activation
	ClearActivation bool // PATCH {"activation": null}

	// IfVersion, when non-empty, guards the merge with the optimistic-
	// concurrency check in model.Store.ModifyIfVersion: a PATCH replaying
	// a version older than what the store currently holds for id is
	// rejected with Conflict and the store is left untouched (§7, §8
	// scenario F), rather than silently merging over an intervening
	// write.
	IfVersion string
}

// ApplyPatch merges req into id's staged connection state and, if req
// carries an activation request, either fires it immediately or queues
// it on the scheduler (§4.7). now is the receive time used to resolve
// activate_scheduled_relative offsets and to validate
// activate_scheduled_absolute's ±MaxActivationSkew window.
func (m *Manager) ApplyPatch(id string, req PatchRequest, now cmn.TAITime) (*model.Activation, error) {
	resource, ok := m.Store.Find(id)
	if !ok {
		return nil, cmn.New(cmn.KindNotFound, "connection: unknown resource")
	}
	if _, ok := resource.(model.Connectable); !ok {
		return nil, cmn.Newf(cmn.KindValidation, "connection: %s does not accept connection management", id)
	}

	if req.ClearActivation {
		m.sched.cancel(id)
		err := m.Store.ModifyIfVersion(id, req.IfVersion, func(c model.Resource) (model.Resource, error) {
			next := c.Clone()
			next.(model.Connectable).ConnState().StagedActivation = nil
			return next, nil
		})
		return nil, err
	}

	var activation *model.Activation
	var fireAt cmn.TAITime
	immediate := false

	if req.Activation != nil {
		act := *req.Activation
		switch act.Mode {
		case model.ActivateImmediate:
			fireAt = now
			immediate = true
		case model.ActivateScheduledRelative:
			fireAt = now.Add(time.Duration(act.RequestedOffsetNs))
		case model.ActivateScheduledAbsolute:
			parsed, err := cmn.ParseTAITime(act.RequestedTime)
			if err != nil {
				return nil, cmn.Wrap(cmn.KindValidation, err, "connection: malformed requested_time")
			}
			if skew := parsed.Sub(now); skew > m.MaxActivationSkew || skew < -m.MaxActivationSkew {
				return nil, cmn.Newf(cmn.KindValidation, "connection: requested_time %s is outside the realistic %s window", act.RequestedTime, m.MaxActivationSkew)
			}
			fireAt = parsed
		default:
			return nil, cmn.Newf(cmn.KindValidation, "connection: unknown activation mode %q", act.Mode)
		}
		act.ActivationTime = fireAt.String()
		activation = &act
	}

	err := m.Store.ModifyIfVersion(id, req.IfVersion, func(c model.Resource) (model.Resource, error) {
		next := c.Clone()
		cs := next.(model.Connectable).ConnState()
		if req.TransportParams != nil {
			cs.Staged = MergeTransportParams(cs.Staged, req.TransportParams)
		}
		if req.MasterEnable != nil {
			cs.StagedMasterEnable = req.MasterEnable
		}
		if activation != nil {
			cs.StagedActivation = activation
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case activation == nil:
		return nil, nil
	case immediate:
		if err := m.fire(id); err != nil {
			return activation, err
		}
	default:
		m.sched.schedule(id, fireAt)
	}
	return activation, nil
}

// BulkPatchItem is one entry of a `POST bulk/<senders|receivers>`
// request (§6.2): the same PatchRequest body a single-resource PATCH
// takes, addressed at one id among several in the batch.
type BulkPatchItem struct {
	ID      string
	Request PatchRequest
}

// BulkPatchResult is the per-id outcome of BulkPatch, shaped like the
// reference implementation's bulk response: one entry per requested id,
// each independently successful or failed.
type BulkPatchResult struct {
	ID         string
	Activation *model.Activation
	Error      error
}

// BulkPatch fans a bulk connection request out over ApplyPatch, one call
// per item, so a single malformed or conflicting id in the batch can
// never prevent its siblings from committing (§6.2: bulk is a thin
// fan-out over the single-resource PATCH path, not a second state
// machine with its own atomicity). now is shared across the whole batch
// exactly like a single PATCH's receive time.
func (m *Manager) BulkPatch(items []BulkPatchItem, now cmn.TAITime) []BulkPatchResult {
	results := make([]BulkPatchResult, len(items))
	for i, item := range items {
		activation, err := m.ApplyPatch(item.ID, item.Request, now)
		results[i] = BulkPatchResult{ID: item.ID, Activation: activation, Error: err}
	}
	return results
}
