/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package registry

import (
	"net/http"
	"time"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/model"
)

// Registry is the Registration API's business logic (§4.1, §4.3): the
// counterpart a registration.Behaviour's Register/Delete/Heartbeat
// calls ultimately reach once an HTTP layer decodes the request body.
type Registry struct {
	Store *model.Store
}

func New(store *model.Store) *Registry { return &Registry{Store: store} }

// Register handles one POST resource (§4.3 step 1-2): 201 for a
// brand-new id, 200 for an idempotent re-POST of identical content, or
// a Conflict for a 409 mismatch that the caller must resolve with a
// delete-then-retry.
func (r *Registry) Register(resource model.Resource, now time.Time) (status int, err error) {
	env := resource.Envelope()
	if env.Type == model.TypeNode {
		env.Health = now.Unix()
	} else if owner, ok := r.Store.Find(model.NodeOwnerID(resource)); ok {
		// descendants inherit liveness from their owning Node (§3.3); GC
		// only ever inspects the Node's own Health, but keeping this
		// consistent avoids a surprising value if a caller inspects it.
		env.Health = owner.Envelope().Health
	}

	if existing, ok := r.Store.Find(env.ID); ok {
		if sameContent(existing, resource) {
			if env.Type == model.TypeNode {
				_ = r.touchHealth(env.ID, now)
			}
			return http.StatusOK, nil
		}
		return http.StatusConflict, cmn.ErrAlreadyExists
	}

	if err := model.ValidateEnvelope(resource); err != nil {
		return cmn.KindOf(err).HTTPStatus(), err
	}
	if err := r.Store.Insert(resource); err != nil {
		return cmn.KindOf(err).HTTPStatus(), err
	}
	return http.StatusCreated, nil
}

// Delete handles DELETE resource/{type}s/{id}, cascading per §4.1.
func (r *Registry) Delete(id string) (status int, err error) {
	if err := r.Store.Erase(id, true); err != nil {
		if cmn.IsNotFound(err) {
			return http.StatusNotFound, err
		}
		return cmn.KindOf(err).HTTPStatus(), err
	}
	return http.StatusOK, nil
}

// Heartbeat handles POST health/nodes/{id} (§4.3): 200 on a known
// Node, 404 if the Registry no longer holds it (the Node must
// re-register from scratch).
func (r *Registry) Heartbeat(nodeID string, now time.Time) (status int, err error) {
	if err := r.touchHealth(nodeID, now); err != nil {
		return cmn.KindOf(err).HTTPStatus(), err
	}
	return http.StatusOK, nil
}

func (r *Registry) touchHealth(nodeID string, now time.Time) error {
	return r.Store.Modify(nodeID, func(cur model.Resource) (model.Resource, error) {
		if cur == nil {
			return nil, cmn.New(cmn.KindNotFound, "registry: node not registered")
		}
		n := cur.(*model.Node).Clone().(*model.Node)
		n.Health = now.Unix()
		return n, nil
	})
}

// sameContent compares two resources ignoring Version (which always
// differs once either has been stored) so a re-POST of truly identical
// content is idempotent rather than a spurious conflict.
func sameContent(a, b model.Resource) bool {
	ca, cb := a.Clone(), b.Clone()
	ca.Envelope().Version, cb.Envelope().Version = "", ""
	ja, erra := cmn.Marshal(ca)
	jb, errb := cmn.Marshal(cb)
	if erra != nil || errb != nil {
		return false
	}
	return string(ja) == string(jb)
}
