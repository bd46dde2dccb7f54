/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package registration

import (
	"context"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/discovery"
	"github.com/nmos-community/nmos-core/model"
)

// runPeerToPeer advertises this Node's own `_nmos-node._tcp` service
// (so Query clients can find it directly) while continuing to browse
// for a Registration API in the background; as soon as one reappears it
// stops advertising, takes the browsed instances as the new candidate
// list and moves straight to StateRegistering (§4.3's peer-to-peer
// fallback).
func (b *Behaviour) runPeerToPeer(ctx context.Context) {
	if b.peerStop == nil {
		port := 0
		if node, ok := b.Store.Find(b.NodeID); ok {
			if n, isNode := node.(*model.Node); isNode && len(n.APIEx.Endpoints) > 0 {
				port = n.APIEx.Endpoints[0].Port
			}
		}
		txt := b.Counters.TXT(map[string]string{
			"api_proto": b.Cfg.APIProto,
			"api_ver":   joinVersions(b.Cfg.APIVersions),
		})
		stop, err := b.Advertiser.Advertise(ctx, discovery.ServiceNode, port, txt)
		if err != nil {
			cmn.Warningf("registration[%s]: advertise %s: %v", b.NodeID, discovery.ServiceNode, err)
			cmn.SleepCtx(ctx, b.backoff.Next())
			return
		}
		b.peerStop = stop
		b.backoff.Reset()
		cmn.Logf("registration[%s]: advertising peer-to-peer on port %d", b.NodeID, port)
	}

	if !cmn.SleepCtx(ctx, b.backoff.Next()) {
		return
	}

	var found []discovery.Instance
	for _, svc := range b.Cfg.RegistryServiceTypes {
		inst, err := b.Resolver.Browse(ctx, svc, b.Cfg.RegistryDomain)
		if err != nil {
			continue
		}
		found = append(found, inst...)
	}
	ranked := discovery.SelectionOrder(found)
	filtered := ranked[:0:0]
	for _, inst := range ranked {
		if discovery.MatchesSettings(inst, b.Cfg.APIVersions, b.Cfg.APIProto, b.Cfg.APIAuth) {
			filtered = append(filtered, inst)
		}
	}
	if len(filtered) == 0 {
		return
	}

	cmn.Logf("registration[%s]: Registration API reappeared, leaving peer-to-peer", b.NodeID)
	b.peerStop()
	b.peerStop = nil
	b.candidates = filtered
	b.candidateIdx = 0
	b.attempts = 0
	b.backoff.Reset()
	b.setState(StateRegistering)
}

func joinVersions(vs []string) string {
	out := ""
	for i, v := range vs {
		if i > 0 {
			out += ","
		}
		out += v
	}
	return out
}
