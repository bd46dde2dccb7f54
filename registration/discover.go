/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package registration

import (
	"context"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/discovery"
)

// runDiscovering browses every configured Registration service type,
// merges and ranks the results (§4.2's priority+shuffle rule), and
// moves to StateRegistering once at least one candidate is found.
// After MaxDiscoveryAttempts consecutive empty browses it falls back to
// StatePeerToPeer instead (§4.3); MaxDiscoveryAttempts of 0 means retry
// forever.
func (b *Behaviour) runDiscovering(ctx context.Context) {
	var all []discovery.Instance
	for _, svc := range b.Cfg.RegistryServiceTypes {
		found, err := b.Resolver.Browse(ctx, svc, b.Cfg.RegistryDomain)
		if err != nil {
			cmn.Warningf("registration[%s]: browse %s: %v", b.NodeID, svc, err)
			continue
		}
		all = append(all, found...)
	}
	if ctx.Err() != nil {
		return
	}

	ranked := discovery.SelectionOrder(all)
	filtered := ranked[:0:0]
	for _, inst := range ranked {
		if discovery.MatchesSettings(inst, b.Cfg.APIVersions, b.Cfg.APIProto, b.Cfg.APIAuth) {
			filtered = append(filtered, inst)
		}
	}

	if len(filtered) == 0 {
		b.attempts++
		if b.Cfg.MaxDiscoveryAttempts > 0 && b.attempts >= b.Cfg.MaxDiscoveryAttempts {
			cmn.Warningf("registration[%s]: no Registration API found after %d attempts, falling back to peer-to-peer", b.NodeID, b.attempts)
			b.setState(StatePeerToPeer)
			return
		}
		cmn.SleepCtx(ctx, b.backoff.Next())
		return
	}

	b.attempts = 0
	b.candidates = filtered
	b.candidateIdx = 0
	b.setState(StateRegistering)
}
