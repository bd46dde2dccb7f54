/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package system

import (
	"context"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/discovery"
)

// runDiscovering browses every configured System service type, ranks
// the results (§4.2's priority+shuffle rule) and moves to StateFetching
// once at least one candidate is found. Unlike registration there is no
// peer-to-peer fallback: absent a System API, this task just keeps
// retrying with backoff (§4.8 names no fallback mode).
func (b *Behaviour) runDiscovering(ctx context.Context) {
	var all []discovery.Instance
	for _, svc := range b.Cfg.SystemServiceTypes {
		found, err := b.Resolver.Browse(ctx, svc, b.Cfg.RegistryDomain)
		if err != nil {
			cmn.Warningf("system: browse %s: %v", svc, err)
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
		cmn.SleepCtx(ctx, b.backoff.Next())
		return
	}

	b.attempts = 0
	b.candidates = filtered
	b.candidateIdx = 0
	b.setState(StateFetching)
}
