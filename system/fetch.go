/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package system

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/discovery"
)

func baseURL(inst discovery.Instance) string {
	return fmt.Sprintf("%s://%s:%d", inst.APIProto, inst.Host, inst.Port)
}

// runFetching tries the current candidate's /global document. On
// success it stores the base URL and moves to StateSteady; on failure
// it drops the candidate and tries the next, falling back to
// StateDiscovering once every candidate this round has failed (§4.8).
func (b *Behaviour) runFetching(ctx context.Context) {
	if b.candidateIdx >= len(b.candidates) {
		b.setState(StateDiscovering)
		return
	}
	inst := b.candidates[b.candidateIdx]
	base := baseURL(inst)

	if err := b.fetchAndDeliver(ctx, base); err != nil {
		cmn.Warningf("system: fetch %s: %v", base, err)
		b.candidateIdx++
		return
	}

	b.mu.Lock()
	b.baseURL = base
	b.mu.Unlock()
	b.backoff.Reset()
	b.setState(StateSteady)
}

// runSteady sleeps a jittered interval (§4.8's uniform(min,max)) then
// refetches the current System API, dropping it and returning to
// StateFetching on error so the next candidate gets a turn.
func (b *Behaviour) runSteady(ctx context.Context) {
	if !cmn.SleepCtx(ctx, cmn.Jitter(b.Cfg.SystemIntervalMin, b.Cfg.SystemIntervalMax)) {
		return
	}
	base := b.CurrentBaseURL()
	if err := b.fetchAndDeliver(ctx, base); err != nil {
		cmn.Warningf("system: refetch %s: %v", base, err)
		b.candidateIdx++
		b.setState(StateFetching)
	}
}

// fetchAndDeliver GETs /global from base and hands it to Deliver,
// collapsing concurrent callers (the steady-state timer and any
// explicit Refetch call landing at the same moment) onto a single HTTP
// round trip via singleflight, so a manual refetch never doubles up
// with the scheduled one.
func (b *Behaviour) fetchAndDeliver(ctx context.Context, base string) error {
	_, err, _ := b.sf.Do(base, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, b.Cfg.SystemTimeout)
		defer cancel()
		status, body, err := b.Client.FetchGlobal(ctx, base)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, cmn.Newf(cmn.KindTransient, "system: GET /global: unexpected status %d", status)
		}
		if b.Deliver != nil {
			if err := b.Deliver(base, body); err != nil {
				return nil, cmn.Wrap(cmn.KindValidation, err, "system: deliver /global")
			}
		}
		return nil, nil
	})
	return err
}

// Refetch forces an immediate GET of the current System API, deduped
// via the same singleflight key the steady-state loop uses. It is a
// no-op returning an error if no System API has been found yet.
func (b *Behaviour) Refetch(ctx context.Context) error {
	base := b.CurrentBaseURL()
	if base == "" {
		return cmn.New(cmn.KindTransient, "system: no System API known yet")
	}
	return b.fetchAndDeliver(ctx, base)
}
