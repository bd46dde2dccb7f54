/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/atomic"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/model"
)

// GrainEntry is one `{path, pre, post}` diff record (§4.6); either Pre
// or Post is nil to represent create/delete respectively.
type GrainEntry struct {
	Path string         `json:"path"`
	Pre  cmn.RawMessage `json:"pre,omitempty"`
	Post cmn.RawMessage `json:"post,omitempty"`
}

// Grain is the batched, timestamped diff delivered on a subscription's
// WebSocket stream (§4.6).
type Grain struct {
	Topic string `json:"grain.topic"`
	Timing struct {
		Origin  cmn.TAITime `json:"origin_timestamp"`
		Sync    cmn.TAITime `json:"sync_timestamp"`
		Created cmn.TAITime `json:"creation_timestamp"`
	} `json:"grain.timing"`
	Data []GrainEntry `json:"grain.data"`
}

func newGrain(topic string, now cmn.TAITime, data []GrainEntry) Grain {
	g := Grain{Topic: topic, Data: data}
	g.Timing.Origin, g.Timing.Sync, g.Timing.Created = now, now, now
	return g
}

func resourcePath(t model.Type, id string) string {
	return fmt.Sprintf("/%ss/%s", strings.ToLower(string(t)), id)
}

// Pump is the per-subscription writer task described in §4.6: it
// drains the store's change feed, batches matching deltas into grains
// no more often than MaxUpdateRate, emits an empty keepalive grain when
// idle past Keepalive, and reports backpressure via ErrFIFOOverflow
// when more than Cap records accumulate between emits ("the
// subscription is marked errored, the connection is closed with a code
// the client interprets as resync required").
//
// Concurrency is grounded on the store's existing WaitForChange
// primitive: the pump is simply a dedicated consumer of that feed,
// exactly the role §4.1's own condition-variable broadcast exists to
// serve, generalised from "one waiter" to "one waiter per
// subscription".
type Pump struct {
	Store         *model.Store
	Query         Query
	MaxUpdateRate time.Duration
	Keepalive     time.Duration
	Cap           int
	SyncOnOpen    bool

	// Out receives every emitted grain; the writer task (a WebSocket
	// handler, out of scope here) drains it. Sends never block: a full
	// Out is itself a slow-consumer condition and trips ErrFIFOOverflow.
	Out chan Grain

	errored atomic.Bool
}

var ErrFIFOOverflow = cmn.New(cmn.KindTransient, "registry: subscription FIFO overflow, resync required")

func (p *Pump) Errored() bool { return p.errored.Load() }

// Run drains the feed until ctx is cancelled or backpressure trips; it
// returns ErrFIFOOverflow in the latter case and nil on clean shutdown.
func (p *Pump) Run(ctx context.Context) error {
	after := p.Store.HighWaterSeq()

	if p.SyncOnOpen {
		if err := p.emitSync(); err != nil {
			return err
		}
	}

	var pending []GrainEntry
	lastEmit := time.Now()

	for {
		wait := p.Keepalive
		if len(pending) > 0 {
			if remain := p.MaxUpdateRate - time.Since(lastEmit); remain > 0 && remain < wait {
				wait = remain
			}
		}

		recs, newAfter := p.Store.WaitForChange(ctx, after, wait)
		if ctx.Err() != nil {
			return nil
		}
		after = newAfter

		for _, rec := range recs {
			entry, ok := p.toEntry(rec)
			if !ok {
				continue
			}
			pending = append(pending, entry)
			if p.Cap > 0 && len(pending) > p.Cap {
				p.errored.Store(true)
				return ErrFIFOOverflow
			}
		}

		switch {
		case len(pending) > 0 && time.Since(lastEmit) >= p.MaxUpdateRate:
			if err := p.send(newGrain(p.Query.topic(), cmn.Now(), pending)); err != nil {
				return err
			}
			pending = nil
			lastEmit = time.Now()
		case len(recs) == 0 && len(pending) == 0:
			if err := p.send(newGrain(p.Query.topic(), cmn.Now(), nil)); err != nil {
				return err
			}
			lastEmit = time.Now()
		}
	}
}

func (q Query) topic() string { return "/" + strings.ToLower(string(q.Type)) + "/" }

func (p *Pump) toEntry(rec model.ChangeRecord) (GrainEntry, bool) {
	subject := rec.Post
	if subject == nil {
		subject = rec.Pre
	}
	if subject == nil || !p.Query.Matches(subject) {
		return GrainEntry{}, false
	}
	entry := GrainEntry{Path: resourcePath(rec.Type, rec.ID)}
	if rec.Pre != nil {
		entry.Pre, _ = cmn.Marshal(rec.Pre)
	}
	if rec.Post != nil {
		entry.Post, _ = cmn.Marshal(rec.Post)
	}
	return entry, true
}

func (p *Pump) emitSync() error {
	var entries []GrainEntry
	for _, r := range p.Store.Scan(func(r model.Resource) bool { return p.Query.Matches(r) }) {
		buf, _ := cmn.Marshal(r)
		entries = append(entries, GrainEntry{Path: resourcePath(r.Envelope().Type, r.Envelope().ID), Post: buf})
	}
	return p.send(newGrain(p.Query.topic(), cmn.Now(), entries))
}

func (p *Pump) send(g Grain) error {
	select {
	case p.Out <- g:
		return nil
	default:
		p.errored.Store(true)
		return ErrFIFOOverflow
	}
}
