/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package connection

import (
	"container/heap"
	"sync"

	"github.com/nmos-community/nmos-core/cmn"
)

// scheduledItem is one pending scheduled activation, ordered by the
// tie-break rule in §4.7: scheduled TAI time, then resource id, then
// request arrival order.
type scheduledItem struct {
	id      string
	at      cmn.TAITime
	arrival int64
	index   int
}

type scheduledQueue []*scheduledItem

func (q scheduledQueue) Len() int { return len(q) }

func (q scheduledQueue) Less(i, j int) bool {
	if !q[i].at.Equal(q[j].at) {
		return q[i].at.Before(q[j].at)
	}
	if q[i].id != q[j].id {
		return q[i].id < q[j].id
	}
	return q[i].arrival < q[j].arrival
}

func (q scheduledQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}

func (q *scheduledQueue) Push(x interface{}) {
	item := x.(*scheduledItem)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *scheduledQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

// scheduler is the single prioritised activation timer queue (§4.7).
// container/heap is used directly: nothing in the pack carries a
// priority-queue library and this is the textbook use it's built for.
type scheduler struct {
	mu      sync.Mutex
	pq      scheduledQueue
	byID    map[string]*scheduledItem
	arrival int64
	wake    chan struct{}
}

func newScheduler() *scheduler {
	return &scheduler{byID: map[string]*scheduledItem{}, wake: make(chan struct{}, 1)}
}

// schedule queues id to fire at "at". A resource carries at most one
// pending scheduled activation (its single staged_activation field), so
// a second call for the same id replaces the first.
func (s *scheduler) schedule(id string, at cmn.TAITime) {
	s.mu.Lock()
	if existing, ok := s.byID[id]; ok {
		heap.Remove(&s.pq, existing.index)
	}
	s.arrival++
	item := &scheduledItem{id: id, at: at, arrival: s.arrival}
	heap.Push(&s.pq, item)
	s.byID[id] = item
	s.mu.Unlock()
	s.poke()
}

// cancel removes id's pending scheduled activation, if any (§4.7: PATCH
// {activation: null} before it fires).
func (s *scheduler) cancel(id string) {
	s.mu.Lock()
	if existing, ok := s.byID[id]; ok {
		heap.Remove(&s.pq, existing.index)
		delete(s.byID, id)
	}
	s.mu.Unlock()
	s.poke()
}

func (s *scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// next reports the earliest scheduled fire time, or ok=false if empty.
func (s *scheduler) next() (at cmn.TAITime, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pq.Len() == 0 {
		return cmn.TAITime{}, false
	}
	return s.pq[0].at, true
}

// popDue removes and returns the earliest item's id if it is due at or
// before now.
func (s *scheduler) popDue(now cmn.TAITime) (id string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pq.Len() == 0 || s.pq[0].at.After(now) {
		return "", false
	}
	item := heap.Pop(&s.pq).(*scheduledItem)
	delete(s.byID, item.id)
	return item.id, true
}
