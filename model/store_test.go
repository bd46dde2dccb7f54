/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package model

import (
	"context"
	"testing"
	"time"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(&cmn.Clock{})
}

func mkNode(id string) *Node {
	return &Node{Envelope: Envelope{ID: id, Type: TypeNode, Label: "node-" + id}, Href: "http://127.0.0.1:8080/"}
}

func mkDevice(id, nodeID string) *Device {
	return &Device{Envelope: Envelope{ID: id, Type: TypeDevice, NodeID: nodeID}}
}

func TestInsertAssignsMonotoneVersion(t *testing.T) {
	s := newTestStore()
	n := mkNode(NewID())
	require.NoError(t, s.Insert(n))
	v1 := n.Envelope.Version

	stored, ok := s.Find(n.ID)
	require.True(t, ok)
	assert.Equal(t, v1, stored.Envelope().Version)

	err := s.Modify(n.ID, func(cur Resource) (Resource, error) {
		node := cur.(*Node).Clone().(*Node)
		node.Label = "renamed"
		return node, nil
	})
	require.NoError(t, err)

	stored2, _ := s.Find(n.ID)
	v2 := stored2.Envelope().Version
	t1, _ := cmn.ParseTAITime(v1)
	t2, _ := cmn.ParseTAITime(v2)
	assert.True(t, t2.After(t1), "version must strictly increase: %s -> %s", v1, v2)
}

func TestInsertRejectsUnknownParentUnlessPermissive(t *testing.T) {
	s := newTestStore()
	dev := mkDevice(NewID(), NewID() /* nonexistent node */)
	err := s.Insert(dev)
	require.Error(t, err)
	assert.True(t, cmn.IsConflict(err))

	s.Permissive = true
	require.NoError(t, s.Insert(dev))
}

func TestCascadeDeleteRemovesAllDescendants(t *testing.T) {
	s := newTestStore()
	nodeID := NewID()
	require.NoError(t, s.Insert(mkNode(nodeID)))
	devID := NewID()
	require.NoError(t, s.Insert(mkDevice(devID, nodeID)))

	srcID := NewID()
	require.NoError(t, s.Insert(&Source{Envelope: Envelope{ID: srcID, Type: TypeSource, DeviceID: devID}, Format: FormatVideo}))

	flowID := NewID()
	require.NoError(t, s.Insert(&Flow{Envelope: Envelope{ID: flowID, Type: TypeFlow, SourceID: srcID, DeviceID: devID}, Format: FormatVideo}))

	senderID := NewID()
	require.NoError(t, s.Insert(&Sender{Envelope: Envelope{ID: senderID, Type: TypeSender, FlowID: flowID, DeviceID: devID}, Transport: TransportRTPMcast}))

	recvID := NewID()
	require.NoError(t, s.Insert(&Receiver{Envelope: Envelope{ID: recvID, Type: TypeReceiver, DeviceID: devID}, Format: FormatVideo, Transport: TransportRTPMcast}))

	require.NoError(t, s.Erase(nodeID, true))

	for _, id := range []string{nodeID, devID, srcID, flowID, senderID, recvID} {
		_, ok := s.Find(id)
		assert.False(t, ok, "id %s should have been cascade-deleted", id)
	}
}

func TestScanDeterministicOrder(t *testing.T) {
	s := newTestStore()
	var ids []string
	for i := 0; i < 5; i++ {
		id := NewID()
		ids = append(ids, id)
		require.NoError(t, s.Insert(mkNode(id)))
	}
	res := s.ScanType(TypeNode)
	require.Len(t, res, 5)
	for i, r := range res {
		assert.Equal(t, ids[i], r.Envelope().ID)
	}
}

func TestWaitForChangeDeliversAndTimesOut(t *testing.T) {
	s := newTestStore()
	after := s.HighWaterSeq()

	done := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = s.Insert(mkNode(NewID()))
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	recs, newAfter := s.WaitForChange(ctx, after, time.Second)
	<-done
	require.Len(t, recs, 1)
	assert.True(t, recs[0].IsCreate())
	assert.Greater(t, newAfter, after)

	// A second wait with no further changes must time out, not hang.
	start := time.Now()
	recs2, _ := s.WaitForChange(context.Background(), newAfter, 30*time.Millisecond)
	assert.Empty(t, recs2)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestEraseUnknownIsNotFound(t *testing.T) {
	s := newTestStore()
	err := s.Erase(NewID(), true)
	require.Error(t, err)
	assert.True(t, cmn.IsNotFound(err))
}

func TestModifyIfVersionRejectsStaleExpectedVersion(t *testing.T) {
	s := newTestStore()
	n := mkNode(NewID())
	require.NoError(t, s.Insert(n))
	staleVersion := n.Envelope.Version

	require.NoError(t, s.Modify(n.ID, func(cur Resource) (Resource, error) {
		node := cur.(*Node).Clone().(*Node)
		node.Label = "renamed"
		return node, nil
	}))
	afterFirst, _ := s.Find(n.ID)

	err := s.ModifyIfVersion(n.ID, staleVersion, func(cur Resource) (Resource, error) {
		node := cur.(*Node).Clone().(*Node)
		node.Label = "replayed-stale-write"
		return node, nil
	})
	require.Error(t, err)
	assert.True(t, cmn.IsConflict(err))

	unchanged, _ := s.Find(n.ID)
	assert.Equal(t, afterFirst.Envelope().Version, unchanged.Envelope().Version)
	assert.Equal(t, "renamed", unchanged.(*Node).Label)
}

func TestModifyIfVersionAcceptsCurrentVersion(t *testing.T) {
	s := newTestStore()
	n := mkNode(NewID())
	require.NoError(t, s.Insert(n))

	err := s.ModifyIfVersion(n.ID, n.Envelope.Version, func(cur Resource) (Resource, error) {
		node := cur.(*Node).Clone().(*Node)
		node.Label = "renamed-with-correct-version"
		return node, nil
	})
	require.NoError(t, err)

	stored, _ := s.Find(n.ID)
	assert.Equal(t, "renamed-with-correct-version", stored.(*Node).Label)
}

func TestHealthSurvivesModifyRoundTrip(t *testing.T) {
	s := newTestStore()
	n := mkNode(NewID())
	n.Health = 1234
	require.NoError(t, s.Insert(n))

	stored, ok := s.Find(n.ID)
	require.True(t, ok)
	assert.Equal(t, int64(1234), stored.Envelope().Health, "Health must round-trip through Insert/Find")

	require.NoError(t, s.Modify(n.ID, func(cur Resource) (Resource, error) {
		node := cur.(*Node).Clone().(*Node)
		node.Health = 5678
		node.Label = "renamed"
		return node, nil
	}))

	afterModify, ok := s.Find(n.ID)
	require.True(t, ok)
	assert.Equal(t, int64(5678), afterModify.Envelope().Health, "Health must survive a Modify that touches an unrelated field too")
}

func TestConnectionStateSurvivesModifyRoundTrip(t *testing.T) {
	s := newTestStore()
	id := NewID()
	require.NoError(t, s.Insert(&Sender{Envelope: Envelope{ID: id, Type: TypeSender}, Transport: TransportRTPMcast}))

	require.NoError(t, s.Modify(id, func(cur Resource) (Resource, error) {
		next := cur.Clone()
		cs := next.(Connectable).ConnState()
		cs.Staged = TransportParams{{"destination_port": 5000}}
		cs.MasterEnable = true
		return next, nil
	}))

	stored, ok := s.Find(id)
	require.True(t, ok)
	cs := stored.(Connectable).ConnState()
	require.Len(t, cs.Staged, 1, "staged transport params must survive the store round trip")
	assert.Equal(t, float64(5000), cs.Staged[0]["destination_port"])
	assert.True(t, cs.MasterEnable)

	// A second Modify that doesn't touch the connection facet at all
	// must not lose it either.
	require.NoError(t, s.Modify(id, func(cur Resource) (Resource, error) {
		next := cur.Clone()
		next.Envelope().Label = "relabelled"
		return next, nil
	}))
	stillStored, _ := s.Find(id)
	cs2 := stillStored.(Connectable).ConnState()
	require.Len(t, cs2.Staged, 1)
	assert.Equal(t, float64(5000), cs2.Staged[0]["destination_port"])
}

func TestInsertIdenticalContentIsIdempotent(t *testing.T) {
	s := newTestStore()
	id := NewID()
	n := &Node{Envelope: Envelope{ID: id, Type: TypeNode, Label: "same"}, Href: "http://127.0.0.1:8080/"}
	require.NoError(t, s.Insert(n))

	// A second Insert of a distinct Go value carrying the same NMOS
	// content (ignoring Version, which Insert stamps itself) must be a
	// no-op, not AlreadyExists.
	again := &Node{Envelope: Envelope{ID: id, Type: TypeNode, Label: "same"}, Href: "http://127.0.0.1:8080/"}
	require.NoError(t, s.Insert(again))

	mismatched := &Node{Envelope: Envelope{ID: id, Type: TypeNode, Label: "different"}, Href: "http://127.0.0.1:8080/"}
	err := s.Insert(mismatched)
	require.Error(t, err)
	assert.True(t, cmn.IsConflict(err))
}
