/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package model

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/tidwall/buntdb"
)

// Store is the versioned, indexed resource collection described in
// §3.5 and §4.1. It is backed by an in-memory tidwall/buntdb database
// for the "primary mapping `id -> resource`" plus the three secondary
// indices the spec names: by type, by created/updated (time-ordered,
// for cursor pagination) and by parent-id (for the registry's
// hierarchical queries).
//
// buntdb's own transaction locking (db.Update exclusive, db.View
// shared) is exactly the "readers may proceed concurrently; writers
// are exclusive" discipline §4.1 asks for, so Store does not add a
// second lock around it; the only extra synchronisation is the change
// feed's condition variable.
type Store struct {
	db    *buntdb.DB
	clock *cmn.Clock

	// Permissive, when true, allows inserting/updating a resource whose
	// parent does not (yet) exist, per §3.2's "unless permissive mode
	// is enabled".
	Permissive bool

	feedMu  sync.Mutex
	feedCnd *sync.Cond
	feed    []ChangeRecord
	nextSeq int64
	// feedCap bounds the change log retained in memory; once exceeded
	// the oldest records are dropped. Subscribers that fall behind by
	// more than this must resync from a full scan (mirrors the
	// registry's own FIFO-overflow resync rule in §4.6, generalised to
	// the shared feed every subscription reads from).
	feedCap int
}

type storedRecord struct {
	Type Type           `json:"type"`
	Data cmn.RawMessage `json:"data"`
	// Health and Connection are the two envelope/resource facets tagged
	// `json:"-"` on their Go struct (they are never part of the NMOS
	// wire document a Node/Registry hands a client): the store is the
	// one place that must still round-trip them, since Modify/Find
	// rebuild the in-memory Resource from this very record on every
	// read. Without a side-channel home here they are silently dropped
	// on the first Modify after Insert.
	Health     int64          `json:"health"`
	Connection cmn.RawMessage `json:"connection,omitempty"`
	// UpdatedSort is a fixed-width, lexicographically-sortable encoding
	// of the resource's version, used by the by_updated index for
	// cursor pagination (§4.5).
	UpdatedSort string `json:"updated_sort"`
	ParentID    string `json:"parent_id"`
}

// NewStore constructs an empty Store. clock stamps every mutation's
// version; pass the same *cmn.Clock a Node or Registry uses elsewhere
// so versions observed externally are comparable to other timestamps
// that process hands out.
func NewStore(clock *cmn.Clock) *Store {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		// buntdb's in-memory open only fails on an internal bug; there
		// is nothing a caller could do to recover a nil Store.
		panic(fmt.Sprintf("model: failed to open in-memory store: %v", err))
	}
	_ = db.CreateIndex("by_type", "*", buntdb.IndexJSON("type"))
	_ = db.CreateIndex("by_updated", "*", buntdb.IndexJSON("updated_sort"))
	_ = db.CreateIndex("by_parent", "*", buntdb.IndexJSON("parent_id"))

	s := &Store{db: db, clock: clock, feedCap: 65536}
	s.feedCnd = sync.NewCond(&s.feedMu)
	return s
}

func sortableVersion(v cmn.TAITime) string {
	return fmt.Sprintf("%020d:%09d", v.Sec, v.Nsec)
}

// Insert adds a brand-new resource. It fails with a Conflict error if a
// resource with the same id already exists with different content
// (AlreadyExists, §4.1), or with a Conflict ReferentialError if the
// resource names a parent that does not exist and Permissive is false.
func (s *Store) Insert(r Resource) error {
	env := r.Envelope()
	if !IsValidID(env.ID) {
		return cmn.Newf(cmn.KindValidation, "model: invalid resource id %q", env.ID)
	}
	if err := s.checkReferential(nil, r); err != nil {
		return err
	}
	env.Version = s.clock.Tick().String()

	return s.db.Update(func(tx *buntdb.Tx) error {
		if existing, err := tx.Get(env.ID); err == nil {
			cur, derr := decodeRecord([]byte(existing))
			if derr == nil && sameContent(cur, r) {
				return nil // idempotent re-insert of identical content
			}
			return cmn.ErrAlreadyExists
		}
		return s.putLocked(tx, r, nil)
	})
}

// Modify applies mutator to the current value of id (nil if absent) and
// stores the result, bumping Version to a fresh TAI stamp strictly
// greater than the one currently stored (§4.1a). mutator returning a
// nil Resource with a nil error deletes the resource (non-cascading;
// use Erase for cascade semantics).
func (s *Store) Modify(id string, mutator func(cur Resource) (Resource, error)) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		var cur Resource
		if raw, err := tx.Get(id); err == nil {
			rec, derr := decodeRecord([]byte(raw))
			if derr != nil {
				return derr
			}
			cur = rec
		}
		next, err := mutator(cur)
		if err != nil {
			return err
		}
		if next == nil {
			if cur == nil {
				return cmn.New(cmn.KindNotFound, "model: resource not found")
			}
			_, err := tx.Delete(id)
			if err != nil {
				return err
			}
			return s.appendChangeLocked(cur.Envelope().Type, id, cur, nil)
		}
		if err := s.checkReferential(tx, next); err != nil {
			return err
		}
		next.Envelope().Version = s.clock.Tick().String()
		return s.putLocked(tx, next, cur)
	})
}

// ModifyIfVersion is Modify with an optimistic-concurrency guard: if
// expectedVersion is non-empty and does not match id's currently stored
// version, the store is left untouched and ErrVersionRegressed is
// returned (§7, §8 scenario F). A caller that replays a PATCH carrying
// a version string older than what the store now holds hits this path
// rather than silently clobbering an intervening write.
func (s *Store) ModifyIfVersion(id string, expectedVersion string, mutator func(cur Resource) (Resource, error)) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		var cur Resource
		if raw, err := tx.Get(id); err == nil {
			rec, derr := decodeRecord([]byte(raw))
			if derr != nil {
				return derr
			}
			cur = rec
		}
		if expectedVersion != "" {
			if cur == nil {
				return cmn.New(cmn.KindNotFound, "model: resource not found")
			}
			if cur.Envelope().Version != expectedVersion {
				return cmn.Wrap(cmn.KindConflict, cmn.ErrVersionRegressed,
					fmt.Sprintf("%s: expected version %q, store holds %q", id, expectedVersion, cur.Envelope().Version))
			}
		}
		next, err := mutator(cur)
		if err != nil {
			return err
		}
		if next == nil {
			if cur == nil {
				return cmn.New(cmn.KindNotFound, "model: resource not found")
			}
			if _, err := tx.Delete(id); err != nil {
				return err
			}
			return s.appendChangeLocked(cur.Envelope().Type, id, cur, nil)
		}
		if err := s.checkReferential(tx, next); err != nil {
			return err
		}
		next.Envelope().Version = s.clock.Tick().String()
		return s.putLocked(tx, next, cur)
	})
}

// putLocked writes next (already version-stamped) and appends a change
// record; it must run inside an active buntdb write transaction.
func (s *Store) putLocked(tx *buntdb.Tx, next Resource, pre Resource) error {
	env := next.Envelope()
	rec := storedRecord{
		Type:        env.Type,
		Data:        mustMarshalRecord(next),
		Health:      env.Health,
		UpdatedSort: sortableVersion(mustParseVersion(env.Version)),
		ParentID:    ParentID(next),
	}
	if c, ok := next.(Connectable); ok {
		connBuf, err := cmn.Marshal(c.ConnState())
		if err != nil {
			return err
		}
		rec.Connection = connBuf
	}
	buf, err := cmn.Marshal(rec)
	if err != nil {
		return err
	}
	if _, _, err := tx.Set(env.ID, string(buf), nil); err != nil {
		return err
	}
	return s.appendChangeLocked(env.Type, env.ID, pre, next)
}

// sameContent compares two resources ignoring Version (which always
// differs once either has been stored) and the store-only Health/
// Connection facets, so a re-Insert of truly identical NMOS content is
// idempotent rather than a spurious AlreadyExists.
func sameContent(a, b Resource) bool {
	ca, cb := a.Clone(), b.Clone()
	ca.Envelope().Version, cb.Envelope().Version = "", ""
	ja, erra := cmn.Marshal(ca)
	jb, errb := cmn.Marshal(cb)
	if erra != nil || errb != nil {
		return false
	}
	return string(ja) == string(jb)
}

func mustParseVersion(v string) cmn.TAITime {
	t, err := cmn.ParseTAITime(v)
	if err != nil {
		return cmn.TAITime{}
	}
	return t
}

func mustMarshalRecord(r Resource) cmn.RawMessage {
	buf, err := cmn.Marshal(r)
	if err != nil {
		// Resource concrete types are plain structs; marshal failure
		// here means a programming error (unsupported field type), not
		// a runtime condition callers can recover from.
		panic(fmt.Sprintf("model: marshal resource: %v", err))
	}
	return buf
}

func decodeRecord(raw []byte) (Resource, error) {
	var rec storedRecord
	if err := cmn.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	out, err := newByType(rec.Type)
	if err != nil {
		return nil, err
	}
	if err := cmn.Unmarshal(rec.Data, out); err != nil {
		return nil, err
	}
	out.Envelope().Type = rec.Type
	out.Envelope().Health = rec.Health
	if len(rec.Connection) > 0 {
		if c, ok := out.(Connectable); ok {
			if err := cmn.Unmarshal(rec.Connection, c.ConnState()); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// checkReferential enforces §3.2's "creating or updating a child
// resource with an unknown parent is rejected unless permissive mode is
// enabled". tx, when non-nil, is the caller's open write transaction and
// is used for the parent lookup, since buntdb cannot open a second
// transaction (Find) while it is held.
func (s *Store) checkReferential(tx *buntdb.Tx, r Resource) error {
	if s.Permissive {
		return nil
	}
	parent := ParentID(r)
	if parent == "" {
		return nil
	}
	var ok bool
	if tx != nil {
		_, err := tx.Get(parent)
		ok = err == nil
	} else {
		_, ok = s.Find(parent)
	}
	if !ok {
		return cmn.Wrap(cmn.KindConflict, cmn.ErrReferentialError,
			fmt.Sprintf("%s %s references missing parent %s", r.Envelope().Type, r.Envelope().ID, parent))
	}
	return nil
}

// Find returns the resource for id, or ok=false if absent.
func (s *Store) Find(id string) (Resource, bool) {
	var out Resource
	err := s.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(id)
		if err != nil {
			return err
		}
		rec, err := decodeRecord([]byte(raw))
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	return out, err == nil
}

// Scan yields every resource matching predicate (nil = all), in
// creation order as stored in the by_updated index's ascent, which for
// never-modified resources equals creation order and otherwise still
// gives a deterministic, monotone-version order (§4.1: "scan yields
// resources in a deterministic order").
func (s *Store) Scan(predicate func(Resource) bool) []Resource {
	var out []Resource
	_ = s.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("by_updated", func(_, value string) bool {
			rec, err := decodeRecord([]byte(value))
			if err != nil {
				return true
			}
			if predicate == nil || predicate(rec) {
				out = append(out, rec)
			}
			return true
		})
	})
	return out
}

// ScanType is a convenience filter over Scan for a single Type.
func (s *Store) ScanType(t Type) []Resource {
	return s.Scan(func(r Resource) bool { return r.Envelope().Type == t })
}

// ScanChildren returns every resource whose immediate parent is
// parentID, via the by_parent index (§3.5).
func (s *Store) ScanChildren(parentID string) []Resource {
	var out []Resource
	_ = s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendEqual("by_parent", fmt.Sprintf(`{"parent_id":%q}`, parentID), func(_, value string) bool {
			rec, err := decodeRecord([]byte(value))
			if err == nil {
				out = append(out, rec)
			}
			return true
		})
	})
	return out
}

// Erase removes id. When cascade is true (the default per §4.1), every
// descendant is removed first, walking the fixed order Node->Device->
// Source->Flow->Sender, Device->Receiver.
func (s *Store) Erase(id string, cascade bool) error {
	root, ok := s.Find(id)
	if !ok {
		return cmn.New(cmn.KindNotFound, "model: resource not found")
	}
	if cascade {
		for _, child := range s.descendants(id, root.Envelope().Type) {
			if err := s.eraseOne(child.Envelope().ID); err != nil {
				return err
			}
		}
	}
	return s.eraseOne(id)
}

func (s *Store) eraseOne(id string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(id)
		if err != nil {
			return nil // already gone (cascade may race with GC)
		}
		rec, err := decodeRecord([]byte(raw))
		if err != nil {
			return err
		}
		if _, err := tx.Delete(id); err != nil {
			return err
		}
		return s.appendChangeLocked(rec.Envelope().Type, id, rec, nil)
	})
}

// descendants walks the cascade order breadth-first starting from a
// root of type rootType, returning every transitive child in the order
// they must be deleted (deepest/leaf-most types later in cascadeOrder
// are still walked correctly because each level's children are found
// from the previous level's ids, not from a fixed type-pair list).
func (s *Store) descendants(rootID string, rootType Type) []Resource {
	var all []Resource
	frontier := []string{rootID}
	for _, t := range cascadeOrder {
		var next []string
		for _, pid := range frontier {
			for _, child := range s.childrenOfType(pid, t) {
				all = append(all, child)
				next = append(next, child.Envelope().ID)
			}
		}
		// A type only has children of the *next* relevant parent set;
		// Receivers hang off Device (same level as Source), so we must
		// search from the *original* device frontier too, not just the
		// previous level's output. frontier is therefore the union of
		// all ids seen so far at or above this level.
		frontier = append(frontier, next...)
	}
	return dedupeByID(all)
}

func (s *Store) childrenOfType(parentID string, t Type) []Resource {
	var out []Resource
	for _, r := range s.ScanChildren(parentID) {
		if r.Envelope().Type == t {
			out = append(out, r)
		}
	}
	// Flows and Senders also name their Device directly; one whose
	// by_parent link (Source/Flow) is unset still belongs to that Device.
	if t == TypeFlow || t == TypeSender {
		out = append(out, s.Scan(func(r Resource) bool {
			return r.Envelope().Type == t && r.Envelope().DeviceID == parentID
		})...)
	}
	return out
}

func dedupeByID(in []Resource) []Resource {
	seen := make(map[string]bool, len(in))
	out := make([]Resource, 0, len(in))
	for _, r := range in {
		id := r.Envelope().ID
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, r)
	}
	return out
}

// appendChangeLocked records a change and wakes any WaitForChange
// callers. Must be called from within a buntdb write transaction (the
// feed's own mutex is distinct from buntdb's, so this never deadlocks
// against it).
func (s *Store) appendChangeLocked(t Type, id string, pre, post Resource) error {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	s.nextSeq++
	s.feed = append(s.feed, ChangeRecord{
		Seq: s.nextSeq, Timestamp: cmn.Now(), Type: t, ID: id, Pre: pre, Post: post,
	})
	if len(s.feed) > s.feedCap {
		s.feed = s.feed[len(s.feed)-s.feedCap:]
	}
	s.feedCnd.Broadcast()
	return nil
}

// WaitForChange blocks until at least one change with Seq > after has
// been recorded, ctx is cancelled, or timeout elapses (whichever first),
// returning every such change and the new high-water seq to pass as
// `after` on the next call. A returned seq older than the store's
// oldest retained record (see feedCap) means the caller missed changes
// and must resync via Scan.
func (s *Store) WaitForChange(ctx context.Context, after int64, timeout time.Duration) ([]ChangeRecord, int64) {
	deadline := time.Now().Add(timeout)

	// sync.Cond has no timed/cancellable wait, so pair it with a single
	// background waiter that broadcasts once on timeout or cancellation
	// -- this mirrors the teacher's own pattern of layering a bounded
	// wait over a condition variable rather than reimplementing one.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		t := time.NewTimer(time.Until(deadline))
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		case <-stop:
			return
		}
		s.feedMu.Lock()
		s.feedCnd.Broadcast()
		s.feedMu.Unlock()
	}()

	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	for {
		if recs := s.sinceLocked(after); len(recs) > 0 {
			return recs, s.nextSeq
		}
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			return nil, after
		}
		s.feedCnd.Wait()
	}
}

func (s *Store) sinceLocked(after int64) []ChangeRecord {
	if len(s.feed) == 0 {
		return nil
	}
	oldest := s.feed[0].Seq
	start := after - oldest + 1
	if start < 0 {
		start = 0
	}
	if int(start) >= len(s.feed) {
		return nil
	}
	return append([]ChangeRecord(nil), s.feed[start:]...)
}

// HighWaterSeq returns the current feed sequence number, usable as the
// `after` cursor for a subscriber that only wants changes from now on.
func (s *Store) HighWaterSeq() int64 {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	return s.nextSeq
}
