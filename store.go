// Copyright 2025 BINARY Members
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vectis

import (
	"sort"
	"sync"

	"github.com/B1NARY-GR0UP/vectis/pkg/logger"
	"github.com/B1NARY-GR0UP/vectis/pkg/watermark"
)

// Store is the MVCC key/version-chain store. Per-key
// chains are guarded independently; there is no store-wide lock on the
// read/write hot path, only on the chain-index map itself (taken just
// long enough to look up or create a chain).
type Store struct {
	chainsMu sync.RWMutex
	chains   map[Key]*versionChain

	orc *oracle

	readMark *watermark.WaterMark

	log logger.Logger
}

// NewStore constructs an empty MVCC store with a fresh timestamp
// oracle.
func NewStore() *Store {
	return &Store{
		chains:   make(map[Key]*versionChain),
		orc:      newOracle(),
		readMark: watermark.New(),
		log:      logger.GetLogger(),
	}
}

// Close stops the store's background watermark goroutine. Safe to call
// once after all transactions have completed.
func (s *Store) Close() {
	s.readMark.Stop()
}

func (s *Store) chainFor(key Key) *versionChain {
	s.chainsMu.RLock()
	c, ok := s.chains[key]
	s.chainsMu.RUnlock()
	if ok {
		return c
	}

	s.chainsMu.Lock()
	defer s.chainsMu.Unlock()
	if c, ok = s.chains[key]; ok {
		return c
	}
	c = &versionChain{}
	s.chains[key] = c
	return c
}

// Begin allocates a fresh start timestamp and returns a writable
// handle.
func (s *Store) Begin() *Txn {
	ts := s.orc.next()
	s.readMark.Begin(ts)
	return &Txn{
		store:         s,
		startTs:       ts,
		pendingWrites: make(map[Key]Entry),
	}
}

// BeginReadOnly is Begin with the read-only flag set; writes on the
// returned handle fail with ErrReadOnlyTxn.
func (s *Store) BeginReadOnly() *Txn {
	t := s.Begin()
	t.readOnly = true
	return t
}

// readAt performs the shared-lock scan behind Txn.Read and returns the
// value visible at ts.
func (s *Store) readAt(key Key, ts uint64) ([]byte, bool) {
	return s.chainFor(key).readAt(ts)
}

// commit runs the store's two-phase commit check for a single
// transaction handle. Verification takes the shared lock first and
// the exclusive lock separately, to minimize write-lock residency:
//
//  1. sort write keys (deadlock avoidance under per-key locking) and
//     take each chain's shared lock in turn to check for a version
//     with ts > start_ts. This is an optimistic pre-check: it rejects
//     the common case (an already-stale read) without ever taking
//     an exclusive lock.
//  2. Lock every chain exclusively, in the same sorted order, and
//     repeat the check before appending anything. The pre-check result
//     is not trusted on its own: another commit could have appended to
//     a shared key in the gap between releasing the shared lock and
//     taking the exclusive one, which the pre-check alone would miss
//     entirely. Only this second, lock-held check is authoritative; it
//     is what actually prevents two commits from both writing the same
//     key without either observing a conflict.
//
// Returns ErrConflict if either phase fails; no partial writes are
// ever made in that case, since every exclusive lock for the batch is
// acquired before any chain is appended to.
func (s *Store) commit(t *Txn) (uint64, error) {
	if t.discarded {
		return 0, ErrDiscardedTxn
	}
	if len(t.pendingWrites) == 0 {
		s.doneRead(t)
		t.discarded = true
		return 0, nil
	}

	keys := make([]Key, 0, len(t.pendingWrites))
	for k := range t.pendingWrites {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	chains := make([]*versionChain, len(keys))
	for i, k := range keys {
		chains[i] = s.chainFor(k)
	}

	for _, c := range chains {
		if c.tailTs() > t.startTs {
			s.doneRead(t)
			t.discarded = true
			return 0, ErrConflict
		}
	}

	// Lock every chain exclusively in sorted key order, so two commits
	// touching overlapping key sets always acquire locks in the same
	// relative order and cannot deadlock.
	for _, c := range chains {
		c.mu.Lock()
	}
	defer func() {
		for i := len(chains) - 1; i >= 0; i-- {
			chains[i].mu.Unlock()
		}
	}()

	for _, c := range chains {
		if c.tailTsLocked() > t.startTs {
			s.doneRead(t)
			t.discarded = true
			return 0, ErrConflict
		}
	}

	commitTs := s.orc.next()
	for i, c := range chains {
		e := t.pendingWrites[keys[i]]
		c.appendLocked(version{ts: commitTs, value: e.Value, tombstone: e.Tombstone})
	}

	s.doneRead(t)
	t.discarded = true
	t.commitTs = commitTs
	return commitTs, nil
}

// PrepareTxn is one transaction's input to PrepareGroup: its snapshot
// timestamp, the keys it read, and the writes it wants to make.
type PrepareTxn struct {
	Index   int
	StartTs uint64
	ReadSet []Key
	Writes  map[Key]Entry
}

// Prepared is one transaction's successful prepare outcome: an
// assigned commit timestamp and its write buffer, not yet applied.
type Prepared struct {
	Index    int
	CommitTs uint64
	Writes   map[Key]Entry
}

// PreparedGroup is the lock handle returned by a successful
// PrepareGroup/PrepareGroupChunked call. Its chains remain exclusively
// locked until Apply runs; a PreparedGroup that is never applied must
// not be discarded silently in production code, but leaking the lock
// on an abandoned group is the caller's bug, not something this type
// guards against; a successful prepare is a commitment to apply.
type PreparedGroup struct {
	store   *Store
	chains  map[Key]*versionChain
	ordered []*versionChain
	applied bool

	Prepared []Prepared
}

// PrepareGroup is the coordinator's coarse batch prepare: lock every
// write key touched by the group in sorted order, verify
// every transaction's read set against the now-stable tail timestamps,
// and on success allocate one commit_ts per transaction. On any RW
// conflict every lock is released immediately and the function returns
// the failing transaction's Index with ErrConflict.
func (s *Store) PrepareGroup(group []PrepareTxn) (*PreparedGroup, int, error) {
	return s.prepareGroupOverKeys(group, unionWriteKeys(group))
}

// PrepareGroupChunked is the fine-grained prepare variant: before
// taking any lock at all, the global write-key set is walked in
// chunks of at most lockBatchSize,
// and each chunk's keys are checked, without holding their locks
// across chunks, against every transaction whose read set touches
// them. A transaction's writes are never split across two commit
// timestamps, and no chain is ever appended to without holding its
// lock, so the chunked walk is purely an optimistic fail-fast pass: a
// batch with a real conflict is rejected, usually before the full
// group's locks are ever acquired. A conflict found by the walk is
// returned at once; when the walk finds none, the authoritative pass
// is the same locked verify-then-prepare PrepareGroup already runs,
// which is what actually returns the PreparedGroup the caller applies; see DESIGN.md for why
// re-running the full check afterwards is required rather than
// optional.
func (s *Store) PrepareGroupChunked(group []PrepareTxn, lockBatchSize int) (*PreparedGroup, int, error) {
	if lockBatchSize <= 0 {
		return nil, -1, ErrCapacityExhausted
	}

	allKeys := unionWriteKeys(group)
	for start := 0; start < len(allKeys); start += lockBatchSize {
		end := start + lockBatchSize
		if end > len(allKeys) {
			end = len(allKeys)
		}
		chunk := allKeys[start:end]
		chunkSet := make(map[Key]struct{}, len(chunk))
		for _, k := range chunk {
			chunkSet[k] = struct{}{}
		}

		for _, t := range group {
			for _, rk := range t.ReadSet {
				if _, ok := chunkSet[rk]; !ok {
					continue
				}
				if s.chainFor(rk).tailTs() > t.StartTs {
					return nil, t.Index, ErrConflict
				}
			}
		}
	}

	return s.prepareGroupOverKeys(group, allKeys)
}

func unionWriteKeys(group []PrepareTxn) []Key {
	set := make(map[Key]struct{})
	for _, t := range group {
		for k := range t.Writes {
			set[k] = struct{}{}
		}
	}
	keys := make([]Key, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) prepareGroupOverKeys(group []PrepareTxn, sortedKeys []Key) (*PreparedGroup, int, error) {
	chains := make(map[Key]*versionChain, len(sortedKeys))
	ordered := make([]*versionChain, len(sortedKeys))
	for i, k := range sortedKeys {
		c := s.chainFor(k)
		chains[k] = c
		ordered[i] = c
	}
	for _, c := range ordered {
		c.mu.Lock()
	}

	failingIndex := -1
outer:
	for _, t := range group {
		for _, rk := range t.ReadSet {
			var tail uint64
			if c, ok := chains[rk]; ok {
				tail = c.tailTsLocked()
			} else {
				tail = s.chainFor(rk).tailTs()
			}
			if tail > t.StartTs {
				failingIndex = t.Index
				break outer
			}
		}
	}

	if failingIndex != -1 {
		for i := len(ordered) - 1; i >= 0; i-- {
			ordered[i].mu.Unlock()
		}
		return nil, failingIndex, ErrConflict
	}

	prepared := make([]Prepared, len(group))
	for i, t := range group {
		prepared[i] = Prepared{Index: t.Index, CommitTs: s.orc.next(), Writes: t.Writes}
	}

	return &PreparedGroup{store: s, chains: chains, ordered: ordered, Prepared: prepared}, -1, nil
}

// Apply is the pipelined commit: append every prepared
// transaction's writes at its assigned commit_ts, with no further
// validation, then release the group's locks. Safe to call exactly
// once per PreparedGroup.
func (pg *PreparedGroup) Apply() {
	if pg.applied {
		return
	}
	for _, p := range pg.Prepared {
		for k, e := range p.Writes {
			pg.chains[k].appendLocked(version{ts: p.CommitTs, value: e.Value, tombstone: e.Tombstone})
		}
	}
	for i := len(pg.ordered) - 1; i >= 0; i-- {
		pg.ordered[i].mu.Unlock()
	}
	pg.applied = true
}

func (s *Store) doneRead(t *Txn) {
	if t.doneRead {
		return
	}
	s.readMark.Done(t.startTs)
	t.doneRead = true
}

// Compact runs version-chain compaction for a single key against the
// current oldest-active-reader watermark.
func (s *Store) Compact(key Key) {
	floor := s.readMark.DoneUntil()
	s.chainFor(key).compactBelow(floor)
}

// CompactAll runs Compact over every key currently tracked by the
// store. Intended to be called periodically by a host process, not on
// any per-transaction hot path.
func (s *Store) CompactAll() {
	floor := s.readMark.DoneUntil()

	s.chainsMu.RLock()
	chains := make([]*versionChain, 0, len(s.chains))
	for _, c := range s.chains {
		chains = append(chains, c)
	}
	s.chainsMu.RUnlock()

	for _, c := range chains {
		c.compactBelow(floor)
	}
	s.log.Debugf("compacted %d chains below watermark %d", len(chains), floor)
}
