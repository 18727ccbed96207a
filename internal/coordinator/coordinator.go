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

// Package coordinator implements the two-phase commit coordinator
// for atomic groups spanning multiple keys with long-lived
// handles: callers that build up reads and writes on a *vectis.Txn
// over time, outside the scheduler's own single-shot commit path, and
// then need every handle in the group to succeed or fail together.
//
// The phase split: a prepare call that locks, verifies, and allocates
// commit timestamps without making anything visible, and a separate
// apply call that is authoritative and never re-validates.
package coordinator

import (
	"time"

	vectis "github.com/B1NARY-GR0UP/vectis"
	"github.com/B1NARY-GR0UP/vectis/internal/stats"
	"github.com/B1NARY-GR0UP/vectis/pkg/adaptive"
	"github.com/B1NARY-GR0UP/vectis/pkg/logger"
)

// PreparedBatch is the coordinator's handle on a successful prepare: it
// carries the store's lock-holding PreparedGroup together with the
// Txn handles it was built from, so PipelineCommit can apply the
// writes and finalize each handle in one call. The zero value is not
// usable; only BatchPrepare/BatchPrepareFineGrained construct one.
type PreparedBatch struct {
	group   *vectis.PreparedGroup
	handles []*vectis.Txn
}

// Prepared returns the assigned (index, commit_ts) pairs, not yet
// applied.
func (b *PreparedBatch) Prepared() []vectis.Prepared {
	return b.group.Prepared
}

// Len reports how many handles this batch will finalize on
// PipelineCommit.
func (b *PreparedBatch) Len() int {
	return len(b.handles)
}

// Coordinator wraps the store's 2PC primitives with batch prepare,
// fine-grained prepare, and pipelined commit, plus adaptive batch
// sizing.
type Coordinator struct {
	store *vectis.Store
	cfg   vectis.Config

	batchSize *adaptive.BatchSizeController
	counters  *stats.Counters

	log logger.Logger
}

// New constructs a Coordinator over store, seeding its adaptive
// batch-size controller from cfg's Coordinator* fields. Zero-valued
// fields in cfg are filled from vectis.DefaultConfig via
// vectis.NewConfig before use.
func New(store *vectis.Store, cfg vectis.Config) *Coordinator {
	cfg = vectis.NewConfig(cfg)
	return &Coordinator{
		store: store,
		cfg:   cfg,
		batchSize: adaptive.NewBatchSizeController(adaptive.BatchSizeControllerConfig{
			Min:            cfg.CoordinatorMinBatchSize,
			Max:            cfg.CoordinatorMaxBatchSize,
			TargetConflict: cfg.CoordinatorTargetConflict,
			EMAAlpha:       cfg.CoordinatorEMAAlpha,
		}, cfg.CoordinatorMinBatchSize),
		counters: &stats.Counters{},
		log:      logger.WithComponent("coordinator"),
	}
}

// Stats returns a snapshot of the coordinator's own counters,
// distinct from the scheduler's, since a transaction prepared and
// applied through this path never touches the scheduler at all.
func (c *Coordinator) Stats() stats.Snapshot {
	return c.counters.Get()
}

// RecommendedBatchSize is the adaptive controller's current
// recommendation for how many handles to gather into one prepare call.
func (c *Coordinator) RecommendedBatchSize() int {
	return c.batchSize.Size()
}

// PrepareAndCommit runs one long-lived handle through prepare and
// pipelined commit as a group of one. Returns the handle's commit
// timestamp, or ErrConflict if any key in its read set moved past its
// snapshot.
func (c *Coordinator) PrepareAndCommit(h *vectis.Txn) (uint64, error) {
	batch, _, err := c.BatchPrepare([]*vectis.Txn{h})
	if err != nil {
		return 0, err
	}
	c.PipelineCommit(batch)
	return batch.group.Prepared[0].CommitTs, nil
}

// BatchPrepare is the coarse prepare: lock every
// write key touched by handles at once, verify every handle's read set
// against the now-stable tail timestamps, and on success allocate one
// commit_ts per handle. On an RW conflict no lock is left held and the
// returned index identifies the failing handle.
func (c *Coordinator) BatchPrepare(handles []*vectis.Txn) (*PreparedBatch, int, error) {
	if len(handles) == 0 {
		return nil, -1, nil
	}

	group := toPrepareGroup(handles)
	pg, failingIndex, err := c.store.PrepareGroup(group)
	if err != nil {
		c.counters.IncConflict()
		c.batchSize.Observe(1.0, 0)
		c.log.Debugf("batch_prepare: handle %d conflicted: %v", failingIndex, err)
		return nil, failingIndex, err
	}
	return &PreparedBatch{group: pg, handles: handles}, -1, nil
}

// BatchPrepareFineGrained is the fine-grained prepare: it
// walks the global write-key set in chunks of lockBatchSize (falling
// back to cfg.CoordinatorLockBatchSize when lockBatchSize <= 0),
// failing fast on an obvious conflict before ever locking the full key
// set, then runs the same authoritative prepare as BatchPrepare.
func (c *Coordinator) BatchPrepareFineGrained(handles []*vectis.Txn, lockBatchSize int) (*PreparedBatch, int, error) {
	if len(handles) == 0 {
		return nil, -1, nil
	}
	if lockBatchSize <= 0 {
		lockBatchSize = c.cfg.CoordinatorLockBatchSize
	}

	group := toPrepareGroup(handles)
	pg, failingIndex, err := c.store.PrepareGroupChunked(group, lockBatchSize)
	if err != nil {
		c.counters.IncConflict()
		c.batchSize.Observe(1.0, 0)
		c.log.Debugf("batch_prepare_fine_grained: handle %d conflicted: %v", failingIndex, err)
		return nil, failingIndex, err
	}
	return &PreparedBatch{group: pg, handles: handles}, -1, nil
}

// PipelineCommit applies every prepared write at its assigned
// commit_ts with no further
// validation (the prepare phase is authoritative), finalizes every
// handle in the batch, folds the observation into the adaptive
// batch-size controller, and returns the count applied. May be called
// concurrently with a later BatchPrepare/BatchPrepareFineGrained since
// those touch different key locks once this one's Apply has released
// its own.
func (c *Coordinator) PipelineCommit(b *PreparedBatch) int {
	if b == nil {
		return 0
	}

	start := time.Now()
	b.group.Apply()
	for _, p := range b.group.Prepared {
		b.handles[p.Index].MarkPrepared(p.CommitTs)
		c.counters.IncSuccessful()
	}
	elapsed := time.Since(start)

	n := len(b.group.Prepared)
	avgRWSet := 0.0
	for _, h := range b.handles {
		avgRWSet += float64(len(h.ReadSet()) + len(h.WriteSet()))
	}
	if len(b.handles) > 0 {
		avgRWSet /= float64(len(b.handles))
	}

	// A batch that reaches PipelineCommit prepared cleanly: its
	// contribution to the conflict-rate EMA is 0, with the conflicting
	// attempts already folded in by BatchPrepare/BatchPrepareFineGrained
	// above when they returned ErrConflict.
	c.batchSize.Observe(0, float64(elapsed.Nanoseconds()))
	c.log.Debugf("pipeline_commit: applied %d handles in %s, avg_rw_set=%.2f", n, elapsed, avgRWSet)
	return n
}

// toPrepareGroup builds the store's PrepareTxn input from a group of
// long-lived handles, in argument order, which is also the index
// space PreparedBatch.Prepared and PipelineCommit key off of.
func toPrepareGroup(handles []*vectis.Txn) []vectis.PrepareTxn {
	group := make([]vectis.PrepareTxn, len(handles))
	for i, h := range handles {
		group[i] = vectis.PrepareTxn{
			Index:   i,
			StartTs: h.StartTs(),
			ReadSet: h.ReadSet(),
			Writes:  h.Buffered(),
		}
	}
	return group
}
