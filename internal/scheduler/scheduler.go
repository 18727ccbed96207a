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

// Package scheduler implements the optimized scheduler, the commit
// pipeline: batched execute-then-commit, Bloom pruning, conflict-graph
// coloring, ownership-sharding fast path, tiered hot-key isolation,
// and an adaptive feedback loop. Every fork-join stage pre-allocates
// its result slice and addresses it by index from
// golang.org/x/sync/errgroup goroutines, merging back serially.
package scheduler

import (
	"context"

	"github.com/google/uuid"

	vectis "github.com/B1NARY-GR0UP/vectis"
	"github.com/B1NARY-GR0UP/vectis/internal/stats"
	"github.com/B1NARY-GR0UP/vectis/pkg/adaptive"
	"github.com/B1NARY-GR0UP/vectis/pkg/hotkey"
	"github.com/B1NARY-GR0UP/vectis/pkg/logger"
	"github.com/B1NARY-GR0UP/vectis/pkg/shardmap"
)

// TxnResult is one transaction's outcome.
type TxnResult struct {
	ReturnValue int32
	Success     bool
	CommitTs    uint64
	Err         error
}

// BatchResult is one batch's outcome.
type BatchResult struct {
	Successful int
	Failed     int
	Conflicts  int
	Results    []TxnResult
}

// Scheduler drives the commit pipeline against a single Store.
// It is safe for concurrent use: ExecuteTxn and ExecuteBatch may be
// called from multiple goroutines at once, matching the store's own
// no-global-lock discipline.
type Scheduler struct {
	store *vectis.Store
	cfg   vectis.Config

	hot      *hotkey.Tracker
	shards   *shardmap.ShardMap
	adaptive *adaptive.HotKeyController
	counters *stats.Counters
	tuner    *stats.AutoTuner

	log logger.Logger
}

// New constructs a Scheduler bound to store. Zero-valued fields in cfg
// are filled from vectis.DefaultConfig via vectis.NewConfig.
func New(store *vectis.Store, cfg vectis.Config) *Scheduler {
	cfg = vectis.NewConfig(cfg)
	s := &Scheduler{
		store:    store,
		cfg:      cfg,
		shards:   shardmap.New(cfg.NumShards),
		counters: &stats.Counters{},
		log:      logger.WithComponent("scheduler"),
	}
	if cfg.LFUTrackingEnabled {
		s.hot = hotkey.New(cfg.LFUDecayPeriod, cfg.LFUDecayFactor)
	}
	s.adaptive = adaptive.NewHotKeyController(adaptive.HotKeyControllerConfig{
		ThresholdAdjustEnabled: cfg.AdaptiveHotKeyEnabled,
		WindowBatches:          cfg.WindowBatches,
		ConflictLow:            cfg.ConflictLow,
		ConflictHigh:           cfg.ConflictHigh,
		DensityLow:             cfg.DensityLow,
		DensityHigh:            cfg.DensityHigh,
		HotKeyMin:              cfg.HotKeyMin,
		HotKeyMax:              cfg.HotKeyMax,
		HotKeyStep:             cfg.HotKeyStep,
		BloomDisableThreshold:  cfg.BloomDisableThreshold,
		BloomEnableThreshold:   cfg.BloomEnableThreshold,
	}, cfg.HotKeyThreshold)
	if cfg.AutoTuningEnabled {
		s.tuner = stats.NewAutoTuner(cfg.AutoTuningInterval, cfg.BloomDisableThreshold, cfg.BloomEnableThreshold)
	}
	return s
}

// Stats returns a snapshot of every counter.
func (s *Scheduler) Stats() stats.Snapshot {
	return s.counters.Get()
}

// ResetStats zeroes every counter.
func (s *Scheduler) ResetStats() {
	s.counters.Reset()
}

// ExecuteTxn runs one transaction through the full retry-with-backoff
// commit helper, bypassing batch-level grouping entirely. It never
// panics; every failure is reported in the returned TxnResult.
func (s *Scheduler) ExecuteTxn(ctx context.Context, fn vectis.TxnFunc) TxnResult {
	txn := s.store.Begin()
	value, bizErr := fn(txn)
	res := s.commitWithRetry(ctx, txn, fn, value, bizErr)
	s.recordOutcome(res)
	return res
}

func (s *Scheduler) recordOutcome(res TxnResult) {
	switch {
	case res.Success:
		s.counters.IncSuccessful()
	case vectis.IsConflict(res.Err):
		s.counters.IncConflict()
	default:
		s.counters.IncFailed()
	}
}

func batchID() string {
	return uuid.NewString()
}
