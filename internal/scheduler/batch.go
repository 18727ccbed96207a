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

package scheduler

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	vectis "github.com/B1NARY-GR0UP/vectis"
	"github.com/B1NARY-GR0UP/vectis/internal/stats"
	"github.com/B1NARY-GR0UP/vectis/pkg/conflictgraph"
	"github.com/B1NARY-GR0UP/vectis/pkg/filter"
)

// unit is one transaction's state as it threads through the batch
// pipeline. It is owned by exactly one stage at a time; done is set
// once a unit has a final TxnResult.
type unit struct {
	index   int
	closure vectis.TxnFunc
	txn     *vectis.Txn

	readSet  []vectis.Key
	writeSet []vectis.Key

	done   bool
	result TxnResult
}

// ExecuteBatch runs a batch of business closures through the full
// commit pipeline, stages 1 through 7. Batches smaller
// than cfg.MinBatchSize, or with batch commit disabled, fall back to
// running every transaction through ExecuteTxn independently.
func (s *Scheduler) ExecuteBatch(ctx context.Context, fns []vectis.TxnFunc) BatchResult {
	if len(fns) == 0 {
		return BatchResult{}
	}
	if !s.cfg.BatchCommitEnabled || len(fns) < s.cfg.MinBatchSize {
		return s.executeBatchSequentially(ctx, fns)
	}

	start := time.Now()
	id := batchID()
	s.log.Debugf("batch %s: starting pipeline for %d transactions", id, len(fns))

	units := s.stageParallelExecute(ctx, fns)
	s.stageLFURecord(units)
	s.stageShardFastPath(ctx, units)
	cold := s.stageHotKeyIsolation(ctx, units)
	cold = s.stageDensityGate(ctx, cold)
	s.stageBloomGroupColor(ctx, cold)

	s.stageAdaptiveUpdate(units, start, id)

	return s.collectBatchResult(units)
}

func (s *Scheduler) executeBatchSequentially(ctx context.Context, fns []vectis.TxnFunc) BatchResult {
	br := BatchResult{Results: make([]TxnResult, len(fns))}
	for i, fn := range fns {
		res := s.ExecuteTxn(ctx, fn)
		br.Results[i] = res
		tally(&br, res)
	}
	return br
}

func tally(br *BatchResult, res TxnResult) {
	switch {
	case res.Success:
		br.Successful++
	case vectis.IsConflict(res.Err):
		br.Conflicts++
	default:
		br.Failed++
	}
}

func (s *Scheduler) collectBatchResult(units []*unit) BatchResult {
	br := BatchResult{Results: make([]TxnResult, len(units))}
	for i, u := range units {
		br.Results[i] = u.result
		tally(&br, u.result)
		s.recordOutcome(u.result)
	}
	return br
}

// stageParallelExecute is stage 1: run every closure in
// parallel over an indexed fork-join pool. No commits happen here.
// Failed closures are resolved to a final BusinessFailure result
// immediately, but their read/write set is preserved for the
// classification stages that follow.
func (s *Scheduler) stageParallelExecute(ctx context.Context, fns []vectis.TxnFunc) []*unit {
	units := make([]*unit, len(fns))
	g, _ := errgroup.WithContext(ctx)
	for i, fn := range fns {
		i, fn := i, fn
		g.Go(func() error {
			txn := s.store.Begin()
			value, bizErr := fn(txn)
			u := &unit{index: i, closure: fn, txn: txn, readSet: txn.ReadSet(), writeSet: txn.WriteSet()}
			if bizErr != nil {
				txn.Abort()
				u.done = true
				u.result = TxnResult{Err: vectis.NewBusinessError(bizErr)}
			} else {
				u.result = TxnResult{ReturnValue: value}
			}
			units[i] = u
			return nil
		})
	}
	_ = g.Wait()
	return units
}

// stageLFURecord is stage 2: feed every unit's write set
// into the hot-key tracker, regardless of whether its closure
// ultimately succeeded (a transaction "would have written" even if its
// business result failed after buffering writes).
func (s *Scheduler) stageLFURecord(units []*unit) {
	if s.hot == nil {
		return
	}
	writeSets := make([][]string, 0, len(units))
	for _, u := range units {
		if len(u.writeSet) > 0 {
			writeSets = append(writeSets, u.writeSet)
		}
	}
	s.hot.RecordBatch(writeSets)
}

// remaining returns the not-yet-done units from units, preserving
// order.
func remaining(units []*unit) []*unit {
	out := make([]*unit, 0, len(units))
	for _, u := range units {
		if !u.done {
			out = append(out, u)
		}
	}
	return out
}

// stageShardFastPath is stage 3: transactions whose touched
// keys all map to a single shard commit fully in parallel (disjoint
// shards can never conflict, per-key locking makes within-shard
// parallel commit safe too). The multi-shard remainder is left
// unresolved.
func (s *Scheduler) stageShardFastPath(ctx context.Context, units []*unit) {
	if !s.cfg.OwnershipShardingEnabled {
		return
	}

	var singleShard []*unit
	for _, u := range remaining(units) {
		touched := make([]string, 0, len(u.readSet)+len(u.writeSet))
		touched = append(touched, u.readSet...)
		touched = append(touched, u.writeSet...)
		if _, ok := s.shards.IsSingleShard(touched); ok {
			singleShard = append(singleShard, u)
		}
	}
	s.commitParallel(ctx, singleShard)
}

// stageHotKeyIsolation is stage 4, tiered hot-key isolation. It
// returns the cold remainder that should proceed to the density gate.
func (s *Scheduler) stageHotKeyIsolation(ctx context.Context, units []*unit) []*unit {
	rem := remaining(units)
	if !s.cfg.HotKeyIsolationEnabled || s.hot == nil || len(rem) == 0 {
		return rem
	}

	hotHigh := s.hot.GetHot(s.cfg.LFUThresholdHigh)
	hotMed := s.hot.GetHot(s.cfg.LFUThresholdMedium)
	batchThreshold := s.adaptive.Threshold()

	batchLocal := make(map[string]int)
	for _, u := range rem {
		seen := make(map[string]struct{})
		for _, k := range u.writeSet {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			batchLocal[k]++
		}
	}

	var extreme, medium, cold []*unit
	for _, u := range rem {
		switch classifyTier(u.writeSet, hotHigh, hotMed, batchLocal, batchThreshold) {
		case tierExtreme:
			extreme = append(extreme, u)
		case tierMedium:
			medium = append(medium, u)
		default:
			cold = append(cold, u)
		}
	}

	for range extreme {
		s.counters.IncHotKeyHigh()
	}
	for range medium {
		s.counters.IncHotKeyMedium()
	}

	// Extreme tier: strictly serial.
	for _, u := range extreme {
		s.finish(u, s.commitWithRetry(ctx, u.txn, u.closure, u.result.ReturnValue, nil))
	}

	if s.cfg.HotKeyBucketingEnabled {
		s.commitBucketed(ctx, medium, hotMed, batchLocal, batchThreshold)
	} else {
		for _, u := range medium {
			s.finish(u, s.commitWithRetry(ctx, u.txn, u.closure, u.result.ReturnValue, nil))
		}
	}

	return cold
}

type tier int

const (
	tierCold tier = iota
	tierMedium
	tierExtreme
)

func classifyTier(writeSet []vectis.Key, hotHigh, hotMed map[string]struct{}, batchLocal map[string]int, batchThreshold int) tier {
	for _, k := range writeSet {
		if _, ok := hotHigh[k]; ok {
			return tierExtreme
		}
	}
	for _, k := range writeSet {
		if _, ok := hotMed[k]; ok {
			return tierMedium
		}
		if batchLocal[k] >= batchThreshold {
			return tierMedium
		}
	}
	return tierCold
}

// firstHotKey returns the smallest key (by lexicographic order, for
// determinism) in writeSet that put u in the medium tier, used to
// bucket it for bucketed commit.
func firstHotKey(writeSet []vectis.Key, hotMed map[string]struct{}, batchLocal map[string]int, batchThreshold int) string {
	sorted := append([]vectis.Key(nil), writeSet...)
	sort.Strings(sorted)
	for _, k := range sorted {
		if _, ok := hotMed[k]; ok {
			return k
		}
		if batchLocal[k] >= batchThreshold {
			return k
		}
	}
	if len(sorted) > 0 {
		return sorted[0]
	}
	return ""
}

// commitBucketed groups medium-tier units by first hot key touched;
// buckets commit in parallel, transactions within a bucket commit
// serially.
func (s *Scheduler) commitBucketed(ctx context.Context, units []*unit, hotMed map[string]struct{}, batchLocal map[string]int, batchThreshold int) {
	if len(units) == 0 {
		return
	}
	buckets := make(map[string][]*unit)
	for _, u := range units {
		key := firstHotKey(u.writeSet, hotMed, batchLocal, batchThreshold)
		buckets[key] = append(buckets[key], u)
	}

	g, _ := errgroup.WithContext(ctx)
	for _, bucket := range buckets {
		bucket := bucket
		g.Go(func() error {
			for _, u := range bucket {
				s.finish(u, s.commitWithRetry(ctx, u.txn, u.closure, u.result.ReturnValue, nil))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// stageDensityGate is stage 5: above the fallback threshold,
// commit the remainder in parallel with no grouping, relying on the
// store's own conflict detection. Otherwise pass the remainder through
// unchanged for stage 6.
func (s *Scheduler) stageDensityGate(ctx context.Context, cold []*unit) []*unit {
	if len(cold) == 0 {
		return cold
	}

	density := conflictgraph.Density(toConflictTxns(cold))
	if density <= s.cfg.DensityFallbackThreshold {
		return cold
	}

	s.log.Debugf("density %.3f above fallback threshold %.3f, committing %d transactions unrouted", density, s.cfg.DensityFallbackThreshold, len(cold))
	s.commitParallel(ctx, cold)
	return nil
}

func toConflictTxns(units []*unit) []conflictgraph.Txn {
	txns := make([]conflictgraph.Txn, len(units))
	for i, u := range units {
		txns[i] = conflictgraph.Txn{Index: i, ReadSet: u.readSet, WriteSet: u.writeSet}
	}
	return txns
}

// stageBloomGroupColor is stage 6: allocate Bloom slots, build the
// conflict graph (pruned by Bloom when enabled), color it, and commit
// color classes as parallel waves.
func (s *Scheduler) stageBloomGroupColor(ctx context.Context, cold []*unit) {
	if len(cold) == 0 {
		return
	}

	bloomEnabled := s.cfg.BloomFilterEnabled && s.adaptive.BloomEnabled()
	if s.tuner != nil {
		bloomEnabled = bloomEnabled && s.tuner.RecommendedBloomEnabled()
	}

	var mayConflict conflictgraph.MayConflict
	if bloomEnabled {
		cache := filter.NewCache(s.cfg.ExpectedKeysPerTxn, s.cfg.BloomFPR)
		for _, u := range cold {
			idx := cache.AllocateTxn()
			for _, k := range u.readSet {
				cache.RecordRead(idx, k)
			}
			for _, k := range u.writeSet {
				cache.RecordWrite(idx, k)
			}
		}
		mayConflict = func(i, j int) bool {
			ok := cache.MayConflict(i, j)
			if ok {
				s.counters.IncBloomMiss()
			} else {
				s.counters.IncBloomHit()
			}
			return ok
		}
	}

	var graph *conflictgraph.Graph
	if s.cfg.KeyIndexGroupingEnabled {
		graph = conflictgraph.Build(toConflictTxns(cold), mayConflict)
	} else {
		graph = conflictgraph.BuildPairwise(toConflictTxns(cold), mayConflict)
	}
	classes := graph.Color()

	maxClass := 0
	for _, class := range classes {
		if len(class) > maxClass {
			maxClass = len(class)
		}
	}
	s.counters.RecordGrouping(len(classes), maxClass, conflictgraph.Density(toConflictTxns(cold)))

	s.log.Debugf("built %d color classes over %d transactions, max class %d", len(classes), len(cold), maxClass)

	for _, class := range classes {
		g, _ := errgroup.WithContext(ctx)
		for _, idx := range class {
			u := cold[idx]
			g.Go(func() error {
				s.finish(u, s.commitWithRetry(ctx, u.txn, u.closure, u.result.ReturnValue, nil))
				return nil
			})
		}
		_ = g.Wait()
	}
}

// commitParallel commits every unit fully in parallel with no
// grouping, used by the shard fast path and the density-gate fallback.
func (s *Scheduler) commitParallel(ctx context.Context, units []*unit) {
	if len(units) == 0 {
		return
	}
	g, _ := errgroup.WithContext(ctx)
	for _, u := range units {
		u := u
		g.Go(func() error {
			s.finish(u, s.commitWithRetry(ctx, u.txn, u.closure, u.result.ReturnValue, nil))
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) finish(u *unit, res TxnResult) {
	u.result = res
	u.done = true
}

// stageAdaptiveUpdate is stage 7: compute this batch's
// conflict rate and observed candidate density and push them into the
// rolling-window controller and the auto-tuner.
func (s *Scheduler) stageAdaptiveUpdate(units []*unit, start time.Time, id string) {
	var conflicts int
	var sumRW float64
	for _, u := range units {
		if vectis.IsConflict(u.result.Err) {
			conflicts++
		}
		sumRW += float64(len(u.readSet) + len(u.writeSet))
	}
	conflictRate := 0.0
	if len(units) > 0 {
		conflictRate = float64(conflicts) / float64(len(units))
	}
	density := conflictgraph.Density(toConflictTxns(units))

	s.adaptive.Observe(conflictRate, density)

	if s.tuner != nil {
		s.tuner.Observe(stats.BatchRecord{
			BatchSize:    len(units),
			Duration:     time.Since(start),
			TxCount:      len(units),
			ConflictRate: conflictRate,
			AvgRWSet:     avg(sumRW, len(units)),
		})
	}

	s.log.Debugf("batch %s: conflict_rate=%.3f density=%.3f threshold=%d bloom_enabled=%v",
		id, conflictRate, density, s.adaptive.Threshold(), s.adaptive.BloomEnabled())
}

func avg(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
