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

// Package stats implements the scheduler's lock-free counters and
// auto-tuner. Every counter is a plain atomic field, updated with Add
// and read with Load; Get returns a value snapshot rather than a
// pointer into live state.
package stats

import (
	"sync"
	"sync/atomic"
)

// Counters holds the engine's lock-free counters, plus the
// grouping diagnostics the scheduler records once per batch. The
// diagnostics sit behind their own mutex rather than atomics; they are
// written once per batch, not once per transaction, the same
// granularity call the hot-key tracker makes.
type Counters struct {
	successful atomic.Uint64
	failed     atomic.Uint64
	conflict   atomic.Uint64
	retry      atomic.Uint64
	bloomHit   atomic.Uint64
	bloomMiss  atomic.Uint64

	hotKeyMedium atomic.Uint64
	hotKeyHigh   atomic.Uint64

	fallbackToConsensus atomic.Uint64

	diagMu sync.Mutex
	diag   Diagnostics
}

// Diagnostics is the grouping record of the scheduler's conflict-graph
// stage: cumulative color classes built, the largest class observed,
// and the most recent batch's candidate density.
type Diagnostics struct {
	GroupsBuilt  uint64
	MaxGroupSize uint64
	LastDensity  float64
}

// Snapshot is a point-in-time, non-atomic copy of Counters.
type Snapshot struct {
	Successful uint64
	Failed     uint64
	Conflict   uint64
	Retry      uint64
	BloomHit   uint64
	BloomMiss  uint64

	HotKeyMedium uint64
	HotKeyHigh   uint64

	FallbackToConsensus uint64

	Diagnostics Diagnostics
}

func (c *Counters) IncSuccessful()          { c.successful.Add(1) }
func (c *Counters) IncFailed()              { c.failed.Add(1) }
func (c *Counters) IncConflict()            { c.conflict.Add(1) }
func (c *Counters) IncRetry()               { c.retry.Add(1) }
func (c *Counters) IncBloomHit()            { c.bloomHit.Add(1) }
func (c *Counters) IncBloomMiss()           { c.bloomMiss.Add(1) }
func (c *Counters) IncHotKeyMedium()        { c.hotKeyMedium.Add(1) }
func (c *Counters) IncHotKeyHigh()          { c.hotKeyHigh.Add(1) }
func (c *Counters) IncFallbackToConsensus() { c.fallbackToConsensus.Add(1) }

// RecordGrouping folds one batch's conflict-graph stage into the
// diagnostics: groups color classes built, maxGroupSize the largest
// class, density the batch's observed candidate density.
func (c *Counters) RecordGrouping(groups, maxGroupSize int, density float64) {
	c.diagMu.Lock()
	defer c.diagMu.Unlock()
	c.diag.GroupsBuilt += uint64(groups)
	if uint64(maxGroupSize) > c.diag.MaxGroupSize {
		c.diag.MaxGroupSize = uint64(maxGroupSize)
	}
	c.diag.LastDensity = density
}

// Get returns a snapshot of every counter. Each counter is loaded
// separately, so the snapshot is not atomic across counters.
func (c *Counters) Get() Snapshot {
	c.diagMu.Lock()
	diag := c.diag
	c.diagMu.Unlock()
	return Snapshot{
		Diagnostics: diag,
		Successful:          c.successful.Load(),
		Failed:              c.failed.Load(),
		Conflict:            c.conflict.Load(),
		Retry:               c.retry.Load(),
		BloomHit:            c.bloomHit.Load(),
		BloomMiss:           c.bloomMiss.Load(),
		HotKeyMedium:        c.hotKeyMedium.Load(),
		HotKeyHigh:          c.hotKeyHigh.Load(),
		FallbackToConsensus: c.fallbackToConsensus.Load(),
	}
}

// Reset zeroes every counter.
func (c *Counters) Reset() {
	c.successful.Store(0)
	c.failed.Store(0)
	c.conflict.Store(0)
	c.retry.Store(0)
	c.bloomHit.Store(0)
	c.bloomMiss.Store(0)
	c.hotKeyMedium.Store(0)
	c.hotKeyHigh.Store(0)
	c.fallbackToConsensus.Store(0)

	c.diagMu.Lock()
	c.diag = Diagnostics{}
	c.diagMu.Unlock()
}

// ConflictRate returns conflict / (successful + failed + conflict)
// over the snapshot's cumulative counters. Returns 0 on an empty sample rather than dividing by zero.
func (s Snapshot) ConflictRate() float64 {
	total := s.Successful + s.Failed + s.Conflict
	if total == 0 {
		return 0
	}
	return float64(s.Conflict) / float64(total)
}
