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

// Package hotkey implements the LFU-with-decay hot-key tracker. It is
// touched once per batch, not once per transaction, so a single mutex
// guarding the whole frequency map is the right granularity tradeoff.
package hotkey

import "sync"

// Tracker maintains a cross-batch key -> access-count map with
// periodic decay and two-tier classification (medium/high).
type Tracker struct {
	mu           sync.Mutex
	counts       map[string]int
	batchesSince int
	decayPeriod  int
	decayFactor  float64
}

// New creates a Tracker that decays every decayPeriod calls to
// RecordBatch, multiplying every count by decayFactor in (0,1].
func New(decayPeriod int, decayFactor float64) *Tracker {
	if decayPeriod <= 0 {
		decayPeriod = 1
	}
	if decayFactor <= 0 || decayFactor > 1 {
		decayFactor = 1
	}
	return &Tracker{
		counts:      make(map[string]int),
		decayPeriod: decayPeriod,
		decayFactor: decayFactor,
	}
}

// RecordBatch increments the count of every key in every write set,
// then decays if decayPeriod batches have elapsed since the last
// decay.
func (t *Tracker) RecordBatch(writeSets [][]string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ws := range writeSets {
		for _, k := range ws {
			t.counts[k]++
		}
	}

	t.batchesSince++
	if t.batchesSince >= t.decayPeriod {
		t.decayLocked()
		t.batchesSince = 0
	}
}

// Decay forces an immediate decay pass, multiplying every count by
// decayFactor and dropping any that reach zero.
func (t *Tracker) Decay() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.decayLocked()
}

func (t *Tracker) decayLocked() {
	for k, c := range t.counts {
		decayed := int(float64(c) * t.decayFactor)
		if decayed <= 0 {
			delete(t.counts, k)
			continue
		}
		t.counts[k] = decayed
	}
}

// GetHot returns every key whose count is at least threshold.
func (t *Tracker) GetHot(threshold int) map[string]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	hot := make(map[string]struct{})
	for k, c := range t.counts {
		if c >= threshold {
			hot[k] = struct{}{}
		}
	}
	return hot
}

// Count returns key's current count, for diagnostics and tests.
func (t *Tracker) Count(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[key]
}
