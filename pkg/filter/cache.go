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

package filter

import "sync"

// slot holds one transaction's read and write Bloom filters, both
// guarded by the slot's own lock so concurrent record/MayConflict calls from
// different stages of the scheduler never race.
type slot struct {
	mu    sync.RWMutex
	reads *Filter
	write *Filter
}

// Cache is the per-batch Bloom filter cache: a growable
// vector of per-transaction read/write filter pairs, sized once per
// batch from Shape and grown as transactions are allocated.
type Cache struct {
	mu    sync.Mutex
	shape Shape
	slots []*slot
}

// NewCache creates a Cache whose filters are shaped for n expected
// items per transaction at target false-positive rate p.
func NewCache(n int, p float64) *Cache {
	return &Cache{shape: NewShape(n, p)}
}

// AllocateTxn assigns a new slot with fresh read/write filters and
// returns its index.
func (c *Cache) AllocateTxn() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots = append(c.slots, &slot{
		reads: NewWithShape(c.shape),
		write: NewWithShape(c.shape),
	})
	return len(c.slots) - 1
}

// RecordRead inserts key into slot index's read filter.
func (c *Cache) RecordRead(index int, key string) {
	s := c.slotAt(index)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads.Add(key)
}

// RecordWrite inserts key into slot index's write filter.
func (c *Cache) RecordWrite(index int, key string) {
	s := c.slotAt(index)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write.Add(key)
}

// MayConflict reports whether
// ri∩wj ≠ ∅ ∨ wi∩rj ≠ ∅ ∨ wi∩wj ≠ ∅. A false return is certain: the
// two transactions' exact read/write sets have no pairwise overlap.
func (c *Cache) MayConflict(i, j int) bool {
	si, sj := c.slotAt(i), c.slotAt(j)

	si.mu.RLock()
	sj.mu.RLock()
	defer si.mu.RUnlock()
	defer sj.mu.RUnlock()

	return si.reads.MayIntersect(sj.write) ||
		si.write.MayIntersect(sj.reads) ||
		si.write.MayIntersect(sj.write)
}

func (c *Cache) slotAt(index int) *slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots[index]
}

// Len returns the number of allocated slots.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}
