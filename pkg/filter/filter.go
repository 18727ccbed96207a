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

// Package filter implements the Bloom filter used to approximate a
// transaction's read and write sets, with a parametrized shape and a
// double-hashing scheme.
package filter

import (
	"math"

	"github.com/spaolacci/murmur3"
)

const _wordBits = 64

// Shape is the (m, k) pair derived from the expected item count n and
// target false-positive rate p: m = ceil(-n*ln(p)/ln(2)^2),
// k = ceil((m/n)*ln 2). Two filters built from the same Shape are
// directly comparable by MayIntersect; filters built from different
// shapes conservatively report "may intersect".
type Shape struct {
	M int
	K int
}

// NewShape computes the filter shape for n expected items and target
// false-positive rate p.
func NewShape(n int, p float64) Shape {
	if n <= 0 {
		n = 1
	}
	m := int(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	if m <= 0 {
		m = 1
	}
	k := int(math.Ceil((float64(m) / float64(n)) * math.Ln2))
	if k <= 0 {
		k = 1
	}
	return Shape{M: m, K: k}
}

// Filter is a fixed-shape Bloom filter backed by a packed bit array.
// Add/Contains are false-negative free; MayIntersect is the pairwise
// "may conflict" test: AND the two bit arrays word-by-word and report
// true iff any word is non-zero.
type Filter struct {
	shape Shape
	bits  []uint64
}

// New creates an empty Filter shaped for n expected items and target
// false-positive rate p.
func New(n int, p float64) *Filter {
	return NewWithShape(NewShape(n, p))
}

// NewWithShape creates an empty Filter from a precomputed Shape, so a
// cache of many per-transaction filters (pkg/filter's consumer, the
// per-transaction Bloom cache) can share one Shape computation across
// an entire batch.
func NewWithShape(shape Shape) *Filter {
	words := (shape.M + _wordBits - 1) / _wordBits
	return &Filter{
		shape: shape,
		bits:  make([]uint64, words),
	}
}

// Shape returns the filter's (m, k).
func (f *Filter) Shape() Shape {
	return f.shape
}

// Add inserts key using double hashing: h_i = h1 + i*h2 (mod m),
// generating k indices from h1 and h2, the two 64-bit halves of one
// murmur3 128-bit hash.
func (f *Filter) Add(key string) {
	h1, h2 := f.hashes(key)
	for i := 0; i < f.shape.K; i++ {
		idx := f.index(h1, h2, i)
		f.bits[idx/_wordBits] |= 1 << (idx % _wordBits)
	}
}

// Contains reports whether key may have been added. False negatives
// are impossible; false positives occur at approximately the
// configured rate.
func (f *Filter) Contains(key string) bool {
	h1, h2 := f.hashes(key)
	for i := 0; i < f.shape.K; i++ {
		idx := f.index(h1, h2, i)
		if f.bits[idx/_wordBits]&(1<<(idx%_wordBits)) == 0 {
			return false
		}
	}
	return true
}

// MayIntersect reports whether f and other might share a member.
// Filters of identical shape are compared by word-wise AND; a non-zero
// word means a real overlap is possible. Filters of differing shape
// conservatively report true, since their bit layouts aren't
// comparable.
func (f *Filter) MayIntersect(other *Filter) bool {
	if other == nil {
		return false
	}
	if f.shape != other.shape {
		return true
	}
	for i := range f.bits {
		if f.bits[i]&other.bits[i] != 0 {
			return true
		}
	}
	return false
}

func (f *Filter) hashes(key string) (uint64, uint64) {
	return murmur3.Sum128WithSeed([]byte(key), 0)
}

func (f *Filter) index(h1, h2 uint64, i int) uint64 {
	return (h1 + uint64(i)*h2) % uint64(f.shape.M)
}
