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

// Package conflictgraph implements the conflict grouper: an inverted
// index over a batch's read/write sets, an exact pairwise conflict
// check gated by an optional Bloom pre-filter, and greedy graph
// coloring into independent, parallel-committable classes.
package conflictgraph

// Txn is the minimal view the grouper needs of one executed
// transaction: its position in the batch and its observed read/write
// sets.
type Txn struct {
	Index    int
	ReadSet  []string
	WriteSet []string
}

// MayConflict is consulted per key-sharing pair before the exact
// check; returning false must mean the two transactions' exact sets
// cannot overlap (false negatives are not allowed). A nil MayConflict
// disables Bloom pruning and every candidate pair is verified exactly.
type MayConflict func(i, j int) bool

// Graph is the undirected conflict graph built over one batch: an edge
// connects any two transactions sharing at least one RW, WR, or WW
// collision on a key.
type Graph struct {
	n     int
	edges []map[int]struct{}
}

// Build constructs the conflict graph for txns using the key-inverted
// index algorithm:
//  1. invert readers/writers per key;
//  2. for every key, for every co-occurring pair, consult mayConflict
//     (if non-nil) and otherwise verify exactly;
//  3. add an edge on any real RW/WR/WW collision.
func Build(txns []Txn, mayConflict MayConflict) *Graph {
	g := &Graph{n: len(txns), edges: make([]map[int]struct{}, len(txns))}
	for i := range g.edges {
		g.edges[i] = make(map[int]struct{})
	}

	readers := make(map[string][]int)
	writers := make(map[string][]int)
	for _, t := range txns {
		for _, k := range t.ReadSet {
			readers[k] = append(readers[k], t.Index)
		}
		for _, k := range t.WriteSet {
			writers[k] = append(writers[k], t.Index)
		}
	}

	seen := make(map[[2]int]struct{})
	addPairsOnKey := func(key string) {
		rs := readers[key]
		ws := writers[key]
		// RW / WR pairs
		for _, r := range rs {
			for _, w := range ws {
				if r == w {
					continue
				}
				g.considerPair(r, w, mayConflict, seen)
			}
		}
		// WW pairs
		for a := 0; a < len(ws); a++ {
			for b := a + 1; b < len(ws); b++ {
				g.considerPair(ws[a], ws[b], mayConflict, seen)
			}
		}
	}

	touchedKeys := make(map[string]struct{})
	for k := range readers {
		touchedKeys[k] = struct{}{}
	}
	for k := range writers {
		touchedKeys[k] = struct{}{}
	}
	for k := range touchedKeys {
		addPairsOnKey(k)
	}

	return g
}

// BuildPairwise constructs the same conflict graph as Build but by the
// O(n^2) route, the alternative to key-inverted grouping: every pair
// of transactions is compared directly against each other's read/write
// sets rather than via an inverted per-key index. Useful for small
// batches or as a reference check against the indexed path; produces
// an identical graph, just with worse asymptotics for large n.
func BuildPairwise(txns []Txn, mayConflict MayConflict) *Graph {
	g := &Graph{n: len(txns), edges: make([]map[int]struct{}, len(txns))}
	for i := range g.edges {
		g.edges[i] = make(map[int]struct{})
	}

	seen := make(map[[2]int]struct{})
	for i := 0; i < len(txns); i++ {
		for j := i + 1; j < len(txns); j++ {
			if !setsCollide(txns[i], txns[j]) {
				continue
			}
			g.considerPair(txns[i].Index, txns[j].Index, mayConflict, seen)
		}
	}
	return g
}

func setsCollide(a, b Txn) bool {
	return anyShared(a.ReadSet, b.WriteSet) ||
		anyShared(a.WriteSet, b.ReadSet) ||
		anyShared(a.WriteSet, b.WriteSet)
}

func anyShared(xs, ys []string) bool {
	if len(xs) == 0 || len(ys) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		set[x] = struct{}{}
	}
	for _, y := range ys {
		if _, ok := set[y]; ok {
			return true
		}
	}
	return false
}

// considerPair adds an edge between i and j once. It assumes the
// caller only invokes it for pairs that actually co-occur on some key
// in the readers/writers index, so once mayConflict has not ruled the
// pair out, the edge is real and needs no further exact check here.
func (g *Graph) considerPair(i, j int, mayConflict MayConflict, seen map[[2]int]struct{}) {
	if i == j {
		return
	}
	a, b := i, j
	if a > b {
		a, b = b, a
	}
	pairKey := [2]int{a, b}

	if mayConflict != nil && !mayConflict(i, j) {
		return
	}
	if _, already := seen[pairKey]; already {
		return
	}
	seen[pairKey] = struct{}{}
	g.edges[a][b] = struct{}{}
	g.edges[b][a] = struct{}{}
}

// Neighbors returns the set of transaction indices adjacent to i.
func (g *Graph) Neighbors(i int) map[int]struct{} {
	return g.edges[i]
}

// Color runs greedy graph coloring: scan vertices
// in index order; assign each the least color unused by any already-
// colored neighbor. Returns color classes ordered by descending size
// ("large classes first is permitted").
func (g *Graph) Color() [][]int {
	colorOf := make([]int, g.n)
	for i := range colorOf {
		colorOf[i] = -1
	}

	for v := 0; v < g.n; v++ {
		used := make(map[int]struct{})
		for nb := range g.edges[v] {
			if colorOf[nb] >= 0 {
				used[colorOf[nb]] = struct{}{}
			}
		}
		c := 0
		for {
			if _, taken := used[c]; !taken {
				break
			}
			c++
		}
		colorOf[v] = c
	}

	classes := make(map[int][]int)
	maxColor := -1
	for v, c := range colorOf {
		classes[c] = append(classes[c], v)
		if c > maxColor {
			maxColor = c
		}
	}

	result := make([][]int, 0, maxColor+1)
	for c := 0; c <= maxColor; c++ {
		if cls, ok := classes[c]; ok {
			result = append(result, cls)
		}
	}

	// Large classes first.
	for i := 1; i < len(result); i++ {
		cur := result[i]
		j := i - 1
		for j >= 0 && len(result[j]) < len(cur) {
			result[j+1] = result[j]
			j--
		}
		result[j+1] = cur
	}

	return result
}

// candidatePairs is n choose 2.
func candidatePairs(n int) float64 {
	if n < 2 {
		return 0
	}
	return float64(n) * float64(n-1) / 2
}

// Density estimates candidate density: sum over each key of
// C(readers_k,2) + C(writers_k,2), divided by C(n,2).
func Density(txns []Txn) float64 {
	n := len(txns)
	total := candidatePairs(n)
	if total == 0 {
		return 0
	}

	readers := make(map[string]int)
	writers := make(map[string]int)
	for _, t := range txns {
		seenR := make(map[string]struct{})
		for _, k := range t.ReadSet {
			if _, dup := seenR[k]; dup {
				continue
			}
			seenR[k] = struct{}{}
			readers[k]++
		}
		seenW := make(map[string]struct{})
		for _, k := range t.WriteSet {
			if _, dup := seenW[k]; dup {
				continue
			}
			seenW[k] = struct{}{}
			writers[k]++
		}
	}

	var sum float64
	for _, c := range readers {
		sum += candidatePairs(c)
	}
	for _, c := range writers {
		sum += candidatePairs(c)
	}

	return sum / total
}
