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

package conflictgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAddsEdgeOnWriteWriteCollision(t *testing.T) {
	txns := []Txn{
		{Index: 0, WriteSet: []string{"a"}},
		{Index: 1, WriteSet: []string{"a"}},
		{Index: 2, WriteSet: []string{"b"}},
	}
	g := Build(txns, nil)

	_, edge01 := g.Neighbors(0)[1]
	_, edge02 := g.Neighbors(0)[2]
	assert.True(t, edge01)
	assert.False(t, edge02)
}

func TestBuildAddsEdgeOnReadWriteCollision(t *testing.T) {
	txns := []Txn{
		{Index: 0, ReadSet: []string{"a"}},
		{Index: 1, WriteSet: []string{"a"}},
	}
	g := Build(txns, nil)

	_, edge := g.Neighbors(0)[1]
	assert.True(t, edge)
}

func TestBuildNoEdgeWhenDisjoint(t *testing.T) {
	txns := []Txn{
		{Index: 0, ReadSet: []string{"a"}, WriteSet: []string{"a"}},
		{Index: 1, ReadSet: []string{"b"}, WriteSet: []string{"b"}},
	}
	g := Build(txns, nil)

	assert.Empty(t, g.Neighbors(0))
	assert.Empty(t, g.Neighbors(1))
}

func TestBuildHonorsMayConflictPruning(t *testing.T) {
	txns := []Txn{
		{Index: 0, WriteSet: []string{"a"}},
		{Index: 1, WriteSet: []string{"a"}},
	}
	// Bloom filters claim these two never actually collide; Build must
	// trust that and skip the edge even though the raw sets overlap.
	g := Build(txns, func(i, j int) bool { return false })

	assert.Empty(t, g.Neighbors(0))
	assert.Empty(t, g.Neighbors(1))
}

// TestColorIndependence: no two transactions in
// the same color class may have an RW/WR/WW collision.
func TestColorIndependence(t *testing.T) {
	txns := []Txn{
		{Index: 0, WriteSet: []string{"a"}},
		{Index: 1, WriteSet: []string{"a"}},
		{Index: 2, WriteSet: []string{"b"}},
		{Index: 3, ReadSet: []string{"b"}},
		{Index: 4, WriteSet: []string{"c"}},
	}
	g := Build(txns, nil)
	classes := g.Color()

	seen := make(map[int]struct{})
	for _, class := range classes {
		for _, v := range class {
			_, dup := seen[v]
			require.False(t, dup, "every vertex must appear in exactly one class")
			seen[v] = struct{}{}
		}
		for i := 0; i < len(class); i++ {
			for j := i + 1; j < len(class); j++ {
				_, collide := g.Neighbors(class[i])[class[j]]
				assert.False(t, collide, "color class must be an independent set")
			}
		}
	}
	assert.Len(t, seen, len(txns))
}

func TestColorOfEdgelessGraphIsSingleClass(t *testing.T) {
	txns := []Txn{
		{Index: 0, WriteSet: []string{"a"}},
		{Index: 1, WriteSet: []string{"b"}},
		{Index: 2, WriteSet: []string{"c"}},
	}
	g := Build(txns, nil)
	classes := g.Color()

	require.Len(t, classes, 1)
	assert.ElementsMatch(t, []int{0, 1, 2}, classes[0])
}

func TestColorOfCliqueNeedsOneClassPerVertex(t *testing.T) {
	txns := []Txn{
		{Index: 0, WriteSet: []string{"a"}},
		{Index: 1, WriteSet: []string{"a"}},
		{Index: 2, WriteSet: []string{"a"}},
	}
	g := Build(txns, nil)
	classes := g.Color()

	assert.Len(t, classes, 3)
	for _, class := range classes {
		assert.Len(t, class, 1)
	}
}

func TestDensityOfDisjointBatchIsZero(t *testing.T) {
	txns := []Txn{
		{Index: 0, WriteSet: []string{"a"}},
		{Index: 1, WriteSet: []string{"b"}},
		{Index: 2, WriteSet: []string{"c"}},
	}
	assert.Equal(t, 0.0, Density(txns))
}

func TestDensityOfFullyOverlappingBatchIsOne(t *testing.T) {
	txns := []Txn{
		{Index: 0, WriteSet: []string{"a"}},
		{Index: 1, WriteSet: []string{"a"}},
		{Index: 2, WriteSet: []string{"a"}},
	}
	assert.InDelta(t, 1.0, Density(txns), 1e-9)
}

// TestBuildPairwiseMatchesIndexedBuild: both grouping routes must
// produce the same conflict graph, just via different asymptotics.
func TestBuildPairwiseMatchesIndexedBuild(t *testing.T) {
	txns := []Txn{
		{Index: 0, WriteSet: []string{"a"}},
		{Index: 1, WriteSet: []string{"a"}},
		{Index: 2, ReadSet: []string{"b"}},
		{Index: 3, WriteSet: []string{"b"}},
		{Index: 4, WriteSet: []string{"c"}},
	}
	indexed := Build(txns, nil)
	pairwise := BuildPairwise(txns, nil)

	for i := 0; i < len(txns); i++ {
		assert.Equal(t, indexed.Neighbors(i), pairwise.Neighbors(i))
	}
}

func TestBuildPairwiseHonorsMayConflictPruning(t *testing.T) {
	txns := []Txn{
		{Index: 0, WriteSet: []string{"a"}},
		{Index: 1, WriteSet: []string{"a"}},
	}
	g := BuildPairwise(txns, func(i, j int) bool { return false })

	assert.Empty(t, g.Neighbors(0))
	assert.Empty(t, g.Neighbors(1))
}

func TestDensityOfEmptyOrSingletonBatchIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Density(nil))
	assert.Equal(t, 0.0, Density([]Txn{{Index: 0, WriteSet: []string{"a"}}}))
}
