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

package shardmap

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardForIsDeterministic(t *testing.T) {
	sm := New(8)
	a := sm.ShardFor("obj-1")
	b := sm.ShardFor("obj-1")
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, 0)
	assert.Less(t, a, 8)
}

func TestIsSingleShard(t *testing.T) {
	sm := New(8)
	shard, ok := sm.IsSingleShard([]string{"obj-1", "obj-1", "obj-1"})
	assert.True(t, ok)
	assert.Equal(t, sm.ShardFor("obj-1"), shard)
}

// TestShardIsolation: two single-shard
// transactions on distinct shards never share a key.
func TestShardIsolation(t *testing.T) {
	sm := New(8)

	buckets := make(map[int][]string)
	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("obj-%d", i)
		shard := sm.ShardFor(id)
		buckets[shard] = append(buckets[shard], id)
	}

	seen := make(map[string]int)
	for shard, ids := range buckets {
		for _, id := range ids {
			if prev, ok := seen[id]; ok {
				require.Equal(t, shard, prev, "the same id must always map to the same shard")
			}
			seen[id] = shard
		}
	}

	// distinct shards never contain the same id
	for s1, ids1 := range buckets {
		for s2, ids2 := range buckets {
			if s1 == s2 {
				continue
			}
			set2 := make(map[string]struct{}, len(ids2))
			for _, id := range ids2 {
				set2[id] = struct{}{}
			}
			for _, id := range ids1 {
				_, overlap := set2[id]
				assert.False(t, overlap)
			}
		}
	}
}
