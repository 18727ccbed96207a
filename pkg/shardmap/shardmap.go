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

// Package shardmap implements the ownership shard map: a
// deterministic, stateless object-id -> shard-id mapping: FNV-1a over
// the id, modulo the shard count.
package shardmap

import "hash/fnv"

// ShardMap maps object ids to shard indices. It carries no mutable
// state; NumShards is fixed at construction.
type ShardMap struct {
	numShards int
}

// New creates a ShardMap with the given number of shards. numShards
// must be at least 1; values <= 0 are treated as 1.
func New(numShards int) *ShardMap {
	if numShards <= 0 {
		numShards = 1
	}
	return &ShardMap{numShards: numShards}
}

// NumShards returns the configured shard count.
func (s *ShardMap) NumShards() int {
	return s.numShards
}

// ShardFor returns the shard index for id: hash(id) mod the shard
// count.
func (s *ShardMap) ShardFor(id string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum64() % uint64(s.numShards))
}

// Shards returns the set of distinct shard indices touched by ids.
func (s *ShardMap) Shards(ids []string) map[int]struct{} {
	shards := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		shards[s.ShardFor(id)] = struct{}{}
	}
	return shards
}

// IsSingleShard reports whether every id in ids maps to exactly one
// shard, and returns that shard index.
func (s *ShardMap) IsSingleShard(ids []string) (int, bool) {
	shards := s.Shards(ids)
	if len(shards) != 1 {
		return 0, false
	}
	for shard := range shards {
		return shard, true
	}
	return 0, false
}
