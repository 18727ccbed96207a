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

package vectis

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOracleMonotonic(t *testing.T) {
	orc := newOracle()

	var prev uint64
	for i := 0; i < 1000; i++ {
		ts := orc.next()
		require.Greater(t, ts, prev)
		prev = ts
	}
}

func TestOracleConcurrentMonotonic(t *testing.T) {
	orc := newOracle()

	const goroutines = 32
	const perGoroutine = 200

	seen := make([][]uint64, goroutines)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			local := make([]uint64, perGoroutine)
			for i := 0; i < perGoroutine; i++ {
				local[i] = orc.next()
			}
			seen[idx] = local
		}(g)
	}
	wg.Wait()

	all := make(map[uint64]struct{}, goroutines*perGoroutine)
	for _, local := range seen {
		for _, ts := range local {
			_, dup := all[ts]
			assert.False(t, dup, "timestamp %d allocated twice", ts)
			all[ts] = struct{}{}
		}
	}
	assert.Len(t, all, goroutines*perGoroutine)
}
