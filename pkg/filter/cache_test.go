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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheMayConflictDetectsWriteWrite(t *testing.T) {
	c := NewCache(8, 0.01)
	i := c.AllocateTxn()
	j := c.AllocateTxn()

	c.RecordWrite(i, "shared-key")
	c.RecordWrite(j, "shared-key")

	assert.True(t, c.MayConflict(i, j))
}

func TestCacheMayConflictDetectsReadWrite(t *testing.T) {
	c := NewCache(8, 0.01)
	i := c.AllocateTxn()
	j := c.AllocateTxn()

	c.RecordRead(i, "k")
	c.RecordWrite(j, "k")

	assert.True(t, c.MayConflict(i, j))
}

func TestCacheMayConflictFalseMeansDisjoint(t *testing.T) {
	c := NewCache(8, 0.01)
	i := c.AllocateTxn()
	j := c.AllocateTxn()

	c.RecordRead(i, "a")
	c.RecordWrite(i, "b")
	c.RecordRead(j, "c")
	c.RecordWrite(j, "d")

	if !c.MayConflict(i, j) {
		assert.NotEqual(t, "a", "c")
		assert.NotEqual(t, "a", "d")
		assert.NotEqual(t, "b", "c")
		assert.NotEqual(t, "b", "d")
	}
}
