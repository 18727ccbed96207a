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

package adaptive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchSizeGrowsWhenConflictRateWellBelowTarget(t *testing.T) {
	cfg := BatchSizeControllerConfig{Min: 10, Max: 1000, TargetConflict: 0.1, EMAAlpha: 1}
	c := NewBatchSizeController(cfg, 100)
	c.Observe(0.0, 0)
	assert.Equal(t, 120, c.Size())
}

func TestBatchSizeShrinksWhenConflictRateWellAboveTarget(t *testing.T) {
	cfg := BatchSizeControllerConfig{Min: 10, Max: 1000, TargetConflict: 0.1, EMAAlpha: 1}
	c := NewBatchSizeController(cfg, 100)
	c.Observe(0.5, 0)
	assert.Equal(t, 80, c.Size())
}

func TestBatchSizeStableNearTarget(t *testing.T) {
	cfg := BatchSizeControllerConfig{Min: 10, Max: 1000, TargetConflict: 0.1, EMAAlpha: 1}
	c := NewBatchSizeController(cfg, 100)
	c.Observe(0.1, 0)
	assert.Equal(t, 100, c.Size())
}

func TestBatchSizeClampedToBounds(t *testing.T) {
	cfg := BatchSizeControllerConfig{Min: 10, Max: 110, TargetConflict: 0.1, EMAAlpha: 1}
	c := NewBatchSizeController(cfg, 100)
	for i := 0; i < 10; i++ {
		c.Observe(0.0, 0)
	}
	assert.Equal(t, 110, c.Size())

	for i := 0; i < 10; i++ {
		c.Observe(1.0, 0)
	}
	assert.Equal(t, 10, c.Size())
}

func TestNewBatchSizeControllerClampsStartSize(t *testing.T) {
	cfg := BatchSizeControllerConfig{Min: 10, Max: 50}
	c := NewBatchSizeController(cfg, 1000)
	assert.Equal(t, 50, c.Size())

	c2 := NewBatchSizeController(cfg, 1)
	assert.Equal(t, 10, c2.Size())
}
