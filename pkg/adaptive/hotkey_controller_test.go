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

func baseCfg() HotKeyControllerConfig {
	return HotKeyControllerConfig{
		ThresholdAdjustEnabled: true,
		WindowBatches:          5,
		ConflictLow:            0.02,
		ConflictHigh:           0.15,
		DensityLow:             0.05,
		DensityHigh:            0.30,
		HotKeyMin:              2,
		HotKeyMax:              64,
		HotKeyStep:             1,
		BloomDisableThreshold:  0.02,
		BloomEnableThreshold:   0.10,
	}
}

func TestHighConflictDecrementsThreshold(t *testing.T) {
	c := NewHotKeyController(baseCfg(), 8)
	// Each Observe re-derives the threshold once; five high-conflict
	// batches in a row decrement it five times.
	for i := 0; i < 5; i++ {
		c.Observe(0.5, 0.5)
	}
	assert.Equal(t, 3, c.Threshold())
}

func TestLowConflictAndDensityIncrementsThreshold(t *testing.T) {
	c := NewHotKeyController(baseCfg(), 8)
	for i := 0; i < 5; i++ {
		c.Observe(0.0, 0.0)
	}
	assert.Equal(t, 13, c.Threshold())
}

func TestThresholdClampedToBounds(t *testing.T) {
	cfg := baseCfg()
	cfg.HotKeyMin = 2
	c := NewHotKeyController(cfg, 2)
	for i := 0; i < 50; i++ {
		c.Observe(0.5, 0.5)
	}
	assert.Equal(t, 2, c.Threshold())
}

func TestBloomDisabledBelowDisableThreshold(t *testing.T) {
	c := NewHotKeyController(baseCfg(), 8)
	assert.True(t, c.BloomEnabled())
	for i := 0; i < 5; i++ {
		c.Observe(0.0, 0.0)
	}
	assert.False(t, c.BloomEnabled())
}

func TestBloomReEnabledAboveEnableThreshold(t *testing.T) {
	c := NewHotKeyController(baseCfg(), 8)
	for i := 0; i < 5; i++ {
		c.Observe(0.0, 0.0)
	}
	assert.False(t, c.BloomEnabled())

	for i := 0; i < 5; i++ {
		c.Observe(0.5, 0.5)
	}
	assert.True(t, c.BloomEnabled())
}

// TestThresholdAdjustDisabledLeavesThresholdAlone: with threshold
// adjustment off, the rolling window is still maintained (Bloom toggle
// still moves) but the hot-key threshold itself never changes.
func TestThresholdAdjustDisabledLeavesThresholdAlone(t *testing.T) {
	cfg := baseCfg()
	cfg.ThresholdAdjustEnabled = false
	c := NewHotKeyController(cfg, 8)
	for i := 0; i < 5; i++ {
		c.Observe(0.5, 0.5)
	}
	assert.Equal(t, 8, c.Threshold())
	assert.True(t, c.BloomEnabled())
}

func TestWindowDropsStaleObservations(t *testing.T) {
	cfg := baseCfg()
	cfg.WindowBatches = 2
	c := NewHotKeyController(cfg, 8)
	c.Observe(1.0, 1.0) // threshold 8 -> 7
	c.Observe(1.0, 1.0) // threshold 7 -> 6
	c.Observe(0.0, 0.0) // window [1.0, 0.0], avg 0.5 still high -> 6 -> 5
	// the window now holds only these two low observations, so the
	// earlier high ones must no longer affect the average
	c.Observe(0.0, 0.0) // window [0.0, 0.0], avg 0 -> low -> 5 -> 6
	assert.Equal(t, 6, c.Threshold())
}
