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

// Package adaptive implements the scheduler's rolling-window threshold
// controller and the coordinator's EMA-based batch sizing controller.
// Each is a small stateful struct guarded by one mutex per concern,
// touched once per batch rather than once per transaction.
package adaptive

import "sync"

// HotKeyControllerConfig bounds the controller's behavior.
type HotKeyControllerConfig struct {
	// ThresholdAdjustEnabled gates whether Observe ever moves the
	// hot-key threshold. The rolling window and the Bloom on/off band
	// are still maintained either way; the Bloom thresholds are a
	// separate band, not gated by this flag.
	ThresholdAdjustEnabled bool

	WindowBatches int
	ConflictLow   float64
	ConflictHigh  float64
	DensityLow    float64
	DensityHigh   float64

	HotKeyMin  int
	HotKeyMax  int
	HotKeyStep int

	BloomDisableThreshold float64
	BloomEnableThreshold  float64
}

// HotKeyController tracks a rolling window of per-batch conflict rate
// and candidate density, and derives the current hot-key threshold and
// whether Bloom pruning should run.
type HotKeyController struct {
	mu  sync.Mutex
	cfg HotKeyControllerConfig

	conflictRates []float64
	densities     []float64

	threshold    int
	bloomEnabled bool
}

// NewHotKeyController creates a controller seeded at startThreshold,
// with Bloom pruning initially enabled.
func NewHotKeyController(cfg HotKeyControllerConfig, startThreshold int) *HotKeyController {
	if cfg.WindowBatches <= 0 {
		cfg.WindowBatches = 5
	}
	return &HotKeyController{
		cfg:          cfg,
		threshold:    startThreshold,
		bloomEnabled: true,
	}
}

// Threshold returns the current hot-key threshold.
func (c *HotKeyController) Threshold() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threshold
}

// BloomEnabled returns whether Bloom pruning should run this batch.
func (c *HotKeyController) BloomEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bloomEnabled
}

// Observe pushes one batch's conflict rate and candidate density into
// the rolling window and re-derives the threshold and Bloom flag.
func (c *HotKeyController) Observe(conflictRate, density float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conflictRates = pushWindow(c.conflictRates, conflictRate, c.cfg.WindowBatches)
	c.densities = pushWindow(c.densities, density, c.cfg.WindowBatches)

	avgConflict := average(c.conflictRates)
	avgDensity := average(c.densities)

	if c.cfg.ThresholdAdjustEnabled {
		switch {
		case avgConflict > c.cfg.ConflictHigh || avgDensity > c.cfg.DensityHigh:
			c.threshold -= c.cfg.HotKeyStep
			if c.threshold < c.cfg.HotKeyMin {
				c.threshold = c.cfg.HotKeyMin
			}
		case avgConflict < c.cfg.ConflictLow && avgDensity < c.cfg.DensityLow:
			c.threshold += c.cfg.HotKeyStep
			if c.threshold > c.cfg.HotKeyMax {
				c.threshold = c.cfg.HotKeyMax
			}
		}
	}

	if avgConflict < c.cfg.BloomDisableThreshold {
		c.bloomEnabled = false
	} else if avgConflict > c.cfg.BloomEnableThreshold {
		c.bloomEnabled = true
	}
}

func pushWindow(window []float64, v float64, max int) []float64 {
	window = append(window, v)
	if len(window) > max {
		window = window[len(window)-max:]
	}
	return window
}

func average(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
