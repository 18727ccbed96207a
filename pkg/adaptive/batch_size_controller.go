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

import "sync"

// BatchSizeControllerConfig bounds the coordinator's adaptive batch
// sizing: an EMA of conflict rate drives batch size up or down by 20%,
// clamped to [Min, Max].
type BatchSizeControllerConfig struct {
	Min            int
	Max            int
	TargetConflict float64
	EMAAlpha       float64
}

// BatchSizeController keeps an exponential moving average of observed
// conflict rate (and, for diagnostics, latency) per batch, growing or
// shrinking the recommended batch size around a target conflict rate.
type BatchSizeController struct {
	mu  sync.Mutex
	cfg BatchSizeControllerConfig

	emaConflict     float64
	emaLatencyNanos float64
	haveSample      bool

	size int
}

// NewBatchSizeController creates a controller seeded at startSize.
func NewBatchSizeController(cfg BatchSizeControllerConfig, startSize int) *BatchSizeController {
	if cfg.Min <= 0 {
		cfg.Min = 1
	}
	if cfg.Max < cfg.Min {
		cfg.Max = cfg.Min
	}
	if cfg.EMAAlpha <= 0 || cfg.EMAAlpha > 1 {
		cfg.EMAAlpha = 0.3
	}
	if startSize < cfg.Min {
		startSize = cfg.Min
	}
	if startSize > cfg.Max {
		startSize = cfg.Max
	}
	return &BatchSizeController{cfg: cfg, size: startSize}
}

// Size returns the currently recommended batch size.
func (c *BatchSizeController) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Observe folds one batch's conflict rate and latency into the EMA and
// re-derives the recommended batch size: well below target grows by
// 20%, well above shrinks by 20%, clamped to [Min, Max].
func (c *BatchSizeController) Observe(conflictRate float64, latencyNanos float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.haveSample {
		c.emaConflict = conflictRate
		c.emaLatencyNanos = latencyNanos
		c.haveSample = true
	} else {
		a := c.cfg.EMAAlpha
		c.emaConflict = a*conflictRate + (1-a)*c.emaConflict
		c.emaLatencyNanos = a*latencyNanos + (1-a)*c.emaLatencyNanos
	}

	target := c.cfg.TargetConflict
	switch {
	case c.emaConflict < target*0.5:
		c.size = clamp(int(float64(c.size)*1.2), c.cfg.Min, c.cfg.Max)
	case c.emaConflict > target*1.5:
		c.size = clamp(int(float64(c.size)*0.8), c.cfg.Min, c.cfg.Max)
	}
	if c.size < c.cfg.Min {
		c.size = c.cfg.Min
	}
}

// EMAConflictRate returns the current conflict-rate EMA, for
// diagnostics.
func (c *BatchSizeController) EMAConflictRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emaConflict
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
