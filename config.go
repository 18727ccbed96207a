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

// Config enumerates the engine's tunables: a plain struct, a
// DefaultConfig value, and a validate() method that fills in zero
// fields rather than rejecting them.
type Config struct {
	// MaxRetries caps scheduler-level retries per transaction on
	// Conflict.
	MaxRetries int

	// BloomFilterEnabled is the master switch for Bloom pruning; the
	// runtime adaptive controller may override it per batch.
	BloomFilterEnabled bool
	// ExpectedKeysPerTxn and BloomFPR determine the Bloom filter shape
	// (m, k).
	ExpectedKeysPerTxn int
	BloomFPR           float64

	// BatchCommitEnabled and MinBatchSize gate entry into the
	// optimized pipeline; batches smaller than MinBatchSize bypass it.
	BatchCommitEnabled bool
	MinBatchSize       int

	// BloomDisableThreshold and BloomEnableThreshold bound the
	// adaptive Bloom on/off band.
	BloomDisableThreshold float64
	BloomEnableThreshold  float64

	// KeyIndexGroupingEnabled selects key-inverted grouping over O(n^2)
	// pairwise comparison.
	KeyIndexGroupingEnabled bool

	// OwnershipShardingEnabled and NumShards enable the shard fast
	// path.
	OwnershipShardingEnabled bool
	NumShards                int

	// DensityFallbackThreshold is the candidate density above which
	// grouping is skipped in favor of plain parallel commit relying on
	// store-level conflict detection.
	DensityFallbackThreshold float64

	// HotKeyIsolationEnabled and HotKeyThreshold gate stage 4's
	// batch-local tier.
	HotKeyIsolationEnabled bool
	HotKeyThreshold        int
	// HotKeyBucketingEnabled selects parallel-bucket commit over
	// strictly serial commit for the medium/batch-local tiers.
	HotKeyBucketingEnabled bool

	// AdaptiveHotKeyEnabled and its bounds drive online threshold
	// adjustment.
	AdaptiveHotKeyEnabled bool
	HotKeyMin             int
	HotKeyMax             int
	HotKeyStep            int
	WindowBatches         int
	ConflictLow           float64
	ConflictHigh          float64
	DensityLow            float64
	DensityHigh           float64

	// LFUTrackingEnabled and its parameters drive the cross-batch
	// hot-key tracker.
	LFUTrackingEnabled bool
	LFUDecayPeriod     int
	LFUDecayFactor     float64
	LFUThresholdMedium int
	LFUThresholdHigh   int

	// AutoTuningEnabled and AutoTuningInterval activate the
	// recommendation engine.
	AutoTuningEnabled  bool
	AutoTuningInterval int

	// CoordinatorLockBatchSize is the chunk size used by the 2PC
	// coordinator's fine-grained prepare.
	CoordinatorLockBatchSize int
	// CoordinatorMinBatchSize, CoordinatorMaxBatchSize,
	// CoordinatorTargetConflict, and CoordinatorEMAAlpha parameterize
	// the coordinator's adaptive batch-size controller.
	CoordinatorMinBatchSize   int
	CoordinatorMaxBatchSize   int
	CoordinatorTargetConflict float64
	CoordinatorEMAAlpha       float64
}

// DefaultConfig holds the engine's default tuning; every field is
// caller-overridable.
var DefaultConfig = Config{
	MaxRetries: 3,

	BloomFilterEnabled: true,
	ExpectedKeysPerTxn: 8,
	BloomFPR:           0.01,

	BatchCommitEnabled: true,
	MinBatchSize:       2,

	BloomDisableThreshold: 0.02,
	BloomEnableThreshold:  0.10,

	KeyIndexGroupingEnabled: true,

	OwnershipShardingEnabled: true,
	NumShards:                16,

	DensityFallbackThreshold: 0.35,

	HotKeyIsolationEnabled: true,
	HotKeyThreshold:        8,
	HotKeyBucketingEnabled: true,

	AdaptiveHotKeyEnabled: true,
	HotKeyMin:             2,
	HotKeyMax:             64,
	HotKeyStep:            1,
	WindowBatches:         5,
	ConflictLow:           0.02,
	ConflictHigh:          0.15,
	DensityLow:            0.05,
	DensityHigh:           0.30,

	LFUTrackingEnabled: true,
	LFUDecayPeriod:     50,
	LFUDecayFactor:     0.5,
	LFUThresholdMedium: 5,
	LFUThresholdHigh:   20,

	AutoTuningEnabled:  true,
	AutoTuningInterval: 20,

	CoordinatorLockBatchSize:  64,
	CoordinatorMinBatchSize:   4,
	CoordinatorMaxBatchSize:   256,
	CoordinatorTargetConflict: 0.05,
	CoordinatorEMAAlpha:       0.3,
}

// NewConfig fills every numeric field of cfg that is zero or negative
// with DefaultConfig's value and returns the result. Boolean switches
// are left exactly as the caller set them. Constructors across the module
// (internal/scheduler.New, internal/coordinator.New) call this before
// trusting a caller-supplied Config.
func NewConfig(cfg Config) Config {
	_ = cfg.validate()
	return cfg
}

// validate fills numeric fields that are zero or negative with
// DefaultConfig's values; boolean fields are not touched. It never
// rejects a Config outright: callers get a usable configuration
// even from a partially-populated struct literal.
func (c *Config) validate() error {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultConfig.MaxRetries
	}
	if c.ExpectedKeysPerTxn <= 0 {
		c.ExpectedKeysPerTxn = DefaultConfig.ExpectedKeysPerTxn
	}
	if c.BloomFPR <= 0 {
		c.BloomFPR = DefaultConfig.BloomFPR
	}
	if c.MinBatchSize <= 0 {
		c.MinBatchSize = DefaultConfig.MinBatchSize
	}
	if c.BloomDisableThreshold <= 0 {
		c.BloomDisableThreshold = DefaultConfig.BloomDisableThreshold
	}
	if c.BloomEnableThreshold <= 0 {
		c.BloomEnableThreshold = DefaultConfig.BloomEnableThreshold
	}
	if c.NumShards <= 0 {
		c.NumShards = DefaultConfig.NumShards
	}
	if c.DensityFallbackThreshold <= 0 {
		c.DensityFallbackThreshold = DefaultConfig.DensityFallbackThreshold
	}
	if c.HotKeyThreshold <= 0 {
		c.HotKeyThreshold = DefaultConfig.HotKeyThreshold
	}
	if c.HotKeyMin <= 0 {
		c.HotKeyMin = DefaultConfig.HotKeyMin
	}
	if c.HotKeyMax <= 0 {
		c.HotKeyMax = DefaultConfig.HotKeyMax
	}
	if c.HotKeyStep <= 0 {
		c.HotKeyStep = DefaultConfig.HotKeyStep
	}
	if c.WindowBatches <= 0 {
		c.WindowBatches = DefaultConfig.WindowBatches
	}
	if c.ConflictLow <= 0 {
		c.ConflictLow = DefaultConfig.ConflictLow
	}
	if c.ConflictHigh <= 0 {
		c.ConflictHigh = DefaultConfig.ConflictHigh
	}
	if c.DensityLow <= 0 {
		c.DensityLow = DefaultConfig.DensityLow
	}
	if c.DensityHigh <= 0 {
		c.DensityHigh = DefaultConfig.DensityHigh
	}
	if c.LFUDecayPeriod <= 0 {
		c.LFUDecayPeriod = DefaultConfig.LFUDecayPeriod
	}
	if c.LFUDecayFactor <= 0 {
		c.LFUDecayFactor = DefaultConfig.LFUDecayFactor
	}
	if c.LFUThresholdMedium <= 0 {
		c.LFUThresholdMedium = DefaultConfig.LFUThresholdMedium
	}
	if c.LFUThresholdHigh <= 0 {
		c.LFUThresholdHigh = DefaultConfig.LFUThresholdHigh
	}
	if c.AutoTuningInterval <= 0 {
		c.AutoTuningInterval = DefaultConfig.AutoTuningInterval
	}
	if c.CoordinatorLockBatchSize <= 0 {
		c.CoordinatorLockBatchSize = DefaultConfig.CoordinatorLockBatchSize
	}
	if c.CoordinatorMinBatchSize <= 0 {
		c.CoordinatorMinBatchSize = DefaultConfig.CoordinatorMinBatchSize
	}
	if c.CoordinatorMaxBatchSize <= 0 {
		c.CoordinatorMaxBatchSize = DefaultConfig.CoordinatorMaxBatchSize
	}
	if c.CoordinatorTargetConflict <= 0 {
		c.CoordinatorTargetConflict = DefaultConfig.CoordinatorTargetConflict
	}
	if c.CoordinatorEMAAlpha <= 0 {
		c.CoordinatorEMAAlpha = DefaultConfig.CoordinatorEMAAlpha
	}
	return nil
}
