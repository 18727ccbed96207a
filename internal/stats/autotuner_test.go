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

package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAutoTunerDoesNotReEvaluateBeforeInterval(t *testing.T) {
	at := NewAutoTuner(5, 0.02, 0.10)
	assert.True(t, at.RecommendedBloomEnabled())

	for i := 0; i < 4; i++ {
		at.Observe(BatchRecord{ConflictRate: 0.0})
	}
	assert.True(t, at.RecommendedBloomEnabled())
}

func TestAutoTunerDisablesBloomOnQuietBatches(t *testing.T) {
	at := NewAutoTuner(5, 0.02, 0.10)
	for i := 0; i < 5; i++ {
		at.Observe(BatchRecord{ConflictRate: 0.0})
	}
	assert.False(t, at.RecommendedBloomEnabled())
}

func TestAutoTunerReEnablesBloomOnContendedBatches(t *testing.T) {
	at := NewAutoTuner(5, 0.02, 0.10)
	for i := 0; i < 5; i++ {
		at.Observe(BatchRecord{ConflictRate: 0.0})
	}
	assert.False(t, at.RecommendedBloomEnabled())

	for i := 0; i < 5; i++ {
		at.Observe(BatchRecord{ConflictRate: 0.5})
	}
	assert.True(t, at.RecommendedBloomEnabled())
}

func TestAutoTunerDefaultIntervalOnNonPositive(t *testing.T) {
	at := NewAutoTuner(0, 0.02, 0.10)
	assert.Equal(t, 20, at.interval)
}
