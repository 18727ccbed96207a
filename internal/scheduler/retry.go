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

package scheduler

import (
	"context"
	"time"

	vectis "github.com/B1NARY-GR0UP/vectis"
)

// commitWithRetry is the per-transaction commit helper used by every
// stage: if the business closure failed, the transaction is
// abandoned as a BusinessFailure with no commit attempt. Otherwise it
// attempts a store-level commit; on Conflict with retries remaining it
// re-opens a fresh transaction, re-runs fn, and tries again, sleeping
// 1<<retry microseconds between attempts, up to cfg.MaxRetries times.
func (s *Scheduler) commitWithRetry(ctx context.Context, txn *vectis.Txn, fn vectis.TxnFunc, value int32, bizErr error) TxnResult {
	if bizErr != nil {
		txn.Abort()
		return TxnResult{Err: vectis.NewBusinessError(bizErr)}
	}

	cur := txn
	curValue := value
	for retry := 0; ; retry++ {
		commitTs, err := cur.Commit()
		if err == nil {
			return TxnResult{ReturnValue: curValue, Success: true, CommitTs: commitTs}
		}
		if !vectis.IsConflict(err) || retry >= s.cfg.MaxRetries {
			return TxnResult{Err: err}
		}

		s.counters.IncRetry()
		sleepBackoff(ctx, retry)

		cur = s.store.Begin()
		curValue, bizErr = fn(cur)
		if bizErr != nil {
			cur.Abort()
			return TxnResult{Err: vectis.NewBusinessError(bizErr)}
		}
	}
}

// sleepBackoff sleeps 1<<retry microseconds, returning early if ctx
// is already done.
func sleepBackoff(ctx context.Context, retry int) {
	d := time.Duration(1<<uint(retry)) * time.Microsecond
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
