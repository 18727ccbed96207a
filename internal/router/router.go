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

// Package router implements the path router / executor facade: it
// classifies one transaction descriptor into FastPath, ConsensusPath,
// or PrivatePath, and drives execution through the scheduler
// accordingly: check the ownership state, then act, falling back once
// on the optimistic path's failure.
package router

import (
	"context"
	"time"

	vectis "github.com/B1NARY-GR0UP/vectis"
	"github.com/B1NARY-GR0UP/vectis/internal/scheduler"
	"github.com/B1NARY-GR0UP/vectis/internal/stats"
	"github.com/B1NARY-GR0UP/vectis/pkg/logger"
)

// Path names the lane a transaction was routed through.
type Path string

const (
	FastPath      Path = "fast"
	ConsensusPath Path = "consensus"
	PrivatePath   Path = "private"
)

// ZKVerifier is the admission gate for PrivatePath. When set,
// PrivatePath admission calls Verify before the transaction ever
// reaches the scheduler; when nil, admission is deferred to the
// consensus engine and PrivatePath behaves exactly like ConsensusPath.
type ZKVerifier interface {
	Verify(proof, aux []byte) bool
}

// Receipt is the router's return value.
type Receipt struct {
	Path                Path
	Accepted            bool
	Success             bool
	FallbackToConsensus bool
	ReturnValue         int32
	Err                 error
	Latency             time.Duration
}

// Router classifies and executes transaction descriptors against a
// scheduler.
type Router struct {
	sched    *scheduler.Scheduler
	verifier ZKVerifier
	counters *stats.Counters
	log      logger.Logger
}

// New constructs a Router driving sched. verifier may be nil, in which
// case PrivatePath admission always succeeds.
func New(sched *scheduler.Scheduler, verifier ZKVerifier) *Router {
	return &Router{
		sched:    sched,
		verifier: verifier,
		counters: &stats.Counters{},
		log:      logger.WithComponent("router"),
	}
}

// Stats returns the router's own counters, principally
// fallback_to_consensus, which the scheduler never sees since it has
// no notion of paths.
func (r *Router) Stats() stats.Snapshot {
	return r.counters.Get()
}

// Classify is the routing decision: Private privacy routes to
// PrivatePath regardless of object ownership; otherwise every touched
// object must be Immutable or Owned by this transaction's sender for
// FastPath, and anything else falls to ConsensusPath. An Owned object
// whose owner is a different address is someone else's state: the
// sender has no exclusive claim on it, so it routes through consensus
// ordering like a Shared object. This is the single source of truth
// for the invariant "FastPath may only be selected if the ownership
// check would pass"; Execute never chooses FastPath any other way.
func Classify(td vectis.TransactionDescriptor) Path {
	if td.Privacy == vectis.PrivacyPrivate {
		return PrivatePath
	}
	for _, obj := range td.Objects {
		switch obj.Owner {
		case vectis.OwnershipImmutable:
		case vectis.OwnershipOwned:
			if obj.OwnerAddr != td.Sender {
				return ConsensusPath
			}
		default:
			return ConsensusPath
		}
	}
	return FastPath
}

// Execute classifies td and runs fn through the scheduler along the
// chosen path:
//
//   - FastPath: optimistic execution; on failure, fall back exactly
//     once to ConsensusPath, recording fallback_to_consensus.
//   - ConsensusPath: executes through the scheduler as normal.
//   - PrivatePath: gated by the configured ZKVerifier, if any, then
//     executes through the scheduler as normal.
func (r *Router) Execute(ctx context.Context, td vectis.TransactionDescriptor, fn vectis.TxnFunc) Receipt {
	start := time.Now()
	path := Classify(td)

	switch path {
	case PrivatePath:
		if r.verifier != nil && !r.verifier.Verify(td.Proof, td.ProofAux) {
			return Receipt{Path: PrivatePath, Accepted: false, Latency: time.Since(start)}
		}
		res := r.sched.ExecuteTxn(ctx, fn)
		return toReceipt(PrivatePath, res, false, start)

	case FastPath:
		res := r.sched.ExecuteTxn(ctx, fn)
		if res.Success {
			return toReceipt(FastPath, res, false, start)
		}

		r.counters.IncFallbackToConsensus()
		r.log.Debugf("fast path failed for tx %s, falling back to consensus: %v", td.TxID, res.Err)
		res = r.sched.ExecuteTxn(ctx, fn)
		return toReceipt(ConsensusPath, res, true, start)

	default: // ConsensusPath
		res := r.sched.ExecuteTxn(ctx, fn)
		return toReceipt(ConsensusPath, res, false, start)
	}
}

func toReceipt(path Path, res scheduler.TxnResult, fallback bool, start time.Time) Receipt {
	return Receipt{
		Path:                path,
		Accepted:            true,
		Success:             res.Success,
		FallbackToConsensus: fallback,
		ReturnValue:         res.ReturnValue,
		Err:                 res.Err,
		Latency:             time.Since(start),
	}
}
