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

// Package watermark tracks the start timestamps of in-flight readers
// and reports the highest timestamp every reader at or below it has
// finished with. The store consults that watermark before compacting a
// version chain: versions at or below DoneUntil are invisible to every
// live snapshot, so dropping all but the newest of them changes
// nothing any reader can observe.
package watermark

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
)

const _markCBufferSize = 100

// WaterMark tracks Begin/Done pairs per reader timestamp on a
// dedicated goroutine. DoneUntil is the compaction floor: the highest
// ts such that every reader begun at or below it has finished.
type WaterMark struct {
	wg sync.WaitGroup

	doneUntil atomic.Uint64

	markC chan mark
	stopC chan struct{}
}

// mark is one message to the processing goroutine: a reader beginning
// or finishing at ts, or a waiter to close once the floor reaches ts.
type mark struct {
	ts     uint64
	done   bool
	waiter chan struct{}
}

func New() *WaterMark {
	w := &WaterMark{
		markC: make(chan mark, _markCBufferSize),
		stopC: make(chan struct{}),
	}

	w.wg.Add(1)
	go w.process()

	return w
}

// Stop shuts the processing goroutine down. No Begin, Done, or
// WaitForMark call may follow.
func (w *WaterMark) Stop() {
	close(w.stopC)
	w.wg.Wait()
}

// Begin records a reader starting at ts; the floor cannot pass ts
// until the matching Done arrives.
func (w *WaterMark) Begin(ts uint64) {
	w.markC <- mark{
		ts: ts,
	}
}

// Done records the reader begun at ts as finished.
func (w *WaterMark) Done(ts uint64) {
	w.markC <- mark{
		ts:   ts,
		done: true,
	}
}

// DoneUntil returns the current floor: every reader begun at or below
// it has finished.
func (w *WaterMark) DoneUntil() uint64 {
	return w.doneUntil.Load()
}

// WaitForMark blocks until the floor reaches ts or ctx is done.
func (w *WaterMark) WaitForMark(ctx context.Context, ts uint64) error {
	if w.DoneUntil() >= ts {
		return nil
	}

	waiter := make(chan struct{})
	w.markC <- mark{
		ts:     ts,
		waiter: waiter,
	}

	select {
	case <-waiter:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *WaterMark) process() {
	defer w.wg.Done()

	var timeStamps lowHeap
	pending := make(map[uint64]int)
	waiters := make(map[uint64][]chan struct{})

	heap.Init(&timeStamps)
	for {
		select {
		case <-w.stopC:
			close(w.markC)
			return
		case m := <-w.markC:
			if m.waiter != nil {
				// waiter: notify now if the floor already covers ts,
				// otherwise queue until it does
				if w.DoneUntil() >= m.ts {
					close(m.waiter)
				} else {
					waiters[m.ts] = append(waiters[m.ts], m.waiter)
				}
			} else {
				// begin or done for one reader timestamp
				ts := m.ts
				prev, ok := pending[ts]
				if !ok {
					heap.Push(&timeStamps, ts)
				}

				cnt := 1
				if m.done {
					cnt = -1
				}
				pending[ts] = prev + cnt
				currDoneUntil := w.DoneUntil()
				doneUntil := currDoneUntil

				// advance the floor past every fully-finished timestamp
				for timeStamps.Len() > 0 {
					minTs := timeStamps[0]
					if done := pending[minTs]; done > 0 {
						// a reader at minTs is still in flight
						break
					}

					heap.Pop(&timeStamps)
					delete(pending, minTs)
					doneUntil = minTs
				}

				if doneUntil > currDoneUntil {
					w.doneUntil.Store(doneUntil)

					for t, cs := range waiters {
						if t <= doneUntil {
							for _, ch := range cs {
								close(ch)
							}
							delete(waiters, t)
						}
					}
				}

			}
		}
	}
}

// lowHeap is a min-heap of reader timestamps; its root is the oldest
// timestamp with a reader still pending.
type lowHeap []uint64

func (h *lowHeap) Len() int {
	return len(*h)
}

func (h *lowHeap) Less(i, j int) bool {
	return (*h)[i] < (*h)[j]
}

func (h *lowHeap) Swap(i, j int) {
	(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
}

func (h *lowHeap) Push(x any) {
	*h = append(*h, x.(uint64))
}

// Pop removes the slice's last element; container/heap has already
// swapped the minimum there before calling it.
func (h *lowHeap) Pop() any {
	curr := *h
	n := len(curr)
	e := curr[n-1]
	*h = curr[0 : n-1]
	return e
}
