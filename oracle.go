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

import "sync/atomic"

// oracle is the timestamp oracle: a single monotonic counter. Every
// call to next returns a value strictly greater than every prior
// returned value and carries no other ordering obligation; it does
// not synchronize data, only hands out version identifiers.
// Write-write conflicts are checked directly against each key's
// version chain (store.commit), not here.
type oracle struct {
	nextTs atomic.Uint64
}

func newOracle() *oracle {
	return &oracle{}
}

// next allocates the next timestamp via fetch_add(1).
func (o *oracle) next() uint64 {
	return o.nextTs.Add(1)
}
