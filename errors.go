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

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. All core operations are total: they return one
// of these (wrapped where noted) rather than panicking, so callers can
// always branch with errors.Is.
var (
	// ErrConflict is returned when a write-write (store commit) or
	// read-write (2PC prepare) collision is detected against the
	// transaction's snapshot.
	ErrConflict = errors.New("vectis: conflict")
	// ErrInvalidUsage marks a programming defect: writing on a
	// read-only handle, committing a discarded handle, and similar
	// caller misuse.
	ErrInvalidUsage = errors.New("vectis: invalid usage")
	// ErrCapacityExhausted is returned for prepare-time configuration
	// errors such as a zero lock batch size.
	ErrCapacityExhausted = errors.New("vectis: capacity exhausted")
	// ErrEmptyKey is a specific InvalidUsage case: an empty key was
	// passed to a write operation.
	ErrEmptyKey = fmt.Errorf("%w: empty key", ErrInvalidUsage)
	// ErrReadOnlyTxn is a specific InvalidUsage case: a write was
	// attempted on a read-only handle.
	ErrReadOnlyTxn = fmt.Errorf("%w: transaction is read-only", ErrInvalidUsage)
	// ErrDiscardedTxn is a specific InvalidUsage case: the handle was
	// already committed or aborted.
	ErrDiscardedTxn = fmt.Errorf("%w: transaction has been discarded", ErrInvalidUsage)
)

// BusinessError wraps the caller-supplied closure's error so scheduler
// callers can distinguish it from a store-level Conflict without string
// matching. It is never retried.
type BusinessError struct {
	Err error
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("vectis: business failure: %v", e.Err)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError wraps err as a BusinessError, or returns nil if err
// is nil.
func NewBusinessError(err error) error {
	if err == nil {
		return nil
	}
	return &BusinessError{Err: err}
}

// IsConflict reports whether err is (or wraps) ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsBusinessFailure reports whether err is (or wraps) a BusinessError.
func IsBusinessFailure(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}
