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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxnBasicOperations(t *testing.T) {
	s := NewStore()
	defer s.Close()

	wr := s.Begin()
	require.NoError(t, wr.Write("key1", []byte("value1")))

	val, found, err := wr.Read("key1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("value1"), val)

	_, err = wr.Commit()
	require.NoError(t, err)

	ro := s.BeginReadOnly()
	val, found, err = ro.Read("key1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("value1"), val)

	err = ro.Write("key2", []byte("value2"))
	assert.ErrorIs(t, err, ErrReadOnlyTxn)
}

func TestWriteThenReadWithinTxn(t *testing.T) {
	s := NewStore()
	defer s.Close()

	txn := s.Begin()
	require.NoError(t, txn.Write("k", []byte("v1")))
	require.NoError(t, txn.Write("k", []byte("v2")))

	val, found, err := txn.Read("k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v2"), val, "last write within the txn wins")

	_, err = txn.Commit()
	require.NoError(t, err)

	reader := s.BeginReadOnly()
	val, found, err = reader.Read("k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v2"), val, "only the final buffered write is committed")
}

func TestDeleteThenReadWithinTxn(t *testing.T) {
	s := NewStore()
	defer s.Close()

	txn := s.Begin()
	require.NoError(t, txn.Write("k", []byte("v")))
	require.NoError(t, txn.Delete("k"))

	_, found, err := txn.Read("k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWriteWriteConflict(t *testing.T) {
	s := NewStore()
	defer s.Close()

	t1 := s.Begin()
	t2 := s.Begin()

	require.NoError(t, t2.Write("x", []byte("from-t2")))
	_, err := t2.Commit()
	require.NoError(t, err)

	require.NoError(t, t1.Write("x", []byte("from-t1")))
	_, err = t1.Commit()
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSnapshotIsolation(t *testing.T) {
	s := NewStore()
	defer s.Close()

	seed := s.Begin()
	require.NoError(t, seed.Write("k", []byte("v0")))
	_, err := seed.Commit()
	require.NoError(t, err)

	reader := s.Begin()

	writer := s.Begin()
	require.NoError(t, writer.Write("k", []byte("v1")))
	_, err = writer.Commit()
	require.NoError(t, err)

	val, found, err := reader.Read("k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v0"), val, "reader must not see the writer's commit")

	fresh := s.Begin()
	val, found, err = fresh.Read("k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v1"), val, "a new transaction sees the committed write")
}

func TestDiscardedTxnRejectsFurtherUse(t *testing.T) {
	s := NewStore()
	defer s.Close()

	txn := s.Begin()
	require.NoError(t, txn.Write("key", []byte("value")))
	txn.Discard()

	err := txn.Write("key2", []byte("value2"))
	assert.ErrorIs(t, err, ErrDiscardedTxn)

	_, _, err = txn.Read("key")
	assert.ErrorIs(t, err, ErrDiscardedTxn)

	reader := s.BeginReadOnly()
	_, found, err := reader.Read("key")
	require.NoError(t, err)
	assert.False(t, found, "a discarded transaction's writes are never visible")
}

func TestEmptyKeyRejected(t *testing.T) {
	s := NewStore()
	defer s.Close()

	txn := s.Begin()
	err := txn.Write("", []byte("value"))
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestConcurrentIncrementsSerializeUnderConflict(t *testing.T) {
	s := NewStore()
	defer s.Close()

	seed := s.Begin()
	require.NoError(t, seed.Write("counter", []byte("0")))
	_, err := seed.Commit()
	require.NoError(t, err)

	const attempts = 20
	var wg sync.WaitGroup
	var successes, conflicts int
	var mu sync.Mutex

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			txn := s.Begin()
			val, _, err := txn.Read("counter")
			require.NoError(t, err)
			require.NoError(t, txn.Write("counter", append(val, '1')))
			if _, err := txn.Commit(); err != nil {
				mu.Lock()
				conflicts++
				mu.Unlock()
				return
			}
			mu.Lock()
			successes++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, attempts, successes+conflicts)
	assert.Greater(t, successes, 0)
}

func TestCommitThenReBeginObservesWrites(t *testing.T) {
	s := NewStore()
	defer s.Close()

	txn := s.Begin()
	require.NoError(t, txn.Write("k", []byte("committed")))
	commitTs, err := txn.Commit()
	require.NoError(t, err)

	next := s.Begin()
	assert.Greater(t, next.StartTs(), commitTs)

	val, found, err := next.Read("k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("committed"), val)
}

func TestAbortHasNoObservableEffect(t *testing.T) {
	s := NewStore()
	defer s.Close()

	txn := s.Begin()
	require.NoError(t, txn.Write("k", []byte("v")))
	txn.Abort()

	reader := s.BeginReadOnly()
	_, found, err := reader.Read("k")
	require.NoError(t, err)
	assert.False(t, found)
}
