// Copyright 2025 The go-animica Authors
// This file is part of the go-animica library.
//
// The go-animica library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-animica library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-animica library. If not, see <http://www.gnu.org/licenses/>.

package poies

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/consensus"
)

func newTestNullifierStore(t *testing.T) *NullifierStore {
	t.Helper()
	s, err := NewNullifierStore(t.TempDir(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func nulls(seeds ...string) []common.Hash {
	out := make([]common.Hash, len(seeds))
	for i, s := range seeds {
		out[i] = keccak([]byte(s))
	}
	return out
}

func TestNullifierStore_InsertAndContains(t *testing.T) {
	s := newTestNullifierStore(t)
	set := nulls("a", "b", "c")
	require.NoError(t, s.InsertMany(set, 100))

	for _, n := range set {
		present, err := s.Contains(n)
		require.NoError(t, err)
		require.True(t, present)
	}
	present, err := s.Contains(keccak([]byte("absent")))
	require.NoError(t, err)
	require.False(t, present)
}

func TestNullifierStore_ReuseRejectedAtomically(t *testing.T) {
	s := newTestNullifierStore(t)
	require.NoError(t, s.InsertMany(nulls("a"), 100))

	// A batch containing one pre-existing nullifier must insert nothing.
	err := s.InsertMany(nulls("fresh", "a"), 101)
	require.ErrorIs(t, err, consensus.ErrNullifierReuse)

	present, err := s.Contains(nulls("fresh")[0])
	require.NoError(t, err)
	require.False(t, present, "failed batch must not leave partial inserts")
}

func TestNullifierStore_ApplyThenRevertRestoresState(t *testing.T) {
	s := newTestNullifierStore(t)
	base := nulls("base-1", "base-2")
	require.NoError(t, s.InsertMany(base, 100))

	block := nulls("block-1", "block-2", "block-3")
	require.NoError(t, s.InsertMany(block, 101))
	require.NoError(t, s.RemoveMany(block))

	// The original entries survive; the reverted block's do not.
	for _, n := range base {
		present, err := s.Contains(n)
		require.NoError(t, err)
		require.True(t, present)
	}
	for _, n := range block {
		present, err := s.Contains(n)
		require.NoError(t, err)
		require.False(t, present)
	}

	// Re-applying after the revert succeeds, mirroring a reorg re-apply.
	require.NoError(t, s.InsertMany(block, 102))
}

func TestNullifierStore_EvictExpired(t *testing.T) {
	s := newTestNullifierStore(t)
	old := nulls("old")
	fresh := nulls("fresh")
	require.NoError(t, s.InsertMany(old, 10))
	require.NoError(t, s.InsertMany(fresh, 90))

	// TTL 50 at height 100: entries inserted at or below height 50 expire.
	require.NoError(t, s.EvictExpired(100, 50))

	present, err := s.Contains(old[0])
	require.NoError(t, err)
	require.False(t, present)

	present, err = s.Contains(fresh[0])
	require.NoError(t, err)
	require.True(t, present)

	// An expired nullifier may be inserted again in a new window.
	require.NoError(t, s.InsertMany(old, 101))
}

func TestDedupSet(t *testing.T) {
	d := NewDedupSet()
	n := keccak([]byte("x"))
	require.True(t, d.AddIfAbsent(n))
	require.False(t, d.AddIfAbsent(n))
	require.Len(t, d.Slice(), 1)
}
