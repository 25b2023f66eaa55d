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
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/cockroachdb/pebble"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/animica-chain/go-animica/animicalog"
	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/consensus"
)

var nullifierLog = animicalog.New("nullifier")

const nullifierKeyPrefix = 'n'

// NullifierStore is the append-only anti-replay set: Pebble for durability
// with a fastcache read-through tier in front of it, so Contains on the hot
// set of recently-inserted nullifiers never touches disk. Entries carry a
// height-denominated TTL and are evicted in batches.
type NullifierStore struct {
	db     *pebble.DB
	cache  *fastcache.Cache
	mu     sync.Mutex // serializes insert/evict batches; reads are lock-free
	closed bool
}

// NewNullifierStore opens (or creates) a Pebble-backed nullifier store at
// dir, with an in-memory fastcache tier sized cacheBytes.
func NewNullifierStore(dir string, cacheBytes int) (*NullifierStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("poies: open nullifier store: %w", err)
	}
	if cacheBytes <= 0 {
		cacheBytes = 32 * 1024 * 1024
	}
	return &NullifierStore{
		db:    db,
		cache: fastcache.New(cacheBytes),
	}, nil
}

// Close releases the underlying Pebble handle. Safe to call more than once.
func (s *NullifierStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func nullifierDBKey(n common.Hash) []byte {
	key := make([]byte, 0, 33)
	key = append(key, nullifierKeyPrefix)
	key = append(key, n.Bytes()...)
	return key
}

// Contains reports whether n is present.
func (s *NullifierStore) Contains(n common.Hash) (bool, error) {
	key := nullifierDBKey(n)
	if s.cache.Has(key) {
		return true, nil
	}
	_, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("poies: nullifier lookup: %w", err)
	}
	closer.Close()
	s.cache.Set(key, []byte{1})
	return true, nil
}

// InsertMany inserts every nullifier in set at the given height, atomically
// per block: either the full set commits or none of it does. Any
// pre-existing entry aborts the whole batch with ErrNullifierReuse and
// mutates nothing.
func (s *NullifierStore) InsertMany(set []common.Hash, atHeight uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range set {
		present, err := s.Contains(n)
		if err != nil {
			return err
		}
		if present {
			return fmt.Errorf("%w: %s", consensus.ErrNullifierReuse, n)
		}
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], atHeight)
	for _, n := range set {
		key := nullifierDBKey(n)
		if err := batch.Set(key, heightBuf[:], nil); err != nil {
			return fmt.Errorf("poies: nullifier batch set: %w", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("poies: nullifier batch commit: %w", err)
	}
	for _, n := range set {
		s.cache.Set(nullifierDBKey(n), []byte{1})
	}
	nullifierLog.Debug("inserted nullifier batch", "count", len(set), "height", atHeight)
	return nil
}

// RemoveMany deletes the given nullifiers, used to rewind a reorg'd branch
// before the replacement branch re-inserts its own.
func (s *NullifierStore) RemoveMany(set []common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewBatch()
	defer batch.Close()
	for _, n := range set {
		key := nullifierDBKey(n)
		if err := batch.Delete(key, nil); err != nil {
			return fmt.Errorf("poies: nullifier batch delete: %w", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("poies: nullifier batch delete commit: %w", err)
	}
	for _, n := range set {
		s.cache.Del(nullifierDBKey(n))
	}
	return nil
}

// EvictExpired removes every nullifier inserted at a height at or below
// upTo-TTL, i.e. whose TTL window has closed by height upTo. The engine
// drives this sweep once per accepted block using the longest configured
// per-type TTL as the scan bound.
func (s *NullifierStore) EvictExpired(upTo uint64, ttl uint64) error {
	if upTo < ttl {
		return nil
	}
	cutoff := upTo - ttl

	s.mu.Lock()
	defer s.mu.Unlock()

	lower := []byte{nullifierKeyPrefix}
	upper := []byte{nullifierKeyPrefix + 1}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return fmt.Errorf("poies: evict iterator: %w", err)
	}
	defer iter.Close()

	batch := s.db.NewBatch()
	defer batch.Close()
	evicted := 0
	for iter.First(); iter.Valid(); iter.Next() {
		height := binary.BigEndian.Uint64(iter.Value())
		if height <= cutoff {
			key := append([]byte(nil), iter.Key()...)
			if err := batch.Delete(key, nil); err != nil {
				return fmt.Errorf("poies: evict batch delete: %w", err)
			}
			s.cache.Del(key)
			evicted++
		}
	}
	if evicted == 0 {
		return nil
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("poies: evict batch commit: %w", err)
	}
	nullifierLog.Debug("evicted expired nullifiers", "count", evicted, "cutoff_height", cutoff)
	return nil
}

// DedupSet is a small convenience wrapper over mapset used by the envelope
// verifier to reject duplicate nullifiers within a single candidate block
// before they ever reach the persistent store.
type DedupSet struct {
	seen mapset.Set[common.Hash]
}

// NewDedupSet returns an empty per-block dedup set.
func NewDedupSet() *DedupSet {
	return &DedupSet{seen: mapset.NewThreadUnsafeSet[common.Hash]()}
}

// AddIfAbsent returns false if n was already present (a DuplicateInBlock
// condition), true if n was newly added.
func (d *DedupSet) AddIfAbsent(n common.Hash) bool {
	if d.seen.Contains(n) {
		return false
	}
	d.seen.Add(n)
	return true
}

// Slice returns every nullifier collected so far, in insertion-independent
// (set) order; callers that need the block's canonical order should track
// it themselves from envelope index, not from this set.
func (d *DedupSet) Slice() []common.Hash {
	return d.seen.ToSlice()
}
