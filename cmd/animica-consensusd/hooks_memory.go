// Copyright 2025 The go-animica Authors
// This file is part of go-animica.

package main

import (
	"context"
	"fmt"

	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/consensus"
	"github.com/animica-chain/go-animica/params"
)

// memoryHooks is a minimal consensus.ChainStateHooks implementation backed
// by plain maps, standing in for the execution/chain-store collaborator so
// the `verify-header` diagnostic can drive the full validator pipeline
// without a live node. It is not a candidate replacement for a real chain
// store — no persistence, no height index by branch — only enough surface
// for one candidate header at a time.
type memoryHooks struct {
	headers map[common.Hash]*consensus.Header
	roots   params.PolicyRoots
	nulls   map[common.Hash]uint64
}

func newMemoryHooks(roots params.PolicyRoots) *memoryHooks {
	return &memoryHooks{
		headers: make(map[common.Hash]*consensus.Header),
		roots:   roots,
		nulls:   make(map[common.Hash]uint64),
	}
}

func (h *memoryHooks) putParent(parent *consensus.Header) {
	h.headers[parent.Hash] = parent
}

func (h *memoryHooks) GetHeader(_ context.Context, hash common.Hash) (*consensus.Header, bool, error) {
	hdr, ok := h.headers[hash]
	return hdr, ok, nil
}

func (h *memoryHooks) GetHeaderByHeight(_ context.Context, height uint64, _ common.Hash) (*consensus.Header, bool, error) {
	for _, hdr := range h.headers {
		if hdr.Height == height {
			return hdr, true, nil
		}
	}
	return nil, false, nil
}

func (h *memoryHooks) PolicyRootsAt(_ context.Context, _ uint64) (params.PolicyRoots, error) {
	return h.roots, nil
}

func (h *memoryHooks) PutHeader(_ context.Context, hdr *consensus.Header) error {
	h.headers[hdr.Hash] = hdr
	return nil
}

func (h *memoryHooks) NotifyCanonical(_ context.Context, newHead common.Hash, delta consensus.ReorgDelta) error {
	fmt.Printf("notify_canonical: new_head=%s added=%d removed=%d\n", newHead, len(delta.Added), len(delta.Removed))
	return nil
}

func (h *memoryHooks) NullifierPresent(_ context.Context, n common.Hash) (bool, error) {
	_, ok := h.nulls[n]
	return ok, nil
}

func (h *memoryHooks) InsertNullifiers(_ context.Context, set []common.Hash, height uint64) error {
	for _, n := range set {
		h.nulls[n] = height
	}
	return nil
}

func (h *memoryHooks) RemoveNullifiers(_ context.Context, set []common.Hash, _ uint64) error {
	for _, n := range set {
		delete(h.nulls, n)
	}
	return nil
}

var _ consensus.ChainStateHooks = (*memoryHooks)(nil)
