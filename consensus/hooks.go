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

package consensus

import (
	"context"

	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/params"
)

// Header is the minimal header shape the chain-state hooks exchange. The
// concrete wire-level BlockHeader lives in consensus/poies; this narrower
// view is all the hook interfaces need to stay decoupled from the wire
// codec.
type Header struct {
	Hash       common.Hash
	ParentHash common.Hash
	Height     uint64
	Timestamp  uint64
}

// ChainReader is the read half of the chain-state hooks contract: narrow,
// storage-agnostic access to accepted headers. The consensus
// core never reads persistent storage directly — every read goes through
// this interface, satisfied by the execution/chain-store collaborator.
type ChainReader interface {
	GetHeader(ctx context.Context, hash common.Hash) (*Header, bool, error)
	GetHeaderByHeight(ctx context.Context, height uint64, branch common.Hash) (*Header, bool, error)
	PolicyRootsAt(ctx context.Context, height uint64) (params.PolicyRoots, error)
}

// ChainWriter is the write half of the Chain State Hooks contract.
type ChainWriter interface {
	PutHeader(ctx context.Context, h *Header) error
}

// ReorgDelta describes the blocks added and removed by a canonical-head
// change, passed to NotifyCanonical.
type ReorgDelta struct {
	Added   []common.Hash // oldest first, ending at the new head
	Removed []common.Hash // oldest first, starting just after the fork point
}

// ExecutionNotifier lets the validator hand a new canonical block to the
// execution collaborator, which applies or reverts transactions accordingly.
type ExecutionNotifier interface {
	NotifyCanonical(ctx context.Context, newHead common.Hash, delta ReorgDelta) error
}

// NullifierHooks exposes nullifier read/write access for reorg
// rewind/replay: InsertNullifiers/RemoveNullifiers mirror each other so a
// reorg can unwind one branch and reapply another atomically.
type NullifierHooks interface {
	NullifierPresent(ctx context.Context, n common.Hash) (bool, error)
	InsertNullifiers(ctx context.Context, set []common.Hash, height uint64) error
	RemoveNullifiers(ctx context.Context, set []common.Hash, height uint64) error
}

// ChainStateHooks bundles every narrow interface the validator/fork-choice
// pipeline is given at construction time.
type ChainStateHooks interface {
	ChainReader
	ChainWriter
	ExecutionNotifier
	NullifierHooks
}
