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
	"fmt"
	"time"

	"github.com/animica-chain/go-animica/animicalog"
	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/consensus"
	"github.com/animica-chain/go-animica/fixedpoint"
	"github.com/animica-chain/go-animica/params"
)

var forkchoiceLog = animicalog.New("forkchoice")

// forkNode is one header's entry in the fork-choice arena. Headers are keyed
// by hash rather than held as a pointer graph: a doubly-linked parent/children
// struct invites ownership cycles, so ForkChoice indexes everything through
// maps keyed by common.Hash instead.
type forkNode struct {
	header        *BlockHeader
	hash          common.Hash
	proofBagRoot  common.Hash
	cumWeight     fixedpoint.Fixed // cumulative Σ(s_value-theta) from genesis to this header
}

// ReorgAlert is emitted whenever the canonical head changes, including a
// direct single-block extension of the previous head (Depth 0, nothing
// Removed), so operators observe every reorg rather than inferring them from
// head-height gaps.
type ReorgAlert struct {
	OldHead   common.Hash
	NewHead   common.Hash
	Depth     uint64
	Added     []common.Hash
	Removed   []common.Hash
	Timestamp time.Time
}

// ForkChoice tracks the candidate-chain forest: an append-only header arena
// with cumulative-weight head selection, a three-level deterministic
// tie-break, and a bounded maximum reorg depth.
type ForkChoice struct {
	p     params.ForkChoiceParams
	nodes map[common.Hash]*forkNode
	head  common.Hash
}

// NewForkChoice seeds the forest with the genesis header as the initial
// head, with zero cumulative weight.
func NewForkChoice(p params.ForkChoiceParams, genesisHash common.Hash, genesis *BlockHeader) *ForkChoice {
	fc := &ForkChoice{
		p:     p,
		nodes: make(map[common.Hash]*forkNode),
		head:  genesisHash,
	}
	fc.nodes[genesisHash] = &forkNode{
		header:       genesis,
		hash:         genesisHash,
		proofBagRoot: genesis.ProofBagRoot,
		cumWeight:    fixedpoint.Zero,
	}
	return fc
}

// Head returns the current canonical head's hash.
func (fc *ForkChoice) Head() common.Hash { return fc.head }

// Insert adds a validated header to the forest (the caller — the block
// validator — has already confirmed sValue >= theta, so weight is always
// non-negative) and re-evaluates the canonical head. It returns the
// ReorgAlert describing any head change, or nil if the new header simply
// extended a non-canonical branch without overtaking the head.
func (fc *ForkChoice) Insert(h *BlockHeader, sValue, theta fixedpoint.Fixed) (*ReorgAlert, error) {
	hash := HeaderHash(h)
	if _, exists := fc.nodes[hash]; exists {
		return nil, nil
	}
	parent, ok := fc.nodes[h.ParentHash]
	if !ok {
		return nil, fmt.Errorf("%w: parent %s not in fork-choice forest", consensus.ErrBadHeader, h.ParentHash)
	}

	weight := sValue.SubClamped(theta)
	node := &forkNode{
		header:       h,
		hash:         hash,
		proofBagRoot: h.ProofBagRoot,
		cumWeight:    parent.cumWeight.Add(weight),
	}
	fc.nodes[hash] = node

	if fc.better(node, fc.nodes[fc.head]) {
		alert, err := fc.reorgTo(hash)
		if err != nil {
			// A rejected deep reorg rejects the block itself; drop it from
			// the arena so no orphaned node lingers without a chain-store
			// header.
			delete(fc.nodes, hash)
			return nil, err
		}
		return alert, nil
	}
	return nil, nil
}

// better implements the three-level tie-break: greater cumulative work,
// then the bytewise-lower proof_bag_root, then the lexicographically smaller
// header hash. The comparison is total, so every node resolves it
// identically.
func (fc *ForkChoice) better(a, b *forkNode) bool {
	if cmp := a.cumWeight.Cmp(b.cumWeight); cmp != 0 {
		return cmp > 0
	}
	if cmp := a.proofBagRoot.Cmp(b.proofBagRoot); cmp != 0 {
		return cmp < 0
	}
	return a.hash.Cmp(b.hash) < 0
}

// commonAncestor walks both branches back to their first shared node,
// returning its hash and the depth (number of blocks) each branch diverges
// from it.
func (fc *ForkChoice) commonAncestor(aHash, bHash common.Hash) (common.Hash, uint64, uint64) {
	aPath := fc.pathToGenesis(aHash)
	bSeen := make(map[common.Hash]uint64, len(aPath))
	for i, h := range fc.pathToGenesis(bHash) {
		bSeen[h] = uint64(i)
	}
	for i, h := range aPath {
		if depthB, ok := bSeen[h]; ok {
			return h, uint64(i), depthB
		}
	}
	// Unreachable if both branches share genesis, which every inserted
	// header transitively does.
	return common.Hash{}, 0, 0
}

func (fc *ForkChoice) pathToGenesis(hash common.Hash) []common.Hash {
	path := make([]common.Hash, 0)
	for {
		node, ok := fc.nodes[hash]
		if !ok {
			break
		}
		path = append(path, hash)
		parent, ok := fc.nodes[node.header.ParentHash]
		if !ok {
			break
		}
		hash = parent.hash
	}
	return path
}

// reorgTo switches the canonical head to newHead. Reorgs deeper than
// MaxReorgDepth are rejected outright, not merely logged; the node stays on
// its current chain. On success it returns the ReorgAlert describing the
// branch change.
func (fc *ForkChoice) reorgTo(newHead common.Hash) (*ReorgAlert, error) {
	oldHead := fc.head
	ancestor, depthOld, depthNew := fc.commonAncestor(oldHead, newHead)
	if depthOld > fc.p.MaxReorgDepth {
		forkchoiceLog.Error("deep reorg rejected", "old_head", oldHead, "new_head", newHead, "depth", depthOld, "max", fc.p.MaxReorgDepth)
		return nil, fmt.Errorf("%w: depth %d > max %d", consensus.ErrDeepReorg, depthOld, fc.p.MaxReorgDepth)
	}

	removed := fc.branchBetween(oldHead, ancestor)
	added := fc.branchBetween(newHead, ancestor)
	reverseInPlace(added)
	reverseInPlace(removed)

	fc.head = newHead
	alert := &ReorgAlert{
		OldHead:   oldHead,
		NewHead:   newHead,
		Depth:     depthOld,
		Added:     added,
		Removed:   removed,
		Timestamp: time.Now(),
	}
	if depthOld > 0 || depthNew > 1 {
		forkchoiceLog.Warn("fork-choice reorg", "old_head", oldHead, "new_head", newHead, "depth", depthOld)
	}
	return alert, nil
}

// branchBetween returns the hashes strictly between ancestor (exclusive) and
// tip (inclusive), tip-first order.
func (fc *ForkChoice) branchBetween(tip, ancestor common.Hash) []common.Hash {
	var out []common.Hash
	hash := tip
	for hash != ancestor {
		node, ok := fc.nodes[hash]
		if !ok {
			break
		}
		out = append(out, hash)
		hash = node.header.ParentHash
	}
	return out
}

func reverseInPlace(s []common.Hash) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// CumulativeWeight returns the stored cumulative weight for hash, used by
// the API layer and by tests asserting the fork-choice math directly.
func (fc *ForkChoice) CumulativeWeight(hash common.Hash) (fixedpoint.Fixed, bool) {
	n, ok := fc.nodes[hash]
	if !ok {
		return fixedpoint.Zero, false
	}
	return n.cumWeight, true
}
