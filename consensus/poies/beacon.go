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
	"sort"
	"time"

	"github.com/animica-chain/go-animica/animicalog"
	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/consensus"
	"github.com/animica-chain/go-animica/metrics"
	"github.com/animica-chain/go-animica/params"
)

var beaconLog = animicalog.New("beacon")

// VDFVerifyFunc checks a verifiable-delay-function proof over payload and
// reports the number of sequential steps it attests to. The proof system
// itself — Wesolowski, Pietrzak — lives in a crypto collaborator;
// BeaconEngine and the VDF proof-type descriptor (proofs.go) both consume
// this same pluggable function so a single implementation backs both
// uses.
type VDFVerifyFunc func(payload []byte) (steps uint64, ok bool)

// BeaconEngine drives the randomness beacon's per-round state machine:
// Open → Commits → Reveals → VDF → Finalized | Failed. It holds
// no round state itself. AddCommit and AddReveal record into the
// *BeaconRound they are given, in place; AdvanceToReveals, AdvanceToVDF,
// FinalizeWithVDF and FailAndFallback return a new *BeaconRound, a shallow
// copy that shares the Commits and Reveals maps with its input.
type BeaconEngine struct {
	p         params.BeaconParams
	vdfVerify VDFVerifyFunc
	metrics   *metrics.Registry
}

// NewBeaconEngine builds a beacon engine from policy parameters and the
// injected VDF verifier.
func NewBeaconEngine(p params.BeaconParams, vdfVerify VDFVerifyFunc) *BeaconEngine {
	return &BeaconEngine{p: p, vdfVerify: vdfVerify}
}

// WithMetrics attaches the telemetry registry so VDF verification timings
// land in poies_beacon_vdf_verify_seconds.
func (b *BeaconEngine) WithMetrics(m *metrics.Registry) *BeaconEngine {
	b.metrics = m
	return b
}

// runVDFVerify runs the injected VDF verifier under the policy's
// verification bound; exceeding it counts as verification failure, which
// the caller turns into a Failed round via FailAndFallback.
func (b *BeaconEngine) runVDFVerify(vdfProof []byte) bool {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.BeaconVDFVerifySecs.Observe(time.Since(start).Seconds())
		}
	}()

	done := make(chan bool, 1)
	go func() {
		_, ok := b.vdfVerify(vdfProof)
		done <- ok
	}()
	if b.p.VDFTimeout == 0 {
		return <-done
	}
	timer := time.NewTimer(time.Duration(b.p.VDFTimeout) * time.Second)
	defer timer.Stop()
	select {
	case ok := <-done:
		return ok
	case <-timer.C:
		beaconLog.Warn("vdf verification exceeded bound", "timeout_seconds", b.p.VDFTimeout)
		return false
	}
}

// OpenRound starts a new round at the given height. The round immediately
// accepts commits — Open and Commits are the same accepting-commits phase,
// with CommitDeadline marking the transition to Reveals.
func (b *BeaconEngine) OpenRound(roundID uint64, atHeight uint64) *BeaconRound {
	return &BeaconRound{
		RoundID:        roundID,
		CommitDeadline: atHeight + b.p.CommitWindowBlocks,
		RevealDeadline: atHeight + b.p.CommitWindowBlocks + b.p.RevealWindowBlocks,
		Phase:          BeaconCommits,
		Commits:        make(map[common.Address]common.Hash),
		Reveals:        make(map[common.Address][]byte),
	}
}

// AddCommit records a participant's hash-commit, valid only during the
// Commits phase and before CommitDeadline.
func (b *BeaconEngine) AddCommit(round *BeaconRound, atHeight uint64, c Commit) error {
	if round.Phase != BeaconCommits {
		return fmt.Errorf("%w: commit outside Commits phase (phase=%s)", consensus.ErrBeaconInternal, round.Phase)
	}
	if atHeight >= round.CommitDeadline {
		return fmt.Errorf("%w: commit after deadline", consensus.ErrBeaconInternal)
	}
	round.Commits[c.Participant] = c.HashCommit
	return nil
}

// AdvanceToReveals transitions Commits → Reveals once the commit deadline
// has passed. A round with zero commits still advances; it will
// fail to finalize in FinalizeWithVDF and fall back to the liveness rule.
func (b *BeaconEngine) AdvanceToReveals(round *BeaconRound, atHeight uint64) *BeaconRound {
	next := *round
	if next.Phase == BeaconCommits && atHeight >= next.CommitDeadline {
		next.Phase = BeaconReveals
	}
	return &next
}

// AddReveal records a participant's preimage, valid only during the Reveals
// phase, before RevealDeadline, and only if it matches a prior commit.
func (b *BeaconEngine) AddReveal(round *BeaconRound, atHeight uint64, r Reveal) error {
	if round.Phase != BeaconReveals {
		return fmt.Errorf("%w: reveal outside Reveals phase (phase=%s)", consensus.ErrBeaconInternal, round.Phase)
	}
	if atHeight >= round.RevealDeadline {
		return fmt.Errorf("%w: reveal after deadline", consensus.ErrBeaconInternal)
	}
	commit, ok := round.Commits[r.Participant]
	if !ok {
		return fmt.Errorf("%w: reveal from non-committer", consensus.ErrBeaconInternal)
	}
	if keccak(domainBeacon, r.Preimage) != commit {
		return fmt.Errorf("%w: reveal does not match commit", consensus.ErrBeaconInternal)
	}
	round.Reveals[r.Participant] = r.Preimage
	return nil
}

// AdvanceToVDF transitions Reveals → VDF once the reveal deadline has
// passed.
func (b *BeaconEngine) AdvanceToVDF(round *BeaconRound, atHeight uint64) *BeaconRound {
	next := *round
	if next.Phase == BeaconReveals && atHeight >= next.RevealDeadline {
		next.Phase = BeaconVDF
	}
	return &next
}

// sortedRevealHashes returns the hashes of every revealed preimage, in
// ascending byte order, giving every node the same deterministic input to
// the combine/fallback formulas regardless of reveal arrival order.
func sortedRevealHashes(round *BeaconRound) []common.Hash {
	hashes := make([]common.Hash, 0, len(round.Reveals))
	for _, preimage := range round.Reveals {
		hashes = append(hashes, keccak(domainBeacon, preimage))
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i].Less(hashes[j]) })
	return hashes
}

// FinalizeWithVDF combines the revealed preimages with a VDF proof to
// produce the round's Finalized output, H(domain || sorted reveal hashes ||
// vdfProof). The VDF verifier is given only vdfProof: nothing here checks
// that the proof was computed over the round's reveals.
func (b *BeaconEngine) FinalizeWithVDF(round *BeaconRound, vdfProof []byte) (*BeaconRound, error) {
	if round.Phase != BeaconVDF {
		return nil, fmt.Errorf("%w: finalize outside VDF phase (phase=%s)", consensus.ErrBeaconInternal, round.Phase)
	}
	if len(round.Reveals) == 0 {
		return nil, fmt.Errorf("%w: no reveals to finalize", consensus.ErrBeaconInternal)
	}
	if b.vdfVerify == nil {
		return nil, fmt.Errorf("%w: no VDF verifier configured", consensus.ErrBeaconInternal)
	}
	if !b.runVDFVerify(vdfProof) {
		return nil, fmt.Errorf("%w", consensus.ErrBadVDFProof)
	}

	next := *round
	next.VDFProof = vdfProof
	parts := sortedRevealHashes(&next)
	partBytes := make([][]byte, 0, len(parts)+1)
	partBytes = append(partBytes, domainBeacon)
	for _, h := range parts {
		partBytes = append(partBytes, h.Bytes())
	}
	partBytes = append(partBytes, vdfProof)
	next.Output = keccak(partBytes...)
	next.Phase = BeaconFinalized
	beaconLog.Info("beacon round finalized", "round", next.RoundID, "reveals", len(next.Reveals))
	return &next, nil
}

// FailAndFallback marks a round Failed and computes the liveness fallback
// output, so the chain does not stall waiting on a round that will never
// finalize. The fallback formula is pinned as:
//
//	H(domain_fallback || round_id || sorted(reveal_hashes) || prior_output)
//
// binding the fallback to the round identity, every preimage that *was*
// revealed (in canonical sorted order), and the previous round's output so
// repeated fallbacks cannot converge on a predictable sequence.
func (b *BeaconEngine) FailAndFallback(round *BeaconRound, priorOutput common.Hash) *BeaconRound {
	next := *round
	next.Phase = BeaconFailed

	var roundIDBuf [8]byte
	binary.BigEndian.PutUint64(roundIDBuf[:], next.RoundID)
	parts := sortedRevealHashes(&next)
	partBytes := make([][]byte, 0, len(parts)+3)
	partBytes = append(partBytes, domainFallback, roundIDBuf[:])
	for _, h := range parts {
		partBytes = append(partBytes, h.Bytes())
	}
	partBytes = append(partBytes, priorOutput.Bytes())
	next.Output = keccak(partBytes...)
	beaconLog.Warn("beacon round failed, using liveness fallback", "round", next.RoundID, "reveals", len(next.Reveals))
	return &next
}
