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

// Package poies implements the Proof-of-Informative-Entropic-Score consensus
// engine: the proof registry, nullifier store, envelope verifier, scorer,
// Θ retarget controller, randomness beacon, fork-choice engine, and the
// block/header validator pipeline that ties them together.
//
// The package exposes one Engine type composing swappable sub-components
// behind a single-writer discipline; everything the core does not own —
// signatures, execution, the VDF proof system, persistent chain storage —
// is injected through narrow interfaces.
package poies

import (
	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/fixedpoint"
	"github.com/animica-chain/go-animica/params"
)

// BlockHeader is the canonical header. Field order here is also the
// canonical wire order used by the codec in wire.go.
type BlockHeader struct {
	ParentHash    common.Hash
	Height        uint64
	Timestamp     uint64 // seconds since epoch
	Miner         common.Address
	Theta         fixedpoint.Fixed
	SeedU         fixedpoint.Fixed
	ProofBagRoot  common.Hash
	BeaconRound   uint64
	StateRoot     common.Hash
	ReceiptsRoot  common.Hash
	DARoot        common.Hash
	PolicyRoots   params.PolicyRoots
	Nonce         uint64
	Signature     []byte // PQ signature over the canonical encoding, opaque here
}

// ProofEnvelope is one submitted proof of useful work.
type ProofEnvelope struct {
	TypeID         params.ProofTypeID
	Payload        []byte
	Producer       common.Address
	NullifierInput []byte
	Metrics        []byte // raw, type-specific magnitude encoding before capping
}

// TypeContribution is a single envelope's raw ψ contribution, grouped by
// type before capping in the scorer.
type TypeContribution struct {
	TypeID  params.ProofTypeID
	PsiRaw  fixedpoint.Fixed
}

// ScoreBreakdown is the scorer's output for one candidate block.
type ScoreBreakdown struct {
	PsiByType map[params.ProofTypeID]fixedpoint.Fixed
	PsiTotal  fixedpoint.Fixed
	SValue    fixedpoint.Fixed
	Accepted  bool
}

// ThetaState is the Θ retarget controller's persistent state.
type ThetaState struct {
	Theta             fixedpoint.Fixed
	EMAInterval       fixedpoint.Fixed
	LastRetargetHeight uint64
	WindowObservations []uint64 // recent clamped gaps, most-recent last
}

// Clone returns a deep copy, used when the controller computes a tentative
// next state without mutating the caller's ThetaState.
func (s ThetaState) Clone() ThetaState {
	obs := make([]uint64, len(s.WindowObservations))
	copy(obs, s.WindowObservations)
	s.WindowObservations = obs
	return s
}

// BeaconPhase is the randomness beacon's per-round state machine:
// Open → Commits → Reveals → VDF → Finalized | Failed.
type BeaconPhase uint8

const (
	BeaconOpen BeaconPhase = iota
	BeaconCommits
	BeaconReveals
	BeaconVDF
	BeaconFinalized
	BeaconFailed
)

func (p BeaconPhase) String() string {
	switch p {
	case BeaconOpen:
		return "Open"
	case BeaconCommits:
		return "Commits"
	case BeaconReveals:
		return "Reveals"
	case BeaconVDF:
		return "VDF"
	case BeaconFinalized:
		return "Finalized"
	case BeaconFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Commit is a participant's hash-commit submission.
type Commit struct {
	Participant common.Address
	HashCommit  common.Hash
}

// Reveal is a participant's preimage submission, checked against its prior
// commit.
type Reveal struct {
	Participant common.Address
	Preimage    []byte
}

// BeaconRound is one randomness round's accumulated state.
type BeaconRound struct {
	RoundID        uint64
	CommitDeadline uint64 // height
	RevealDeadline uint64 // height
	Phase          BeaconPhase
	Commits        map[common.Address]common.Hash
	Reveals        map[common.Address][]byte
	VDFProof       []byte
	Output         common.Hash
}
