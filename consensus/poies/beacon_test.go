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
	"github.com/animica-chain/go-animica/params"
)

func testBeaconParams() params.BeaconParams {
	return params.BeaconParams{
		CommitWindowBlocks: 3,
		RevealWindowBlocks: 3,
		VDFTimeout:         30,
	}
}

func alwaysValidVDF(payload []byte) (uint64, bool) { return uint64(len(payload)), true }
func alwaysInvalidVDF(payload []byte) (uint64, bool) { return 0, false }

func TestBeacon_FullRoundToFinalized(t *testing.T) {
	b := NewBeaconEngine(testBeaconParams(), alwaysValidVDF)
	round := b.OpenRound(1, 100)
	require.Equal(t, BeaconCommits, round.Phase)

	participant := common.HexToAddress("0x01")
	preimage := []byte("secret-preimage")
	commitHash := keccak(domainBeacon, preimage)

	require.NoError(t, b.AddCommit(round, 101, Commit{Participant: participant, HashCommit: commitHash}))

	round = b.AdvanceToReveals(round, 103)
	require.Equal(t, BeaconReveals, round.Phase)

	require.NoError(t, b.AddReveal(round, 104, Reveal{Participant: participant, Preimage: preimage}))

	round = b.AdvanceToVDF(round, 106)
	require.Equal(t, BeaconVDF, round.Phase)

	round, err := b.FinalizeWithVDF(round, []byte("vdf-proof"))
	require.NoError(t, err)
	require.Equal(t, BeaconFinalized, round.Phase)
	require.False(t, round.Output.IsZero())
}

func TestBeacon_RevealMustMatchCommit(t *testing.T) {
	b := NewBeaconEngine(testBeaconParams(), alwaysValidVDF)
	round := b.OpenRound(1, 100)
	participant := common.HexToAddress("0x01")
	commitHash := keccak(domainBeacon, []byte("real-preimage"))
	require.NoError(t, b.AddCommit(round, 101, Commit{Participant: participant, HashCommit: commitHash}))
	round = b.AdvanceToReveals(round, 103)

	err := b.AddReveal(round, 104, Reveal{Participant: participant, Preimage: []byte("wrong-preimage")})
	require.Error(t, err)
}

func TestBeacon_RevealFromNonCommitterRejected(t *testing.T) {
	b := NewBeaconEngine(testBeaconParams(), alwaysValidVDF)
	round := b.OpenRound(1, 100)
	round = b.AdvanceToReveals(round, 103)

	err := b.AddReveal(round, 104, Reveal{Participant: common.HexToAddress("0x02"), Preimage: []byte("x")})
	require.Error(t, err)
}

func TestBeacon_FinalizeRejectsBadVDFProof(t *testing.T) {
	b := NewBeaconEngine(testBeaconParams(), alwaysInvalidVDF)
	round := b.OpenRound(1, 100)
	participant := common.HexToAddress("0x01")
	preimage := []byte("p")
	require.NoError(t, b.AddCommit(round, 101, Commit{Participant: participant, HashCommit: keccak(domainBeacon, preimage)}))
	round = b.AdvanceToReveals(round, 103)
	require.NoError(t, b.AddReveal(round, 104, Reveal{Participant: participant, Preimage: preimage}))
	round = b.AdvanceToVDF(round, 106)

	_, err := b.FinalizeWithVDF(round, []byte("bad-proof"))
	require.Error(t, err)
}

func TestBeacon_FinalizeFailsWithNoReveals(t *testing.T) {
	b := NewBeaconEngine(testBeaconParams(), alwaysValidVDF)
	round := b.OpenRound(1, 100)
	round = b.AdvanceToReveals(round, 103)
	round = b.AdvanceToVDF(round, 106)

	_, err := b.FinalizeWithVDF(round, []byte("proof"))
	require.Error(t, err)
}

func TestBeacon_FailAndFallbackDeterministic(t *testing.T) {
	b := NewBeaconEngine(testBeaconParams(), alwaysValidVDF)
	round := b.OpenRound(2, 100)
	participant := common.HexToAddress("0x01")
	preimage := []byte("p")
	require.NoError(t, b.AddCommit(round, 101, Commit{Participant: participant, HashCommit: keccak(domainBeacon, preimage)}))
	round = b.AdvanceToReveals(round, 103)
	require.NoError(t, b.AddReveal(round, 104, Reveal{Participant: participant, Preimage: preimage}))

	prior := keccak([]byte("genesis"))
	a := b.FailAndFallback(round, prior)
	c := b.FailAndFallback(round, prior)
	require.Equal(t, BeaconFailed, a.Phase)
	require.Equal(t, a.Output, c.Output, "fallback output must be a pure function of round state and prior output")
}

func TestBeacon_FallbackDiffersByRound(t *testing.T) {
	b := NewBeaconEngine(testBeaconParams(), alwaysValidVDF)
	round1 := b.OpenRound(1, 100)
	round2 := b.OpenRound(2, 100)
	prior := common.Hash{}
	a := b.FailAndFallback(round1, prior)
	c := b.FailAndFallback(round2, prior)
	require.NotEqual(t, a.Output, c.Output)
}
