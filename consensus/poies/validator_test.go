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
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/consensus"
	"github.com/animica-chain/go-animica/fixedpoint"
	"github.com/animica-chain/go-animica/params"
)

type fakeHooks struct {
	headers map[common.Hash]*consensus.Header
	roots   params.PolicyRoots
}

func newFakeHooks(genesis *consensus.Header, roots params.PolicyRoots) *fakeHooks {
	return &fakeHooks{
		headers: map[common.Hash]*consensus.Header{genesis.Hash: genesis},
		roots:   roots,
	}
}

func (f *fakeHooks) GetHeader(_ context.Context, hash common.Hash) (*consensus.Header, bool, error) {
	h, ok := f.headers[hash]
	return h, ok, nil
}

func (f *fakeHooks) GetHeaderByHeight(_ context.Context, height uint64, _ common.Hash) (*consensus.Header, bool, error) {
	for _, h := range f.headers {
		if h.Height == height {
			return h, true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeHooks) PolicyRootsAt(_ context.Context, _ uint64) (params.PolicyRoots, error) {
	return f.roots, nil
}

func (f *fakeHooks) PutHeader(_ context.Context, h *consensus.Header) error {
	f.headers[h.Hash] = h
	return nil
}

func (f *fakeHooks) NotifyCanonical(_ context.Context, _ common.Hash, _ consensus.ReorgDelta) error {
	return nil
}

func (f *fakeHooks) NullifierPresent(_ context.Context, _ common.Hash) (bool, error) { return false, nil }
func (f *fakeHooks) InsertNullifiers(_ context.Context, _ []common.Hash, _ uint64) error { return nil }
func (f *fakeHooks) RemoveNullifiers(_ context.Context, _ []common.Hash, _ uint64) error { return nil }

type fakeBeaconResolver struct {
	rounds map[uint64]*BeaconRound
}

func (f *fakeBeaconResolver) RoundAt(_ context.Context, roundID uint64) (*BeaconRound, bool, error) {
	r, ok := f.rounds[roundID]
	return r, ok, nil
}

func buildValidatorHarness(t *testing.T) (*Validator, *fakeHooks, *params.PolicyConfig, common.Hash) {
	t.Helper()
	policy := &params.PolicyConfig{
		Scoring: params.ScoringParams{
			Gamma:              fixedpoint.MustParseDecimal("1.0"),
			DiversityThreshold: 99,
			ProofTypes: map[params.ProofTypeID]params.ProofTypeConfig{
				params.ProofTypeHashShare: {Cap: fixedpoint.MustParseDecimal("1.0"), MaxPayloadSize: 1024},
			},
		},
		Retarget: testRetargetParams(),
		Beacon:   testBeaconParams(),
		ForkChoice: params.ForkChoiceParams{MaxReorgDepth: 10},
		SkewBound: 600,
	}

	genesisHash := common.HexToHash("0xaa")
	genesisConsensusHeader := &consensus.Header{Hash: genesisHash, Height: 0, Timestamp: 1000}
	hooks := newFakeHooks(genesisConsensusHeader, policy.Roots)

	dir := t.TempDir()
	nstore, err := NewNullifierStore(dir, 0)
	require.NoError(t, err)
	t.Cleanup(func() { nstore.Close() })

	descriptors, err := DefaultDescriptors(policy.Scoring, alwaysValidVDF)
	require.NoError(t, err)
	registry := NewRegistry(descriptors)
	envVerify := NewEnvelopeVerifier(registry, nstore, 2)
	scorer := NewScorer(policy.Scoring)
	retarget := NewRetargetController(policy.Retarget)

	genesisHeader := &BlockHeader{}
	forkChoice := NewForkChoice(policy.ForkChoice, genesisHash, genesisHeader)

	round := &BeaconRound{RoundID: 1, Phase: BeaconFinalized, Output: common.HexToHash("0xbeef")}
	beaconResolver := &fakeBeaconResolver{rounds: map[uint64]*BeaconRound{1: round}}

	validator := NewValidator(policy, hooks, envVerify, scorer, retarget, nstore, forkChoice, beaconResolver, nil, nil)
	return validator, hooks, policy, genesisHash
}

func buildCandidateHeader(t *testing.T, genesisHash common.Hash, theta fixedpoint.Fixed, nonce uint64, payload []byte) (*BlockHeader, []*ProofEnvelope) {
	t.Helper()
	miner := common.HexToAddress("0x01")
	beaconOutput := common.HexToHash("0xbeef")
	seed := keccak(genesisHash.Bytes(), miner.Bytes(), uint64Bytes(nonce), beaconOutput.Bytes())
	u := fixedpoint.DeriveU(seed)

	env := &ProofEnvelope{
		TypeID:         params.ProofTypeHashShare,
		Payload:        payload,
		Producer:       miner,
		NullifierInput: []byte("envelope-1"),
	}
	envelopes := []*ProofEnvelope{env}

	bagRoot, err := ProofBagRoot(envelopes)
	require.NoError(t, err)

	h := &BlockHeader{
		ParentHash:   genesisHash,
		Height:       1,
		Timestamp:    1010,
		Miner:        miner,
		Theta:        theta,
		SeedU:        u,
		ProofBagRoot: bagRoot,
		BeaconRound:  1,
		Nonce:        nonce,
		Signature:    []byte("sig"),
	}
	return h, envelopes
}

func TestValidator_AcceptsWellFormedBlock(t *testing.T) {
	validator, _, _, genesisHash := buildValidatorHarness(t)

	// theta low enough that a 0-leading-zero-bit payload still scores above it.
	h, envelopes := buildCandidateHeader(t, genesisHash, fixedpoint.Zero, 1, []byte("arbitrary-payload"))

	theta := ThetaState{Theta: fixedpoint.Zero}
	alert, nextTheta, err := validator.ValidateAndApply(context.Background(), h, envelopes, theta)
	require.NoError(t, err)
	require.NotNil(t, alert)
	require.Equal(t, uint64(0), nextTheta.LastRetargetHeight, "height 1 is below the retarget window boundary")
}

func TestValidator_RejectsThetaMismatch(t *testing.T) {
	validator, _, _, genesisHash := buildValidatorHarness(t)
	h, envelopes := buildCandidateHeader(t, genesisHash, fixedpoint.MustParseDecimal("99"), 1, []byte("p"))

	_, _, err := validator.ValidateAndApply(context.Background(), h, envelopes, ThetaState{Theta: fixedpoint.Zero})
	require.ErrorIs(t, err, consensus.ErrThetaMismatch)
}

func TestValidator_RejectsUnknownParent(t *testing.T) {
	validator, _, _, _ := buildValidatorHarness(t)
	h, envelopes := buildCandidateHeader(t, common.HexToHash("0xdeadbeef"), fixedpoint.Zero, 1, []byte("p"))

	_, _, err := validator.ValidateAndApply(context.Background(), h, envelopes, ThetaState{Theta: fixedpoint.Zero})
	require.ErrorIs(t, err, consensus.ErrBadHeader)
}

func TestValidator_RejectsStaleTimestamp(t *testing.T) {
	validator, _, _, genesisHash := buildValidatorHarness(t)
	h, envelopes := buildCandidateHeader(t, genesisHash, fixedpoint.Zero, 1, []byte("p"))
	h.Timestamp = 900 // before genesis's 1000

	_, _, err := validator.ValidateAndApply(context.Background(), h, envelopes, ThetaState{Theta: fixedpoint.Zero})
	require.ErrorIs(t, err, consensus.ErrBadHeader)
}

func TestValidator_RejectsBagRootMismatch(t *testing.T) {
	validator, _, _, genesisHash := buildValidatorHarness(t)
	h, envelopes := buildCandidateHeader(t, genesisHash, fixedpoint.Zero, 1, []byte("p"))
	h.ProofBagRoot = common.HexToHash("0xbad")

	_, _, err := validator.ValidateAndApply(context.Background(), h, envelopes, ThetaState{Theta: fixedpoint.Zero})
	require.ErrorIs(t, err, consensus.ErrBadHeader)
}

func TestValidator_RejectsNonContiguousHeight(t *testing.T) {
	validator, _, _, genesisHash := buildValidatorHarness(t)
	h, envelopes := buildCandidateHeader(t, genesisHash, fixedpoint.Zero, 1, []byte("p"))
	h.Height = 5 // parent is genesis at height 0

	_, _, err := validator.ValidateAndApply(context.Background(), h, envelopes, ThetaState{Theta: fixedpoint.Zero})
	require.ErrorIs(t, err, consensus.ErrBadHeader)
}

func TestValidator_RejectsNonFinalizedBeacon(t *testing.T) {
	validator, _, _, genesisHash := buildValidatorHarness(t)
	h, envelopes := buildCandidateHeader(t, genesisHash, fixedpoint.Zero, 1, []byte("p"))
	h.BeaconRound = 999 // unknown round

	_, _, err := validator.ValidateAndApply(context.Background(), h, envelopes, ThetaState{Theta: fixedpoint.Zero})
	require.ErrorIs(t, err, consensus.ErrBeaconNotFinalized)
}

func TestValidator_RejectsStaleBeacon(t *testing.T) {
	validator, hooks, policy, genesisHash := buildValidatorHarness(t)
	policy.Beacon.OutputValidityBlocks = 1 // round 1's RevealDeadline is 0, so it expires past height 1

	h1, envelopes1 := buildCandidateHeader(t, genesisHash, fixedpoint.Zero, 1, []byte("payload-a"))
	_, nextTheta, err := validator.ValidateAndApply(context.Background(), h1, envelopes1, ThetaState{Theta: fixedpoint.Zero})
	require.NoError(t, err)

	h1Hash := HeaderHash(h1)
	require.Contains(t, hooks.headers, h1Hash)

	h2, envelopes2 := buildCandidateHeader(t, h1Hash, nextTheta.Theta, 2, []byte("payload-b"))
	h2.Height = 2
	h2.Timestamp = h1.Timestamp + 10

	_, _, err = validator.ValidateAndApply(context.Background(), h2, envelopes2, nextTheta)
	require.ErrorIs(t, err, consensus.ErrStaleBeacon)
}

func TestValidator_ReorgUnwindsRemovedBranchNullifiers(t *testing.T) {
	validator, _, _, genesisHash := buildValidatorHarness(t)

	h1, envelopes1 := buildCandidateHeader(t, genesisHash, fixedpoint.Zero, 1, []byte("branch-a"))
	_, _, err := validator.ValidateAndApply(context.Background(), h1, envelopes1, ThetaState{Theta: fixedpoint.Zero})
	require.NoError(t, err)

	bn, ok := validator.blockNullifiers[HeaderHash(h1)]
	require.True(t, ok)
	require.Len(t, bn.set, 1)
	present, err := validator.nstore.Contains(bn.set[0])
	require.NoError(t, err)
	require.True(t, present)

	// Unwinding the block (as a reorg throwing it away would) removes its
	// nullifiers from the store and forgets the bookkeeping entry, so the
	// same proof can be re-included on the surviving branch.
	require.NoError(t, validator.unwindNullifiers(context.Background(), []common.Hash{HeaderHash(h1)}))
	present, err = validator.nstore.Contains(bn.set[0])
	require.NoError(t, err)
	require.False(t, present)
	_, ok = validator.blockNullifiers[HeaderHash(h1)]
	require.False(t, ok)

	// Unknown block hashes are skipped, not errors.
	require.NoError(t, validator.unwindNullifiers(context.Background(), []common.Hash{common.HexToHash("0x99")}))
}

func TestValidator_RejectsDuplicateNullifierAcrossBlocks(t *testing.T) {
	validator, hooks, _, genesisHash := buildValidatorHarness(t)
	h1, envelopes1 := buildCandidateHeader(t, genesisHash, fixedpoint.Zero, 1, []byte("payload-a"))

	theta := ThetaState{Theta: fixedpoint.Zero}
	_, nextTheta, err := validator.ValidateAndApply(context.Background(), h1, envelopes1, theta)
	require.NoError(t, err)

	h1Hash := HeaderHash(h1)
	require.Contains(t, hooks.headers, h1Hash)

	// Same nullifier input reused in a second block must be rejected.
	h2, envelopes2 := buildCandidateHeader(t, h1Hash, nextTheta.Theta, 2, []byte("payload-b"))
	h2.Height = 2
	h2.Timestamp = h1.Timestamp + 10
	envelopes2[0].NullifierInput = envelopes1[0].NullifierInput

	// Recompute seed_u/bag root for the new parent/nonce already done inside
	// buildCandidateHeader; only the nullifier input collides.
	bagRoot, err := ProofBagRoot(envelopes2)
	require.NoError(t, err)
	h2.ProofBagRoot = bagRoot

	_, _, err = validator.ValidateAndApply(context.Background(), h2, envelopes2, nextTheta)
	require.Error(t, err)
}
