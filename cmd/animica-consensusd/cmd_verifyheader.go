// Copyright 2025 The go-animica Authors
// This file is part of go-animica.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/consensus"
	"github.com/animica-chain/go-animica/consensus/poies"
	"github.com/animica-chain/go-animica/fixedpoint"
)

// verifyHeaderCommand drives the full block/header validation pipeline
// against a candidate header fixture, using an in-memory chain-state-hooks
// stand-in (memoryHooks) and a synthesized finalized beacon round,
// exercising every sub-component — registry, envelope verifier, scorer,
// retarget controller, beacon resolver, nullifier store, fork-choice — in
// one offline pass.
var verifyHeaderCommand = &cli.Command{
	Name:      "verify-header",
	Usage:     "validate a candidate header fixture through the full PoIES pipeline",
	ArgsUsage: "<fixture.json>",
	Action:    runVerifyHeader,
}

func runVerifyHeader(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("verify-header: exactly one fixture path required")
	}
	policy, err := loadPolicy(c)
	if err != nil {
		return err
	}
	fixture, err := loadHeaderFixture(c.Args().First())
	if err != nil {
		return err
	}

	roots := fixture.Roots.decode(policy.Roots)
	policy.Roots = roots

	parentHash := common.HexToHash(fixture.Parent.Hash)
	parent := &poies.BlockHeader{
		Height:      fixture.Parent.Height,
		Timestamp:   fixture.Parent.Timestamp,
		PolicyRoots: roots,
	}
	parentHeaderHash := parentHash
	if parentHash.IsZero() {
		parentHeaderHash = poies.HeaderHash(parent)
	}

	hooks := newMemoryHooks(roots)
	hooks.putParent(&consensus.Header{
		Hash:       parentHeaderHash,
		ParentHash: common.Hash{},
		Height:     fixture.Parent.Height,
		Timestamp:  fixture.Parent.Timestamp,
	})

	datadir := c.String("datadir")
	nullDir, err := os.MkdirTemp(datadir, "verify-header-nullifiers-*")
	if err != nil {
		return fmt.Errorf("verify-header: creating nullifier scratch dir: %w", err)
	}
	defer os.RemoveAll(nullDir)

	engine, err := poies.New(poies.Config{
		Policy:         policy,
		Hooks:          hooks,
		NullifierDBDir: filepath.Join(nullDir, "nullifiers"),
		NullifierCache: 1 << 20,
		Workers:        4,
		VDFVerify:      trivialVDFVerify,
		Genesis:        parent,
		GenesisHash:    parentHeaderHash,
	})
	if err != nil {
		return fmt.Errorf("verify-header: constructing engine: %w", err)
	}
	defer engine.Close()

	round, err := finalizeBeaconFixture(engine, fixture.Beacon)
	if err != nil {
		return fmt.Errorf("verify-header: beacon round: %w", err)
	}
	engine.SetBeaconRound(round)
	if round.Phase != poies.BeaconFinalized {
		return fmt.Errorf("verify-header: beacon round %d did not finalize (phase=%s); header cannot be accepted", round.RoundID, round.Phase)
	}

	envelopes := make([]*poies.ProofEnvelope, 0, len(fixture.Envelopes))
	for i, ef := range fixture.Envelopes {
		env, err := ef.decode()
		if err != nil {
			return fmt.Errorf("verify-header: envelope %d: %w", i, err)
		}
		envelopes = append(envelopes, env)
	}

	theta, err := fixedpoint.ParseDecimal(fixture.Header.Theta)
	if err != nil {
		return fmt.Errorf("verify-header: header.theta: %w", err)
	}
	miner := common.HexToAddress(fixture.Header.Miner)
	seed := poies.DeriveSeedDigest(parentHeaderHash, miner, fixture.Header.Nonce, round.Output)

	header := &poies.BlockHeader{
		ParentHash:  parentHeaderHash,
		Height:      fixture.Header.Height,
		Timestamp:   fixture.Header.Timestamp,
		Miner:       miner,
		Theta:       theta,
		SeedU:       fixedpoint.DeriveU(seed),
		BeaconRound: round.RoundID,
		PolicyRoots: roots,
		Nonce:       fixture.Header.Nonce,
		Signature:   []byte{0x01},
	}
	header.ProofBagRoot, err = poies.ProofBagRoot(envelopes)
	if err != nil {
		return fmt.Errorf("verify-header: computing proof_bag_root: %w", err)
	}

	alert, err := engine.ValidateBlock(context.Background(), header, envelopes)
	if err != nil {
		return fmt.Errorf("verify-header: rejected: %w", err)
	}

	fmt.Printf("accepted at height %d, head=%s theta=%s\n", header.Height, engine.Head(), engine.ThetaState().Theta)
	if alert != nil {
		fmt.Printf("reorg: old_head=%s new_head=%s depth=%d\n", alert.OldHead, alert.NewHead, alert.Depth)
	}
	return nil
}

// finalizeBeaconFixture opens and drives a beacon round to completion from a
// fixture, returning whatever terminal (Finalized or Failed) round results.
func finalizeBeaconFixture(engine *poies.Engine, f beaconFixture) (*poies.BeaconRound, error) {
	be := engine.BeaconEngine()
	round := be.OpenRound(f.RoundID, f.OpenedAtHeight)

	for _, cf := range f.Commits {
		preimage, err := decodeHex(cf.Preimage)
		if err != nil {
			return nil, fmt.Errorf("commit preimage: %w", err)
		}
		if err := be.AddCommit(round, f.OpenedAtHeight, poies.Commit{
			Participant: common.HexToAddress(cf.Participant),
			HashCommit:  poies.CommitmentHash(preimage),
		}); err != nil {
			return nil, err
		}
	}

	round = be.AdvanceToReveals(round, round.CommitDeadline)
	for _, rf := range f.Reveals {
		preimage, err := decodeHex(rf.Preimage)
		if err != nil {
			return nil, fmt.Errorf("reveal preimage: %w", err)
		}
		if err := be.AddReveal(round, round.CommitDeadline, poies.Reveal{
			Participant: common.HexToAddress(rf.Participant),
			Preimage:    preimage,
		}); err != nil {
			return nil, err
		}
	}

	round = be.AdvanceToVDF(round, round.RevealDeadline)
	vdfProof, err := decodeHex(f.VDFProof)
	if err != nil {
		return nil, fmt.Errorf("vdf_proof: %w", err)
	}
	finalRound, err := be.FinalizeWithVDF(round, vdfProof)
	if err != nil {
		priorOutput := common.HexToHash(f.PriorOutput)
		return be.FailAndFallback(round, priorOutput), nil
	}
	return finalRound, nil
}
