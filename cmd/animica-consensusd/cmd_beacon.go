// Copyright 2025 The go-animica Authors
// This file is part of go-animica.

package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/consensus/poies"
)

// beaconStatusCommand replays a round's commits and reveals through
// BeaconEngine's Open→Commits→Reveals→VDF→Finalized|Failed state machine,
// printing the resulting phase and output. Each invocation is tagged with a
// uuid trace id purely for operator log correlation across repeated runs
// against the same round fixture — the protocol-level round_id stays a
// monotonic uint64.
var beaconStatusCommand = &cli.Command{
	Name:      "beacon-status",
	Usage:     "replay a beacon round fixture through commit/reveal/VDF",
	ArgsUsage: "<fixture.json>",
	Action:    runBeaconStatus,
}

func runBeaconStatus(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("beacon-status: exactly one fixture path required")
	}
	policy, err := loadPolicy(c)
	if err != nil {
		return err
	}
	fixture, err := loadBeaconFixture(c.Args().First())
	if err != nil {
		return err
	}

	traceID := uuid.New()
	fmt.Printf("trace_id = %s\n", traceID)

	engine := poies.NewBeaconEngine(policy.Beacon, trivialVDFVerify)
	round := engine.OpenRound(fixture.RoundID, fixture.OpenedAtHeight)
	fmt.Printf("round %d opened at height %d: commit_deadline=%d reveal_deadline=%d\n",
		round.RoundID, fixture.OpenedAtHeight, round.CommitDeadline, round.RevealDeadline)

	for _, cf := range fixture.Commits {
		preimage, err := decodeHex(cf.Preimage)
		if err != nil {
			return fmt.Errorf("beacon-status: commit preimage: %w", err)
		}
		hashCommit := poies.CommitmentHash(preimage)
		err = engine.AddCommit(round, fixture.OpenedAtHeight, poies.Commit{
			Participant: common.HexToAddress(cf.Participant),
			HashCommit:  hashCommit,
		})
		if err != nil {
			return fmt.Errorf("beacon-status: commit from %s: %w", cf.Participant, err)
		}
	}

	round = engine.AdvanceToReveals(round, round.CommitDeadline)
	fmt.Printf("phase after commit deadline: %s\n", round.Phase)

	for _, rf := range fixture.Reveals {
		preimage, err := decodeHex(rf.Preimage)
		if err != nil {
			return fmt.Errorf("beacon-status: reveal preimage: %w", err)
		}
		err = engine.AddReveal(round, round.CommitDeadline, poies.Reveal{
			Participant: common.HexToAddress(rf.Participant),
			Preimage:    preimage,
		})
		if err != nil {
			return fmt.Errorf("beacon-status: reveal from %s: %w", rf.Participant, err)
		}
	}

	round = engine.AdvanceToVDF(round, round.RevealDeadline)
	fmt.Printf("phase after reveal deadline: %s\n", round.Phase)

	vdfProof, err := decodeHex(fixture.VDFProof)
	if err != nil {
		return fmt.Errorf("beacon-status: vdf_proof: %w", err)
	}
	finalRound, finalizeErr := engine.FinalizeWithVDF(round, vdfProof)
	if finalizeErr == nil {
		round = finalRound
		fmt.Printf("finalized: output=%s\n", round.Output)
		return nil
	}

	fmt.Printf("finalize failed (%v); applying liveness fallback\n", finalizeErr)
	priorOutput := common.HexToHash(fixture.PriorOutput)
	round = engine.FailAndFallback(round, priorOutput)
	fmt.Printf("phase=%s fallback_output=%s\n", round.Phase, round.Output)
	return nil
}
