// Copyright 2025 The go-animica Authors
// This file is part of go-animica.

package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/consensus/poies"
	"github.com/animica-chain/go-animica/fixedpoint"
)

// scoreCommand exercises the proof registry and the PoIES scorer against a
// standalone fixture, without a full header/chain context — the quickest
// way for an operator to sanity-check a policy file's caps and escort
// threshold against a hand-built proof bag.
var scoreCommand = &cli.Command{
	Name:      "score",
	Usage:     "compute the PoIES score for a proof-bag fixture",
	ArgsUsage: "<fixture.json>",
	Action:    runScore,
}

func runScore(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("score: exactly one fixture path required")
	}
	policy, err := loadPolicy(c)
	if err != nil {
		return err
	}
	fixture, err := loadScoreFixture(c.Args().First())
	if err != nil {
		return err
	}

	theta, err := fixedpoint.ParseDecimal(fixture.Theta)
	if err != nil {
		return fmt.Errorf("score: theta: %w", err)
	}
	u, err := fixture.deriveU()
	if err != nil {
		return err
	}
	roots := fixture.Roots.decode(policy.Roots)

	descriptors, err := poies.DefaultDescriptors(policy.Scoring, trivialVDFVerify)
	if err != nil {
		return fmt.Errorf("score: building descriptors: %w", err)
	}
	registry := poies.NewRegistry(descriptors)
	scorer := poies.NewScorer(policy.Scoring)

	context := common.Hash{}
	contributions := make([]poies.TypeContribution, 0, len(fixture.Envelopes))
	for i, ef := range fixture.Envelopes {
		env, err := ef.decode()
		if err != nil {
			return fmt.Errorf("score: envelope %d: %w", i, err)
		}
		psiRaw, nullifier, err := registry.Verify(roots, context, env)
		if err != nil {
			return fmt.Errorf("score: envelope %d failed verification: %w", i, err)
		}
		fmt.Printf("envelope %d: type=%s psi_raw=%s nullifier=%s\n", i, env.TypeID, psiRaw, nullifier)
		contributions = append(contributions, poies.TypeContribution{TypeID: env.TypeID, PsiRaw: psiRaw})
	}

	breakdown, err := scorer.Score(contributions, u, theta)
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}

	fmt.Println("---")
	for typeID, psi := range breakdown.PsiByType {
		fmt.Printf("psi[%s] = %s\n", typeID, psi)
	}
	fmt.Printf("psi_total = %s\n", breakdown.PsiTotal)
	fmt.Printf("u         = %s\n", u)
	fmt.Printf("theta     = %s\n", theta)
	fmt.Printf("s_value   = %s\n", breakdown.SValue)
	fmt.Printf("accepted  = %t\n", breakdown.Accepted)
	return nil
}

// trivialVDFVerify stands in for the external VDF proof system so
// DefaultDescriptors can build a VDF descriptor for diagnostic commands: it
// reports the payload length as the step count and always succeeds. A real
// node injects an actual Wesolowski/Pietrzak verifier here instead.
func trivialVDFVerify(payload []byte) (uint64, bool) {
	return uint64(len(payload)), true
}
