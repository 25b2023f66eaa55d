// Copyright 2025 The go-animica Authors
// This file is part of go-animica.

package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/animica-chain/go-animica/consensus/poies"
)

// retargetCommand exercises the Θ retarget controller against a prior
// ThetaState and a single observed gap, printing the EMA fold and (if the
// height lands on a retarget boundary) the resulting Θ.
var retargetCommand = &cli.Command{
	Name:      "retarget",
	Usage:     "advance a ThetaState fixture by one observed block gap",
	ArgsUsage: "<fixture.json>",
	Action:    runRetarget,
}

func runRetarget(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("retarget: exactly one fixture path required")
	}
	policy, err := loadPolicy(c)
	if err != nil {
		return err
	}
	fixture, err := loadRetargetFixture(c.Args().First())
	if err != nil {
		return err
	}
	prev, err := fixture.state()
	if err != nil {
		return err
	}

	controller := poies.NewRetargetController(policy.Retarget)
	next := controller.Advance(prev, fixture.Height, fixture.GapSeconds)

	fmt.Printf("prior theta           = %s\n", prev.Theta)
	fmt.Printf("prior ema_interval    = %s\n", prev.EMAInterval)
	fmt.Printf("observed gap_seconds  = %d\n", fixture.GapSeconds)
	fmt.Printf("retarget boundary     = %t\n", controller.DueForRetarget(prev, fixture.Height))
	fmt.Println("---")
	fmt.Printf("next theta            = %s\n", next.Theta)
	fmt.Printf("next ema_interval     = %s\n", next.EMAInterval)
	fmt.Printf("next last_retarget_ht = %d\n", next.LastRetargetHeight)
	return nil
}
