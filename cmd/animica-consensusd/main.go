// Copyright 2025 The go-animica Authors
// This file is part of go-animica.

// Command animica-consensusd is a diagnostic CLI over the PoIES consensus
// core: it loads a genesis policy file and exercises the scorer, retarget
// controller, randomness beacon, and full block validator against
// JSON-encoded fixtures, without pulling in the RPC/P2P servers. One
// urfave/cli/v2 app, global flags plus subcommands.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/animica-chain/go-animica/animicalog"
	"github.com/animica-chain/go-animica/params"
)

var (
	policyFlag = &cli.StringFlag{
		Name:     "policy",
		Usage:    "path to the genesis policy TOML file",
		Required: true,
	}
	datadirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "scratch directory for the nullifier store (verify-header only)",
		Value: os.TempDir(),
	}
	logFileFlag = &cli.StringFlag{
		Name:  "log-file",
		Usage: "optional rotating log file path",
	}
	verboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "enable debug-level logging",
	}
)

func main() {
	// Size the bounded envelope worker pool against the container cgroup
	// quota rather than the host's full CPU count.
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		animicalog.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		animicalog.Warn("automaxprocs: failed to set GOMAXPROCS", "err", err)
	}

	app := &cli.App{
		Name:  "animica-consensusd",
		Usage: "PoIES consensus core diagnostic tool",
		Flags: []cli.Flag{policyFlag, datadirFlag, logFileFlag, verboseFlag},
		Before: func(c *cli.Context) error {
			level := slog.LevelInfo
			if c.Bool("verbose") {
				level = slog.LevelDebug
			}
			animicalog.Init(animicalog.Config{Level: level, FilePath: c.String("log-file")})
			return nil
		},
		Commands: []*cli.Command{
			scoreCommand,
			retargetCommand,
			beaconStatusCommand,
			verifyHeaderCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		animicalog.Crit("animica-consensusd: command failed", "err", err)
		os.Exit(1)
	}
}

// loadPolicy reads the --policy flag shared by every subcommand.
func loadPolicy(c *cli.Context) (*params.PolicyConfig, error) {
	path := c.String("policy")
	if path == "" {
		return nil, fmt.Errorf("--policy is required")
	}
	return params.LoadPolicyFile(path)
}
