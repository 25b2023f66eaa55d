// Copyright 2025 The go-animica Authors
// This file is part of go-animica.

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/consensus/poies"
	"github.com/animica-chain/go-animica/fixedpoint"
	"github.com/animica-chain/go-animica/params"
)

// envelopeFixture is the JSON shape of one proof envelope in a diagnostic
// fixture file: the wire fields, hex-encoded so a fixture is editable by
// hand.
type envelopeFixture struct {
	Type           string `json:"type"`
	Payload        string `json:"payload"`
	Producer       string `json:"producer"`
	NullifierInput string `json:"nullifier_input"`
	Metrics        string `json:"metrics"`
}

func (f envelopeFixture) decode() (*poies.ProofEnvelope, error) {
	typeID, ok := proofTypeByName(f.Type)
	if !ok {
		return nil, fmt.Errorf("fixture: unknown proof type %q", f.Type)
	}
	payload, err := decodeHex(f.Payload)
	if err != nil {
		return nil, fmt.Errorf("fixture: payload: %w", err)
	}
	nullifierInput, err := decodeHex(f.NullifierInput)
	if err != nil {
		return nil, fmt.Errorf("fixture: nullifier_input: %w", err)
	}
	metrics, err := decodeHex(f.Metrics)
	if err != nil {
		return nil, fmt.Errorf("fixture: metrics: %w", err)
	}
	return &poies.ProofEnvelope{
		TypeID:         typeID,
		Payload:        payload,
		Producer:       common.HexToAddress(f.Producer),
		NullifierInput: nullifierInput,
		Metrics:        metrics,
	}, nil
}

var proofTypeNames = map[string]params.ProofTypeID{
	"HashShare": params.ProofTypeHashShare,
	"AI":        params.ProofTypeAI,
	"Quantum":   params.ProofTypeQuantum,
	"Storage":   params.ProofTypeStorage,
	"VDF":       params.ProofTypeVDF,
}

func proofTypeByName(s string) (params.ProofTypeID, bool) {
	id, ok := proofTypeNames[s]
	return id, ok
}

// scoreFixture is the `score` command's input: a lottery seed (either an
// explicit u or a digest DeriveU maps to one) plus the proof envelopes to
// score against Θ, exercising the Scorer the same way the validator's step
// 7-9 does without needing a full header/chain context.
type scoreFixture struct {
	Theta     string            `json:"theta"`
	SeedU     string            `json:"seed_u,omitempty"`
	SeedDigest string           `json:"seed_digest,omitempty"`
	Envelopes []envelopeFixture `json:"envelopes"`
	Roots     rootsFixture      `json:"roots"`
}

type rootsFixture struct {
	AlgPolicyRoot      string `json:"alg_policy_root"`
	ZKVKSetRoot        string `json:"zk_vk_set_root"`
	RetargetParamsRoot string `json:"retarget_params_root"`
	ProofRegistryRoot  string `json:"proof_registry_root"`
}

func (r rootsFixture) decode(fallback params.PolicyRoots) params.PolicyRoots {
	roots := fallback
	if r.AlgPolicyRoot != "" {
		roots.AlgPolicyRoot = common.HexToHash(r.AlgPolicyRoot)
	}
	if r.ZKVKSetRoot != "" {
		roots.ZKVKSetRoot = common.HexToHash(r.ZKVKSetRoot)
	}
	if r.RetargetParamsRoot != "" {
		roots.RetargetParamsRoot = common.HexToHash(r.RetargetParamsRoot)
	}
	if r.ProofRegistryRoot != "" {
		roots.ProofRegistryRoot = common.HexToHash(r.ProofRegistryRoot)
	}
	return roots
}

func loadScoreFixture(path string) (*scoreFixture, error) {
	var f scoreFixture
	if err := loadJSON(path, &f); err != nil {
		return nil, err
	}
	if len(f.Envelopes) == 0 {
		return nil, fmt.Errorf("fixture: at least one envelope required")
	}
	return &f, nil
}

func (f *scoreFixture) deriveU() (fixedpoint.Fixed, error) {
	if f.SeedU != "" {
		return fixedpoint.ParseDecimal(f.SeedU)
	}
	if f.SeedDigest != "" {
		b, err := decodeHex(f.SeedDigest)
		if err != nil {
			return fixedpoint.Zero, fmt.Errorf("fixture: seed_digest: %w", err)
		}
		var digest [32]byte
		copy(digest[:], common.BytesToHash(b).Bytes())
		return fixedpoint.DeriveU(digest), nil
	}
	return fixedpoint.Zero, fmt.Errorf("fixture: one of seed_u or seed_digest is required")
}

// retargetFixture is the `retarget` command's input: a prior ThetaState
// plus the single observed gap to feed the controller's Advance step.
type retargetFixture struct {
	Height             uint64   `json:"height"`
	Theta              string   `json:"theta"`
	EMAInterval        string   `json:"ema_interval"`
	LastRetargetHeight uint64   `json:"last_retarget_height"`
	WindowObservations []uint64 `json:"window_observations"`
	GapSeconds         uint64   `json:"gap_seconds"`
}

func loadRetargetFixture(path string) (*retargetFixture, error) {
	var f retargetFixture
	if err := loadJSON(path, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *retargetFixture) state() (poies.ThetaState, error) {
	theta, err := fixedpoint.ParseDecimal(f.Theta)
	if err != nil {
		return poies.ThetaState{}, fmt.Errorf("fixture: theta: %w", err)
	}
	ema := fixedpoint.Zero
	if f.EMAInterval != "" {
		ema, err = fixedpoint.ParseDecimal(f.EMAInterval)
		if err != nil {
			return poies.ThetaState{}, fmt.Errorf("fixture: ema_interval: %w", err)
		}
	}
	return poies.ThetaState{
		Theta:              theta,
		EMAInterval:        ema,
		LastRetargetHeight: f.LastRetargetHeight,
		WindowObservations: append([]uint64(nil), f.WindowObservations...),
	}, nil
}

// beaconFixture is the `beacon-status` command's input: a round's commits
// and reveals (plus an optional VDF proof), replayed through BeaconEngine's
// state machine so an operator can check whether a round would finalize
// given a particular set of submissions.
type beaconFixture struct {
	RoundID        uint64           `json:"round_id"`
	OpenedAtHeight uint64           `json:"opened_at_height"`
	Commits        []commitFixture  `json:"commits"`
	Reveals        []revealFixture  `json:"reveals"`
	VDFProof       string           `json:"vdf_proof"`
	PriorOutput    string           `json:"prior_output"`
}

type commitFixture struct {
	Participant string `json:"participant"`
	Preimage    string `json:"preimage"`
}

type revealFixture struct {
	Participant string `json:"participant"`
	Preimage    string `json:"preimage"`
}

func loadBeaconFixture(path string) (*beaconFixture, error) {
	var f beaconFixture
	if err := loadJSON(path, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// headerFixture is the `verify-header` command's input: a candidate header
// plus its parent's minimal shape and the finalized beacon round it
// references, enough to drive the full twelve-step validator pipeline
// in-memory without a live chain-store collaborator.
type headerFixture struct {
	Parent    parentFixture     `json:"parent"`
	Header    candidateFixture  `json:"header"`
	Envelopes []envelopeFixture `json:"envelopes"`
	Beacon    beaconFixture     `json:"beacon"`
	Roots     rootsFixture      `json:"roots"`
}

type parentFixture struct {
	Hash      string `json:"hash"`
	Height    uint64 `json:"height"`
	Timestamp uint64 `json:"timestamp"`
}

type candidateFixture struct {
	Height    uint64 `json:"height"`
	Timestamp uint64 `json:"timestamp"`
	Miner     string `json:"miner"`
	Nonce     uint64 `json:"nonce"`
	Theta     string `json:"theta"`
}

func loadHeaderFixture(path string) (*headerFixture, error) {
	var f headerFixture
	if err := loadJSON(path, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func loadJSON(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("fixture: read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("fixture: decode %s: %w", path, err)
	}
	return nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}
