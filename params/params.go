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

// Package params holds the PoIES policy configuration: proof-type caps, the
// global Γ cap, diversity-escort parameters, retarget tuning, beacon phase
// lengths and the policy-root digests pinned at genesis. Every value here is
// loaded once at startup from a TOML genesis/policy file and frozen; there
// is no package-level mutable singleton, so every validator/scorer/controller
// takes an explicit *PolicyConfig.
package params

import (
	"fmt"
	"io"
	"os"

	"github.com/naoina/toml"

	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/fixedpoint"
)

// ProofTypeID enumerates the closed set of proof kinds PoIES recognizes.
// The dispatch table in consensus/poies is pluggable via governance upgrade,
// but the wire tag itself is a fixed, monomorphic type.
type ProofTypeID uint16

const (
	ProofTypeHashShare ProofTypeID = iota
	ProofTypeAI
	ProofTypeQuantum
	ProofTypeStorage
	ProofTypeVDF
	numProofTypes
)

func (t ProofTypeID) String() string {
	switch t {
	case ProofTypeHashShare:
		return "HashShare"
	case ProofTypeAI:
		return "AI"
	case ProofTypeQuantum:
		return "Quantum"
	case ProofTypeStorage:
		return "Storage"
	case ProofTypeVDF:
		return "VDF"
	default:
		return fmt.Sprintf("ProofType(%d)", uint16(t))
	}
}

// Valid reports whether t is one of the five recognized proof kinds.
func (t ProofTypeID) Valid() bool { return t < numProofTypes }

// ProofTypeConfig is the per-type policy: its ψ cap, the maximum payload
// size accepted before structural rejection, and the nullifier lifetime.
type ProofTypeConfig struct {
	Cap            fixedpoint.Fixed
	MaxPayloadSize uint32
	NullifierTTL   uint64 // height-denominated
}

// ScoringParams holds the PoIES scorer's global tuning.
type ScoringParams struct {
	Gamma              fixedpoint.Fixed // global Σψ cap
	DiversityThreshold int              // K distinct types required for escort
	EscortBonus        fixedpoint.Fixed // q
	ProofTypes         map[ProofTypeID]ProofTypeConfig
}

// RetargetParams holds the Θ controller's tuning.
type RetargetParams struct {
	TargetGapSeconds uint64
	Alpha            fixedpoint.Fixed // EMA smoothing factor, in (0,1)
	WindowBlocks     uint64           // retarget_window
	ClampFactor      fixedpoint.Fixed // e.g. 4
	ThetaMin         fixedpoint.Fixed
	ThetaMax         fixedpoint.Fixed
	MaxGapSeconds    uint64 // gap clamp ceiling before EMA update
}

// BeaconParams holds the randomness beacon's round-lifecycle tuning.
type BeaconParams struct {
	CommitWindowBlocks   uint64
	RevealWindowBlocks   uint64
	VDFTimeout           uint64 // seconds; 0 disables the bound
	OutputValidityBlocks uint64 // heights a finalized output stays consumable; 0 disables expiry
}

// ForkChoiceParams holds the fork-choice engine's bounds.
type ForkChoiceParams struct {
	MaxReorgDepth uint64
}

// PolicyRoots pins the hashes of the policy sections active at a given
// height. The consensus core checks these
// against a header's recorded policy_roots but does not itself decide when
// they change — that is a governance-gated upgrade, applied between blocks.
type PolicyRoots struct {
	AlgPolicyRoot      common.Hash
	ZKVKSetRoot        common.Hash
	RetargetParamsRoot common.Hash
	ProofRegistryRoot  common.Hash
}

// PolicyConfig is the full, frozen configuration consumed by the consensus
// core, assembled once at genesis load time.
type PolicyConfig struct {
	Scoring     ScoringParams
	Retarget    RetargetParams
	Beacon      BeaconParams
	ForkChoice  ForkChoiceParams
	Roots       PolicyRoots
	SkewBound   uint64 // seconds, header timestamp clock-skew tolerance
	GenesisHash common.Hash
}

// tomlDocument mirrors PolicyConfig's shape in a form naoina/toml can decode
// directly (string-encoded Fixed values, hex-encoded digests).
type tomlDocument struct {
	Scoring struct {
		Gamma              string `toml:"gamma"`
		DiversityThreshold int    `toml:"diversity_threshold"`
		EscortBonus        string `toml:"escort_bonus"`
		ProofTypes         map[string]struct {
			Cap            string `toml:"cap"`
			MaxPayloadSize uint32 `toml:"max_payload_size"`
			NullifierTTL   uint64 `toml:"nullifier_ttl"`
		} `toml:"proof_types"`
	} `toml:"scoring"`
	Retarget struct {
		TargetGapSeconds uint64 `toml:"target_gap_seconds"`
		Alpha            string `toml:"alpha"`
		WindowBlocks     uint64 `toml:"window_blocks"`
		ClampFactor      string `toml:"clamp_factor"`
		ThetaMin         string `toml:"theta_min"`
		ThetaMax         string `toml:"theta_max"`
		MaxGapSeconds    uint64 `toml:"max_gap_seconds"`
	} `toml:"retarget"`
	Beacon struct {
		CommitWindowBlocks   uint64 `toml:"commit_window_blocks"`
		RevealWindowBlocks   uint64 `toml:"reveal_window_blocks"`
		VDFTimeout           uint64 `toml:"vdf_timeout_seconds"`
		OutputValidityBlocks uint64 `toml:"output_validity_blocks"`
	} `toml:"beacon"`
	ForkChoice struct {
		MaxReorgDepth uint64 `toml:"max_reorg_depth"`
	} `toml:"fork_choice"`
	Roots struct {
		AlgPolicyRoot      string `toml:"alg_policy_root"`
		ZKVKSetRoot        string `toml:"zk_vk_set_root"`
		RetargetParamsRoot string `toml:"retarget_params_root"`
		ProofRegistryRoot  string `toml:"proof_registry_root"`
	} `toml:"roots"`
	SkewBound   uint64 `toml:"skew_bound_seconds"`
	GenesisHash string `toml:"genesis_hash"`
}

var proofTypeNames = map[string]ProofTypeID{
	"HashShare": ProofTypeHashShare,
	"AI":        ProofTypeAI,
	"Quantum":   ProofTypeQuantum,
	"Storage":   ProofTypeStorage,
	"VDF":       ProofTypeVDF,
}

// LoadPolicyFile reads and decodes a genesis policy TOML file from path.
func LoadPolicyFile(path string) (*PolicyConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("params: open policy file: %w", err)
	}
	defer f.Close()
	return DecodePolicy(f)
}

// tomlSettings is the single package-level toml.Config every decoder is
// constructed from.
var tomlSettings toml.Config

// DecodePolicy decodes a policy document from r, matching LoadPolicyFile's
// format. Split out for testability without touching the filesystem.
func DecodePolicy(r io.Reader) (*PolicyConfig, error) {
	var doc tomlDocument
	if err := tomlSettings.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("params: decode policy toml: %w", err)
	}

	cfg := &PolicyConfig{
		SkewBound:   doc.SkewBound,
		GenesisHash: common.HexToHash(doc.GenesisHash),
	}

	var err error
	if cfg.Scoring.Gamma, err = fixedpoint.ParseDecimal(doc.Scoring.Gamma); err != nil {
		return nil, fmt.Errorf("params: scoring.gamma: %w", err)
	}
	cfg.Scoring.DiversityThreshold = doc.Scoring.DiversityThreshold
	if cfg.Scoring.EscortBonus, err = fixedpoint.ParseDecimal(doc.Scoring.EscortBonus); err != nil {
		return nil, fmt.Errorf("params: scoring.escort_bonus: %w", err)
	}
	cfg.Scoring.ProofTypes = make(map[ProofTypeID]ProofTypeConfig, len(doc.Scoring.ProofTypes))
	for name, pt := range doc.Scoring.ProofTypes {
		id, ok := proofTypeNames[name]
		if !ok {
			return nil, fmt.Errorf("params: unknown proof type %q in policy file", name)
		}
		cap, err := fixedpoint.ParseDecimal(pt.Cap)
		if err != nil {
			return nil, fmt.Errorf("params: scoring.proof_types.%s.cap: %w", name, err)
		}
		cfg.Scoring.ProofTypes[id] = ProofTypeConfig{
			Cap:            cap,
			MaxPayloadSize: pt.MaxPayloadSize,
			NullifierTTL:   pt.NullifierTTL,
		}
	}

	cfg.Retarget.TargetGapSeconds = doc.Retarget.TargetGapSeconds
	cfg.Retarget.WindowBlocks = doc.Retarget.WindowBlocks
	cfg.Retarget.MaxGapSeconds = doc.Retarget.MaxGapSeconds
	if cfg.Retarget.Alpha, err = fixedpoint.ParseDecimal(doc.Retarget.Alpha); err != nil {
		return nil, fmt.Errorf("params: retarget.alpha: %w", err)
	}
	if cfg.Retarget.ClampFactor, err = fixedpoint.ParseDecimal(doc.Retarget.ClampFactor); err != nil {
		return nil, fmt.Errorf("params: retarget.clamp_factor: %w", err)
	}
	if cfg.Retarget.ThetaMin, err = fixedpoint.ParseDecimal(doc.Retarget.ThetaMin); err != nil {
		return nil, fmt.Errorf("params: retarget.theta_min: %w", err)
	}
	if cfg.Retarget.ThetaMax, err = fixedpoint.ParseDecimal(doc.Retarget.ThetaMax); err != nil {
		return nil, fmt.Errorf("params: retarget.theta_max: %w", err)
	}

	cfg.Beacon.CommitWindowBlocks = doc.Beacon.CommitWindowBlocks
	cfg.Beacon.RevealWindowBlocks = doc.Beacon.RevealWindowBlocks
	cfg.Beacon.VDFTimeout = doc.Beacon.VDFTimeout
	cfg.Beacon.OutputValidityBlocks = doc.Beacon.OutputValidityBlocks

	cfg.ForkChoice.MaxReorgDepth = doc.ForkChoice.MaxReorgDepth

	cfg.Roots = PolicyRoots{
		AlgPolicyRoot:      common.HexToHash(doc.Roots.AlgPolicyRoot),
		ZKVKSetRoot:        common.HexToHash(doc.Roots.ZKVKSetRoot),
		RetargetParamsRoot: common.HexToHash(doc.Roots.RetargetParamsRoot),
		ProofRegistryRoot:  common.HexToHash(doc.Roots.ProofRegistryRoot),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the structural invariants a policy file must satisfy
// before the consensus core will use it.
func (c *PolicyConfig) Validate() error {
	if c.Scoring.DiversityThreshold < 1 {
		return fmt.Errorf("params: diversity_threshold must be >= 1")
	}
	if len(c.Scoring.ProofTypes) == 0 {
		return fmt.Errorf("params: at least one proof type must be configured")
	}
	if c.Retarget.TargetGapSeconds == 0 {
		return fmt.Errorf("params: retarget.target_gap_seconds must be > 0")
	}
	if c.Retarget.Alpha.IsZero() || c.Retarget.Alpha.Cmp(fixedpoint.One) >= 0 {
		return fmt.Errorf("params: retarget.alpha must lie in (0, 1)")
	}
	if c.Retarget.ClampFactor.Cmp(fixedpoint.One) < 0 {
		return fmt.Errorf("params: retarget.clamp_factor must be >= 1")
	}
	if c.Retarget.ThetaMin.Cmp(c.Retarget.ThetaMax) > 0 {
		return fmt.Errorf("params: retarget.theta_min must be <= theta_max")
	}
	if c.ForkChoice.MaxReorgDepth == 0 {
		return fmt.Errorf("params: fork_choice.max_reorg_depth must be > 0")
	}
	return nil
}
