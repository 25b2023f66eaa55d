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
	"errors"
	"fmt"
	"time"

	"github.com/animica-chain/go-animica/animicalog"
	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/consensus"
	"github.com/animica-chain/go-animica/fixedpoint"
	"github.com/animica-chain/go-animica/metrics"
	"github.com/animica-chain/go-animica/params"
)

var engineLog = animicalog.New("engine")

// Engine is the top-level PoIES consensus engine: one struct composing
// every swappable sub-component (config + db + one field per
// responsibility, wired together by New). The functions the core does not
// implement itself — signature scheme, execution, VDF — are injected as
// pluggable collaborators so the consensus core stays decoupled from
// them.
type Engine struct {
	policy *params.PolicyConfig

	registry   *Registry
	nstore     *NullifierStore
	envVerify  *EnvelopeVerifier
	scorer     *Scorer
	retarget   *RetargetController
	beacon     *BeaconEngine
	forkChoice *ForkChoice
	validator  *Validator

	metrics *metrics.Registry

	// thetaStates holds the retarget state reached after each validated
	// block, keyed by that block's header hash (the genesis entry is seeded
	// at construction). Θ for a candidate is always derived from its own
	// parent's entry, never from a single tip cursor, so competing branches
	// retarget independently and a reorg needs no cursor rewind.
	thetaStates     map[common.Hash]ThetaState
	beaconRounds    map[uint64]*BeaconRound
	maxNullifierTTL uint64
}

// beaconRoundTable adapts Engine's in-memory round map to the
// BeaconRoundResolver interface the Validator consumes.
type beaconRoundTable struct{ e *Engine }

func (t beaconRoundTable) RoundAt(_ context.Context, roundID uint64) (*BeaconRound, bool, error) {
	r, ok := t.e.beaconRounds[roundID]
	return r, ok, nil
}

// Config bundles everything New needs beyond the frozen policy: the
// pluggable collaborators the consensus core does not implement itself, and
// the chain-state hooks the validator reads/writes through.
type Config struct {
	Policy          *params.PolicyConfig
	Hooks           consensus.ChainStateHooks
	NullifierDBDir  string
	NullifierCache  int
	Workers         int
	EnvelopeTimeout time.Duration // per-envelope verification bound; 0 disables
	VDFVerify       VDFVerifyFunc
	VerifySignature HeaderSignatureVerifyFunc
	VerifyExecution ExecutionVerifyFunc
	Metrics         *metrics.Registry
	Genesis         *BlockHeader
	GenesisHash     common.Hash
}

// New assembles an Engine from Config, wiring the built-in proof-type
// descriptors and every pure sub-component.
func New(cfg Config) (*Engine, error) {
	descriptors, err := DefaultDescriptors(cfg.Policy.Scoring, cfg.VDFVerify)
	if err != nil {
		return nil, fmt.Errorf("poies: building proof-type descriptors: %w", err)
	}
	registry := NewRegistry(descriptors)

	nstore, err := NewNullifierStore(cfg.NullifierDBDir, cfg.NullifierCache)
	if err != nil {
		return nil, fmt.Errorf("poies: opening nullifier store: %w", err)
	}

	envVerify := NewEnvelopeVerifier(registry, nstore, cfg.Workers).WithTimeout(cfg.EnvelopeTimeout)
	scorer := NewScorer(cfg.Policy.Scoring)
	retarget := NewRetargetController(cfg.Policy.Retarget)
	beacon := NewBeaconEngine(cfg.Policy.Beacon, cfg.VDFVerify).WithMetrics(cfg.Metrics)
	forkChoice := NewForkChoice(cfg.Policy.ForkChoice, cfg.GenesisHash, cfg.Genesis)

	var maxTTL uint64
	for _, pt := range cfg.Policy.Scoring.ProofTypes {
		if pt.NullifierTTL > maxTTL {
			maxTTL = pt.NullifierTTL
		}
	}

	e := &Engine{
		policy:          cfg.Policy,
		registry:        registry,
		nstore:          nstore,
		envVerify:       envVerify,
		scorer:          scorer,
		retarget:        retarget,
		beacon:          beacon,
		forkChoice:      forkChoice,
		metrics:         cfg.Metrics,
		thetaStates:     map[common.Hash]ThetaState{cfg.GenesisHash: {Theta: cfg.Policy.Retarget.ThetaMin}},
		beaconRounds:    make(map[uint64]*BeaconRound),
		maxNullifierTTL: maxTTL,
	}
	e.validator = NewValidator(cfg.Policy, cfg.Hooks, envVerify, scorer, retarget, nstore, forkChoice,
		beaconRoundTable{e: e}, cfg.VerifySignature, cfg.VerifyExecution).WithMetrics(cfg.Metrics)

	engineLog.Info("poies engine initialized", "genesis", cfg.GenesisHash)
	return e, nil
}

// Close releases the engine's owned resources (currently the nullifier
// store's Pebble handle).
func (e *Engine) Close() error { return e.nstore.Close() }

// OpenBeaconRound opens a new beacon round and registers it for subsequent
// commit/reveal/finalize calls and for the validator's RoundAt lookups.
func (e *Engine) OpenBeaconRound(roundID uint64, atHeight uint64) *BeaconRound {
	round := e.beacon.OpenRound(roundID, atHeight)
	e.beaconRounds[roundID] = round
	return round
}

// BeaconEngine exposes the underlying beacon state machine for the
// execution collaborator to drive commit/reveal transactions into.
func (e *Engine) BeaconEngine() *BeaconEngine { return e.beacon }

// SetBeaconRound registers the result of a commit/reveal/VDF transition
// (the phase transitions and finalize/fallback return a new *BeaconRound;
// AddCommit and AddReveal update a round in place) back into the engine's
// round table, so a later header
// referencing round.RoundID resolves to its current phase. The execution
// collaborator calls this at block-apply time as commit/reveal/finalize
// transactions land; phase boundaries are block heights, never wall-clock.
func (e *Engine) SetBeaconRound(round *BeaconRound) { e.beaconRounds[round.RoundID] = round }

// Registry exposes the proof registry so a governance-upgrade transaction
// can call Upgrade on it.
func (e *Engine) Registry() *Registry { return e.registry }

// ValidateBlock runs the full validator pipeline against a candidate block,
// deriving Θ from the block's own parent's retarget state, recording the
// resulting state for the block's children, and sweeping expired nullifiers
// on acceptance.
func (e *Engine) ValidateBlock(ctx context.Context, h *BlockHeader, envelopes []*ProofEnvelope) (*ReorgAlert, error) {
	parentTheta, ok := e.thetaStates[h.ParentHash]
	if !ok {
		err := fmt.Errorf("%w: no retarget state for parent %s", consensus.ErrBadHeader, h.ParentHash)
		if e.metrics != nil {
			e.metrics.BlocksRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		}
		return nil, err
	}
	alert, nextTheta, err := e.validator.ValidateAndApply(ctx, h, envelopes, parentTheta)
	if err != nil {
		if e.metrics != nil {
			e.metrics.BlocksRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
			if errors.Is(err, consensus.ErrNullifierReuse) {
				e.metrics.NullifierReuseTotal.Inc()
			}
		}
		return nil, err
	}
	e.thetaStates[HeaderHash(h)] = nextTheta

	if e.maxNullifierTTL > 0 {
		if evictErr := e.nstore.EvictExpired(h.Height, e.maxNullifierTTL); evictErr != nil {
			engineLog.Warn("nullifier ttl sweep failed", "height", h.Height, "err", evictErr)
		}
	}

	if e.metrics != nil {
		e.metrics.BlocksAcceptedTotal.Inc()
		e.metrics.ThetaCurrent.Set(e.ThetaState().Theta.Float64())
		if nextTheta.LastRetargetHeight != parentTheta.LastRetargetHeight {
			e.metrics.RetargetRatioHist.Observe(e.retargetRatio(nextTheta))
		}
	}
	if alert != nil {
		engineLog.Info("canonical head advanced", "height", h.Height, "head", e.forkChoice.Head())
		if e.metrics != nil {
			e.metrics.HeadHeight.Set(float64(h.Height))
			e.metrics.ReorgDepthHistogram.Observe(float64(alert.Depth))
		}
	}
	return alert, nil
}

// retargetRatio recomputes the clamped ema/target ratio the controller just
// applied, as a lossy float for the retarget_ratio_histogram only.
func (e *Engine) retargetRatio(state ThetaState) float64 {
	p := e.policy.Retarget
	target := fixedpoint.FromUint64(p.TargetGapSeconds)
	ratio := state.EMAInterval.Div(target)
	lower := fixedpoint.One.Div(p.ClampFactor)
	return ratio.Max(lower).Min(p.ClampFactor).Float64()
}

// ValidateHeaderBytes is the early-admission check exposed to the P2P
// layer, which must not admit a block to gossip until its header passes:
// decode the signed wire form and run the checks that need no chain
// context — structure, signature, and the clock-skew bound. It never
// touches persistent state.
func (e *Engine) ValidateHeaderBytes(b []byte) (*BlockHeader, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", consensus.ErrBadHeader, err)
	}
	if len(h.Signature) == 0 {
		return nil, fmt.Errorf("%w: missing signature", consensus.ErrBadHeader)
	}
	if e.validator.verifySignature != nil {
		valid, err := e.validator.verifySignature(h)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", consensus.ErrBadSignature, err)
		}
		if !valid {
			return nil, fmt.Errorf("%w", consensus.ErrBadSignature)
		}
	}
	if h.Timestamp > uint64(e.validator.now().Unix())+e.policy.SkewBound {
		return nil, fmt.Errorf("%w: timestamp exceeds skew bound", consensus.ErrBadHeader)
	}
	return h, nil
}

// ValidateBlockBytes decodes a full wire-framed block and runs it through
// the validator pipeline, the byte-level entry point handed to the P2P
// layer.
func (e *Engine) ValidateBlockBytes(ctx context.Context, b []byte) (*ReorgAlert, error) {
	h, envelopes, err := DecodeBlock(b)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", consensus.ErrBadHeader, err)
		if e.metrics != nil {
			e.metrics.BlocksRejectedTotal.WithLabelValues(rejectReason(wrapped)).Inc()
		}
		return nil, wrapped
	}
	return e.ValidateBlock(ctx, h, envelopes)
}

// ThetaState returns a copy of the retarget state at the current canonical
// head.
func (e *Engine) ThetaState() ThetaState {
	if s, ok := e.thetaStates[e.forkChoice.Head()]; ok {
		return s.Clone()
	}
	return ThetaState{}
}

// ThetaStateAt returns a copy of the retarget state recorded after the given
// block, if the engine has validated it (or it is genesis).
func (e *Engine) ThetaStateAt(blockHash common.Hash) (ThetaState, bool) {
	s, ok := e.thetaStates[blockHash]
	if !ok {
		return ThetaState{}, false
	}
	return s.Clone(), true
}

// Head returns the current canonical head hash.
func (e *Engine) Head() common.Hash { return e.forkChoice.Head() }

// rejectReason classifies a validator error against the shared sentinel
// taxonomy into a bounded label set, keeping the blocks_rejected_total
// cardinality fixed regardless of error detail text.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, consensus.ErrPolicyRootMismatch):
		return "policy_root_mismatch"
	case errors.Is(err, consensus.ErrThetaMismatch):
		return "theta_mismatch"
	case errors.Is(err, consensus.ErrBeaconNotFinalized):
		return "beacon_not_finalized"
	case errors.Is(err, consensus.ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, consensus.ErrNullifierReuse):
		return "nullifier_reuse"
	case errors.Is(err, consensus.ErrDuplicateInBlock):
		return "duplicate_in_block"
	case errors.Is(err, consensus.ErrScoreBelowTheta):
		return "score_below_theta"
	case errors.Is(err, consensus.ErrCapExceeded):
		return "cap_exceeded"
	case errors.Is(err, consensus.ErrDeepReorg):
		return "deep_reorg"
	case errors.Is(err, consensus.ErrStaleBeacon):
		return "stale_beacon"
	case errors.Is(err, consensus.ErrVerifyTimeout):
		return "verify_timeout"
	case errors.Is(err, consensus.ErrUnsupportedType):
		return "unsupported_type"
	case errors.Is(err, consensus.ErrPayloadTooLarge):
		return "payload_too_large"
	case errors.Is(err, consensus.ErrVerifyFailed):
		return "verify_failed"
	case errors.Is(err, consensus.ErrBadVDFProof):
		return "bad_vdf_proof"
	case errors.Is(err, consensus.ErrBadEnvelope):
		return "bad_envelope"
	case errors.Is(err, consensus.ErrBadHeader):
		return "bad_header"
	case errors.Is(err, consensus.ErrStateHookFailure):
		return "state_hook_failure"
	case errors.Is(err, consensus.ErrBeaconInternal):
		return "beacon_internal"
	default:
		return "other"
	}
}
