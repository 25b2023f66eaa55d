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
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/animica-chain/go-animica/animicalog"
	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/consensus"
	"github.com/animica-chain/go-animica/fixedpoint"
	"github.com/animica-chain/go-animica/metrics"
	"github.com/animica-chain/go-animica/params"
)

var validatorLog = animicalog.New("validator")

// HeaderSignatureVerifyFunc checks a header's PQ signature by its claimed
// miner. The signature scheme is owned by the crypto collaborator and pinned
// by the alg-policy root, so it is injected rather than hardcoded.
type HeaderSignatureVerifyFunc func(h *BlockHeader) (bool, error)

// ExecutionVerifyFunc hands a candidate header to the execution collaborator
// for state/receipt root verification; the consensus core checks presence of
// those roots but never recomputes them.
type ExecutionVerifyFunc func(ctx context.Context, h *BlockHeader) error

// BeaconRoundResolver resolves the round referenced by a header's
// beacon_round field.
type BeaconRoundResolver interface {
	RoundAt(ctx context.Context, roundID uint64) (*BeaconRound, bool, error)
}

// Validator is the block/header admission pipeline, composing the
// sub-components (Registry via EnvelopeVerifier, Scorer,
// RetargetController, NullifierStore, ForkChoice) behind the narrow
// consensus.ChainStateHooks contract for everything the consensus core does
// not own directly.
type Validator struct {
	policy          *params.PolicyConfig
	hooks           consensus.ChainStateHooks
	envVerify       *EnvelopeVerifier
	scorer          *Scorer
	retarget        *RetargetController
	nstore          *NullifierStore
	forkChoice      *ForkChoice
	beaconRounds    BeaconRoundResolver
	verifySignature HeaderSignatureVerifyFunc
	verifyExecution ExecutionVerifyFunc
	metrics         *metrics.Registry
	now             func() time.Time

	// blockNullifiers remembers each accepted block's nullifier set so a
	// later reorg can unwind the removed branch's entries atomically.
	blockNullifiers map[common.Hash]blockNullifierSet
}

type blockNullifierSet struct {
	height uint64
	set    []common.Hash
}

// WithMetrics attaches the telemetry registry so each pipeline stage's
// timing lands in its pinned histogram.
func (v *Validator) WithMetrics(m *metrics.Registry) *Validator {
	v.metrics = m
	return v
}

// observe records elapsed seconds on hist when metrics are attached.
func (v *Validator) observe(hist func(m *metrics.Registry) prometheus.Observer, start time.Time) {
	if v.metrics != nil {
		hist(v.metrics).Observe(time.Since(start).Seconds())
	}
}

// NewValidator wires every collaborator the pipeline needs.
func NewValidator(
	policy *params.PolicyConfig,
	hooks consensus.ChainStateHooks,
	envVerify *EnvelopeVerifier,
	scorer *Scorer,
	retarget *RetargetController,
	nstore *NullifierStore,
	forkChoice *ForkChoice,
	beaconRounds BeaconRoundResolver,
	verifySignature HeaderSignatureVerifyFunc,
	verifyExecution ExecutionVerifyFunc,
) *Validator {
	return &Validator{
		policy:          policy,
		hooks:           hooks,
		envVerify:       envVerify,
		scorer:          scorer,
		retarget:        retarget,
		nstore:          nstore,
		forkChoice:      forkChoice,
		beaconRounds:    beaconRounds,
		verifySignature: verifySignature,
		verifyExecution: verifyExecution,
		now:             time.Now,
		blockNullifiers: make(map[common.Hash]blockNullifierSet),
	}
}

// ValidateAndApply runs the full admission pipeline against a candidate
// header and its proof envelopes, given its parent's ThetaState. On
// acceptance it inserts nullifiers, notifies execution, writes the header,
// and hands off to fork-choice, returning the resulting ReorgAlert (nil if
// the new header did not overtake the current head) and the ThetaState to
// persist for the next block. On rejection no persistent state is mutated.
func (v *Validator) ValidateAndApply(ctx context.Context, h *BlockHeader, envelopes []*ProofEnvelope, theta ThetaState) (*ReorgAlert, ThetaState, error) {
	// Step 1: structural invariants and parent existence.
	if h.Signature == nil {
		return nil, theta, fmt.Errorf("%w: missing signature", consensus.ErrBadHeader)
	}
	bagRoot, err := ProofBagRoot(envelopes)
	if err != nil {
		return nil, theta, fmt.Errorf("%w: %v", consensus.ErrBadEnvelope, err)
	}
	if bagRoot != h.ProofBagRoot {
		return nil, theta, fmt.Errorf("%w: proof_bag_root does not commit to the supplied envelopes", consensus.ErrBadHeader)
	}
	parent, ok, err := v.hooks.GetHeader(ctx, h.ParentHash)
	if err != nil {
		return nil, theta, fmt.Errorf("%w: %v", consensus.ErrStateHookFailure, err)
	}
	if !ok {
		return nil, theta, fmt.Errorf("%w: unknown parent %s", consensus.ErrBadHeader, h.ParentHash)
	}
	if h.Height != parent.Height+1 {
		return nil, theta, fmt.Errorf("%w: height %d does not extend parent height %d", consensus.ErrBadHeader, h.Height, parent.Height)
	}

	// Step 2: policy roots match the locally computed roots for this height.
	expectedRoots, err := v.hooks.PolicyRootsAt(ctx, h.Height)
	if err != nil {
		return nil, theta, fmt.Errorf("%w: %v", consensus.ErrStateHookFailure, err)
	}
	if expectedRoots != h.PolicyRoots {
		return nil, theta, fmt.Errorf("%w", consensus.ErrPolicyRootMismatch)
	}

	// Step 3: header signature.
	if v.verifySignature != nil {
		valid, err := v.verifySignature(h)
		if err != nil {
			return nil, theta, fmt.Errorf("%w: %v", consensus.ErrBadSignature, err)
		}
		if !valid {
			return nil, theta, fmt.Errorf("%w", consensus.ErrBadSignature)
		}
	}

	// Step 4: timestamp ordering and clock-skew bound.
	parentTimestamp := parent.Timestamp
	if h.Timestamp <= parentTimestamp {
		return nil, theta, fmt.Errorf("%w: timestamp %d <= parent %d", consensus.ErrBadHeader, h.Timestamp, parentTimestamp)
	}
	nowUnix := uint64(v.now().Unix())
	if h.Timestamp > nowUnix+v.policy.SkewBound {
		return nil, theta, fmt.Errorf("%w: timestamp %d exceeds skew bound", consensus.ErrBadHeader, h.Timestamp)
	}

	// Step 5: theta_expected via the retarget rule.
	gap := h.Timestamp - parentTimestamp
	retargetStart := time.Now()
	nextTheta := v.retarget.Advance(theta, h.Height, gap)
	v.observe(func(m *metrics.Registry) prometheus.Observer { return m.RetargetSeconds }, retargetStart)
	if h.Theta.Cmp(nextTheta.Theta) != 0 {
		return nil, theta, fmt.Errorf("%w: header theta %s != expected %s", consensus.ErrThetaMismatch, h.Theta, nextTheta.Theta)
	}

	// Step 6: beacon round must be Finalized and still within its validity
	// window at this height.
	round, ok, err := v.beaconRounds.RoundAt(ctx, h.BeaconRound)
	if err != nil {
		return nil, theta, fmt.Errorf("%w: %v", consensus.ErrBeaconInternal, err)
	}
	if !ok || round.Phase != BeaconFinalized {
		return nil, theta, fmt.Errorf("%w", consensus.ErrBeaconNotFinalized)
	}
	if window := v.policy.Beacon.OutputValidityBlocks; window > 0 && h.Height > round.RevealDeadline+window {
		return nil, theta, fmt.Errorf("%w: round %d expired at height %d", consensus.ErrStaleBeacon, round.RoundID, round.RevealDeadline+window)
	}

	// Step 7: envelope verification, accumulating (type_id, psi_raw) and
	// collecting nullifiers.
	beaconContext := keccak(domainBeacon, round.Output.Bytes())
	envelopeStart := time.Now()
	contributions, nullifiers, err := v.envVerify.VerifyBlock(ctx, h.PolicyRoots, beaconContext, envelopes)
	v.observe(func(m *metrics.Registry) prometheus.Observer { return m.EnvelopeVerifySeconds }, envelopeStart)
	if err != nil {
		return nil, theta, err
	}

	// Step 8: derive u deterministically.
	seed := DeriveSeedDigest(h.ParentHash, h.Miner, h.Nonce, round.Output)
	u := fixedpoint.DeriveU(seed)
	if h.SeedU.Cmp(u) != 0 {
		return nil, theta, fmt.Errorf("%w: header seed_u does not match derived u", consensus.ErrBadHeader)
	}

	// Step 9: score and require acceptance.
	scorerStart := time.Now()
	breakdown, err := v.scorer.RequireAccepted(contributions, u, h.Theta)
	v.observe(func(m *metrics.Registry) prometheus.Observer { return m.ScorerSeconds }, scorerStart)
	if err != nil {
		return nil, theta, err
	}

	// Step 10: atomic nullifier insertion.
	if err := v.nstore.InsertMany(nullifiers, h.Height); err != nil {
		return nil, theta, err
	}
	if err := v.hooks.InsertNullifiers(ctx, nullifiers, h.Height); err != nil {
		if rbErr := v.nstore.RemoveMany(nullifiers); rbErr != nil {
			validatorLog.Error("nullifier rollback failed after hook rejection", "err", rbErr)
		}
		return nil, theta, fmt.Errorf("%w: %v", consensus.ErrStateHookFailure, err)
	}

	// Step 11: execution handoff; failure rolls back the nullifier insert.
	if v.verifyExecution != nil {
		if err := v.verifyExecution(ctx, h); err != nil {
			v.rollbackNullifiers(ctx, nullifiers, h.Height, "execution rejection")
			return nil, theta, fmt.Errorf("%w: %v", consensus.ErrStateHookFailure, err)
		}
	}

	// Step 12: emit acceptance to fork-choice.
	forkChoiceStart := time.Now()
	alert, err := v.forkChoice.Insert(h, breakdown.SValue, h.Theta)
	v.observe(func(m *metrics.Registry) prometheus.Observer { return m.ForkChoiceSeconds }, forkChoiceStart)
	if err != nil {
		v.rollbackNullifiers(ctx, nullifiers, h.Height, "fork-choice rejection")
		return nil, theta, err
	}

	if err := v.hooks.PutHeader(ctx, &consensus.Header{Hash: HeaderHash(h), ParentHash: h.ParentHash, Height: h.Height, Timestamp: h.Timestamp}); err != nil {
		return nil, theta, fmt.Errorf("%w: %v", consensus.ErrStateHookFailure, err)
	}
	v.blockNullifiers[HeaderHash(h)] = blockNullifierSet{height: h.Height, set: nullifiers}
	if alert != nil {
		if err := v.unwindNullifiers(ctx, alert.Removed); err != nil {
			return nil, theta, err
		}
		if err := v.hooks.NotifyCanonical(ctx, alert.NewHead, consensus.ReorgDelta{Added: alert.Added, Removed: alert.Removed}); err != nil {
			return nil, theta, fmt.Errorf("%w: %v", consensus.ErrStateHookFailure, err)
		}
	}

	validatorLog.Info("block accepted", "height", h.Height, "s_value", breakdown.SValue, "theta", h.Theta)
	return alert, nextTheta, nil
}

// rollbackNullifiers undoes a block's nullifier insertion, in both the local
// store and the chain-store mirror, after a later pipeline stage rejected it.
func (v *Validator) rollbackNullifiers(ctx context.Context, nullifiers []common.Hash, height uint64, cause string) {
	if err := v.nstore.RemoveMany(nullifiers); err != nil {
		validatorLog.Error("nullifier rollback failed", "cause", cause, "err", err)
	}
	if err := v.hooks.RemoveNullifiers(ctx, nullifiers, height); err != nil {
		validatorLog.Error("nullifier hook rollback failed", "cause", cause, "err", err)
	}
}

// unwindNullifiers removes the nullifier sets of every block a reorg threw
// away, in both the local store and the chain-store mirror, so a proof from
// the abandoned branch can be re-included on the canonical one. Blocks on
// the incoming branch keep the entries they inserted when they were first
// validated.
func (v *Validator) unwindNullifiers(ctx context.Context, removed []common.Hash) error {
	for _, blockHash := range removed {
		bn, ok := v.blockNullifiers[blockHash]
		if !ok {
			continue
		}
		if err := v.nstore.RemoveMany(bn.set); err != nil {
			return fmt.Errorf("%w: unwinding nullifiers of %s: %v", consensus.ErrStateHookFailure, blockHash, err)
		}
		if err := v.hooks.RemoveNullifiers(ctx, bn.set, bn.height); err != nil {
			return fmt.Errorf("%w: %v", consensus.ErrStateHookFailure, err)
		}
		delete(v.blockNullifiers, blockHash)
	}
	return nil
}

func uint64Bytes(v uint64) []byte {
	return putUint64(make([]byte, 0, 8), v)
}
