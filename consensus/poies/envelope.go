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

	"golang.org/x/sync/errgroup"

	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/consensus"
	"github.com/animica-chain/go-animica/fixedpoint"
	"github.com/animica-chain/go-animica/params"
)

type envelopeResult struct {
	psiRaw    fixedpoint.Fixed
	nullifier common.Hash
}

// EnvelopeVerifier is the per-block proof verification pipeline: dispatch
// every envelope to its registered verifier concurrently, bounded by a
// worker limit, then reduce results in strict envelope order so
// duplicate/nullifier-reuse detection is independent of goroutine completion
// order.
type EnvelopeVerifier struct {
	registry *Registry
	store    *NullifierStore
	workers  int
	timeout  time.Duration // per-envelope wall-clock bound; 0 disables
}

// NewEnvelopeVerifier builds a verifier bounded to workers concurrent
// dispatches; workers <= 0 defaults to 4.
func NewEnvelopeVerifier(registry *Registry, store *NullifierStore, workers int) *EnvelopeVerifier {
	if workers <= 0 {
		workers = 4
	}
	return &EnvelopeVerifier{registry: registry, store: store, workers: workers}
}

// WithTimeout sets the per-envelope verification bound: a dispatch
// exceeding it rejects the whole block with ErrVerifyTimeout.
func (v *EnvelopeVerifier) WithTimeout(d time.Duration) *EnvelopeVerifier {
	v.timeout = d
	return v
}

// verifyOne dispatches a single envelope, bounded by the configured
// wall-clock timeout. The verifier goroutine cannot be forcibly stopped
// mid-computation; on timeout its result is simply discarded.
func (v *EnvelopeVerifier) verifyOne(ctx context.Context, policy params.PolicyRoots, beaconContext common.Hash, env *ProofEnvelope) (envelopeResult, error) {
	if v.timeout <= 0 {
		psiRaw, nullifier, err := v.registry.Verify(policy, beaconContext, env)
		return envelopeResult{psiRaw: psiRaw, nullifier: nullifier}, err
	}

	type outcome struct {
		res envelopeResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		psiRaw, nullifier, err := v.registry.Verify(policy, beaconContext, env)
		done <- outcome{res: envelopeResult{psiRaw: psiRaw, nullifier: nullifier}, err: err}
	}()

	timer := time.NewTimer(v.timeout)
	defer timer.Stop()
	select {
	case o := <-done:
		return o.res, o.err
	case <-timer.C:
		return envelopeResult{}, consensus.ErrVerifyTimeout
	case <-ctx.Done():
		return envelopeResult{}, ctx.Err()
	}
}

// VerifyBlock verifies every envelope in a candidate block against policy and
// the persistent nullifier store, returning the per-type ψ contributions and
// the full nullifier set to insert on acceptance. It
// does not itself insert nullifiers: that is atomic-per-block and happens
// once the validator has accepted the whole block (see validator.go), so a
// rejected candidate never partially pollutes the anti-replay set.
func (v *EnvelopeVerifier) VerifyBlock(ctx context.Context, policy params.PolicyRoots, beaconContext common.Hash, envelopes []*ProofEnvelope) ([]TypeContribution, []common.Hash, error) {
	results := make([]envelopeResult, len(envelopes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for i, env := range envelopes {
		i, env := i, env
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			res, err := v.verifyOne(gctx, policy, beaconContext, env)
			if err != nil {
				return fmt.Errorf("poies: envelope %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	dedup := NewDedupSet()
	contributions := make([]TypeContribution, 0, len(envelopes))
	nullifiers := make([]common.Hash, 0, len(envelopes))
	for i, env := range envelopes {
		r := results[i]
		if !dedup.AddIfAbsent(r.nullifier) {
			return nil, nil, fmt.Errorf("%w: envelope %d", consensus.ErrDuplicateInBlock, i)
		}
		present, err := v.store.Contains(r.nullifier)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", consensus.ErrStateHookFailure, err)
		}
		if present {
			return nil, nil, fmt.Errorf("%w: envelope %d", consensus.ErrNullifierReuse, i)
		}
		contributions = append(contributions, TypeContribution{TypeID: env.TypeID, PsiRaw: r.psiRaw})
		nullifiers = append(nullifiers, r.nullifier)
	}
	return contributions, nullifiers, nil
}
