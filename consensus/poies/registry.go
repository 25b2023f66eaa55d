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
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/consensus"
	"github.com/animica-chain/go-animica/fixedpoint"
	"github.com/animica-chain/go-animica/params"
)

// VerifierFunc validates an envelope's payload against policy and returns
// its raw magnitude before the per-type ψ mapping is applied. Implementations
// must be pure and deterministic: given identical inputs and policy roots,
// every node must compute the identical result.
type VerifierFunc func(policy params.PolicyRoots, env *ProofEnvelope) (rawMetric fixedpoint.Fixed, err error)

// PsiMapFunc is the per-type monotone non-decreasing map from raw metric to
// ψ_raw. The shape (linear, logarithmic, ...) is policy-pinned data, not
// code — callers construct PsiMapFunc closures from policy parameters, never
// hardcode the curve in the registry itself.
type PsiMapFunc func(rawMetric fixedpoint.Fixed) fixedpoint.Fixed

// NullifierRuleFunc derives the anti-replay nullifier for an envelope within
// the given round/height context.
type NullifierRuleFunc func(env *ProofEnvelope, context common.Hash) common.Hash

// Descriptor is everything the registry needs to verify one proof type:
// verify function, ψ mapping, per-type cap, nullifier derivation rule, and
// the structural payload bound.
type Descriptor struct {
	Verify         VerifierFunc
	PsiMap         PsiMapFunc
	Cap            fixedpoint.Fixed
	NullifierRule  NullifierRuleFunc
	MaxPayloadSize uint32
}

// Registry is the proof-type dispatch table. It is read-only after
// initialization: governance upgrades replace the whole table atomically
// between blocks, implemented here as an atomic.Pointer swap rather than a
// mutex-guarded map, so concurrent envelope verification during a block
// never observes a half-upgraded registry.
type Registry struct {
	tbl atomic.Pointer[map[params.ProofTypeID]*Descriptor]
}

// NewRegistry constructs a Registry seeded with the given descriptors. It
// does not check them against the policy file's ScoringParams.ProofTypes;
// engine.go seeds it from DefaultDescriptors, which builds one descriptor
// per configured type.
func NewRegistry(initial map[params.ProofTypeID]*Descriptor) *Registry {
	r := &Registry{}
	snapshot := cloneDescriptorMap(initial)
	r.tbl.Store(&snapshot)
	return r
}

func cloneDescriptorMap(in map[params.ProofTypeID]*Descriptor) map[params.ProofTypeID]*Descriptor {
	out := make(map[params.ProofTypeID]*Descriptor, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Upgrade atomically replaces the registry's dispatch table, taking effect
// for every verification that starts after the swap. It takes no activation
// height, and neither the Registry nor the Validator checks one: the swap
// happens whenever the holder of Engine.Registry calls Upgrade.
func (r *Registry) Upgrade(next map[params.ProofTypeID]*Descriptor) {
	snapshot := cloneDescriptorMap(next)
	r.tbl.Store(&snapshot)
}

// descriptor returns the live descriptor for id, or nil if unregistered.
func (r *Registry) descriptor(id params.ProofTypeID) *Descriptor {
	tbl := r.tbl.Load()
	if tbl == nil {
		return nil
	}
	return (*tbl)[id]
}

// Verify dispatches envelope verification to the registered type, returning
// the raw ψ contribution and the derived nullifier.
func (r *Registry) Verify(policy params.PolicyRoots, context common.Hash, env *ProofEnvelope) (fixedpoint.Fixed, common.Hash, error) {
	if !env.TypeID.Valid() {
		return fixedpoint.Zero, common.Hash{}, fmt.Errorf("%w: type %d", consensus.ErrUnsupportedType, env.TypeID)
	}
	d := r.descriptor(env.TypeID)
	if d == nil {
		return fixedpoint.Zero, common.Hash{}, fmt.Errorf("%w: type %s", consensus.ErrUnsupportedType, env.TypeID)
	}
	if d.MaxPayloadSize > 0 && uint32(len(env.Payload)) > d.MaxPayloadSize {
		return fixedpoint.Zero, common.Hash{}, fmt.Errorf("%w: %d > %d", consensus.ErrPayloadTooLarge, len(env.Payload), d.MaxPayloadSize)
	}

	rawMetric, err := d.Verify(policy, env)
	if err != nil {
		return fixedpoint.Zero, common.Hash{}, fmt.Errorf("%w: %v", consensus.ErrVerifyFailed, err)
	}
	psiRaw := d.PsiMap(rawMetric)
	nullifier := d.NullifierRule(env, context)
	return psiRaw, nullifier, nil
}

// TypeIDs returns the proof type ids currently registered, in ascending id
// order, reflecting any governance upgrades already applied.
func (r *Registry) TypeIDs() []params.ProofTypeID {
	tbl := r.tbl.Load()
	if tbl == nil {
		return nil
	}
	ids := make([]params.ProofTypeID, 0, len(*tbl))
	for id := range *tbl {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Cap returns the configured per-type cap for id, used by the scorer.
func (r *Registry) Cap(id params.ProofTypeID) (fixedpoint.Fixed, bool) {
	d := r.descriptor(id)
	if d == nil {
		return fixedpoint.Zero, false
	}
	return d.Cap, true
}
