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

	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/fixedpoint"
	"github.com/animica-chain/go-animica/params"
)

// Domain tags separate the hash input spaces of headers, envelopes,
// nullifiers and the beacon output, so a digest computed for one role can
// never be replayed as another.
var (
	domainHeader    = []byte("animica/header/v1")
	domainEnvelope  = []byte("animica/envelope-leaf/v1")
	domainNullifier = []byte("animica/nullifier/v1")
	domainBeacon    = []byte("animica/beacon-output/v1")
	domainFallback  = []byte("animica/beacon-fallback/v1")
)

func keccak(parts ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	var out common.Hash
	copy(out[:], h.Sum(nil))
	return out
}

func putUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func putUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func putUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

// EncodeHeader produces the canonical, strictly-ordered, fixed-width
// big-endian header encoding. Field order here must match BlockHeader's
// declaration order.
func EncodeHeader(h *BlockHeader) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, h.ParentHash.Bytes()...)
	buf = putUint64(buf, h.Height)
	buf = putUint64(buf, h.Timestamp)
	buf = append(buf, h.Miner.Bytes()...)
	thetaRaw := h.Theta.Raw()
	thetaBytes := thetaRaw.Bytes32()
	buf = append(buf, thetaBytes[:]...)
	seedRaw := h.SeedU.Raw()
	seedBytes := seedRaw.Bytes32()
	buf = append(buf, seedBytes[:]...)
	buf = append(buf, h.ProofBagRoot.Bytes()...)
	buf = putUint64(buf, h.BeaconRound)
	buf = append(buf, h.StateRoot.Bytes()...)
	buf = append(buf, h.ReceiptsRoot.Bytes()...)
	buf = append(buf, h.DARoot.Bytes()...)
	buf = append(buf, h.PolicyRoots.AlgPolicyRoot.Bytes()...)
	buf = append(buf, h.PolicyRoots.ZKVKSetRoot.Bytes()...)
	buf = append(buf, h.PolicyRoots.RetargetParamsRoot.Bytes()...)
	buf = append(buf, h.PolicyRoots.ProofRegistryRoot.Bytes()...)
	buf = putUint64(buf, h.Nonce)
	return buf
}

// HeaderHash computes the domain-separated header hash over the canonical
// unsigned encoding.
func HeaderHash(h *BlockHeader) common.Hash {
	return keccak(domainHeader, EncodeHeader(h))
}

// EncodeEnvelope produces an envelope's canonical wire form.
func EncodeEnvelope(e *ProofEnvelope) ([]byte, error) {
	if len(e.Payload) > 1<<32-1 || len(e.NullifierInput) > 1<<16-1 {
		return nil, fmt.Errorf("poies: envelope field exceeds wire bound")
	}
	buf := make([]byte, 0, 64+len(e.Payload)+len(e.NullifierInput)+len(e.Metrics))
	buf = putUint16(buf, uint16(e.TypeID))
	buf = putUint32(buf, uint32(len(e.Payload)))
	buf = append(buf, e.Payload...)
	buf = append(buf, e.Producer.Bytes()...)
	buf = putUint16(buf, uint16(len(e.NullifierInput)))
	buf = append(buf, e.NullifierInput...)
	buf = putUint32(buf, uint32(len(e.Metrics)))
	buf = append(buf, e.Metrics...)
	return buf, nil
}

// headerEncodedSize is the fixed size of EncodeHeader's output: every field
// is fixed-width, so the unsigned encoding never varies.
const headerEncodedSize = 32 + 8 + 8 + 20 + 32 + 32 + 32 + 8 + 32 + 32 + 32 + 4*32 + 8

// EncodeHeaderSigned appends the miner's signature (length-prefixed) to the
// canonical unsigned encoding, producing the full wire form exchanged with
// the P2P layer. The header hash and the signed content remain EncodeHeader's
// unsigned bytes; the signature rides outside them.
func EncodeHeaderSigned(h *BlockHeader) ([]byte, error) {
	if len(h.Signature) > 1<<16-1 {
		return nil, fmt.Errorf("poies: header signature exceeds wire bound")
	}
	buf := EncodeHeader(h)
	buf = putUint16(buf, uint16(len(h.Signature)))
	buf = append(buf, h.Signature...)
	return buf, nil
}

// DecodeHeader parses the signed wire form produced by EncodeHeaderSigned,
// rejecting trailing bytes so relayed headers are byte-exact round-trips.
func DecodeHeader(b []byte) (*BlockHeader, error) {
	if len(b) < headerEncodedSize+2 {
		return nil, fmt.Errorf("poies: header too short (%d bytes)", len(b))
	}
	h := &BlockHeader{}
	off := 0
	take := func(n int) []byte {
		out := b[off : off+n]
		off += n
		return out
	}
	h.ParentHash = common.BytesToHash(take(32))
	h.Height = binary.BigEndian.Uint64(take(8))
	h.Timestamp = binary.BigEndian.Uint64(take(8))
	h.Miner = common.BytesToAddress(take(20))

	var thetaRaw, seedRaw uint256.Int
	thetaRaw.SetBytes(take(32))
	h.Theta = fixedpoint.FromRaw(thetaRaw)
	seedRaw.SetBytes(take(32))
	h.SeedU = fixedpoint.FromRaw(seedRaw)

	h.ProofBagRoot = common.BytesToHash(take(32))
	h.BeaconRound = binary.BigEndian.Uint64(take(8))
	h.StateRoot = common.BytesToHash(take(32))
	h.ReceiptsRoot = common.BytesToHash(take(32))
	h.DARoot = common.BytesToHash(take(32))
	h.PolicyRoots.AlgPolicyRoot = common.BytesToHash(take(32))
	h.PolicyRoots.ZKVKSetRoot = common.BytesToHash(take(32))
	h.PolicyRoots.RetargetParamsRoot = common.BytesToHash(take(32))
	h.PolicyRoots.ProofRegistryRoot = common.BytesToHash(take(32))
	h.Nonce = binary.BigEndian.Uint64(take(8))

	sigLen := int(binary.BigEndian.Uint16(take(2)))
	if len(b)-off != sigLen {
		return nil, fmt.Errorf("poies: header signature length mismatch")
	}
	h.Signature = append([]byte(nil), b[off:]...)
	return h, nil
}

// DecodeEnvelope parses one envelope from b's start, returning the number of
// bytes consumed so callers can walk a concatenated proof bag.
func DecodeEnvelope(b []byte) (*ProofEnvelope, int, error) {
	const fixedPrefix = 2 + 4 // type_id + payload_len
	if len(b) < fixedPrefix {
		return nil, 0, fmt.Errorf("poies: envelope truncated")
	}
	e := &ProofEnvelope{}
	off := 0
	e.TypeID = params.ProofTypeID(binary.BigEndian.Uint16(b[off:]))
	off += 2
	payloadLen := int(binary.BigEndian.Uint32(b[off:]))
	off += 4
	if len(b) < off+payloadLen+common.AddressLength+2 {
		return nil, 0, fmt.Errorf("poies: envelope payload truncated")
	}
	e.Payload = append([]byte(nil), b[off:off+payloadLen]...)
	off += payloadLen
	e.Producer = common.BytesToAddress(b[off : off+common.AddressLength])
	off += common.AddressLength
	nullLen := int(binary.BigEndian.Uint16(b[off:]))
	off += 2
	if len(b) < off+nullLen+4 {
		return nil, 0, fmt.Errorf("poies: envelope nullifier_input truncated")
	}
	e.NullifierInput = append([]byte(nil), b[off:off+nullLen]...)
	off += nullLen
	metricsLen := int(binary.BigEndian.Uint32(b[off:]))
	off += 4
	if len(b) < off+metricsLen {
		return nil, 0, fmt.Errorf("poies: envelope metrics truncated")
	}
	e.Metrics = append([]byte(nil), b[off:off+metricsLen]...)
	off += metricsLen
	return e, off, nil
}

// EncodeBlock frames a signed header together with its ordered proof bag:
// u32 header length, signed header bytes, u32 envelope count, then each
// envelope in its self-delimiting wire form.
func EncodeBlock(h *BlockHeader, envelopes []*ProofEnvelope) ([]byte, error) {
	hdr, err := EncodeHeaderSigned(h)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 4+len(hdr)+4)
	buf = putUint32(buf, uint32(len(hdr)))
	buf = append(buf, hdr...)
	buf = putUint32(buf, uint32(len(envelopes)))
	for _, e := range envelopes {
		enc, err := EncodeEnvelope(e)
		if err != nil {
			return nil, err
		}
		buf = append(buf, enc...)
	}
	return buf, nil
}

// DecodeBlock parses EncodeBlock's framing, rejecting trailing bytes.
func DecodeBlock(b []byte) (*BlockHeader, []*ProofEnvelope, error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("poies: block truncated")
	}
	hdrLen := int(binary.BigEndian.Uint32(b))
	off := 4
	if len(b) < off+hdrLen+4 {
		return nil, nil, fmt.Errorf("poies: block header truncated")
	}
	h, err := DecodeHeader(b[off : off+hdrLen])
	if err != nil {
		return nil, nil, err
	}
	off += hdrLen
	count := int(binary.BigEndian.Uint32(b[off:]))
	off += 4
	envelopes := make([]*ProofEnvelope, 0, count)
	for i := 0; i < count; i++ {
		e, n, err := DecodeEnvelope(b[off:])
		if err != nil {
			return nil, nil, fmt.Errorf("poies: envelope %d: %w", i, err)
		}
		envelopes = append(envelopes, e)
		off += n
	}
	if off != len(b) {
		return nil, nil, fmt.Errorf("poies: %d trailing bytes after block", len(b)-off)
	}
	return h, envelopes, nil
}

// DeriveSeedDigest computes the 256-bit digest the validator maps to the
// lottery value u, binding it to (parent_hash, miner, nonce, beacon_output).
// Exported so callers outside this package (a miner loop, the CLI's
// verify-header command) can reproduce the exact header.SeedU a candidate
// must carry.
func DeriveSeedDigest(parentHash common.Hash, miner common.Address, nonce uint64, beaconOutput common.Hash) common.Hash {
	return keccak(parentHash.Bytes(), miner.Bytes(), uint64Bytes(nonce), beaconOutput.Bytes())
}

// CommitmentHash derives the hash-commit a beacon participant publishes for
// a given preimage, using the same domain separation AddReveal checks
// reveals against. Exposed so transaction builders and diagnostic tooling
// outside this package can construct a valid commit without duplicating the
// domain tag.
func CommitmentHash(preimage []byte) common.Hash {
	return keccak(domainBeacon, preimage)
}

// EnvelopeLeafHash hashes one envelope for inclusion in the proof-bag Merkle
// tree, domain-separated from the header hash and from internal Merkle
// nodes (the node-hashing convention lives in merkle.go).
func EnvelopeLeafHash(e *ProofEnvelope) (common.Hash, error) {
	enc, err := EncodeEnvelope(e)
	if err != nil {
		return common.Hash{}, err
	}
	return keccak(domainEnvelope, enc), nil
}
