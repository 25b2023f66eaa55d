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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/animica-chain/go-animica/common"
	"github.com/animica-chain/go-animica/fixedpoint"
	"github.com/animica-chain/go-animica/params"
)

func fullTestHeader() *BlockHeader {
	return &BlockHeader{
		ParentHash:   common.HexToHash("0x11"),
		Height:       42,
		Timestamp:    1_700_000_000,
		Miner:        common.HexToAddress("0x22"),
		Theta:        fixedpoint.MustParseDecimal("1.25"),
		SeedU:        fixedpoint.MustParseDecimal("0.5"),
		ProofBagRoot: common.HexToHash("0x33"),
		BeaconRound:  7,
		StateRoot:    common.HexToHash("0x44"),
		ReceiptsRoot: common.HexToHash("0x55"),
		DARoot:       common.HexToHash("0x66"),
		PolicyRoots: params.PolicyRoots{
			AlgPolicyRoot:      common.HexToHash("0x77"),
			ZKVKSetRoot:        common.HexToHash("0x88"),
			RetargetParamsRoot: common.HexToHash("0x99"),
			ProofRegistryRoot:  common.HexToHash("0xaa"),
		},
		Nonce:     12345,
		Signature: []byte("pq-signature-bytes"),
	}
}

func TestHeaderWireRoundTrip(t *testing.T) {
	h := fullTestHeader()
	enc, err := EncodeHeaderSigned(h)
	require.NoError(t, err)
	require.Len(t, enc, headerEncodedSize+2+len(h.Signature))

	got, err := DecodeHeader(enc)
	require.NoError(t, err)
	require.Equal(t, h, got)

	reenc, err := EncodeHeaderSigned(got)
	require.NoError(t, err)
	require.Equal(t, enc, reenc)
}

func TestHeaderHashIgnoresSignature(t *testing.T) {
	a := fullTestHeader()
	b := fullTestHeader()
	b.Signature = []byte("different")
	require.Equal(t, HeaderHash(a), HeaderHash(b))

	b.Nonce++
	require.NotEqual(t, HeaderHash(a), HeaderHash(b))
}

func TestDecodeHeaderRejectsTruncation(t *testing.T) {
	enc, err := EncodeHeaderSigned(fullTestHeader())
	require.NoError(t, err)

	_, err = DecodeHeader(enc[:headerEncodedSize-1])
	require.Error(t, err)

	_, err = DecodeHeader(append(enc, 0x00))
	require.Error(t, err, "trailing bytes must be rejected")
}

func TestEnvelopeWireRoundTrip(t *testing.T) {
	e := &ProofEnvelope{
		TypeID:         params.ProofTypeAI,
		Payload:        []byte("model-inference-witness"),
		Producer:       common.HexToAddress("0x01"),
		NullifierInput: []byte("task-9000"),
		Metrics:        []byte{0, 0, 0, 0, 0, 0, 1, 0},
	}
	enc, err := EncodeEnvelope(e)
	require.NoError(t, err)

	got, n, err := DecodeEnvelope(enc)
	require.NoError(t, err)
	require.Equal(t, len(enc), n)
	require.Equal(t, e, got)
}

func TestDecodeEnvelopeRejectsTruncation(t *testing.T) {
	e := &ProofEnvelope{
		TypeID:   params.ProofTypeHashShare,
		Payload:  []byte("p"),
		Producer: common.HexToAddress("0x01"),
	}
	enc, err := EncodeEnvelope(e)
	require.NoError(t, err)
	for cut := 1; cut < len(enc); cut++ {
		_, _, decErr := DecodeEnvelope(enc[:cut])
		if decErr == nil {
			t.Fatalf("truncation at %d bytes must not decode", cut)
		}
	}
}

func TestBlockWireRoundTrip(t *testing.T) {
	h := fullTestHeader()
	envelopes := []*ProofEnvelope{
		{TypeID: params.ProofTypeHashShare, Payload: []byte("a"), Producer: common.HexToAddress("0x01"), NullifierInput: []byte("n1")},
		{TypeID: params.ProofTypeStorage, Payload: []byte("bb"), Producer: common.HexToAddress("0x02"), NullifierInput: []byte("n2"), Metrics: []byte("m")},
	}
	enc, err := EncodeBlock(h, envelopes)
	require.NoError(t, err)

	gotHeader, gotEnvelopes, err := DecodeBlock(enc)
	require.NoError(t, err)
	require.Equal(t, h, gotHeader)
	require.Equal(t, envelopes, gotEnvelopes)

	_, _, err = DecodeBlock(append(enc, 0xff))
	require.Error(t, err, "trailing bytes must be rejected")
}

func TestProofBagRootOrderSensitive(t *testing.T) {
	e1 := &ProofEnvelope{TypeID: params.ProofTypeHashShare, Payload: []byte("a"), NullifierInput: []byte("1")}
	e2 := &ProofEnvelope{TypeID: params.ProofTypeHashShare, Payload: []byte("b"), NullifierInput: []byte("2")}

	r12, err := ProofBagRoot([]*ProofEnvelope{e1, e2})
	require.NoError(t, err)
	r21, err := ProofBagRoot([]*ProofEnvelope{e2, e1})
	require.NoError(t, err)
	require.NotEqual(t, r12, r21, "the proof bag commits to envelope order")

	empty, err := ProofBagRoot(nil)
	require.NoError(t, err)
	require.True(t, empty.IsZero())
}
