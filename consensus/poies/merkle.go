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

import "github.com/animica-chain/go-animica/common"

var domainMerkleNode = []byte("animica/proof-bag-node/v1")

// ProofBagRoot computes the proof-bag commitment: a Merkle root over the
// ordered envelope leaf hashes, with domain-separated internal nodes
// (distinct from the leaf domain tag) to block second-preimage leaf/node
// confusion attacks. An odd node at any level is promoted unchanged to the
// next level, the standard unbalanced-tree convention.
func ProofBagRoot(envelopes []*ProofEnvelope) (common.Hash, error) {
	if len(envelopes) == 0 {
		return common.Hash{}, nil
	}
	level := make([]common.Hash, len(envelopes))
	for i, e := range envelopes {
		leaf, err := EnvelopeLeafHash(e)
		if err != nil {
			return common.Hash{}, err
		}
		level[i] = leaf
	}
	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, keccak(domainMerkleNode, level[i].Bytes(), level[i+1].Bytes()))
		}
		level = next
	}
	return level[0], nil
}
