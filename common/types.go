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

// Package common holds the small value types shared across the consensus core:
// fixed-size digests and addresses, with the hex helpers callers expect.
package common

import (
	"encoding/hex"
	"fmt"
)

// HashLength is the number of bytes in a digest used throughout the consensus
// core (header hashes, nullifiers, policy roots, proof-bag roots).
const HashLength = 32

// AddressLength is the number of bytes in a producer/miner address.
const AddressLength = 20

// Hash is a 32-byte digest.
type Hash [HashLength]byte

// Address is a 20-byte account identifier.
type Address [AddressLength]byte

// BytesToHash right-aligns b into a Hash, truncating from the left if b is
// longer than HashLength.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// BytesToAddress right-aligns b into an Address.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// Bytes returns a copy of the hash contents.
func (h Hash) Bytes() []byte { return h[:] }

// Bytes returns a copy of the address contents.
func (a Address) Bytes() []byte { return a[:] }

// IsZero reports whether h is the all-zero digest.
func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// Hex is an explicit alias of String.
func (h Hash) Hex() string { return h.String() }

// Hex is an explicit alias of String.
func (a Address) Hex() string { return a.String() }

// HexToHash parses a 0x-prefixed or bare hex string into a Hash.
func HexToHash(s string) Hash {
	return BytesToHash(fromHex(s))
}

// HexToAddress parses a 0x-prefixed or bare hex string into an Address.
func HexToAddress(s string) Address {
	return BytesToAddress(fromHex(s))
}

func fromHex(s string) []byte {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

// Less implements a bytewise comparison, used by the fork-choice tie-break.
func (h Hash) Less(o Hash) bool {
	for i := range h {
		if h[i] != o[i] {
			return h[i] < o[i]
		}
	}
	return false
}

// Cmp returns -1, 0 or 1 comparing h and o bytewise.
func (h Hash) Cmp(o Hash) int {
	for i := range h {
		if h[i] != o[i] {
			if h[i] < o[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

var _ fmt.Stringer = Hash{}
var _ fmt.Stringer = Address{}
