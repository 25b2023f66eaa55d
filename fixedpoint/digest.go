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

package fixedpoint

import (
	"errors"

	"github.com/holiman/uint256"
)

// ErrDomainZero is returned by NegLn when asked to evaluate ln(0).
var ErrDomainZero = errors.New("fixedpoint: ln domain error, u is zero")

// ErrDomainRange is returned by NegLn when u > 1.
var ErrDomainRange = errors.New("fixedpoint: ln domain error, u > 1")

// DeriveU maps a 256-bit digest deterministically to a rational u in (0,1].
// The pinned rule:
// take the most-significant 8 bytes of the digest as a big-endian integer,
// add one, and treat the result as the raw Q64.64 numerator over 2^64. This
// gives u 64 bits of resolution, matches the package's native fixed-point
// scale exactly (no further rounding step is needed), and guarantees u>0
// since the smallest possible raw value is 1.
func DeriveU(digest [32]byte) Fixed {
	var raw uint256.Int
	raw.SetBytes(digest[:8])
	raw.AddUint64(&raw, 1)
	return Fixed{u: raw}
}
