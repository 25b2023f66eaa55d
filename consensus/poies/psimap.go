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

import "github.com/animica-chain/go-animica/fixedpoint"

// LinearPsiMap builds a piecewise-linear ψ mapping with an explicit
// zero-point and saturation:
// ψ(raw) = 0 for raw <= zeroPoint, scales linearly up to cap at
// raw == saturationPoint, and saturates at cap beyond that.
func LinearPsiMap(zeroPoint, saturationPoint, cap fixedpoint.Fixed) PsiMapFunc {
	span, err := saturationPoint.Sub(zeroPoint)
	if err != nil || span.IsZero() {
		// Degenerate policy: treat as a step function at zeroPoint.
		return func(raw fixedpoint.Fixed) fixedpoint.Fixed {
			if raw.Cmp(zeroPoint) <= 0 {
				return fixedpoint.Zero
			}
			return cap
		}
	}
	return func(raw fixedpoint.Fixed) fixedpoint.Fixed {
		if raw.Cmp(zeroPoint) <= 0 {
			return fixedpoint.Zero
		}
		excess, err := raw.Sub(zeroPoint)
		if err != nil {
			return fixedpoint.Zero
		}
		psi := excess.Div(span).Mul(cap)
		return psi.Min(cap)
	}
}

// LogarithmicPsiMap builds ψ(raw) = ln(1+raw/scale) clamped at cap — a
// logarithmic curve through the origin with diminishing returns on raw
// magnitude. scale controls how quickly ψ approaches saturation.
func LogarithmicPsiMap(scale, cap fixedpoint.Fixed) PsiMapFunc {
	return func(raw fixedpoint.Fixed) fixedpoint.Fixed {
		if raw.IsZero() || scale.IsZero() {
			return fixedpoint.Zero
		}
		ratio := raw.Div(scale)
		denom := fixedpoint.One.Add(ratio)
		u := fixedpoint.One.Div(denom) // in (0,1]
		negLn, err := fixedpoint.NegLn(u)
		if err != nil {
			return fixedpoint.Zero
		}
		// ln(1+x) is unbounded, so clamp at cap, which is the authoritative
		// bound the scorer enforces regardless of this mapping's shape.
		return negLn.Min(cap)
	}
}
