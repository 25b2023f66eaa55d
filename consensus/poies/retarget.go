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
	"github.com/animica-chain/go-animica/fixedpoint"
	"github.com/animica-chain/go-animica/params"
)

// RetargetController is the Θ difficulty controller: an EMA of the observed
// inter-block gap, retargeted onto Θ every WindowBlocks blocks with a clamp
// band bounding how far a single retarget step can move the ratio and the
// absolute Θ value. It holds no state of its own — every method takes and
// returns a ThetaState — so the validator can evaluate a tentative next
// state without mutating chain state ahead of acceptance.
type RetargetController struct {
	p params.RetargetParams
}

// NewRetargetController builds a controller from policy parameters.
func NewRetargetController(p params.RetargetParams) *RetargetController {
	return &RetargetController{p: p}
}

// ObserveGap clamps one observed inter-block timestamp gap to
// MaxGapSeconds and folds it into the EMA. It does not retarget Θ itself —
// that only happens at window boundaries, in Retarget. Returns the updated
// state; the caller's ThetaState is not mutated.
func (c *RetargetController) ObserveGap(prev ThetaState, height uint64, gapSeconds uint64) ThetaState {
	next := prev.Clone()

	clampedGap := gapSeconds
	if c.p.MaxGapSeconds > 0 && clampedGap > c.p.MaxGapSeconds {
		clampedGap = c.p.MaxGapSeconds
	}
	gap := fixedpoint.FromUint64(clampedGap)

	if next.EMAInterval.IsZero() {
		// First observation seeds the EMA directly, avoiding an artificial
		// bias toward zero from a cold start at genesis.
		next.EMAInterval = gap
	} else {
		// ema_new = alpha*gap + (1-alpha)*ema_old
		oneMinusAlpha, err := fixedpoint.One.Sub(c.p.Alpha)
		if err != nil {
			// params.Validate rejects alpha outside (0,1) at load time;
			// clamp rather than panic if a hand-built config slips past it.
			oneMinusAlpha = fixedpoint.Zero
		}
		next.EMAInterval = c.p.Alpha.Mul(gap).Add(oneMinusAlpha.Mul(next.EMAInterval))
	}

	next.WindowObservations = append(next.WindowObservations, clampedGap)
	if uint64(len(next.WindowObservations)) > c.p.WindowBlocks && c.p.WindowBlocks > 0 {
		next.WindowObservations = next.WindowObservations[uint64(len(next.WindowObservations))-c.p.WindowBlocks:]
	}
	return next
}

// DueForRetarget reports whether height is a retarget boundary:
// WindowBlocks blocks have elapsed since the last retarget.
func (c *RetargetController) DueForRetarget(state ThetaState, height uint64) bool {
	if c.p.WindowBlocks == 0 {
		return false
	}
	return height >= state.LastRetargetHeight+c.p.WindowBlocks
}

// Retarget computes the new Θ at a window boundary:
//
//  1. ratio = ema_interval / target_gap_seconds
//  2. ratio clamped to [1/clamp_factor, clamp_factor]
//  3. theta_new = theta * ratio, clamped to [theta_min, theta_max]
//
// It is the caller's responsibility to only invoke this when
// DueForRetarget reports true; Retarget itself does not check the height
// boundary so it can also be used to evaluate a tentative header's claimed
// Θ during validation.
func (c *RetargetController) Retarget(state ThetaState, height uint64) ThetaState {
	next := state.Clone()

	target := fixedpoint.FromUint64(c.p.TargetGapSeconds)
	ratio := next.EMAInterval.Div(target)

	lowerBound := fixedpoint.One.Div(c.p.ClampFactor)
	ratio = ratio.Max(lowerBound).Min(c.p.ClampFactor)

	newTheta := next.Theta.Mul(ratio)
	newTheta = newTheta.Max(c.p.ThetaMin).Min(c.p.ThetaMax)

	next.Theta = newTheta
	next.LastRetargetHeight = height
	return next
}

// Advance is the convenience the validator calls once per accepted block: it
// folds the observed gap into the EMA and, if height lands on a retarget
// boundary, applies the retarget step in the same pass.
func (c *RetargetController) Advance(prev ThetaState, height uint64, gapSeconds uint64) ThetaState {
	next := c.ObserveGap(prev, height, gapSeconds)
	if c.DueForRetarget(next, height) {
		next = c.Retarget(next, height)
	}
	return next
}
