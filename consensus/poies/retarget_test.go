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

	"github.com/animica-chain/go-animica/fixedpoint"
	"github.com/animica-chain/go-animica/params"
)

func testRetargetParams() params.RetargetParams {
	return params.RetargetParams{
		TargetGapSeconds: 10,
		Alpha:            fixedpoint.MustParseDecimal("0.2"),
		WindowBlocks:     5,
		ClampFactor:      fixedpoint.MustParseDecimal("4"),
		ThetaMin:         fixedpoint.MustParseDecimal("0.1"),
		ThetaMax:         fixedpoint.MustParseDecimal("10"),
		MaxGapSeconds:    60,
	}
}

func TestRetarget_ObserveGapSeedsEMA(t *testing.T) {
	c := NewRetargetController(testRetargetParams())
	state := ThetaState{Theta: fixedpoint.One}
	next := c.ObserveGap(state, 1, 10)
	require.Equal(t, 0, next.EMAInterval.Cmp(fixedpoint.FromUint64(10)))
	require.Equal(t, []uint64{10}, next.WindowObservations)
}

func TestRetarget_ObserveGapClampsToMax(t *testing.T) {
	c := NewRetargetController(testRetargetParams())
	state := ThetaState{Theta: fixedpoint.One}
	next := c.ObserveGap(state, 1, 1000)
	require.Equal(t, 0, next.EMAInterval.Cmp(fixedpoint.FromUint64(60)))
}

func TestRetarget_EMAFoldsTowardObservedGap(t *testing.T) {
	c := NewRetargetController(testRetargetParams())
	state := ThetaState{Theta: fixedpoint.One, EMAInterval: fixedpoint.FromUint64(10)}
	// One slow block (gap=20) should nudge the EMA up, not replace it.
	next := c.ObserveGap(state, 2, 20)
	require.True(t, next.EMAInterval.Cmp(fixedpoint.FromUint64(10)) > 0)
	require.True(t, next.EMAInterval.Cmp(fixedpoint.FromUint64(20)) < 0)
}

func TestRetarget_WindowObservationsBounded(t *testing.T) {
	c := NewRetargetController(testRetargetParams())
	state := ThetaState{Theta: fixedpoint.One}
	for i := uint64(1); i <= 8; i++ {
		state = c.ObserveGap(state, i, 10)
	}
	require.Len(t, state.WindowObservations, 5)
}

func TestRetarget_DueForRetarget(t *testing.T) {
	c := NewRetargetController(testRetargetParams())
	state := ThetaState{LastRetargetHeight: 0}
	require.False(t, c.DueForRetarget(state, 4))
	require.True(t, c.DueForRetarget(state, 5))
	require.True(t, c.DueForRetarget(state, 9))
}

func TestRetarget_FasterBlocksLowerTheta(t *testing.T) {
	c := NewRetargetController(testRetargetParams())
	// EMA below target gap -> ratio ema/target < 1 -> Θ is scaled down by
	// that ratio.
	state := ThetaState{Theta: fixedpoint.One, EMAInterval: fixedpoint.FromUint64(5), LastRetargetHeight: 0}
	next := c.Retarget(state, 5)
	require.True(t, next.Theta.Cmp(fixedpoint.One) < 0)
	require.Equal(t, uint64(5), next.LastRetargetHeight)
}

func TestRetarget_SlowerBlocksRaiseTheta(t *testing.T) {
	c := NewRetargetController(testRetargetParams())
	state := ThetaState{Theta: fixedpoint.One, EMAInterval: fixedpoint.FromUint64(20), LastRetargetHeight: 0}
	next := c.Retarget(state, 5)
	require.True(t, next.Theta.Cmp(fixedpoint.One) > 0)
}

func TestRetarget_RatioClampedByClampFactor(t *testing.T) {
	c := NewRetargetController(testRetargetParams())
	// EMA wildly above target (100x) should still only move Θ by up to
	// clamp_factor (4x), not 100x.
	state := ThetaState{Theta: fixedpoint.One, EMAInterval: fixedpoint.FromUint64(1000), LastRetargetHeight: 0}
	next := c.Retarget(state, 5)
	require.Equal(t, 0, next.Theta.Cmp(fixedpoint.MustParseDecimal("4")))
}

func TestRetarget_ThetaClampedToBounds(t *testing.T) {
	p := testRetargetParams()
	p.ThetaMax = fixedpoint.MustParseDecimal("2")
	c := NewRetargetController(p)
	state := ThetaState{Theta: fixedpoint.One, EMAInterval: fixedpoint.FromUint64(1000), LastRetargetHeight: 0}
	next := c.Retarget(state, 5)
	require.Equal(t, 0, next.Theta.Cmp(p.ThetaMax))
}

func TestRetarget_AdvanceOnlyRetargetsAtBoundary(t *testing.T) {
	c := NewRetargetController(testRetargetParams())
	state := ThetaState{Theta: fixedpoint.One}
	for h := uint64(1); h < 5; h++ {
		state = c.Advance(state, h, 5)
		require.Equal(t, uint64(0), state.LastRetargetHeight, "no retarget before window boundary")
	}
	state = c.Advance(state, 5, 5)
	require.Equal(t, uint64(5), state.LastRetargetHeight)
}
