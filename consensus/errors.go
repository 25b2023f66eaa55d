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

// Package consensus defines the narrow interfaces the PoIES consensus core
// consumes from and exposes to its collaborators (chain storage, execution,
// P2P, telemetry), plus the shared error taxonomy. The engine implementation
// itself lives in consensus/poies; this package only holds the contracts, so
// alternative engines can live in sibling packages against the same
// interfaces.
package consensus

import "errors"

// Structural errors.
var (
	ErrBadHeader        = errors.New("consensus: bad header")
	ErrBadEnvelope      = errors.New("consensus: bad proof envelope")
	ErrPayloadTooLarge  = errors.New("consensus: proof payload too large")
	ErrUnsupportedType  = errors.New("consensus: unsupported proof type")
)

// Policy errors.
var (
	ErrPolicyRootMismatch = errors.New("consensus: policy root mismatch")
	ErrThetaMismatch      = errors.New("consensus: theta mismatch")
	ErrBeaconNotFinalized = errors.New("consensus: beacon round not finalized")
	ErrStaleBeacon        = errors.New("consensus: stale beacon round")
)

// Cryptographic errors.
var (
	ErrBadSignature = errors.New("consensus: bad header signature")
	ErrVerifyFailed = errors.New("consensus: proof verification failed")
	ErrBadVDFProof  = errors.New("consensus: bad vdf proof")
)

// Anti-replay errors.
var (
	ErrNullifierReuse   = errors.New("consensus: nullifier reuse")
	ErrDuplicateInBlock = errors.New("consensus: duplicate nullifier in block")
)

// Scoring errors.
var (
	ErrScoreBelowTheta = errors.New("consensus: score below theta")
	ErrCapExceeded     = errors.New("consensus: per-type cap exceeded")
)

// Liveness errors.
var (
	ErrVerifyTimeout = errors.New("consensus: proof verification timeout")
	ErrDeepReorg     = errors.New("consensus: reorg exceeds max depth")
)

// System errors, surfaced by collaborators but part of the shared taxonomy
// so the validator can classify and count them uniformly.
var (
	ErrStateHookFailure = errors.New("consensus: state hook failure")
	ErrBeaconInternal   = errors.New("consensus: beacon internal error")
)
