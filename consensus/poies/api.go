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
	"context"

	"github.com/animica-chain/go-animica/common"
)

// API exposes PoIES consensus engine internals for RPC access: a thin
// struct wrapping the engine, returning plain maps/values rather than
// exported wire types so the RPC layer can marshal them directly.
type API struct {
	engine *Engine
}

// NewAPI wraps engine for RPC registration.
func NewAPI(engine *Engine) *API { return &API{engine: engine} }

// GetThetaState returns the current difficulty retarget state.
func (api *API) GetThetaState() map[string]interface{} {
	theta := api.engine.ThetaState()
	return map[string]interface{}{
		"theta":               theta.Theta.String(),
		"emaInterval":         theta.EMAInterval.String(),
		"lastRetargetHeight":  theta.LastRetargetHeight,
		"windowObservations":  theta.WindowObservations,
	}
}

// GetHead returns the current canonical fork-choice head hash.
func (api *API) GetHead() common.Hash {
	return api.engine.Head()
}

// GetCumulativeWeight returns the cumulative fork-choice weight recorded
// for a given header hash, if known.
func (api *API) GetCumulativeWeight(hash common.Hash) map[string]interface{} {
	weight, ok := api.engine.forkChoice.CumulativeWeight(hash)
	if !ok {
		return map[string]interface{}{"found": false}
	}
	return map[string]interface{}{
		"found":  true,
		"weight": weight.String(),
	}
}

// GetBeaconRound returns the current state of a randomness beacon round, if
// the engine has seen it.
func (api *API) GetBeaconRound(roundID uint64) map[string]interface{} {
	round, ok, err := (beaconRoundTable{e: api.engine}).RoundAt(context.Background(), roundID)
	if err != nil || !ok {
		return map[string]interface{}{"found": false}
	}
	return map[string]interface{}{
		"found":          true,
		"roundId":        round.RoundID,
		"phase":          round.Phase.String(),
		"commitDeadline": round.CommitDeadline,
		"revealDeadline": round.RevealDeadline,
		"commitCount":    len(round.Commits),
		"revealCount":    len(round.Reveals),
		"output":         round.Output.Hex(),
	}
}

// GetProofTypes lists the proof type IDs currently registered in the proof
// registry, reflecting any governance upgrades already applied.
func (api *API) GetProofTypes() []string {
	ids := api.engine.registry.TypeIDs()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
