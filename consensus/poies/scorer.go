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
	"fmt"

	"github.com/animica-chain/go-animica/consensus"
	"github.com/animica-chain/go-animica/fixedpoint"
	"github.com/animica-chain/go-animica/params"
)

// Scorer aggregates per-type ψ contributions into the final lottery score.
type Scorer struct {
	gamma              fixedpoint.Fixed
	diversityThreshold int
	escortBonus        fixedpoint.Fixed
	caps               map[params.ProofTypeID]fixedpoint.Fixed
}

// NewScorer builds a Scorer from policy parameters.
func NewScorer(p params.ScoringParams) *Scorer {
	caps := make(map[params.ProofTypeID]fixedpoint.Fixed, len(p.ProofTypes))
	for id, cfg := range p.ProofTypes {
		caps[id] = cfg.Cap
	}
	return &Scorer{
		gamma:              p.Gamma,
		diversityThreshold: p.DiversityThreshold,
		escortBonus:        p.EscortBonus,
		caps:               caps,
	}
}

// Score runs the scoring sequence: group, cap, escort, global-cap, compute
// S, compare to Θ.
func (s *Scorer) Score(contributions []TypeContribution, u fixedpoint.Fixed, theta fixedpoint.Fixed) (ScoreBreakdown, error) {
	// Step 1: group and sum raw ψ per type.
	rawByType := make(map[params.ProofTypeID]fixedpoint.Fixed)
	for _, c := range contributions {
		rawByType[c.TypeID] = rawByType[c.TypeID].Add(c.PsiRaw)
	}

	// Step 2: per-type cap.
	cappedByType := make(map[params.ProofTypeID]fixedpoint.Fixed, len(rawByType))
	sumCapped := fixedpoint.Zero
	nonZeroTypes := 0
	for typeID, raw := range rawByType {
		cap, known := s.caps[typeID]
		if !known {
			return ScoreBreakdown{}, fmt.Errorf("poies: scorer has no cap configured for type %s", typeID)
		}
		capped := raw.Min(cap)
		cappedByType[typeID] = capped
		sumCapped = sumCapped.Add(capped)
		if !capped.IsZero() {
			nonZeroTypes++
		}
	}

	// Step 3: diversity escort.
	escort := fixedpoint.Zero
	if nonZeroTypes >= s.diversityThreshold && s.diversityThreshold > 0 {
		escort = s.escortBonus
	}

	// Step 4: global Γ cap.
	psiTotal := sumCapped.Add(escort).Min(s.gamma)

	// Step 5: s_value = -ln(u) + psi_total.
	negLnU, err := fixedpoint.NegLn(u)
	if err != nil {
		return ScoreBreakdown{}, fmt.Errorf("poies: deriving -ln(u): %w", err)
	}
	sValue := negLnU.Add(psiTotal)

	// Step 6: accept iff s_value >= theta; a tie is accepted.
	accepted := sValue.GTE(theta)

	return ScoreBreakdown{
		PsiByType: cappedByType,
		PsiTotal:  psiTotal,
		SValue:    sValue,
		Accepted:  accepted,
	}, nil
}

// RequireAccepted is a convenience used by the validator: it scores and
// converts a rejection into the taxonomy's ErrScoreBelowTheta.
func (s *Scorer) RequireAccepted(contributions []TypeContribution, u, theta fixedpoint.Fixed) (ScoreBreakdown, error) {
	b, err := s.Score(contributions, u, theta)
	if err != nil {
		return b, err
	}
	if !b.Accepted {
		return b, fmt.Errorf("%w: s_value=%s theta=%s", consensus.ErrScoreBelowTheta, b.SValue, theta)
	}
	return b, nil
}
