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

package params

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testPolicyTOML = `
skew_bound_seconds = 15
genesis_hash = "0x0000000000000000000000000000000000000000000000000000000000aa"

[scoring]
gamma = "1.0"
diversity_threshold = 2
escort_bonus = "0.1"

[scoring.proof_types.HashShare]
cap = "1.0"
max_payload_size = 256
nullifier_ttl = 65536

[scoring.proof_types.AI]
cap = "0.5"
max_payload_size = 65536
nullifier_ttl = 65536

[retarget]
target_gap_seconds = 12
alpha = "0.125"
window_blocks = 2016
clamp_factor = "4"
theta_min = "0.1"
theta_max = "10.0"
max_gap_seconds = 3600

[beacon]
commit_window_blocks = 10
reveal_window_blocks = 10
vdf_timeout_seconds = 30
output_validity_blocks = 64

[fork_choice]
max_reorg_depth = 64

[roots]
alg_policy_root = "0x01"
zk_vk_set_root = "0x02"
retarget_params_root = "0x03"
proof_registry_root = "0x04"
`

func TestDecodePolicy(t *testing.T) {
	cfg, err := DecodePolicy(strings.NewReader(testPolicyTOML))
	require.NoError(t, err)

	require.Equal(t, uint64(15), cfg.SkewBound)
	require.Equal(t, "1.000000000", cfg.Scoring.Gamma.String())
	require.Equal(t, 2, cfg.Scoring.DiversityThreshold)
	require.Equal(t, "0.100000000", cfg.Scoring.EscortBonus.String())

	hashShare, ok := cfg.Scoring.ProofTypes[ProofTypeHashShare]
	require.True(t, ok)
	require.Equal(t, "1.000000000", hashShare.Cap.String())
	require.Equal(t, uint32(256), hashShare.MaxPayloadSize)

	ai, ok := cfg.Scoring.ProofTypes[ProofTypeAI]
	require.True(t, ok)
	require.Equal(t, "0.500000000", ai.Cap.String())

	require.Equal(t, uint64(12), cfg.Retarget.TargetGapSeconds)
	require.Equal(t, uint64(2016), cfg.Retarget.WindowBlocks)
	require.Equal(t, uint64(64), cfg.Beacon.OutputValidityBlocks)
	require.Equal(t, uint64(64), cfg.ForkChoice.MaxReorgDepth)
}

func TestDecodePolicyRejectsAlphaOutOfRange(t *testing.T) {
	bad := strings.Replace(testPolicyTOML, `alpha = "0.125"`, `alpha = "1.5"`, 1)
	_, err := DecodePolicy(strings.NewReader(bad))
	require.Error(t, err)
}

func TestDecodePolicyRejectsUnknownProofType(t *testing.T) {
	bad := strings.Replace(testPolicyTOML, "HashShare", "NotAType", 1)
	_, err := DecodePolicy(strings.NewReader(bad))
	require.Error(t, err)
}

func TestDecodePolicyValidatesBounds(t *testing.T) {
	bad := strings.Replace(testPolicyTOML, `theta_min = "0.1"`, `theta_min = "99"`, 1)
	_, err := DecodePolicy(strings.NewReader(bad))
	require.Error(t, err)
}
