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

// Package metrics is the consensus core's telemetry surface: a thin, pinned
// wrapper over prometheus/client_golang, used the plain way its own docs
// recommend rather than reimplemented from scratch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every metric the consensus core exposes, under names
// that are part of the operational contract and must not drift.
type Registry struct {
	reg *prometheus.Registry

	BlocksAcceptedTotal prometheus.Counter
	BlocksRejectedTotal *prometheus.CounterVec
	NullifierReuseTotal prometheus.Counter
	ReorgDepthHistogram prometheus.Histogram
	RetargetRatioHist   prometheus.Histogram

	ThetaCurrent prometheus.Gauge
	HeadHeight   prometheus.Gauge

	EnvelopeVerifySeconds prometheus.Histogram
	ScorerSeconds         prometheus.Histogram
	RetargetSeconds       prometheus.Histogram
	BeaconVDFVerifySecs   prometheus.Histogram
	ForkChoiceSeconds     prometheus.Histogram
}

// New constructs and registers every metric against a fresh prometheus
// registry and returns the bundle; the prometheus registry itself is reached
// through Registerer and Gatherer for the CLI/server to expose over /metrics.
func New() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		reg: reg,
		BlocksAcceptedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blocks_accepted_total",
			Help: "Total number of blocks accepted by the validator pipeline.",
		}),
		BlocksRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blocks_rejected_total",
			Help: "Total number of blocks rejected, labeled by reason.",
		}, []string{"reason"}),
		NullifierReuseTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nullifier_reuse_total",
			Help: "Total number of NullifierReuse rejections.",
		}),
		ReorgDepthHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reorg_depth_histogram",
			Help:    "Depth of applied chain reorganizations.",
			Buckets: prometheus.LinearBuckets(0, 4, 17), // 0..64 in steps of 4
		}),
		RetargetRatioHist: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "retarget_ratio_histogram",
			Help:    "Clamped ema/target_gap ratio observed at each retarget boundary.",
			Buckets: prometheus.LinearBuckets(0.25, 0.25, 16),
		}),
		ThetaCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "theta_current",
			Help: "Current difficulty target Θ.",
		}),
		HeadHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "head_height",
			Help: "Height of the current canonical head.",
		}),
		EnvelopeVerifySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "poies_envelope_verify_seconds",
			Help:    "Proof envelope verification latency per block, covering all of the block's envelopes.",
			Buckets: prometheus.DefBuckets,
		}),
		ScorerSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "poies_scorer_seconds",
			Help:    "PoIES scoring latency per block.",
			Buckets: prometheus.DefBuckets,
		}),
		RetargetSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "poies_retarget_seconds",
			Help:    "Θ retarget computation latency.",
			Buckets: prometheus.DefBuckets,
		}),
		BeaconVDFVerifySecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "poies_beacon_vdf_verify_seconds",
			Help:    "Beacon VDF proof verification latency.",
			Buckets: prometheus.DefBuckets,
		}),
		ForkChoiceSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "poies_forkchoice_seconds",
			Help:    "Fork-choice head re-evaluation latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.BlocksAcceptedTotal, m.BlocksRejectedTotal, m.NullifierReuseTotal,
		m.ReorgDepthHistogram, m.RetargetRatioHist, m.ThetaCurrent, m.HeadHeight,
		m.EnvelopeVerifySeconds, m.ScorerSeconds, m.RetargetSeconds,
		m.BeaconVDFVerifySecs, m.ForkChoiceSeconds,
	)
	return m
}

// Registerer exposes the underlying prometheus registry, e.g. for an
// observability collaborator to mount a /metrics handler.
func (m *Registry) Registerer() prometheus.Registerer { return m.reg }

// Gatherer exposes the underlying prometheus registry for scraping.
func (m *Registry) Gatherer() prometheus.Gatherer { return m.reg }
