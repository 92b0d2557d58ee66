// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-dpos
//
// go-dpos is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-dpos is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-dpos.  If not, see <https://www.gnu.org/licenses/>.

package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type processorMetrics struct {
	results  *prometheus.CounterVec
	duration prometheus.Histogram
}

func makeProcessorMetrics(reg prometheus.Registerer) *processorMetrics {
	f := promauto.With(reg)
	return &processorMetrics{
		results: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dpos_pipeline_blocks_total",
			Help: "Blocks processed by the pipeline by result",
		}, []string{"result"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dpos_pipeline_process_seconds",
			Help:    "Time spent processing one block",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
}

func (m *processorMetrics) observe(res Result, d time.Duration) {
	m.results.WithLabelValues(res.String()).Inc()
	m.duration.Observe(d.Seconds())
}
