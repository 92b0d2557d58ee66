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

package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/algorand/go-dpos/data/bookkeeping"
)

type ledgerMetrics struct {
	height             prometheus.Gauge
	blocksApplied      prometheus.Counter
	blocksReverted     prometheus.Counter
	transactionsTotal  prometheus.Counter
	transactionsByType *prometheus.CounterVec
}

func makeLedgerMetrics(reg prometheus.Registerer) *ledgerMetrics {
	f := promauto.With(reg)
	return &ledgerMetrics{
		height: f.NewGauge(prometheus.GaugeOpts{
			Name: "dpos_ledger_height",
			Help: "Height of the chain tip",
		}),
		blocksApplied: f.NewCounter(prometheus.CounterOpts{
			Name: "dpos_ledger_blocks_applied_total",
			Help: "Blocks applied to the ledger",
		}),
		blocksReverted: f.NewCounter(prometheus.CounterOpts{
			Name: "dpos_ledger_blocks_reverted_total",
			Help: "Blocks reverted from the ledger",
		}),
		transactionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "dpos_ledger_transactions_total",
			Help: "Transactions applied to the ledger",
		}),
		transactionsByType: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dpos_ledger_transactions_by_type_total",
			Help: "Transactions applied to the ledger by type",
		}, []string{"type"}),
	}
}

func (m *ledgerMetrics) observeTip(tip bookkeeping.Block) {
	m.height.Set(float64(tip.Height))
}

func (m *ledgerMetrics) applied(blk bookkeeping.Block) {
	m.height.Set(float64(blk.Height))
	m.blocksApplied.Inc()
	m.transactionsTotal.Add(float64(len(blk.Transactions)))
	for i := range blk.Transactions {
		m.transactionsByType.WithLabelValues(blk.Transactions[i].Type.String()).Inc()
	}
}

func (m *ledgerMetrics) reverted(tip bookkeeping.Block) {
	m.height.Set(float64(tip.Height))
	m.blocksReverted.Inc()
}
