// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/bitmark-inc/offlined/transaction"
)

// wallet and settlement gauges read on each gather
func registerNodeMetrics(n *node) {
	log := logger.New("metrics")

	n.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "offline",
		Subsystem: "wallet",
		Name:      "available_balance",
		Help:      "Sum of unspent unexpired tokens that are not reserved.",
	}, func() float64 {
		balance, err := n.wallet.Balance(time.Now())
		if nil != err {
			log.Errorf("balance error: %s", err)
			return 0
		}
		return float64(balance)
	}))

	n.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "offline",
		Subsystem: "transaction",
		Name:      "pending",
		Help:      "Transactions neither completed, failed nor cancelled.",
	}, func() float64 {
		txs, err := n.coordinator.Transactions(func(tx *transaction.Transaction) bool {
			return !tx.Status.IsTerminal()
		})
		if nil != err {
			log.Errorf("transactions error: %s", err)
			return 0
		}
		return float64(len(txs))
	}))

	if nil == n.queue {
		return
	}
	n.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "offline",
		Subsystem: "settlement",
		Name:      "queued_redemptions",
		Help:      "Redemptions waiting for the settlement service.",
	}, func() float64 {
		redemptions, _, err := n.queue.Pending()
		if nil != err {
			log.Errorf("pending error: %s", err)
			return 0
		}
		return float64(redemptions)
	}))
}

// writeMetrics - text exposition format of every family in the registry
func writeMetrics(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if nil != err {
		return err
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); nil != err {
			return err
		}
	}
	return nil
}

// periodically replaces the metrics file
type metricsWriter struct {
	log      *logger.L
	fileName string
	gatherer prometheus.Gatherer
	interval time.Duration
}

func newMetricsWriter(fileName string, gatherer prometheus.Gatherer, interval time.Duration) *metricsWriter {
	return &metricsWriter{
		log:      logger.New("metrics"),
		fileName: fileName,
		gatherer: gatherer,
		interval: interval,
	}
}

// Run - background.Process
func (m *metricsWriter) Run(args interface{}, shutdown <-chan struct{}) {
	m.log.Infof("writing: %q every: %s", m.fileName, m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-ticker.C:
			if err := m.write(); nil != err {
				m.log.Errorf("write: %q  error: %s", m.fileName, err)
			}
		}
	}
	if err := m.write(); nil != err {
		m.log.Errorf("final write: %q  error: %s", m.fileName, err)
	}
	m.log.Info("stopped")
}

// write to a temporary file and rename so readers never see a partial file
func (m *metricsWriter) write() error {
	var buffer bytes.Buffer
	if err := writeMetrics(&buffer, m.gatherer); nil != err {
		return err
	}
	temporary := m.fileName + ".new"
	if err := ioutil.WriteFile(temporary, buffer.Bytes(), 0644); nil != err {
		return err
	}
	if err := os.Rename(temporary, m.fileName); nil != err {
		os.Remove(temporary)
		return err
	}
	return nil
}
