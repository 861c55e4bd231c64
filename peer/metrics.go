// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"reflect"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bitmark-inc/offlined/packet"
)

// Metrics - transport counters
type Metrics struct {
	packets            *prometheus.CounterVec
	dropped            *prometheus.CounterVec
	retries            prometheus.Counter
	handshakes         *prometheus.CounterVec
	reassemblyTimeouts prometheus.Counter
	sessions           prometheus.Gauge
}

// NewMetrics - create the transport collectors and register them if
// registerer is not nil
//
// a nil *prometheus.Registry held in the interface counts as nil
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "offline",
			Subsystem: "peer",
			Name:      "packets_total",
			Help:      "Packets written and read, by direction and packet type.",
		}, []string{"direction", "type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "offline",
			Subsystem: "peer",
			Name:      "packets_dropped_total",
			Help:      "Inbound packets discarded, by reason.",
		}, []string{"reason"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "offline",
			Subsystem: "peer",
			Name:      "write_retries_total",
			Help:      "Packet writes retried after a transport error.",
		}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "offline",
			Subsystem: "peer",
			Name:      "handshakes_total",
			Help:      "Completed handshakes, by role and result.",
		}, []string{"role", "result"}),
		reassemblyTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "offline",
			Subsystem: "peer",
			Name:      "reassembly_timeouts_total",
			Help:      "Partially received messages discarded after the reassembly timeout.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "offline",
			Subsystem: "peer",
			Name:      "sessions",
			Help:      "Sessions currently registered.",
		}),
	}
	if !isNilRegisterer(registerer) {
		registerer.MustRegister(m.packets, m.dropped, m.retries, m.handshakes, m.reassemblyTimeouts, m.sessions)
	}
	return m
}

func isNilRegisterer(registerer prometheus.Registerer) bool {
	if nil == registerer {
		return true
	}
	v := reflect.ValueOf(registerer)
	return reflect.Ptr == v.Kind() && v.IsNil()
}

func (m *Metrics) sent(kind packet.Type) {
	m.packets.WithLabelValues("out", kind.String()).Inc()
}

func (m *Metrics) received(kind packet.Type) {
	m.packets.WithLabelValues("in", kind.String()).Inc()
}

func (m *Metrics) drop(reason string) {
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) retry() {
	m.retries.Inc()
}

func (m *Metrics) handshake(role string, err error) {
	result := "ok"
	if nil != err {
		result = "failed"
	}
	m.handshakes.WithLabelValues(role, result).Inc()
}

func (m *Metrics) expired(n int) {
	if n > 0 {
		m.reassemblyTimeouts.Add(float64(n))
	}
}
