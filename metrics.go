// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ptlrpc

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Call outcomes used as the "outcome" metric label.
const (
	outcomeOK        = "ok"
	outcomeError     = "error"
	outcomePrevented = "prevented"
	outcomeCanceled  = "canceled"
)

type metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}
	m := &metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ptlrpc",
				Subsystem: "client",
				Name:      "calls_total",
				Help:      "Total number of API calls by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ptlrpc",
				Subsystem: "client",
				Name:      "call_duration_seconds",
				Help:      "Duration of API calls from issue to settlement",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"outcome"},
		),
	}
	// Clients sharing a registry share the collectors.
	if err := reg.Register(m.calls); err != nil {
		existing, err := alreadyRegistered(err)
		if err != nil {
			return nil, err
		}
		m.calls = existing.(*prometheus.CounterVec)
	}
	if err := reg.Register(m.duration); err != nil {
		existing, err := alreadyRegistered(err)
		if err != nil {
			return nil, err
		}
		m.duration = existing.(*prometheus.HistogramVec)
	}
	return m, nil
}

func alreadyRegistered(err error) (prometheus.Collector, error) {
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		return are.ExistingCollector, nil
	}
	return nil, err
}

func (m *metrics) observe(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
