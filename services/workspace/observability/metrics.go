// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the workspace
// service: merge outcomes, persistence saves, sandbox mounts, realtime
// connections, and AI round-trips.
//
// Metrics are exposed on /metrics. All operations are thread-safe via
// Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "devgrid"

// WorkspaceMetrics holds all Prometheus metrics for the workspace service.
// Initialize once at startup via InitMetrics.
type WorkspaceMetrics struct {
	// MergesTotal counts file merge outcomes.
	// Labels: outcome (inserted, replaced, concatenated, skipped, unchanged)
	MergesTotal *prometheus.CounterVec

	// SavesTotal counts persistence writes by operation and status.
	// Labels: op (create, update), status (success, error)
	SavesTotal *prometheus.CounterVec

	// SaveDurationSeconds measures the durable-store round-trip.
	// Labels: op (create, update)
	SaveDurationSeconds *prometheus.HistogramVec

	// MountsTotal counts sandbox mount passes by status.
	// Labels: status (success, error)
	MountsTotal *prometheus.CounterVec

	// ActiveConnections tracks open realtime connections per project.
	// Labels: project
	ActiveConnections *prometheus.GaugeVec

	// MessagesTotal counts room events by direction.
	// Labels: direction (incoming, outgoing)
	MessagesTotal *prometheus.CounterVec

	// AIRequestsTotal counts model round-trips by status.
	// Labels: status (success, error)
	AIRequestsTotal *prometheus.CounterVec

	// AIRequestDurationSeconds measures model round-trip latency.
	AIRequestDurationSeconds prometheus.Histogram
}

// DefaultMetrics is the singleton instance, set by InitMetrics.
var DefaultMetrics *WorkspaceMetrics

// InitMetrics creates and registers all workspace metrics against the
// default registry. Call once at startup; a second call panics on
// duplicate registration.
func InitMetrics() *WorkspaceMetrics {
	DefaultMetrics = &WorkspaceMetrics{
		MergesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "filetree",
				Name:      "merges_total",
				Help:      "Total file merge outcomes by kind",
			},
			[]string{"outcome"},
		),

		SavesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "syncer",
				Name:      "saves_total",
				Help:      "Total persistence writes by operation and status",
			},
			[]string{"op", "status"},
		),

		SaveDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "syncer",
				Name:      "save_duration_seconds",
				Help:      "Durable-store write latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"op"},
		),

		MountsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "syncer",
				Name:      "mounts_total",
				Help:      "Total sandbox mount passes by status",
			},
			[]string{"status"},
		),

		ActiveConnections: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "realtime",
				Name:      "active_connections",
				Help:      "Open realtime connections per project",
			},
			[]string{"project"},
		),

		MessagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "realtime",
				Name:      "messages_total",
				Help:      "Total room events by direction",
			},
			[]string{"direction"},
		),

		AIRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "ai",
				Name:      "requests_total",
				Help:      "Total model round-trips by status",
			},
			[]string{"status"},
		),

		AIRequestDurationSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "ai",
				Name:      "request_duration_seconds",
				Help:      "Model round-trip latency in seconds",
				Buckets:   []float64{0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
		),
	}

	return DefaultMetrics
}

// MergeOutcome labels a merge decision for MergesTotal.
type MergeOutcome string

const (
	OutcomeInserted     MergeOutcome = "inserted"
	OutcomeReplaced     MergeOutcome = "replaced"
	OutcomeConcatenated MergeOutcome = "concatenated"
	OutcomeSkipped      MergeOutcome = "skipped"
	OutcomeUnchanged    MergeOutcome = "unchanged"
)

// =============================================================================
// Recording Helpers
// =============================================================================

// Callers guard with the nil check themselves:
//
//	if m := observability.DefaultMetrics; m != nil {
//	    m.RecordMerge(observability.OutcomeInserted)
//	}

// RecordMerge records one merge decision.
func (m *WorkspaceMetrics) RecordMerge(outcome MergeOutcome) {
	m.MergesTotal.WithLabelValues(string(outcome)).Inc()
}

// RecordSave records one durable-store write and its latency.
func (m *WorkspaceMetrics) RecordSave(op string, success bool, seconds float64) {
	m.SavesTotal.WithLabelValues(op, statusLabel(success)).Inc()
	m.SaveDurationSeconds.WithLabelValues(op).Observe(seconds)
}

// RecordMount records one sandbox mount pass.
func (m *WorkspaceMetrics) RecordMount(success bool) {
	m.MountsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// ConnectionOpened tracks a realtime client joining a project room.
func (m *WorkspaceMetrics) ConnectionOpened(project string) {
	m.ActiveConnections.WithLabelValues(project).Inc()
}

// ConnectionClosed tracks a realtime client leaving a project room.
func (m *WorkspaceMetrics) ConnectionClosed(project string) {
	m.ActiveConnections.WithLabelValues(project).Dec()
}

// RecordMessage counts one room event. Direction is "incoming" for
// client-originated events and "outgoing" for server-originated ones.
func (m *WorkspaceMetrics) RecordMessage(direction string) {
	m.MessagesTotal.WithLabelValues(direction).Inc()
}

// RecordAIRequest records one model round-trip and its latency.
func (m *WorkspaceMetrics) RecordAIRequest(success bool, seconds float64) {
	m.AIRequestsTotal.WithLabelValues(statusLabel(success)).Inc()
	m.AIRequestDurationSeconds.Observe(seconds)
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
