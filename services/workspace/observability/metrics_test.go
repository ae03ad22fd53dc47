// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// newTestMetrics creates a WorkspaceMetrics instance backed by a private
// registry so tests never collide with the default registry.
func newTestMetrics(t *testing.T) *WorkspaceMetrics {
	t.Helper()

	reg := prometheus.NewRegistry()

	mergesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "filetree",
			Name:      "merges_total",
			Help:      "Total file merge outcomes by kind",
		},
		[]string{"outcome"},
	)

	savesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "syncer",
			Name:      "saves_total",
			Help:      "Total persistence writes by operation and status",
		},
		[]string{"op", "status"},
	)

	saveDurationSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "syncer",
			Name:      "save_duration_seconds",
			Help:      "Durable-store write latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		},
		[]string{"op"},
	)

	mountsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "syncer",
			Name:      "mounts_total",
			Help:      "Total sandbox mount passes by status",
		},
		[]string{"status"},
	)

	activeConnections := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "active_connections",
			Help:      "Open realtime connections per project",
		},
		[]string{"project"},
	)

	messagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "messages_total",
			Help:      "Total room events by direction",
		},
		[]string{"direction"},
	)

	aiRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ai",
			Name:      "requests_total",
			Help:      "Total model round-trips by status",
		},
		[]string{"status"},
	)

	aiRequestDurationSeconds := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "ai",
			Name:      "request_duration_seconds",
			Help:      "Model round-trip latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
	)

	reg.MustRegister(
		mergesTotal,
		savesTotal,
		saveDurationSeconds,
		mountsTotal,
		activeConnections,
		messagesTotal,
		aiRequestsTotal,
		aiRequestDurationSeconds,
	)

	return &WorkspaceMetrics{
		MergesTotal:              mergesTotal,
		SavesTotal:               savesTotal,
		SaveDurationSeconds:      saveDurationSeconds,
		MountsTotal:              mountsTotal,
		ActiveConnections:        activeConnections,
		MessagesTotal:            messagesTotal,
		AIRequestsTotal:          aiRequestsTotal,
		AIRequestDurationSeconds: aiRequestDurationSeconds,
	}
}

// Note: InitMetrics uses promauto which registers with the default Prometheus
// registry, so it can only run once per test binary.
var initMetricsTestOnce bool

func TestInitMetrics(t *testing.T) {
	if initMetricsTestOnce {
		t.Skip("InitMetrics can only be called once per test run (promauto restriction)")
	}
	initMetricsTestOnce = true

	result := InitMetrics()
	if result == nil {
		t.Fatal("InitMetrics() returned nil")
	}
	if DefaultMetrics != result {
		t.Error("DefaultMetrics should equal the returned value")
	}
	if result.MergesTotal == nil {
		t.Error("MergesTotal should not be nil")
	}
	if result.SavesTotal == nil {
		t.Error("SavesTotal should not be nil")
	}
	if result.SaveDurationSeconds == nil {
		t.Error("SaveDurationSeconds should not be nil")
	}
	if result.MountsTotal == nil {
		t.Error("MountsTotal should not be nil")
	}
	if result.ActiveConnections == nil {
		t.Error("ActiveConnections should not be nil")
	}
	if result.MessagesTotal == nil {
		t.Error("MessagesTotal should not be nil")
	}
	if result.AIRequestsTotal == nil {
		t.Error("AIRequestsTotal should not be nil")
	}
	if result.AIRequestDurationSeconds == nil {
		t.Error("AIRequestDurationSeconds should not be nil")
	}

	// Verify the recorders can be used without panicking.
	result.RecordMerge(OutcomeInserted)
	result.RecordSave("create", true, 0.01)
	result.RecordMount(false)
	result.ConnectionOpened("p1")
	result.ConnectionClosed("p1")
	result.RecordMessage("incoming")
	result.RecordAIRequest(true, 1.5)
}

func TestConstants(t *testing.T) {
	if metricsNamespace != "devgrid" {
		t.Errorf("metricsNamespace = %q, want %q", metricsNamespace, "devgrid")
	}
}

func TestMergeOutcomeConstants(t *testing.T) {
	tests := []struct {
		outcome MergeOutcome
		want    string
	}{
		{OutcomeInserted, "inserted"},
		{OutcomeReplaced, "replaced"},
		{OutcomeConcatenated, "concatenated"},
		{OutcomeSkipped, "skipped"},
		{OutcomeUnchanged, "unchanged"},
	}

	for _, tt := range tests {
		if string(tt.outcome) != tt.want {
			t.Errorf("MergeOutcome = %q, want %q", tt.outcome, tt.want)
		}
	}
}

func TestWorkspaceMetrics_RecordMerge(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordMerge(OutcomeInserted)
	m.RecordMerge(OutcomeInserted)
	m.RecordMerge(OutcomeConcatenated)

	insertedVal := testutil.ToFloat64(m.MergesTotal.WithLabelValues("inserted"))
	if insertedVal != 2 {
		t.Errorf("MergesTotal[inserted] = %f, want 2", insertedVal)
	}

	concatVal := testutil.ToFloat64(m.MergesTotal.WithLabelValues("concatenated"))
	if concatVal != 1 {
		t.Errorf("MergesTotal[concatenated] = %f, want 1", concatVal)
	}
}

func TestWorkspaceMetrics_RecordSave(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordSave("create", true, 0.02)
	m.RecordSave("update", true, 0.01)
	m.RecordSave("update", false, 0.5)

	createVal := testutil.ToFloat64(m.SavesTotal.WithLabelValues("create", "success"))
	if createVal != 1 {
		t.Errorf("SavesTotal[create,success] = %f, want 1", createVal)
	}

	errorVal := testutil.ToFloat64(m.SavesTotal.WithLabelValues("update", "error"))
	if errorVal != 1 {
		t.Errorf("SavesTotal[update,error] = %f, want 1", errorVal)
	}

	count := testutil.CollectAndCount(m.SaveDurationSeconds)
	if count == 0 {
		t.Error("Expected save duration observations to be collected")
	}
}

func TestWorkspaceMetrics_RecordMount(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordMount(true)
	m.RecordMount(true)
	m.RecordMount(false)

	successVal := testutil.ToFloat64(m.MountsTotal.WithLabelValues("success"))
	if successVal != 2 {
		t.Errorf("MountsTotal[success] = %f, want 2", successVal)
	}

	errorVal := testutil.ToFloat64(m.MountsTotal.WithLabelValues("error"))
	if errorVal != 1 {
		t.Errorf("MountsTotal[error] = %f, want 1", errorVal)
	}
}

func TestWorkspaceMetrics_ConnectionLifecycle(t *testing.T) {
	m := newTestMetrics(t)

	m.ConnectionOpened("p1")
	m.ConnectionOpened("p1")
	m.ConnectionOpened("p2")

	p1Val := testutil.ToFloat64(m.ActiveConnections.WithLabelValues("p1"))
	if p1Val != 2 {
		t.Errorf("ActiveConnections[p1] = %f, want 2", p1Val)
	}

	m.ConnectionClosed("p1")
	m.ConnectionClosed("p1")

	p1Val = testutil.ToFloat64(m.ActiveConnections.WithLabelValues("p1"))
	if p1Val != 0 {
		t.Errorf("ActiveConnections[p1] after closes = %f, want 0", p1Val)
	}

	p2Val := testutil.ToFloat64(m.ActiveConnections.WithLabelValues("p2"))
	if p2Val != 1 {
		t.Errorf("ActiveConnections[p2] = %f, want 1", p2Val)
	}
}

func TestWorkspaceMetrics_RecordMessage(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordMessage("incoming")
	m.RecordMessage("incoming")
	m.RecordMessage("outgoing")

	inVal := testutil.ToFloat64(m.MessagesTotal.WithLabelValues("incoming"))
	if inVal != 2 {
		t.Errorf("MessagesTotal[incoming] = %f, want 2", inVal)
	}

	outVal := testutil.ToFloat64(m.MessagesTotal.WithLabelValues("outgoing"))
	if outVal != 1 {
		t.Errorf("MessagesTotal[outgoing] = %f, want 1", outVal)
	}
}

func TestWorkspaceMetrics_RecordAIRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordAIRequest(true, 2.0)
	m.RecordAIRequest(false, 30.0)

	successVal := testutil.ToFloat64(m.AIRequestsTotal.WithLabelValues("success"))
	if successVal != 1 {
		t.Errorf("AIRequestsTotal[success] = %f, want 1", successVal)
	}

	errorVal := testutil.ToFloat64(m.AIRequestsTotal.WithLabelValues("error"))
	if errorVal != 1 {
		t.Errorf("AIRequestsTotal[error] = %f, want 1", errorVal)
	}

	count := testutil.CollectAndCount(m.AIRequestDurationSeconds)
	if count == 0 {
		t.Error("Expected AI request duration observations to be collected")
	}
}

func TestStatusLabel(t *testing.T) {
	if got := statusLabel(true); got != "success" {
		t.Errorf("statusLabel(true) = %q, want %q", got, "success")
	}
	if got := statusLabel(false); got != "error" {
		t.Errorf("statusLabel(false) = %q, want %q", got, "error")
	}
}
