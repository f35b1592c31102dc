package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vmemd/internal/retention"
	"github.com/fyrsmithlabs/vmemd/pkg/client"
)

func newTestMetrics(reader *metric.ManualReader) *Metrics {
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := &Metrics{
		meter:  mp.Meter(instrumentationName),
		logger: zap.NewNop(),
	}
	m.init()
	return m
}

func TestMetrics_RecordInvocation(t *testing.T) {
	reader := metric.NewManualReader()
	m := newTestMetrics(reader)
	ctx := context.Background()

	m.RecordInvocation(ctx, "memory_save", 100*time.Millisecond, nil)
	m.RecordInvocation(ctx, "memory_save", 50*time.Millisecond, errors.New("text is required"))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected scope metrics, got none")
	}

	foundInvocations := false
	foundDuration := false
	foundErrors := false

	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch md.Name {
			case "vmemd.mcp.tool.invocations_total":
				foundInvocations = true
				if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
					total := int64(0)
					for _, dp := range sum.DataPoints {
						total += dp.Value
					}
					if total != 2 {
						t.Errorf("expected 2 invocations, got %d", total)
					}
				}
			case "vmemd.mcp.tool.duration_seconds":
				foundDuration = true
			case "vmemd.mcp.tool.errors_total":
				foundErrors = true
				if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
					total := int64(0)
					for _, dp := range sum.DataPoints {
						total += dp.Value
					}
					if total != 1 {
						t.Errorf("expected 1 error, got %d", total)
					}
				}
			}
		}
	}

	if !foundInvocations {
		t.Error("invocations counter not found")
	}
	if !foundDuration {
		t.Error("duration histogram not found")
	}
	if !foundErrors {
		t.Error("errors counter not found")
	}
}

func TestMetrics_ActiveRequests(t *testing.T) {
	reader := metric.NewManualReader()
	m := newTestMetrics(reader)
	ctx := context.Background()

	m.IncrementActive(ctx, "memory_query")
	m.IncrementActive(ctx, "memory_query")
	m.DecrementActive(ctx, "memory_query")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name == "vmemd.mcp.tool.active_requests" {
				if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
					total := int64(0)
					for _, dp := range sum.DataPoints {
						total += dp.Value
					}
					if total != 1 {
						t.Errorf("expected 1 active request, got %d", total)
					}
				}
				return
			}
		}
	}
	t.Error("active_requests metric not found")
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, ""},
		{"wrapped unauthorized sentinel", fmt.Errorf("memory save failed: %w", client.ErrUnauthorized), "auth_error"},
		{"wrapped remote unavailable sentinel", fmt.Errorf("compact list failed: %w", retention.ErrRemoteUnavailable), "remote_unavailable"},
		{"wrapped not found sentinel", fmt.Errorf("compact save failed: %w", retention.ErrNotFound), "not_found"},
		{"no entries matches not found", retention.ErrNoEntries, "not_found"},
		{"wrapped empty text sentinel", fmt.Errorf("compact save failed: %w", retention.ErrEmptyText), "validation_error"},
		{"missing field", errors.New("query is required"), "validation_error"},
		{"invalid input", errors.New("invalid request body"), "validation_error"},
		{"deadline", errors.New("context deadline exceeded"), "timeout"},
		{"redaction failure", errors.New("secret redaction failed: bad allowlist"), "redaction_error"},
		{"generic error", errors.New("something went wrong"), "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := categorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("categorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}
