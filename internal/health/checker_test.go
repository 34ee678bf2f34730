package health

import (
	"testing"
	"time"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("Status.String() = %q, want %q", got, tt.expected)
		}
	}
}

func TestResultChaining(t *testing.T) {
	result := Degraded("partial pair").
		WithDetail("token", true).
		WithDetail("user", false).
		WithLatency(10 * time.Millisecond)

	if result.Status != StatusDegraded {
		t.Errorf("Status = %v, want %v", result.Status, StatusDegraded)
	}
	if result.Message != "partial pair" {
		t.Errorf("Message = %q", result.Message)
	}
	if len(result.Details) != 2 {
		t.Errorf("expected 2 details, got %d", len(result.Details))
	}
	if result.Latency != 10*time.Millisecond {
		t.Errorf("Latency = %v", result.Latency)
	}
}

func TestConstructors(t *testing.T) {
	if Healthy("ok").Status != StatusHealthy {
		t.Error("Healthy() should set StatusHealthy")
	}
	if Unhealthy("down").Status != StatusUnhealthy {
		t.Error("Unhealthy() should set StatusUnhealthy")
	}
	if Healthy("ok").Details == nil {
		t.Error("Details should be initialized")
	}
}
