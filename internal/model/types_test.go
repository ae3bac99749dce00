package model

import (
	"encoding/json"
	"math"
	"testing"
)

func TestJobStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusFailed, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusPending, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusPending, false},
		{StatusFailed, StatusCompleted, false},
		{JobStatus("bogus"), StatusCompleted, false},
		{StatusPending, JobStatus("bogus"), false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	if StatusPending.Terminal() || StatusInProgress.Terminal() {
		t.Error("pending/in_progress must not be terminal")
	}
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Error("completed/failed must be terminal")
	}
}

func TestPosition_Recompute(t *testing.T) {
	p := Position{Symbol: "AAPL", Quantity: 10, AverageCost: 100, CurrentPrice: 150}
	p.Recompute()

	if got := p.Value; got != 1500 {
		t.Errorf("Value = %v, want 1500", got)
	}
	if got := p.Gain; got != 500 {
		t.Errorf("Gain = %v, want 500", got)
	}
	if got := p.GainPercent; got != 50 {
		t.Errorf("GainPercent = %v, want 50", got)
	}
}

func TestPosition_Recompute_ZeroCostBasis(t *testing.T) {
	p := Position{Symbol: "FREE", Quantity: 5, AverageCost: 0, CurrentPrice: 10}
	p.Recompute()

	if math.IsNaN(p.GainPercent) || math.IsInf(p.GainPercent, 0) {
		t.Fatalf("GainPercent = %v, want finite fallback", p.GainPercent)
	}
	if p.GainPercent != 0 {
		t.Errorf("GainPercent = %v, want 0", p.GainPercent)
	}
	if p.Value != 50 || p.Gain != 50 {
		t.Errorf("Value/Gain = %v/%v, want 50/50", p.Value, p.Gain)
	}
}

func TestPortfolio_Recompute(t *testing.T) {
	pf := Portfolio{
		ID:   "pf-1",
		Name: "Core",
		Positions: map[string]Position{
			"AAPL": {Symbol: "AAPL", Quantity: 10, AverageCost: 100, CurrentPrice: 150},
			"MSFT": {Symbol: "MSFT", Quantity: 2, AverageCost: 300, CurrentPrice: 250},
		},
	}
	pf.Recompute()

	if got := pf.TotalValue; got != 2000 {
		t.Errorf("TotalValue = %v, want 2000", got)
	}
	if got := pf.TotalCost; got != 1600 {
		t.Errorf("TotalCost = %v, want 1600", got)
	}
	if got := pf.TotalGain; got != 400 {
		t.Errorf("TotalGain = %v, want 400", got)
	}
	if got := pf.TotalGainPercent; got != 25 {
		t.Errorf("TotalGainPercent = %v, want 25", got)
	}

	// Per-position derived fields refreshed too.
	if got := pf.Positions["MSFT"].Gain; got != -100 {
		t.Errorf("MSFT Gain = %v, want -100", got)
	}
}

func TestMetricValue_UnmarshalScalar(t *testing.T) {
	var m MetricValue
	if err := json.Unmarshal([]byte(`28.4`), &m); err != nil {
		t.Fatalf("unmarshal scalar: %v", err)
	}
	if m.Value() != 28.4 {
		t.Errorf("Value = %v, want 28.4", m.Value())
	}
	if m.Annotated() {
		t.Error("scalar metric reported as annotated")
	}
	if got := m.Formatted(); got != "28.4" {
		t.Errorf("Formatted = %q, want %q", got, "28.4")
	}
}

func TestMetricValue_UnmarshalAnnotated(t *testing.T) {
	var m MetricValue
	data := []byte(`{"value": 28.4, "unit": "x", "formatted": "28.4x", "description": "trailing P/E"}`)
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal annotated: %v", err)
	}
	if m.Value() != 28.4 {
		t.Errorf("Value = %v, want 28.4", m.Value())
	}
	if !m.Annotated() {
		t.Error("annotated metric reported as scalar")
	}
	if got := m.Formatted(); got != "28.4x" {
		t.Errorf("Formatted = %q, want %q", got, "28.4x")
	}
	if got := m.Unit(); got != "x" {
		t.Errorf("Unit = %q, want %q", got, "x")
	}
}

func TestMetricValue_UnmarshalString(t *testing.T) {
	var m MetricValue
	if err := json.Unmarshal([]byte(`"1.5"`), &m); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if m.Value() != 1.5 {
		t.Errorf("Value = %v, want 1.5", m.Value())
	}
}

func TestMetricValue_MarshalRoundTrip(t *testing.T) {
	scalar := NewMetric(3.5)
	data, err := json.Marshal(scalar)
	if err != nil {
		t.Fatalf("marshal scalar: %v", err)
	}
	if string(data) != "3.5" {
		t.Errorf("scalar marshals to %s, want 3.5", data)
	}

	ann := NewAnnotatedMetric(3.5, "%", "3.5%", "dividend yield")
	data, err = json.Marshal(ann)
	if err != nil {
		t.Fatalf("marshal annotated: %v", err)
	}
	var back MetricValue
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal round trip: %v", err)
	}
	if !back.Annotated() || back.Value() != 3.5 || back.Formatted() != "3.5%" {
		t.Errorf("round trip lost fields: %+v", back)
	}
}
