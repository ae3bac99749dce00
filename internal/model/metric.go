package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MetricValue is one analysis metric from the backend. The wire shape is
// either a bare scalar ("pe_ratio": 28.4) or an annotated object
// ("pe_ratio": {"value": 28.4, "unit": "x", "formatted": "28.4x"}).
// Both decode into the same type; use the accessors instead of sniffing.
type MetricValue struct {
	raw         float64
	unit        string
	formatted   string
	description string
	annotated   bool
}

// NewMetric returns a scalar metric.
func NewMetric(value float64) MetricValue {
	return MetricValue{raw: value}
}

// NewAnnotatedMetric returns an annotated metric.
func NewAnnotatedMetric(value float64, unit, formatted, description string) MetricValue {
	return MetricValue{
		raw:         value,
		unit:        unit,
		formatted:   formatted,
		description: description,
		annotated:   true,
	}
}

// Value returns the numeric value regardless of wire shape.
func (m MetricValue) Value() float64 { return m.raw }

// Unit returns the unit string, empty for scalar metrics.
func (m MetricValue) Unit() string { return m.unit }

// Description returns the annotation description, empty for scalar metrics.
func (m MetricValue) Description() string { return m.description }

// Annotated reports whether the metric arrived as an annotated envelope.
func (m MetricValue) Annotated() bool { return m.annotated }

// Formatted returns the display string, falling back to rendering the scalar.
func (m MetricValue) Formatted() string {
	if m.formatted != "" {
		return m.formatted
	}
	s := strconv.FormatFloat(m.raw, 'f', -1, 64)
	if m.unit != "" {
		return s + m.unit
	}
	return s
}

// metricWire is the annotated wire shape.
type metricWire struct {
	Value       float64 `json:"value"`
	Unit        string  `json:"unit,omitempty"`
	Formatted   string  `json:"formatted,omitempty"`
	Description string  `json:"description,omitempty"`
}

// UnmarshalJSON accepts a bare number, a numeric string, or the annotated
// object shape.
func (m *MetricValue) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty metric value")
	}

	switch data[0] {
	case '{':
		var wire metricWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return fmt.Errorf("parse annotated metric: %w", err)
		}
		*m = MetricValue{
			raw:         wire.Value,
			unit:        wire.Unit,
			formatted:   wire.Formatted,
			description: wire.Description,
			annotated:   true,
		}
		return nil

	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("parse metric string: %w", err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parse metric string %q: %w", s, err)
		}
		*m = MetricValue{raw: v}
		return nil

	default:
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("parse metric number: %w", err)
		}
		*m = MetricValue{raw: v}
		return nil
	}
}

// MarshalJSON round-trips the original wire shape.
func (m MetricValue) MarshalJSON() ([]byte, error) {
	if !m.annotated {
		return json.Marshal(m.raw)
	}
	return json.Marshal(metricWire{
		Value:       m.raw,
		Unit:        m.unit,
		Formatted:   m.formatted,
		Description: m.description,
	})
}
