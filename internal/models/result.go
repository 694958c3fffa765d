package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayout is the format the API uses for date_conducted.
const timestampLayout = "2006-01-02 15:04:05"

// Timestamp is a UTC point in time encoded as "YYYY-MM-DD HH:MM:SS".
// RFC 3339 input is accepted as well.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if v, err := time.ParseInLocation(timestampLayout, s, time.UTC); err == nil {
		t.Time = v
		return nil
	}
	v, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	t.Time = v.UTC()
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(timestampLayout))
}

// Band is a coarse bucket of classifier confidence.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// TestResult is a diagnostic test as returned by the API. The stored image
// and the generated report are never held in memory.
type TestResult struct {
	ID            int64     `json:"id" validate:"required"`
	PatientID     int64     `json:"patient_id" validate:"required"`
	Result        string    `json:"result" validate:"required"`
	Confidence    float64   `json:"confidence" validate:"gte=0,lte=1"`
	DateConducted Timestamp `json:"date_conducted"`

	// Predictions lists every class the classifier scored, when stored.
	Predictions []Prediction `json:"predictions,omitempty"`
	Comments    string       `json:"comments,omitempty"`
}

// Band buckets the confidence: high from 0.8, medium from 0.5.
func (t TestResult) Band() Band {
	switch {
	case t.Confidence >= 0.8:
		return BandHigh
	case t.Confidence >= 0.5:
		return BandMedium
	default:
		return BandLow
	}
}

// Prediction is one (label, confidence) pair of a classifier run.
type Prediction struct {
	Label      string
	Confidence float64
}

// UnmarshalJSON decodes the ["label", 0.93] pair form.
func (p *Prediction) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("prediction: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("prediction: want 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &p.Label); err != nil {
		return fmt.Errorf("prediction label: %w", err)
	}
	if err := json.Unmarshal(pair[1], &p.Confidence); err != nil {
		return fmt.Errorf("prediction confidence: %w", err)
	}
	return nil
}

// MarshalJSON encodes the prediction as a two-element array.
func (p Prediction) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Label, p.Confidence})
}

// TestSubmitted is returned by POST /api/tests.
type TestSubmitted struct {
	Message        string       `json:"message"`
	PatientID      int64        `json:"patient_id"`
	TestID         int64        `json:"test_id" validate:"required"`
	Result         string       `json:"result"`
	Confidence     float64      `json:"confidence"`
	AllPredictions []Prediction `json:"all_predictions"`
}
