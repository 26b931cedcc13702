package tension

import (
	"errors"
	"testing"
	"time"
)

func TestClassifyBands(t *testing.T) {
	classifier, err := NewClassifier(120, 0.9)
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}

	cases := []struct {
		name      string
		current   float64
		reference float64
		max       float64
		want      string
	}{
		{name: "at reference", current: 1.0, reference: 1.0, max: 2.0, want: StatusNormal},
		{name: "just below warning", current: 1.19, reference: 1.0, max: 2.0, want: StatusNormal},
		{name: "warning boundary", current: 1.2, reference: 1.0, max: 2.0, want: StatusWarning},
		{name: "above warning", current: 1.5, reference: 1.0, max: 2.0, want: StatusWarning},
		{name: "critical boundary", current: 1.8, reference: 1.0, max: 2.0, want: StatusCritical},
		{name: "above critical", current: 1.95, reference: 1.0, max: 2.0, want: StatusCritical},
		{name: "zero tension", current: 0, reference: 1.0, max: 2.0, want: StatusNormal},
		{name: "spring line warning", current: 0.85, reference: 0.7, max: 1.4, want: StatusWarning},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := classifier.Classify(tc.current, tc.reference, tc.max)
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestClassifyCriticalWinsOverWarning(t *testing.T) {
	// A reading can sit past both thresholds at once; the critical
	// band takes precedence.
	classifier, err := NewClassifier(120, 0.9)
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}
	got, err := classifier.Classify(1.9, 1.0, 2.0)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got != StatusCritical {
		t.Fatalf("expected CRITICAL, got %s", got)
	}
}

func TestClassifyRejectsNegativeReading(t *testing.T) {
	classifier, err := NewClassifier(120, 0.9)
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}
	if _, err := classifier.Classify(-0.1, 1.0, 2.0); !errors.Is(err, ErrInvalidReading) {
		t.Fatalf("expected ErrInvalidReading, got %v", err)
	}
}

func TestClassifyRejectsBadReference(t *testing.T) {
	classifier, err := NewClassifier(120, 0.9)
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}
	if _, err := classifier.Classify(1.0, 0, 2.0); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestNewClassifierValidation(t *testing.T) {
	if _, err := NewClassifier(0, 0.9); err == nil {
		t.Fatal("expected error for zero warning pct")
	}
	if _, err := NewClassifier(120, 0); err == nil {
		t.Fatal("expected error for zero critical ratio")
	}
	if _, err := NewClassifier(120, 1.1); err == nil {
		t.Fatal("expected error for ratio above 1")
	}
}

func TestLifespanDecay(t *testing.T) {
	decay := LifespanDecay{PctPerOverloadHour: 0.5}

	if d := decay.Decrement(StatusNormal, 1.0, 1.0, time.Hour); d != 0 {
		t.Fatalf("expected no decay at NORMAL, got %v", d)
	}

	// 50% over reference for one hour at 0.5 pct per overload-hour.
	d := decay.Decrement(StatusWarning, 1.5, 1.0, time.Hour)
	if d < 0.249 || d > 0.251 {
		t.Fatalf("expected decay near 0.25, got %v", d)
	}

	if got := ApplyDecay(0.1, 0.5); got != 0 {
		t.Fatalf("expected lifespan floor at 0, got %v", got)
	}
	if got := ApplyDecay(80, 0.25); got != 79.75 {
		t.Fatalf("expected 79.75, got %v", got)
	}
}
