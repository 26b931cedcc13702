package memory

import (
	"context"
	"testing"
	"time"

	tension "github.com/Moori-Sense/Backend/internal/tension/domain"
)

func TestAppendAndQueryWindow(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		err := store.Append(ctx, tension.Reading{
			LineID:       "L0",
			Timestamp:    base.Add(time.Duration(i) * time.Minute),
			TensionValue: float64(i),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := store.Query(ctx, "L0", base.Add(2*time.Minute), base.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 readings, got %d", len(got))
	}
	if got[0].TensionValue != 2 || got[3].TensionValue != 5 {
		t.Fatalf("window bounds wrong: first=%v last=%v", got[0].TensionValue, got[3].TensionValue)
	}
}

func TestQueryUnknownLine(t *testing.T) {
	store := NewStore()
	got, err := store.Query(context.Background(), "L9", time.Time{}, time.Now())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestAppendRejectsRegression(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Append(ctx, tension.Reading{LineID: "L0", Timestamp: base, TensionValue: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	err := store.Append(ctx, tension.Reading{LineID: "L0", Timestamp: base.Add(-time.Second), TensionValue: 1})
	if err == nil {
		t.Fatal("expected regression error")
	}
}

func TestQueryReturnsCopy(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := store.Append(ctx, tension.Reading{LineID: "L0", Timestamp: at, TensionValue: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}

	first, err := store.Query(ctx, "L0", at, at)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	first[0].TensionValue = 999

	second, err := store.Query(ctx, "L0", at, at)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if second[0].TensionValue != 1 {
		t.Fatal("query result aliases internal storage")
	}
}

func TestLastTimestamp(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if !store.LastTimestamp("L0").IsZero() {
		t.Fatal("expected zero timestamp for empty line")
	}
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := store.Append(ctx, tension.Reading{LineID: "L0", Timestamp: at, TensionValue: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if !store.LastTimestamp("L0").Equal(at) {
		t.Fatal("last timestamp mismatch")
	}
}
