package lines

import (
	"errors"
	"testing"
)

func TestDefaultRoster(t *testing.T) {
	roster := DefaultRoster()
	if len(roster) != 8 {
		t.Fatalf("expected 8 lines, got %d", len(roster))
	}
	for _, line := range roster {
		if line.MaxTension != 2*line.ReferenceTension {
			t.Errorf("%s: max %v is not twice reference %v", line.LineID, line.MaxTension, line.ReferenceTension)
		}
		if line.RemainingLifespanPct != 100 {
			t.Errorf("%s: lifespan starts at %v", line.LineID, line.RemainingLifespanPct)
		}
		if line.Status != "NORMAL" {
			t.Errorf("%s: initial status %q", line.LineID, line.Status)
		}
	}
	if roster[0].Name != "L0-PORT-BREAST" {
		t.Fatalf("unexpected name %q", roster[0].Name)
	}
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	registry, err := NewRegistry(DefaultRoster())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	line, err := registry.Get("L0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	line.CurrentTension = 99

	again, err := registry.Get("L0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again.CurrentTension == 99 {
		t.Fatal("mutating a returned line leaked into the registry")
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	registry, err := NewRegistry(DefaultRoster())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if _, err := registry.Get("L99"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if registry.Contains("L99") {
		t.Fatal("Contains reports an unknown line")
	}
}

func TestRegistryListOrder(t *testing.T) {
	registry, err := NewRegistry(DefaultRoster())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	list := registry.List()
	for i, line := range list {
		if want := "L" + string(rune('0'+i)); line.LineID != want {
			t.Fatalf("position %d: got %s, want %s", i, line.LineID, want)
		}
	}
}

func TestRegistryUpdate(t *testing.T) {
	registry, err := NewRegistry(DefaultRoster())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	err = registry.Update("L0", func(line *Line) {
		line.CurrentTension = 1.25
		line.Status = "WARNING"
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	line, err := registry.Get("L0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if line.CurrentTension != 1.25 || line.Status != "WARNING" {
		t.Fatalf("update not applied: %+v", line)
	}

	if err := registry.Update("L99", func(*Line) {}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := registry.Update("L0", nil); err == nil {
		t.Fatal("expected error for nil update func")
	}
}

func TestRegistryRejectsBadRoster(t *testing.T) {
	cases := []struct {
		name   string
		roster []Line
	}{
		{"empty", nil},
		{"missing id", []Line{{ReferenceTension: 1, MaxTension: 2}}},
		{"zero reference", []Line{{LineID: "L0", MaxTension: 2}}},
		{"duplicate", []Line{
			{LineID: "L0", ReferenceTension: 1, MaxTension: 2},
			{LineID: "L0", ReferenceTension: 1, MaxTension: 2},
		}},
	}
	for _, tc := range cases {
		if _, err := NewRegistry(tc.roster); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
