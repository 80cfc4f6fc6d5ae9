package overlay

import (
	"strings"
	"sync"
	"testing"
)

func TestAllocateID(t *testing.T) {
	gen := NewCounterGenerator("")

	if got := AllocateID("rivers", gen); got != "rivers" {
		t.Fatalf("AllocateID(rivers)=%q, want rivers", got)
	}
	if got := AllocateID("", gen); got != "geojson-1" {
		t.Fatalf("AllocateID()=%q, want geojson-1", got)
	}
	if got := AllocateID("", gen); got != "geojson-2" {
		t.Fatalf("AllocateID()=%q, want geojson-2", got)
	}
	// A supplied id does not consume a counter value.
	AllocateID("roads", gen)
	if got := AllocateID("", gen); got != "geojson-3" {
		t.Fatalf("AllocateID()=%q, want geojson-3", got)
	}
}

func TestAllocateIDWithoutGenerator(t *testing.T) {
	got := AllocateID("", nil)
	if !strings.HasPrefix(got, DefaultIDPrefix) || len(got) <= len(DefaultIDPrefix) {
		t.Fatalf("AllocateID(nil)=%q, want %s<uuid>", got, DefaultIDPrefix)
	}
}

func TestGeneratorsNeverRepeatConcurrently(t *testing.T) {
	tests := []struct {
		name string
		gen  IDGenerator
	}{
		{"counter", NewCounterGenerator("ov-")},
		{"random", RandomGenerator{Prefix: "ov-"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const n = 200
			ids := make(chan string, n)
			var wg sync.WaitGroup
			for range n {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ids <- AllocateID("", tt.gen)
				}()
			}
			wg.Wait()
			close(ids)

			seen := make(map[string]bool, n)
			for id := range ids {
				if !strings.HasPrefix(id, "ov-") {
					t.Errorf("id %q lacks prefix", id)
				}
				if seen[id] {
					t.Fatalf("duplicate id %q", id)
				}
				seen[id] = true
			}
			if len(seen) != n {
				t.Fatalf("got %d ids, want %d", len(seen), n)
			}
		})
	}
}

func TestSameData(t *testing.T) {
	type payload struct{ n int }
	p1, p2 := &payload{1}, &payload{1}
	m1 := map[string]any{"type": "FeatureCollection"}
	m2 := map[string]any{"type": "FeatureCollection"}
	s1 := []int{1, 2}

	tests := []struct {
		name string
		a, b Data
		want bool
	}{
		{"same pointer", p1, p1, true},
		{"equal pointees", p1, p2, false},
		{"same map", m1, m1, true},
		{"equal maps", m1, m2, false},
		{"same slice", s1, s1, true},
		{"resliced", s1, s1[:1], false},
		{"equal strings", "https://a/b.geojson", "https://a/b.geojson", true},
		{"different strings", "https://a/b.geojson", "https://a/c.geojson", false},
		{"both nil", nil, nil, true},
		{"nil and value", nil, p1, false},
		{"different types", "1", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sameData(tt.a, tt.b); got != tt.want {
				t.Errorf("sameData()=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestLayerTypeValid(t *testing.T) {
	for _, lt := range LayerOrder {
		if !lt.Valid() {
			t.Errorf("%q not valid", lt)
		}
	}
	if LayerType("raster").Valid() {
		t.Error("raster should not be valid")
	}
}
