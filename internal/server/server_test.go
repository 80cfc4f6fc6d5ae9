package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/joeblew999/plat-overlay/internal/service"
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	cfg.Host, cfg.Port = "localhost", "0"
	cfg.Logger = log.New(io.Discard)
	s := New(cfg)
	t.Cleanup(func() { s.Close() })
	return s
}

func get(t *testing.T, h http.Handler, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if v != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
			t.Fatalf("GET %s: decode %q: %v", path, rec.Body.String(), err)
		}
	}
	return rec
}

func TestRoot(t *testing.T) {
	s := newTestServer(t, Config{DataDir: t.TempDir(), Engine: EngineMemory})

	var body map[string]string
	rec := get(t, s, "/", &body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	if body["engine"] != EngineMemory {
		t.Fatalf("engine=%q, want memory", body["engine"])
	}

	if rec := get(t, s, "/nope", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rec.Code)
	}
}

func TestInfoLinks(t *testing.T) {
	s := newTestServer(t, Config{DataDir: t.TempDir()})

	var info struct {
		Engine     string   `json:"engine"`
		LayerTypes []string `json:"layer_types"`
	}
	rec := get(t, s, "/api/v1/info", &info)
	if info.Engine != EngineMemory {
		t.Fatalf("engine=%q, want memory", info.Engine)
	}
	if len(info.LayerTypes) != 4 || info.LayerTypes[0] != "symbol" {
		t.Fatalf("layer_types=%v", info.LayerTypes)
	}
	if len(rec.Header().Values("Link")) == 0 {
		t.Fatal("expected Link headers on /api/v1/info")
	}
}

func TestRestoreOnStart(t *testing.T) {
	dir := t.TempDir()

	first := newTestServer(t, Config{DataDir: dir})
	if _, err := first.Overlays().Create(service.OverlaySpec{ID: "rivers", Data: "https://example.com/rivers.geojson"}); err != nil {
		t.Fatal(err)
	}

	second := newTestServer(t, Config{DataDir: dir, Restore: true})
	if got := len(second.Overlays().List()); got != 1 {
		t.Fatalf("restored=%d, want 1", got)
	}

	var style struct {
		Layers []struct {
			ID string `json:"id"`
		} `json:"layers"`
	}
	get(t, second, "/api/v1/style", &style)
	if len(style.Layers) != 4 || style.Layers[0].ID != "rivers-symbol" {
		t.Fatalf("layers=%+v", style.Layers)
	}

	third := newTestServer(t, Config{DataDir: dir, Restore: false})
	if got := len(third.Overlays().List()); got != 0 {
		t.Fatalf("overlays=%d without restore, want 0", got)
	}
}

func TestDuckDBEngine(t *testing.T) {
	s := newTestServer(t, Config{DataDir: t.TempDir(), Engine: EngineDuckDB})
	if s.engineName != EngineDuckDB {
		t.Skip("duckdb unavailable, server fell back to memory")
	}

	if _, err := s.Overlays().Create(service.OverlaySpec{ID: "rivers", Data: "https://example.com/rivers.geojson"}); err != nil {
		t.Fatal(err)
	}

	var tables struct {
		Tables []struct {
			Name string `json:"name"`
			Rows int    `json:"rows"`
		} `json:"tables"`
	}
	if rec := get(t, s, "/api/v1/engine/tables", &tables); rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	rows := map[string]int{}
	for _, tbl := range tables.Tables {
		rows[tbl.Name] = tbl.Rows
	}
	if rows["overlay_sources"] != 1 || rows["overlay_layers"] != 4 {
		t.Fatalf("rows=%v, want 1 source and 4 layers", rows)
	}
}
