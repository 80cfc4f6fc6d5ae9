package mapengine_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-overlay/internal/db"
	"github.com/joeblew999/plat-overlay/internal/mapengine"
	"github.com/joeblew999/plat-overlay/internal/overlay"
)

type engine interface {
	overlay.Map
	mapengine.Styler
}

type backend struct {
	name string
	open func(t *testing.T, onChange mapengine.ChangeFunc) engine
}

var backends = []backend{
	{
		name: "memory",
		open: func(t *testing.T, onChange mapengine.ChangeFunc) engine {
			return mapengine.NewMemory(onChange)
		},
	},
	{
		name: "duckdb",
		open: func(t *testing.T, onChange mapengine.ChangeFunc) engine {
			t.Helper()
			conn, err := db.Open(db.Config{})
			if err != nil {
				t.Skipf("duckdb unavailable: %v", err)
			}
			t.Cleanup(func() { conn.Close() })
			eng, err := mapengine.NewDuckDB(conn, onChange)
			require.NoError(t, err)
			return eng
		},
	},
}

func layer(id, source string, t overlay.LayerType) overlay.LayerDescriptor {
	return overlay.LayerDescriptor{ID: id, Type: t, Source: source, Paint: overlay.Paint{}, Layout: overlay.Layout{}}
}

func layerIDs(t *testing.T, eng engine) []string {
	t.Helper()
	style, err := eng.Style("")
	require.NoError(t, err)
	ids := []string{}
	for _, l := range style.Layers {
		ids = append(ids, l.ID)
	}
	return ids
}

func forEachBackend(t *testing.T, fn func(t *testing.T, eng engine)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, b.open(t, nil))
		})
	}
}

func TestSourceLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, eng engine) {
		src := overlay.SourceDescriptor{Type: "geojson", Options: map[string]any{"maxzoom": 12.0}, Data: "https://example.com/a.geojson"}
		require.NoError(t, eng.AddSource("a", src))
		require.ErrorIs(t, eng.AddSource("a", src), mapengine.ErrSourceExists)

		handle, err := eng.GetSource("a")
		require.NoError(t, err)
		require.NoError(t, handle.SetData("https://example.com/b.geojson"))

		style, err := eng.Style("test")
		require.NoError(t, err)
		assert.Equal(t, mapengine.StyleVersion, style.Version)
		assert.Equal(t, "test", style.Name)

		raw, err := json.Marshal(style.Sources["a"])
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"geojson","maxzoom":12,"data":"https://example.com/b.geojson"}`, string(raw))

		require.NoError(t, eng.RemoveSource("a"))
		_, err = eng.GetSource("a")
		assert.ErrorIs(t, err, mapengine.ErrSourceNotFound)
		assert.ErrorIs(t, eng.RemoveSource("a"), mapengine.ErrSourceNotFound)
	})
}

func TestLayerRequiresSource(t *testing.T) {
	forEachBackend(t, func(t *testing.T, eng engine) {
		err := eng.AddLayer(layer("a-fill", "a", overlay.Fill), "")
		require.ErrorIs(t, err, mapengine.ErrSourceNotFound)
		assert.Empty(t, layerIDs(t, eng))
	})
}

func TestSourceInUse(t *testing.T) {
	forEachBackend(t, func(t *testing.T, eng engine) {
		require.NoError(t, eng.AddSource("a", overlay.SourceDescriptor{Type: "geojson"}))
		require.NoError(t, eng.AddLayer(layer("a-line", "a", overlay.Line), ""))

		require.ErrorIs(t, eng.RemoveSource("a"), mapengine.ErrSourceInUse)

		require.NoError(t, eng.RemoveLayer("a-line"))
		require.NoError(t, eng.RemoveSource("a"))
	})
}

func TestLayerOrdering(t *testing.T) {
	forEachBackend(t, func(t *testing.T, eng engine) {
		require.NoError(t, eng.AddSource("s", overlay.SourceDescriptor{Type: "geojson"}))
		require.NoError(t, eng.AddLayer(layer("bottom", "s", overlay.Fill), ""))
		require.NoError(t, eng.AddLayer(layer("top", "s", overlay.Symbol), ""))
		require.NoError(t, eng.AddLayer(layer("middle", "s", overlay.Line), "top"))
		require.NoError(t, eng.AddLayer(layer("under-middle", "s", overlay.Circle), "middle"))

		assert.Equal(t, []string{"bottom", "under-middle", "middle", "top"}, layerIDs(t, eng))

		require.ErrorIs(t, eng.AddLayer(layer("x", "s", overlay.Fill), "missing"), mapengine.ErrLayerNotFound)
		require.ErrorIs(t, eng.AddLayer(layer("top", "s", overlay.Fill), ""), mapengine.ErrLayerExists)
		require.ErrorIs(t, eng.AddLayer(layer("bad", "s", overlay.LayerType("raster")), ""), mapengine.ErrInvalidLayer)

		require.NoError(t, eng.RemoveLayer("middle"))
		assert.Equal(t, []string{"bottom", "under-middle", "top"}, layerIDs(t, eng))
		assert.ErrorIs(t, eng.RemoveLayer("middle"), mapengine.ErrLayerNotFound)

		require.NoError(t, eng.AddLayer(layer("new-top", "s", overlay.Fill), ""))
		assert.Equal(t, []string{"bottom", "under-middle", "top", "new-top"}, layerIDs(t, eng))
	})
}

func TestLayerStyleRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, eng engine) {
		require.NoError(t, eng.AddSource("s", overlay.SourceDescriptor{Type: "geojson"}))
		l := layer("s-line", "s", overlay.Line)
		l.Paint = overlay.Paint{"line-color": "#00f"}
		l.Layout = overlay.Layout{"line-cap": "round"}
		require.NoError(t, eng.AddLayer(l, ""))

		style, err := eng.Style("")
		require.NoError(t, err)
		require.Len(t, style.Layers, 1)
		got := style.Layers[0]
		assert.Equal(t, overlay.Line, got.Type)
		assert.Equal(t, "s", got.Source)
		assert.Equal(t, "#00f", got.Paint["line-color"])
		assert.Equal(t, "round", got.Layout["line-cap"])
	})
}

func TestChangesAreReported(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			var changes []mapengine.Change
			eng := b.open(t, func(c mapengine.Change) { changes = append(changes, c) })

			require.NoError(t, eng.AddSource("s", overlay.SourceDescriptor{Type: "geojson"}))
			require.NoError(t, eng.AddLayer(layer("s-fill", "s", overlay.Fill), ""))
			handle, err := eng.GetSource("s")
			require.NoError(t, err)
			require.NoError(t, handle.SetData("https://example.com/x.geojson"))
			require.NoError(t, eng.RemoveLayer("s-fill"))
			require.NoError(t, eng.RemoveSource("s"))
			// Failed calls report nothing.
			require.Error(t, eng.RemoveSource("s"))

			assert.Equal(t, []mapengine.Change{
				{Kind: mapengine.SourceAdded, ID: "s"},
				{Kind: mapengine.LayerAdded, ID: "s-fill", Source: "s"},
				{Kind: mapengine.SourceUpdated, ID: "s"},
				{Kind: mapengine.LayerRemoved, ID: "s-fill", Source: "s"},
				{Kind: mapengine.SourceRemoved, ID: "s"},
			}, changes)
		})
	}
}

func TestOverlayOnEngine(t *testing.T) {
	forEachBackend(t, func(t *testing.T, eng engine) {
		ov := overlay.New(eng, overlay.Props{ID: "rivers", Data: "https://example.com/rivers.geojson"})
		require.NoError(t, ov.Mount())
		assert.Equal(t, []string{"rivers-symbol", "rivers-line", "rivers-fill", "rivers-circle"}, layerIDs(t, eng))

		require.NoError(t, ov.Update(overlay.Props{Data: "https://example.com/rivers-v2.geojson"}))
		style, err := eng.Style("")
		require.NoError(t, err)
		raw, err := json.Marshal(style.Sources["rivers"])
		require.NoError(t, err)
		assert.Contains(t, string(raw), "rivers-v2")

		require.NoError(t, ov.Unmount())
		style, err = eng.Style("")
		require.NoError(t, err)
		assert.Empty(t, style.Sources)
		assert.Empty(t, style.Layers)
	})
}
