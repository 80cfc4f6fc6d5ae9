package api

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
)

// engineTables are the DuckDB tables written by the persistent engine.
var engineTables = []string{"overlay_sources", "overlay_layers"}

// DBHandler exposes read-only views of the DuckDB engine tables.
type DBHandler struct {
	db *sql.DB
}

// NewDBHandler creates a new database handler.
func NewDBHandler(db *sql.DB) *DBHandler {
	return &DBHandler{db: db}
}

// RegisterRoutes registers database routes with Huma.
func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/engine/tables", h.ListTables, huma.OperationTags("engine"))
	huma.Get(api, "/api/v1/engine/layers", h.ListLayerRows, huma.OperationTags("engine"))
}

// TableInfo is a table name with its row count.
type TableInfo struct {
	Name string `json:"name" doc:"Table name" example:"overlay_layers"`
	Rows int    `json:"rows" doc:"Number of rows"`
}

// TablesOutput is the response for listing tables.
type TablesOutput struct {
	Body struct {
		Tables []TableInfo `json:"tables" doc:"Engine tables"`
	}
}

// ListTables returns the engine tables and their sizes.
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	out := &TablesOutput{}
	out.Body.Tables = []TableInfo{}
	for _, name := range engineTables {
		var n int
		// name comes from engineTables, never from the request.
		if err := h.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %s", name)).Scan(&n); err != nil {
			return nil, huma.Error500InternalServerError("Failed to count rows", err)
		}
		out.Body.Tables = append(out.Body.Tables, TableInfo{Name: name, Rows: n})
	}
	return out, nil
}

// LayerRow is one persisted layer.
type LayerRow struct {
	ID       string `json:"id" doc:"Layer id" example:"rivers-line"`
	Position int    `json:"position" doc:"Draw position, 0 is the bottom"`
	Type     string `json:"type" doc:"Layer type" example:"line"`
	Source   string `json:"source" doc:"Source id" example:"rivers"`
}

// LayerRowsOutput is the response for listing layer rows.
type LayerRowsOutput struct {
	Body struct {
		Layers []LayerRow `json:"layers" doc:"Layers in draw order"`
		Count  int        `json:"count" doc:"Number of layers"`
	}
}

// ListLayerRows returns the persisted layers in draw order.
func (h *DBHandler) ListLayerRows(ctx context.Context, input *struct{}) (*LayerRowsOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	rows, err := h.db.QueryContext(ctx, "SELECT id, position, type, source FROM overlay_layers ORDER BY position")
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list layers", err)
	}
	defer rows.Close()

	out := &LayerRowsOutput{}
	out.Body.Layers = []LayerRow{}
	for rows.Next() {
		var l LayerRow
		if err := rows.Scan(&l.ID, &l.Position, &l.Type, &l.Source); err != nil {
			return nil, huma.Error500InternalServerError("Failed to read layer", err)
		}
		out.Body.Layers = append(out.Body.Layers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, huma.Error500InternalServerError("Failed to read layers", err)
	}
	out.Body.Count = len(out.Body.Layers)
	return out, nil
}
