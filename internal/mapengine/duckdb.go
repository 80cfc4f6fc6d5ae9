package mapengine

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/joeblew999/plat-overlay/internal/overlay"
)

const duckdbSchema = `
CREATE TABLE IF NOT EXISTS overlay_sources (
	id      VARCHAR PRIMARY KEY,
	type    VARCHAR NOT NULL,
	options VARCHAR NOT NULL,
	data    VARCHAR
);
CREATE TABLE IF NOT EXISTS overlay_layers (
	id       VARCHAR PRIMARY KEY,
	position INTEGER NOT NULL,
	type     VARCHAR NOT NULL,
	source   VARCHAR NOT NULL,
	paint    VARCHAR NOT NULL,
	layout   VARCHAR NOT NULL
);`

// DuckDB persists engine state in DuckDB tables. Layer draw order is the
// position column, lowest first.
type DuckDB struct {
	db       *sql.DB
	mu       sync.Mutex
	onChange ChangeFunc
}

// NewDuckDB creates the engine tables if needed. onChange may be nil.
func NewDuckDB(db *sql.DB, onChange ChangeFunc) (*DuckDB, error) {
	if _, err := db.Exec(duckdbSchema); err != nil {
		return nil, fmt.Errorf("create engine tables: %w", err)
	}
	return &DuckDB{db: db, onChange: onChange}, nil
}

// AddSource registers a source.
func (e *DuckDB) AddSource(id string, src overlay.SourceDescriptor) error {
	options, err := json.Marshal(src.Options)
	if err != nil {
		return fmt.Errorf("encode options for source %q: %w", id, err)
	}
	data, err := json.Marshal(src.Data)
	if err != nil {
		return fmt.Errorf("encode data for source %q: %w", id, err)
	}

	e.mu.Lock()
	exists, err := e.exists("SELECT count(*) FROM overlay_sources WHERE id = ?", id)
	if err == nil && exists {
		err = fmt.Errorf("%w: %q", ErrSourceExists, id)
	}
	if err == nil {
		_, err = e.db.Exec("INSERT INTO overlay_sources (id, type, options, data) VALUES (?, ?, ?, ?)",
			id, src.Type, string(options), string(data))
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.notify(Change{Kind: SourceAdded, ID: id})
	return nil
}

// GetSource returns a handle to an existing source.
func (e *DuckDB) GetSource(id string) (overlay.Source, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exists, err := e.exists("SELECT count(*) FROM overlay_sources WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrSourceNotFound, id)
	}
	return &duckdbSource{e: e, id: id}, nil
}

// RemoveSource removes a source no layer references.
func (e *DuckDB) RemoveSource(id string) error {
	e.mu.Lock()
	err := e.removeSource(id)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.notify(Change{Kind: SourceRemoved, ID: id})
	return nil
}

func (e *DuckDB) removeSource(id string) error {
	exists, err := e.exists("SELECT count(*) FROM overlay_sources WHERE id = ?", id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %q", ErrSourceNotFound, id)
	}

	var layerID string
	err = e.db.QueryRow("SELECT id FROM overlay_layers WHERE source = ? ORDER BY position LIMIT 1", id).Scan(&layerID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %q is used by layer %q", ErrSourceInUse, id, layerID)
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}

	_, err = e.db.Exec("DELETE FROM overlay_sources WHERE id = ?", id)
	return err
}

// AddLayer inserts a layer below beforeID, or on top when beforeID is empty.
func (e *DuckDB) AddLayer(layer overlay.LayerDescriptor, beforeID string) error {
	if layer.ID == "" || !layer.Type.Valid() {
		return fmt.Errorf("%w: id=%q type=%q", ErrInvalidLayer, layer.ID, layer.Type)
	}
	paint, err := json.Marshal(layer.Paint)
	if err != nil {
		return fmt.Errorf("encode paint for layer %q: %w", layer.ID, err)
	}
	layout, err := json.Marshal(layer.Layout)
	if err != nil {
		return fmt.Errorf("encode layout for layer %q: %w", layer.ID, err)
	}

	e.mu.Lock()
	err = e.insertLayer(layer, string(paint), string(layout), beforeID)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.notify(Change{Kind: LayerAdded, ID: layer.ID, Source: layer.Source})
	return nil
}

func (e *DuckDB) insertLayer(layer overlay.LayerDescriptor, paint, layout, beforeID string) error {
	exists, err := e.exists("SELECT count(*) FROM overlay_layers WHERE id = ?", layer.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %q", ErrLayerExists, layer.ID)
	}
	exists, err = e.exists("SELECT count(*) FROM overlay_sources WHERE id = ?", layer.Source)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %q referenced by layer %q", ErrSourceNotFound, layer.Source, layer.ID)
	}

	tx, err := e.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var position int
	if beforeID == "" {
		if err := tx.QueryRow("SELECT coalesce(max(position) + 1, 0) FROM overlay_layers").Scan(&position); err != nil {
			return err
		}
	} else {
		err := tx.QueryRow("SELECT position FROM overlay_layers WHERE id = ?", beforeID).Scan(&position)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: before anchor %q", ErrLayerNotFound, beforeID)
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec("UPDATE overlay_layers SET position = position + 1 WHERE position >= ?", position); err != nil {
			return err
		}
	}

	if _, err := tx.Exec("INSERT INTO overlay_layers (id, position, type, source, paint, layout) VALUES (?, ?, ?, ?, ?, ?)",
		layer.ID, position, string(layer.Type), layer.Source, paint, layout); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveLayer removes a layer.
func (e *DuckDB) RemoveLayer(id string) error {
	e.mu.Lock()
	var source string
	err := e.db.QueryRow("SELECT source FROM overlay_layers WHERE id = ?", id).Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	}
	if err == nil {
		_, err = e.db.Exec("DELETE FROM overlay_layers WHERE id = ?", id)
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.notify(Change{Kind: LayerRemoved, ID: id, Source: source})
	return nil
}

// Style reads the persisted state back as a style document. Source data is
// returned as the stored JSON.
func (e *DuckDB) Style(name string) (Style, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	style := Style{
		Version: StyleVersion,
		Name:    name,
		Sources: make(map[string]overlay.SourceDescriptor),
		Layers:  []overlay.LayerDescriptor{},
	}

	rows, err := e.db.Query("SELECT id, type, options, data FROM overlay_sources ORDER BY id")
	if err != nil {
		return Style{}, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id, typ, options string
			data             sql.NullString
		)
		if err := rows.Scan(&id, &typ, &options, &data); err != nil {
			return Style{}, err
		}
		src := overlay.SourceDescriptor{Type: typ}
		if err := json.Unmarshal([]byte(options), &src.Options); err != nil {
			return Style{}, fmt.Errorf("decode options for source %q: %w", id, err)
		}
		if data.Valid {
			src.Data = json.RawMessage(data.String)
		}
		style.Sources[id] = src
	}
	if err := rows.Err(); err != nil {
		return Style{}, err
	}

	layerRows, err := e.db.Query("SELECT id, type, source, paint, layout FROM overlay_layers ORDER BY position")
	if err != nil {
		return Style{}, fmt.Errorf("query layers: %w", err)
	}
	defer layerRows.Close()
	for layerRows.Next() {
		var (
			l             overlay.LayerDescriptor
			typ           string
			paint, layout string
		)
		if err := layerRows.Scan(&l.ID, &typ, &l.Source, &paint, &layout); err != nil {
			return Style{}, err
		}
		l.Type = overlay.LayerType(typ)
		if err := json.Unmarshal([]byte(paint), &l.Paint); err != nil {
			return Style{}, fmt.Errorf("decode paint for layer %q: %w", l.ID, err)
		}
		if err := json.Unmarshal([]byte(layout), &l.Layout); err != nil {
			return Style{}, fmt.Errorf("decode layout for layer %q: %w", l.ID, err)
		}
		style.Layers = append(style.Layers, l)
	}
	return style, layerRows.Err()
}

// Reset drops every source and layer.
func (e *DuckDB) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.db.Exec("DELETE FROM overlay_layers"); err != nil {
		return err
	}
	_, err := e.db.Exec("DELETE FROM overlay_sources")
	return err
}

func (e *DuckDB) exists(query string, args ...any) (bool, error) {
	var n int
	if err := e.db.QueryRow(query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (e *DuckDB) notify(c Change) {
	if e.onChange != nil {
		e.onChange(c)
	}
}

type duckdbSource struct {
	e  *DuckDB
	id string
}

// SetData replaces the stored payload of the source.
func (s *duckdbSource) SetData(data overlay.Data) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode data for source %q: %w", s.id, err)
	}

	s.e.mu.Lock()
	res, err := s.e.db.Exec("UPDATE overlay_sources SET data = ? WHERE id = ?", string(encoded), s.id)
	if err == nil {
		if n, rerr := res.RowsAffected(); rerr == nil && n == 0 {
			err = fmt.Errorf("%w: %q", ErrSourceNotFound, s.id)
		}
	}
	s.e.mu.Unlock()
	if err != nil {
		return err
	}

	s.e.notify(Change{Kind: SourceUpdated, ID: s.id})
	return nil
}
