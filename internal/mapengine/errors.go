// Package mapengine provides map engine backends for overlays: an in-memory
// style model and a DuckDB-persisted one. Both enforce the engine's hard
// ordering constraints and render their state as a style document.
package mapengine

import "errors"

var (
	ErrSourceExists   = errors.New("source already exists")
	ErrSourceNotFound = errors.New("source not found")
	// ErrSourceInUse is returned when removing a source that layers still
	// reference.
	ErrSourceInUse   = errors.New("source is used by layers")
	ErrLayerExists   = errors.New("layer already exists")
	ErrLayerNotFound = errors.New("layer not found")
	ErrInvalidLayer  = errors.New("invalid layer")
)
