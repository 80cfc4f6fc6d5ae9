// Package overlay keeps a map engine's sources and layers in sync with a
// declarative overlay description.
//
// An Overlay owns one source and the four layers derived from it. The host
// drives it through Mount, Update and Unmount; the overlay translates those
// transitions into the minimal sequence of imperative engine calls:
//
//	ov := overlay.New(engine, overlay.Props{ID: "rivers", Data: fc})
//	if err := ov.Mount(); err != nil { ... }
//	ov.Update(overlay.Props{Data: newFC}) // one SetData, nothing else
//	ov.Unmount()                          // layers first, then the source
package overlay

import "encoding/json"

// Map is the engine handle an overlay drives. Any backend that honors the
// source/layer ordering constraints can be substituted.
type Map interface {
	AddSource(id string, src SourceDescriptor) error
	GetSource(id string) (Source, error)
	RemoveSource(id string) error
	// AddLayer inserts the layer below beforeID, or on top when beforeID is "".
	AddLayer(layer LayerDescriptor, beforeID string) error
	RemoveLayer(id string) error
}

// Source is a registered source whose payload can be replaced in place.
type Source interface {
	SetData(data Data) error
}

// Data is the geometry payload forwarded to the engine: typically a
// *geojson.FeatureCollection, *geojson.Feature or a URL string. The overlay
// never mutates it.
type Data any

// LayerType is one of the supported rendering types.
type LayerType string

const (
	Symbol LayerType = "symbol"
	Line   LayerType = "line"
	Fill   LayerType = "fill"
	Circle LayerType = "circle"
)

// LayerOrder is the creation order of an overlay's layers. Later layers paint
// on top on engines without a before anchor, so symbols end up below circles.
var LayerOrder = []LayerType{Symbol, Line, Fill, Circle}

// Valid reports whether t is a supported rendering type.
func (t LayerType) Valid() bool {
	switch t {
	case Symbol, Line, Fill, Circle:
		return true
	}
	return false
}

// Paint holds visual styling properties, passed to the engine unchanged.
type Paint map[string]any

// Layout holds placement properties, passed to the engine unchanged.
type Layout map[string]any

// LayerStyle is the caller's paint and layout for one rendering type.
type LayerStyle struct {
	Paint  Paint  `json:"paint,omitempty" yaml:"paint,omitempty"`
	Layout Layout `json:"layout,omitempty" yaml:"layout,omitempty"`
}

// GeoJSONSourceType is the type tag of every overlay source.
const GeoJSONSourceType = "geojson"

// SourceDescriptor is what gets registered with the engine for an overlay.
type SourceDescriptor struct {
	Type    string
	Options map[string]any
	Data    Data
}

// MarshalJSON flattens the descriptor into a style source object. Options are
// applied over the type tag; data always comes last.
func (d SourceDescriptor) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Options)+2)
	out["type"] = d.Type
	for k, v := range d.Options {
		out[k] = v
	}
	out["data"] = d.Data
	return json.Marshal(out)
}

// EffectiveType returns the source type after options are applied.
func (d SourceDescriptor) EffectiveType() string {
	if t, ok := d.Options["type"].(string); ok && t != "" {
		return t
	}
	return d.Type
}

// LayerDescriptor is a single layer registration.
type LayerDescriptor struct {
	ID     string    `json:"id"`
	Type   LayerType `json:"type"`
	Source string    `json:"source"`
	Paint  Paint     `json:"paint"`
	Layout Layout    `json:"layout"`
}

// LayerID derives the identifier of an overlay's layer of type t.
func LayerID(identity string, t LayerType) string {
	return identity + "-" + string(t)
}
