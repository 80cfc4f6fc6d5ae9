// Package service hosts overlays against a shared map engine.
package service

import (
	"github.com/joeblew999/plat-overlay/internal/geodata"
	"github.com/joeblew999/plat-overlay/internal/overlay"
)

// OverlaySpec is the declared form of an overlay, as received from the API or
// a manifest and as persisted to overlays.json.
type OverlaySpec struct {
	ID            string                        `json:"id,omitempty" yaml:"id,omitempty" doc:"Overlay identifier; generated when empty" example:"rivers"`
	Data          any                           `json:"data,omitempty" yaml:"data,omitempty" doc:"Inline GeoJSON or a data URL"`
	DataFile      string                        `json:"dataFile,omitempty" yaml:"dataFile,omitempty" doc:"Source file to load instead of inline data" example:"rivers.geojson"`
	SourceOptions map[string]any                `json:"sourceOptions,omitempty" yaml:"sourceOptions,omitempty" doc:"Engine source options, passed through"`
	Before        string                        `json:"before,omitempty" yaml:"before,omitempty" doc:"Insert layers below this layer id" example:"labels"`
	Styles        map[string]overlay.LayerStyle `json:"styles,omitempty" yaml:"styles,omitempty" doc:"Paint and layout per layer type (symbol, line, fill, circle)"`
}

func (s OverlaySpec) props(id string, data overlay.Data) overlay.Props {
	var styles map[overlay.LayerType]overlay.LayerStyle
	if len(s.Styles) > 0 {
		styles = make(map[overlay.LayerType]overlay.LayerStyle, len(s.Styles))
		for t, style := range s.Styles {
			styles[overlay.LayerType(t)] = style
		}
	}
	return overlay.Props{
		ID:            id,
		Data:          data,
		SourceOptions: s.SourceOptions,
		Before:        s.Before,
		Styles:        styles,
	}
}

// OverlayInfo describes a live overlay.
type OverlayInfo struct {
	ID       string          `json:"id" doc:"Overlay identifier" example:"rivers"`
	Before   string          `json:"before,omitempty" doc:"Layer anchor used at mount"`
	DataFile string          `json:"dataFile,omitempty" doc:"Source file the data was loaded from"`
	Layers   []string        `json:"layers" doc:"Layer ids owned by the overlay"`
	Data     geodata.Summary `json:"data" doc:"Current data summary"`
}

// SourceFile represents a GeoJSON source file.
type SourceFile struct {
	Name     string `json:"name" doc:"File name" example:"rivers.geojson"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	FileType string `json:"fileType" doc:"File type" example:"GeoJSON"`
}
