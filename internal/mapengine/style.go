package mapengine

import "github.com/joeblew999/plat-overlay/internal/overlay"

// StyleVersion is the style specification version emitted by Style.
const StyleVersion = 8

// Style is a map style document: sources by id and layers bottom to top.
type Style struct {
	Version int                                 `json:"version" doc:"Style specification version" example:"8"`
	Name    string                              `json:"name,omitempty" doc:"Style name"`
	Sources map[string]overlay.SourceDescriptor `json:"sources" doc:"Registered sources by id"`
	Layers  []overlay.LayerDescriptor           `json:"layers" doc:"Layers in draw order, bottom first"`
}

// Styler is implemented by engines that can render their state.
type Styler interface {
	Style(name string) (Style, error)
}

// ChangeKind identifies an engine mutation.
type ChangeKind string

const (
	SourceAdded   ChangeKind = "source-added"
	SourceUpdated ChangeKind = "source-updated"
	SourceRemoved ChangeKind = "source-removed"
	LayerAdded    ChangeKind = "layer-added"
	LayerRemoved  ChangeKind = "layer-removed"
)

// Change describes one successful engine mutation.
type Change struct {
	Kind ChangeKind
	ID   string
	// Source is the source a layer change belongs to.
	Source string
}

// ChangeFunc receives engine mutations. It is called after the engine has
// released its locks, so it may call back into the engine.
type ChangeFunc func(Change)
