package mapengine

import (
	"fmt"
	"slices"
	"sync"

	"github.com/joeblew999/plat-overlay/internal/overlay"
)

// Memory is an in-process engine holding sources and an ordered layer list.
type Memory struct {
	mu       sync.RWMutex
	sources  map[string]overlay.SourceDescriptor
	layers   []overlay.LayerDescriptor
	onChange ChangeFunc
}

// NewMemory creates an empty in-memory engine. onChange may be nil.
func NewMemory(onChange ChangeFunc) *Memory {
	return &Memory{
		sources:  make(map[string]overlay.SourceDescriptor),
		onChange: onChange,
	}
}

// AddSource registers a source.
func (m *Memory) AddSource(id string, src overlay.SourceDescriptor) error {
	m.mu.Lock()
	if _, exists := m.sources[id]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrSourceExists, id)
	}
	m.sources[id] = src
	m.mu.Unlock()

	m.notify(Change{Kind: SourceAdded, ID: id})
	return nil
}

// GetSource returns a handle to an existing source.
func (m *Memory) GetSource(id string) (overlay.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.sources[id]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrSourceNotFound, id)
	}
	return &memorySource{m: m, id: id}, nil
}

// RemoveSource removes a source no layer references.
func (m *Memory) RemoveSource(id string) error {
	m.mu.Lock()
	if _, ok := m.sources[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrSourceNotFound, id)
	}
	for _, l := range m.layers {
		if l.Source == id {
			m.mu.Unlock()
			return fmt.Errorf("%w: %q is used by layer %q", ErrSourceInUse, id, l.ID)
		}
	}
	delete(m.sources, id)
	m.mu.Unlock()

	m.notify(Change{Kind: SourceRemoved, ID: id})
	return nil
}

// AddLayer inserts a layer below beforeID, or on top when beforeID is empty.
func (m *Memory) AddLayer(layer overlay.LayerDescriptor, beforeID string) error {
	if layer.ID == "" || !layer.Type.Valid() {
		return fmt.Errorf("%w: id=%q type=%q", ErrInvalidLayer, layer.ID, layer.Type)
	}

	m.mu.Lock()
	if m.layerIndex(layer.ID) >= 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrLayerExists, layer.ID)
	}
	if _, ok := m.sources[layer.Source]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q referenced by layer %q", ErrSourceNotFound, layer.Source, layer.ID)
	}
	at := len(m.layers)
	if beforeID != "" {
		at = m.layerIndex(beforeID)
		if at < 0 {
			m.mu.Unlock()
			return fmt.Errorf("%w: before anchor %q", ErrLayerNotFound, beforeID)
		}
	}
	m.layers = slices.Insert(m.layers, at, layer)
	m.mu.Unlock()

	m.notify(Change{Kind: LayerAdded, ID: layer.ID, Source: layer.Source})
	return nil
}

// RemoveLayer removes a layer.
func (m *Memory) RemoveLayer(id string) error {
	m.mu.Lock()
	i := m.layerIndex(id)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	}
	source := m.layers[i].Source
	m.layers = slices.Delete(m.layers, i, i+1)
	m.mu.Unlock()

	m.notify(Change{Kind: LayerRemoved, ID: id, Source: source})
	return nil
}

// Style returns a snapshot of the engine state.
func (m *Memory) Style(name string) (Style, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sources := make(map[string]overlay.SourceDescriptor, len(m.sources))
	for id, src := range m.sources {
		sources[id] = src
	}
	return Style{
		Version: StyleVersion,
		Name:    name,
		Sources: sources,
		Layers:  slices.Clone(m.layers),
	}, nil
}

// layerIndex must be called with m.mu held.
func (m *Memory) layerIndex(id string) int {
	return slices.IndexFunc(m.layers, func(l overlay.LayerDescriptor) bool {
		return l.ID == id
	})
}

func (m *Memory) notify(c Change) {
	if m.onChange != nil {
		m.onChange(c)
	}
}

type memorySource struct {
	m  *Memory
	id string
}

// SetData replaces the source payload. Layers are untouched.
func (s *memorySource) SetData(data overlay.Data) error {
	s.m.mu.Lock()
	src, ok := s.m.sources[s.id]
	if !ok {
		s.m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrSourceNotFound, s.id)
	}
	src.Data = data
	s.m.sources[s.id] = src
	s.m.mu.Unlock()

	s.m.notify(Change{Kind: SourceUpdated, ID: s.id})
	return nil
}
