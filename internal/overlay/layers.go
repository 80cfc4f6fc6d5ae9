package overlay

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// layerSet creates the overlay's layers and remembers which ids it owns.
type layerSet struct {
	engine Map
	logger *log.Logger
	owned  []string
}

func (s *layerSet) createLayer(t LayerType, identity string, styles map[LayerType]LayerStyle, before string) error {
	style := styles[t]
	paint := style.Paint
	if paint == nil {
		paint = Paint{}
	}
	layout := style.Layout
	if layout == nil {
		layout = Layout{}
	}

	layer := LayerDescriptor{
		ID:     LayerID(identity, t),
		Type:   t,
		Source: identity,
		Paint:  paint,
		Layout: layout,
	}
	if err := s.engine.AddLayer(layer, before); err != nil {
		return fmt.Errorf("add layer %q: %w", layer.ID, err)
	}
	s.owned = append(s.owned, layer.ID)
	s.logger.Debug("layer added", "layer", layer.ID, "before", before)
	return nil
}

// removeAll removes every owned layer, continuing past failures. Ids that
// could not be removed stay owned so the caller knows the source is still
// referenced.
func (s *layerSet) removeAll() error {
	var (
		errs      []error
		remaining []string
	)
	for _, id := range s.owned {
		if err := s.engine.RemoveLayer(id); err != nil {
			errs = append(errs, fmt.Errorf("remove layer %q: %w", id, err))
			remaining = append(remaining, id)
			continue
		}
		s.logger.Debug("layer removed", "layer", id)
	}
	s.owned = remaining
	return errors.Join(errs...)
}
