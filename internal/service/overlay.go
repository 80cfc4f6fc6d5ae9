package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/joeblew999/plat-overlay/internal/geodata"
	"github.com/joeblew999/plat-overlay/internal/overlay"
)

var (
	ErrOverlayExists   = errors.New("overlay already exists")
	ErrOverlayNotFound = errors.New("overlay not found")
	ErrNoData          = errors.New("overlay has no data")
)

// OverlayConfig configures an OverlayService.
type OverlayConfig struct {
	// DataDir is where overlays.json is kept. Empty disables persistence.
	DataDir string
	Engine  overlay.Map
	Sources *SourceService
	IDs     overlay.IDGenerator
	Bus     *EventBus
	Logger  *log.Logger
}

type overlayEntry struct {
	spec   OverlaySpec
	props  overlay.Props
	ov     *overlay.Overlay
	layers []string
}

// OverlayService hosts overlays on one engine. Every method holds the service
// lock for the whole lifecycle call, so the engine sees the calls of one
// overlay strictly in order and never interleaved with another's.
type OverlayService struct {
	cfg      OverlayConfig
	logger   *log.Logger
	overlays map[string]*overlayEntry
	order    []string
	mu       sync.Mutex
}

// NewOverlayService creates a new overlay service.
func NewOverlayService(cfg OverlayConfig) *OverlayService {
	if cfg.IDs == nil {
		cfg.IDs = overlay.NewCounterGenerator("")
	}
	if cfg.Bus == nil {
		cfg.Bus = NewEventBus()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &OverlayService{
		cfg:      cfg,
		logger:   logger.WithPrefix("overlays"),
		overlays: make(map[string]*overlayEntry),
	}
}

// Create mounts a new overlay and returns its spec with the allocated id.
func (s *OverlayService) Create(spec OverlaySpec) (OverlaySpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.create(spec)
	if err != nil {
		return OverlaySpec{}, err
	}
	if err := s.saveToDisk(); err != nil {
		return OverlaySpec{}, err
	}
	return created, nil
}

func (s *OverlayService) create(spec OverlaySpec) (OverlaySpec, error) {
	id := overlay.AllocateID(spec.ID, s.cfg.IDs)
	// Restored overlays may already hold generated ids.
	for spec.ID == "" && s.overlays[id] != nil {
		id = overlay.AllocateID("", s.cfg.IDs)
	}
	if _, exists := s.overlays[id]; exists {
		return OverlaySpec{}, fmt.Errorf("%w: %q", ErrOverlayExists, id)
	}

	data, err := s.resolveData(spec)
	if err != nil {
		return OverlaySpec{}, err
	}

	spec.ID = id
	props := spec.props(id, data)
	ov := overlay.New(s.cfg.Engine, props,
		overlay.WithLogger(s.logger),
		overlay.OnTransition(lifecycleEvents(s.cfg.Bus)),
	)
	if err := ov.Mount(); err != nil {
		if uerr := ov.Unmount(); uerr != nil {
			s.logger.Warn("cleanup after failed mount", "overlay", id, "err", uerr)
		}
		return OverlaySpec{}, fmt.Errorf("mount overlay %q: %w", id, err)
	}

	layers := make([]string, 0, len(overlay.LayerOrder))
	for _, t := range overlay.LayerOrder {
		layers = append(layers, overlay.LayerID(id, t))
	}
	if spec.DataFile == "" {
		spec.Data = data
	}
	s.overlays[id] = &overlayEntry{spec: spec, props: props, ov: ov, layers: layers}
	s.order = append(s.order, id)

	summary := geodata.Summarize(data)
	s.logger.Info("overlay created", "overlay", id, "data", summary.Kind, "features", summary.Features)
	return spec, nil
}

func (s *OverlayService) resolveData(spec OverlaySpec) (overlay.Data, error) {
	if spec.DataFile != "" {
		if s.cfg.Sources == nil {
			return nil, fmt.Errorf("%w: no source directory configured", ErrNoData)
		}
		return s.cfg.Sources.Load(spec.DataFile)
	}
	if spec.Data == nil {
		return nil, ErrNoData
	}
	return geodata.DecodeValue(spec.Data)
}

// SetData replaces an overlay's data. raw is decoded into a fresh value, so
// it always reaches the engine as a single data replacement.
func (s *OverlayService) SetData(id string, raw any) (OverlayInfo, error) {
	data, err := geodata.DecodeValue(raw)
	if err != nil {
		return OverlayInfo{}, err
	}
	return s.Update(id, data)
}

// Update hands data to the overlay as its new props. Passing the current
// data reference is a no-op for the engine.
func (s *OverlayService) Update(id string, data overlay.Data) (OverlayInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.overlays[id]
	if !ok {
		return OverlayInfo{}, fmt.Errorf("%w: %q", ErrOverlayNotFound, id)
	}

	props := entry.props
	props.Data = data
	if err := entry.ov.Update(props); err != nil {
		return OverlayInfo{}, fmt.Errorf("update overlay %q: %w", id, err)
	}
	entry.props = props
	entry.spec.Data = data
	entry.spec.DataFile = ""

	if err := s.saveToDisk(); err != nil {
		return OverlayInfo{}, err
	}
	return entry.info(), nil
}

// Delete unmounts an overlay. If unmounting fails the overlay stays listed so
// the deletion can be retried.
func (s *OverlayService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.remove(id); err != nil {
		return err
	}
	return s.saveToDisk()
}

func (s *OverlayService) remove(id string) error {
	entry, ok := s.overlays[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrOverlayNotFound, id)
	}
	if err := entry.ov.Unmount(); err != nil {
		return fmt.Errorf("unmount overlay %q: %w", id, err)
	}
	delete(s.overlays, id)
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
	s.logger.Info("overlay deleted", "overlay", id)
	return nil
}

// DeleteAll unmounts every overlay, newest first, so overlays anchored on
// older ones go away before their anchors.
func (s *OverlayService) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, id := range slices.Backward(slices.Clone(s.order)) {
		if err := s.remove(id); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.saveToDisk(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// List returns live overlays in creation order.
func (s *OverlayService) List() []OverlayInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]OverlayInfo, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.overlays[id].info())
	}
	return result
}

// Get returns a live overlay by ID.
func (s *OverlayService) Get(id string) (OverlayInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.overlays[id]
	if !ok {
		return OverlayInfo{}, false
	}
	return entry.info(), true
}

// Restore remounts the overlays saved in overlays.json. Overlays that fail to
// mount are logged and skipped.
func (s *OverlayService) Restore() (int, error) {
	specs, err := s.loadFromDisk()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	restored := 0
	for _, spec := range specs {
		if _, err := s.create(spec); err != nil {
			s.logger.Warn("skipping saved overlay", "overlay", spec.ID, "err", err)
			continue
		}
		restored++
	}
	return restored, nil
}

func (e *overlayEntry) info() OverlayInfo {
	return OverlayInfo{
		ID:       e.spec.ID,
		Before:   e.spec.Before,
		DataFile: e.spec.DataFile,
		Layers:   slices.Clone(e.layers),
		Data:     geodata.Summarize(e.props.Data),
	}
}

// configFile returns the path to the overlays file.
func (s *OverlayService) configFile() string {
	return filepath.Join(s.cfg.DataDir, "overlays.json")
}

// loadFromDisk reads saved overlay specs. A missing file is not an error.
func (s *OverlayService) loadFromDisk() ([]OverlaySpec, error) {
	if s.cfg.DataDir == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.configFile())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var specs []OverlaySpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.configFile(), err)
	}
	return specs, nil
}

// saveToDisk persists overlay specs in creation order.
func (s *OverlayService) saveToDisk() error {
	if s.cfg.DataDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.cfg.DataDir, 0755); err != nil {
		return err
	}

	specs := make([]OverlaySpec, 0, len(s.order))
	for _, id := range s.order {
		specs = append(specs, s.overlays[id].spec)
	}
	data, err := json.MarshalIndent(specs, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.configFile(), data, 0644)
}
