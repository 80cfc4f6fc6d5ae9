package overlay

import (
	"fmt"
	"reflect"

	"github.com/charmbracelet/log"
)

// sourceBinder owns the overlay's single source registration.
type sourceBinder struct {
	engine     Map
	logger     *log.Logger
	descriptor SourceDescriptor
	registered bool
}

func (b *sourceBinder) register(identity string, desc SourceDescriptor) error {
	b.descriptor = desc
	if err := b.engine.AddSource(identity, desc); err != nil {
		return fmt.Errorf("add source %q: %w", identity, err)
	}
	b.registered = true
	b.logger.Debug("source added", "source", identity, "type", desc.EffectiveType())
	return nil
}

// updateData replaces the payload in place. The source is never re-added, so
// dependent layers keep their identity and simply redraw.
func (b *sourceBinder) updateData(identity string, data Data) error {
	src, err := b.engine.GetSource(identity)
	if err != nil {
		return fmt.Errorf("get source %q: %w", identity, err)
	}
	if err := src.SetData(data); err != nil {
		return fmt.Errorf("set data on source %q: %w", identity, err)
	}
	b.descriptor.Data = data
	b.logger.Debug("source data replaced", "source", identity)
	return nil
}

func (b *sourceBinder) unregister(identity string) error {
	if !b.registered {
		return nil
	}
	if err := b.engine.RemoveSource(identity); err != nil {
		return fmt.Errorf("remove source %q: %w", identity, err)
	}
	b.registered = false
	b.logger.Debug("source removed", "source", identity)
	return nil
}

// sameData reports whether a and b are the same reference. Pointers, maps,
// slices and funcs compare by address; comparable values compare with ==.
// Two equal but separately allocated payloads are different.
func sameData(a, b Data) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Type().Comparable() {
		return a == b
	}
	// Structs or arrays holding slices or maps have no identity to compare.
	return false
}
