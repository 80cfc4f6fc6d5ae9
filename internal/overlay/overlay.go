package overlay

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// ErrInvalidTransition is returned when a lifecycle operation is called in a
// state that does not allow it.
var ErrInvalidTransition = errors.New("invalid overlay transition")

// State is a lifecycle state of an Overlay.
type State int

const (
	Unmounted State = iota
	Mounting
	Mounted
	Unmounting
)

func (s State) String() string {
	switch s {
	case Unmounted:
		return "unmounted"
	case Mounting:
		return "mounting"
	case Mounted:
		return "mounted"
	case Unmounting:
		return "unmounting"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Props is the declarative description of an overlay. Only Data is read after
// mount; the remaining fields take effect on the next fresh instance.
type Props struct {
	ID            string
	Data          Data
	SourceOptions map[string]any
	// Before anchors every layer below an existing layer id.
	Before string
	Styles map[LayerType]LayerStyle
}

// TransitionFunc observes lifecycle transitions.
type TransitionFunc func(identity string, from, to State)

// Option configures an Overlay.
type Option func(*Overlay)

// WithIDGenerator sets the generator used when Props.ID is empty.
func WithIDGenerator(gen IDGenerator) Option {
	return func(o *Overlay) { o.gen = gen }
}

// WithLogger sets the logger. Engine calls are logged at debug level.
func WithLogger(l *log.Logger) Option {
	return func(o *Overlay) { o.logger = l }
}

// OnTransition registers fn to be called after every state change.
func OnTransition(fn TransitionFunc) Option {
	return func(o *Overlay) { o.observe = fn }
}

// Overlay synchronizes one source and its four layers with an engine. It is
// not safe for concurrent use; hosts call it from a single goroutine or
// serialize access per engine.
type Overlay struct {
	identity string
	props    Props
	data     Data
	state    State
	spent    bool

	gen     IDGenerator
	logger  *log.Logger
	observe TransitionFunc

	source sourceBinder
	layers layerSet
}

// New creates an unmounted overlay and allocates its identity. No engine call
// is made until Mount.
func New(engine Map, props Props, opts ...Option) *Overlay {
	o := &Overlay{props: props, data: props.Data}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	o.identity = AllocateID(props.ID, o.gen)
	o.logger = o.logger.With("overlay", o.identity)
	o.source = sourceBinder{engine: engine, logger: o.logger}
	o.layers = layerSet{engine: engine, logger: o.logger}
	return o
}

// Mount registers the source and then the layers in LayerOrder. On failure
// the overlay keeps track of what was registered; call Unmount to clean up.
func (o *Overlay) Mount() error {
	if o.state != Unmounted || o.spent {
		return fmt.Errorf("%w: mount while %s", ErrInvalidTransition, o.describeState())
	}
	o.transition(Mounting)

	desc := SourceDescriptor{
		Type:    GeoJSONSourceType,
		Options: o.props.SourceOptions,
		Data:    o.data,
	}
	if err := o.source.register(o.identity, desc); err != nil {
		return err
	}
	for _, t := range LayerOrder {
		if err := o.layers.createLayer(t, o.identity, o.props.Styles, o.props.Before); err != nil {
			return err
		}
	}

	o.transition(Mounted)
	o.logger.Info("overlay mounted", "layers", len(o.layers.owned))
	return nil
}

// Update applies new props. Only a data reference different from the current
// one reaches the engine; styling, source options and Before are fixed at
// mount.
func (o *Overlay) Update(props Props) error {
	if o.state != Mounted {
		return fmt.Errorf("%w: update while %s", ErrInvalidTransition, o.describeState())
	}
	if sameData(props.Data, o.data) {
		return nil
	}
	if err := o.source.updateData(o.identity, props.Data); err != nil {
		return err
	}
	o.data = props.Data
	return nil
}

// Unmount removes every owned layer and then the source. It also cleans up
// after a failed Mount, and may be retried after an error. Once it succeeds
// the overlay cannot be mounted again.
func (o *Overlay) Unmount() error {
	switch o.state {
	case Mounting, Mounted, Unmounting:
	default:
		return fmt.Errorf("%w: unmount while %s", ErrInvalidTransition, o.describeState())
	}
	o.transition(Unmounting)

	if err := o.layers.removeAll(); err != nil {
		// The source is still referenced; removing it now would violate the
		// engine's ordering constraint.
		return err
	}
	if err := o.source.unregister(o.identity); err != nil {
		return err
	}

	o.spent = true
	o.transition(Unmounted)
	o.logger.Info("overlay unmounted")
	return nil
}

func (o *Overlay) transition(to State) {
	from := o.state
	o.state = to
	if o.observe != nil && from != to {
		o.observe(o.identity, from, to)
	}
}

func (o *Overlay) describeState() string {
	if o.spent {
		return "spent"
	}
	return o.state.String()
}
