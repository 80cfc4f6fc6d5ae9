package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-overlay/internal/service"
)

// EventHandler streams engine and lifecycle events to Datastar clients via SSE.
type EventHandler struct {
	bus *service.EventBus
}

// NewEventHandler creates a new event handler.
func NewEventHandler(bus *service.EventBus) *EventHandler {
	return &EventHandler{bus: bus}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/events", h.Events,
		huma.OperationTags("events"),
	)
}

// Events patches an "event" signal for every published event until the
// client goes away.
func (h *EventHandler) Events(ctx context.Context, input *struct{}) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			r, w := humago.Unwrap(humaCtx)
			sse := datastar.NewSSE(w, r)

			ch := h.bus.Subscribe()
			defer h.bus.Unsubscribe(ch)

			for {
				select {
				case <-r.Context().Done():
					return
				case ev := <-ch:
					err := sse.MarshalAndPatchSignals(map[string]any{
						"event": map[string]any{
							"resource": ev.Resource,
							"action":   ev.Action,
							"id":       ev.ID,
						},
					})
					if err != nil {
						return
					}
				}
			}
		},
	}, nil
}
