// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-overlay/internal/geodata"
	"github.com/joeblew999/plat-overlay/internal/mapengine"
	"github.com/joeblew999/plat-overlay/internal/overlay"
	"github.com/joeblew999/plat-overlay/internal/service"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Overlay *service.OverlayService
	Source  *service.SourceService
	Style   mapengine.Styler
	Bus     *service.EventBus
	// StyleName is reported in rendered style documents.
	StyleName string
}

// RegisterRoutes registers every REST route of h with api.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Overlay ID" example:"rivers"`
}

type OverlayOutput struct {
	Body service.OverlayInfo
}

type OverlaysOutput struct {
	Body []service.OverlayInfo
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type CreatedOverlayBody struct {
	ID      string              `json:"id" doc:"Allocated overlay ID"`
	Overlay service.OverlayInfo `json:"overlay" doc:"Mounted overlay"`
	Message string              `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// SetDataInput carries a GeoJSON document or a JSON string URL as the raw
// request body.
type SetDataInput struct {
	IDInput
	RawBody []byte
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterOverlays registers overlay lifecycle routes.
func (h *APIHandler) RegisterOverlays(api huma.API) {
	huma.Get(api, "/api/v1/overlays", h.GetOverlays, huma.OperationTags("overlays"))
	huma.Register(api, huma.Operation{
		OperationID:   "create-overlay",
		Method:        http.MethodPost,
		Path:          "/api/v1/overlays",
		Summary:       "Mount an overlay",
		Tags:          []string{"overlays"},
		DefaultStatus: http.StatusCreated,
	}, h.CreateOverlay)
	huma.Get(api, "/api/v1/overlays/{id}", h.GetOverlay, huma.OperationTags("overlays"))
	huma.Put(api, "/api/v1/overlays/{id}/data", h.PutOverlayData, huma.OperationTags("overlays"))
	huma.Delete(api, "/api/v1/overlays/{id}", h.DeleteOverlay, huma.OperationTags("overlays"))
}

// RegisterStyle registers the style document route.
func (h *APIHandler) RegisterStyle(api huma.API) {
	huma.Get(api, "/api/v1/style", h.GetStyle, huma.OperationTags("style"))
}

// RegisterSources registers source listing routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetOverlays(ctx context.Context, input *struct{}) (*OverlaysOutput, error) {
	if h.svc == nil || h.svc.Overlay == nil {
		return &OverlaysOutput{Body: []service.OverlayInfo{}}, nil
	}
	return &OverlaysOutput{Body: h.svc.Overlay.List()}, nil
}

func (h *APIHandler) CreateOverlay(ctx context.Context, input *struct{ Body service.OverlaySpec }) (*struct{ Body CreatedOverlayBody }, error) {
	if h.svc == nil || h.svc.Overlay == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	created, err := h.svc.Overlay.Create(input.Body)
	if err != nil {
		return nil, toHumaError(err)
	}
	info, _ := h.svc.Overlay.Get(created.ID)
	return &struct{ Body CreatedOverlayBody }{Body: CreatedOverlayBody{
		ID: created.ID, Overlay: info, Message: "Overlay mounted",
	}}, nil
}

func (h *APIHandler) GetOverlay(ctx context.Context, input *IDInput) (*OverlayOutput, error) {
	if h.svc == nil || h.svc.Overlay == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	info, ok := h.svc.Overlay.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("overlay not found")
	}
	return &OverlayOutput{Body: info}, nil
}

func (h *APIHandler) PutOverlayData(ctx context.Context, input *SetDataInput) (*OverlayOutput, error) {
	if h.svc == nil || h.svc.Overlay == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	data, err := geodata.Decode(input.RawBody)
	if err != nil {
		return nil, toHumaError(err)
	}
	info, err := h.svc.Overlay.Update(input.ID, data)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &OverlayOutput{Body: info}, nil
}

func (h *APIHandler) DeleteOverlay(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if h.svc == nil || h.svc.Overlay == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	if err := h.svc.Overlay.Delete(input.ID); err != nil {
		return nil, toHumaError(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Overlay unmounted"}}, nil
}

func (h *APIHandler) GetStyle(ctx context.Context, input *struct{}) (*struct{ Body mapengine.Style }, error) {
	if h.svc == nil || h.svc.Style == nil {
		return nil, huma.Error503ServiceUnavailable("engine not available")
	}
	style, err := h.svc.Style.Style(h.svc.StyleName)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to render style", err)
	}
	return &struct{ Body mapengine.Style }{Body: style}, nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	if h.svc == nil || h.svc.Source == nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	sources, err := h.svc.Source.List()
	if err != nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	return &struct{ Body []service.SourceFile }{Body: sources}, nil
}

// toHumaError maps service and engine errors to HTTP status codes.
func toHumaError(err error) error {
	switch {
	case errors.Is(err, service.ErrOverlayNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrOverlayExists),
		errors.Is(err, mapengine.ErrSourceExists),
		errors.Is(err, mapengine.ErrLayerExists):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, geodata.ErrInvalidData),
		errors.Is(err, service.ErrNoData),
		errors.Is(err, service.ErrInvalidFilename):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, mapengine.ErrSourceNotFound),
		errors.Is(err, mapengine.ErrSourceInUse),
		errors.Is(err, mapengine.ErrLayerNotFound),
		errors.Is(err, mapengine.ErrInvalidLayer),
		errors.Is(err, overlay.ErrInvalidTransition):
		return huma.Error422UnprocessableEntity(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}
