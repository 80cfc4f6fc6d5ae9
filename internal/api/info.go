package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-overlay/internal/overlay"
)

type InfoHandler struct {
	dataDir string
	engine  string
}

func NewInfoHandler(dataDir, engine string) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, engine: engine}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name       string   `json:"name" doc:"Service name"`
	Version    string   `json:"version" doc:"Service version"`
	DataDir    string   `json:"data_dir" doc:"Data directory path"`
	Engine     string   `json:"engine" doc:"Map engine backend" example:"memory"`
	LayerTypes []string `json:"layer_types" doc:"Layer types created per overlay, in order"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	types := make([]string, 0, len(overlay.LayerOrder))
	for _, t := range overlay.LayerOrder {
		types = append(types, string(t))
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:       "plat-overlay",
		Version:    "0.1.0",
		DataDir:    h.dataDir,
		Engine:     h.engine,
		LayerTypes: types,
	}}, nil
}
