package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-overlay/internal/api"
	"github.com/joeblew999/plat-overlay/internal/db"
	"github.com/joeblew999/plat-overlay/internal/mapengine"
	"github.com/joeblew999/plat-overlay/internal/overlay"
	"github.com/joeblew999/plat-overlay/internal/service"
)

// Engine backends.
const (
	EngineMemory = "memory"
	EngineDuckDB = "duckdb"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	// Engine selects the map engine backend: "memory" or "duckdb".
	Engine string
	// Restore remounts the overlays saved in the data directory on startup.
	Restore bool
	Logger  *log.Logger
}

// engine is what the server needs from a backend.
type engine interface {
	overlay.Map
	mapengine.Styler
}

// Server is the overlay HTTP server.
type Server struct {
	config     Config
	mux        *http.ServeMux
	humaAPI    huma.API
	db         *sql.DB
	engineName string
	services   *api.Services
	logger     *log.Logger
}

// New creates a new overlay server. A DuckDB engine that cannot be opened
// falls back to the memory engine.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-overlay API", "1.0.0")
	humaConfig.Info.Description = "Map overlay API: mounts GeoJSON overlays as a source plus symbol, line, fill and circle layers on a map engine."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humaAPI,
		logger:  logger,
	}

	bus := service.NewEventBus()
	eng := s.openEngine(bus)
	sources := service.NewSourceService(cfg.DataDir)

	s.services = &api.Services{
		Overlay: service.NewOverlayService(service.OverlayConfig{
			DataDir: cfg.DataDir,
			Engine:  eng,
			Sources: sources,
			IDs:     overlay.NewCounterGenerator(""),
			Bus:     bus,
			Logger:  logger,
		}),
		Source:    sources,
		Style:     eng,
		Bus:       bus,
		StyleName: "plat-overlay",
	}

	if cfg.Restore {
		n, err := s.services.Overlay.Restore()
		if err != nil {
			logger.Error("restore overlays", "err", err)
		} else if n > 0 {
			logger.Info("restored overlays", "count", n)
		}
	}

	s.routes()
	return s
}

func (s *Server) openEngine(bus *service.EventBus) engine {
	onChange := service.EngineEvents(bus)
	if s.config.Engine == EngineDuckDB {
		conn, err := db.Open(db.Config{DataDir: s.config.DataDir, DBName: "overlay"})
		if err == nil {
			var eng *mapengine.DuckDB
			if eng, err = mapengine.NewDuckDB(conn, onChange); err == nil {
				// Layers persisted by a previous run are remounted by Restore.
				if err = eng.Reset(); err == nil {
					s.db = conn
					s.engineName = EngineDuckDB
					return eng
				}
			}
			conn.Close()
		}
		s.logger.Warn("duckdb engine unavailable, using memory engine", "err", err)
	}
	s.engineName = EngineMemory
	return mapengine.NewMemory(onChange)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the API description.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Overlays returns the overlay service.
func (s *Server) Overlays() *service.OverlayService {
	return s.services.Overlay
}

// Close closes server resources. Mounted overlays are left in place so they
// can be restored on the next start.
func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewInfoHandler(s.config.DataDir, s.engineName).RegisterRoutes(s.humaAPI)
	api.NewEventHandler(s.services.Bus).RegisterRoutes(s.humaAPI)
	if s.db != nil {
		api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)
	}

	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-overlay",
		"status":  "running",
		"engine":  s.engineName,
	})
}
