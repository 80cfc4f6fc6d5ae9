package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-overlay/internal/server"
)

// Options defines all CLI flags and env vars for the overlay server.
// Flags: --host, --port, --data-dir, --engine, --restore, --verbose
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_ENGINE, ...
type Options struct {
	Host    string `doc:"Host to bind to" default:"0.0.0.0"`
	Port    int    `doc:"Port to listen on" short:"p" default:"8087"`
	DataDir string `doc:"Directory for overlays.json, sources/ and duckdb/" default:".data"`
	Engine  string `doc:"Map engine backend: memory or duckdb" enum:"memory,duckdb" default:"memory"`
	Restore bool   `doc:"Remount saved overlays on start" default:"true"`
	Verbose bool   `doc:"Log every engine call" short:"v" default:"false"`
}

// newLogger creates a logger with timestamp formatting.
func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

func newServer(opts *Options, restore bool) *server.Server {
	return server.New(server.Config{
		Host:    opts.Host,
		Port:    fmt.Sprintf("%d", opts.Port),
		DataDir: opts.DataDir,
		Engine:  opts.Engine,
		Restore: restore,
		Logger:  newLogger(os.Stderr, opts.Verbose),
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var httpServer *http.Server

		hooks.OnStart(func() {
			srv := newServer(opts, opts.Restore)
			defer srv.Close()

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-overlay API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Printf("  Engine:  %s\n", opts.Engine)
			fmt.Println()
			fmt.Printf("  Style:   %s/api/v1/style\n", baseURL)
			fmt.Printf("  Events:  %s/api/v1/events\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			httpServer = &http.Server{
				Addr:              addr,
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal("server error", "err", err)
			}
		})

		hooks.OnStop(func() {
			if httpServer != nil {
				httpServer.Close()
			}
		})
	})

	cli.Root().Use = "overlay"
	cli.Root().Short = "Synchronize declarative map overlays with a map engine"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts, false)
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")
			if err := writeDocument(os.Stdout, spec, useYAML); err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	cli.Root().AddCommand(newRenderCmd())

	cli.Run()
}

// writeDocument writes v as indented JSON, or as YAML when asYAML is set.
// YAML goes through JSON first so custom JSON marshalers shape both outputs.
func writeDocument(w io.Writer, v any, asYAML bool) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if asYAML {
		var generic any
		if err := json.Unmarshal(output, &generic); err != nil {
			return err
		}
		if output, err = yaml.Marshal(generic); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}
