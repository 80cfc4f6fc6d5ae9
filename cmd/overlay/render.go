package main

import (
	"fmt"
	"io"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-overlay/internal/mapengine"
	"github.com/joeblew999/plat-overlay/internal/overlay"
	"github.com/joeblew999/plat-overlay/internal/service"
)

// Manifest lists overlays to mount, in order.
type Manifest struct {
	Name     string                `yaml:"name"`
	Overlays []service.OverlaySpec `yaml:"overlays"`
}

func loadManifest(path string) (Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, nil
}

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <manifest.yaml>",
		Short: "Mount the overlays of a YAML manifest and print the resulting style",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			unmount, _ := cmd.Flags().GetBool("unmount")
			useYAML, _ := cmd.Flags().GetBool("yaml")

			m, err := loadManifest(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if err := renderManifest(os.Stdout, m, opts, unmount, useYAML); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	cmd.Flags().Bool("unmount", false, "Unmount every overlay afterwards and print the emptied style too")
	cmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	return cmd
}

// renderManifest mounts m on a fresh memory engine and writes its style.
func renderManifest(w io.Writer, m Manifest, opts *Options, unmount, asYAML bool) error {
	logger := newLogger(os.Stderr, opts.Verbose)
	engine := mapengine.NewMemory(nil)
	overlays := service.NewOverlayService(service.OverlayConfig{
		Engine:  engine,
		Sources: service.NewSourceService(opts.DataDir),
		IDs:     overlay.NewCounterGenerator(""),
		Logger:  logger,
	})

	for _, spec := range m.Overlays {
		created, err := overlays.Create(spec)
		if err != nil {
			return err
		}
		logger.Debug("mounted", "overlay", created.ID)
	}
	if err := writeStyle(w, engine, m.Name, asYAML); err != nil {
		return err
	}

	if !unmount {
		return nil
	}
	if err := overlays.DeleteAll(); err != nil {
		return err
	}
	if asYAML {
		fmt.Fprintln(w, "---")
	}
	return writeStyle(w, engine, m.Name, asYAML)
}

func writeStyle(w io.Writer, s mapengine.Styler, name string, asYAML bool) error {
	style, err := s.Style(name)
	if err != nil {
		return err
	}
	return writeDocument(w, style, asYAML)
}
