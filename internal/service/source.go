package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeblew999/plat-overlay/internal/geodata"
	"github.com/joeblew999/plat-overlay/internal/overlay"
)

// ErrInvalidFilename is returned for source names that escape the sources
// directory or have an unsupported extension.
var ErrInvalidFilename = errors.New("invalid source filename")

// sourceExts are the GeoJSON extensions an overlay can load.
var sourceExts = map[string]bool{
	".geojson": true,
	".json":    true,
}

// SourceService manages GeoJSON source files.
type SourceService struct {
	sourcesDir string
}

// NewSourceService creates a new source service.
func NewSourceService(dataDir string) *SourceService {
	return &SourceService{
		sourcesDir: filepath.Join(dataDir, "sources"),
	}
}

// List returns all available source files.
func (s *SourceService) List() ([]SourceFile, error) {
	entries, err := os.ReadDir(s.sourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SourceFile{}, nil
		}
		return nil, err
	}

	files := []SourceFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !sourceExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, SourceFile{
			Name:     entry.Name(),
			Size:     formatSize(info.Size()),
			FileType: "GeoJSON",
		})
	}

	return files, nil
}

// Load reads and decodes a source file. Every call returns a new value.
func (s *SourceService) Load(filename string) (overlay.Data, error) {
	if strings.Contains(filename, "/") || strings.Contains(filename, "\\") || strings.Contains(filename, "..") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !sourceExts[ext] {
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrInvalidFilename, ext)
	}

	raw, err := os.ReadFile(filepath.Join(s.sourcesDir, filename))
	if err != nil {
		return nil, fmt.Errorf("read source %q: %w", filename, err)
	}
	data, err := geodata.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode source %q: %w", filename, err)
	}
	return data, nil
}

// SourcesDir returns the path to the sources directory.
func (s *SourceService) SourcesDir() string {
	return s.sourcesDir
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
