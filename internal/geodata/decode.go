// Package geodata turns GeoJSON payloads and source files into overlay data.
package geodata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-overlay/internal/overlay"
)

// ErrInvalidData is returned for payloads that are not GeoJSON or a URL.
var ErrInvalidData = errors.New("invalid geometry data")

// Decode parses raw JSON into overlay data. Every call allocates a new value,
// so decoded payloads never share identity with earlier ones.
//
//	FeatureCollection → *geojson.FeatureCollection
//	Feature           → *geojson.Feature
//	Point, Polygon …  → *geojson.Geometry
//	"https://…"       → string (fetched by the engine)
func Decode(raw []byte) (overlay.Data, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidData)
	}

	if raw[0] == '"' {
		var url string
		if err := json.Unmarshal(raw, &url); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		if url == "" {
			return nil, fmt.Errorf("%w: empty url", ErrInvalidData)
		}
		return url, nil
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		return fc, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		return f, nil
	case "Point", "MultiPoint", "LineString", "MultiLineString", "Polygon", "MultiPolygon", "GeometryCollection":
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		return g, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrInvalidData)
	}
	return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidData, head.Type)
}

// DecodeValue decodes an already unmarshaled JSON value, such as a request
// body field typed as any.
func DecodeValue(v any) (overlay.Data, error) {
	if s, ok := v.(string); ok {
		if s == "" {
			return nil, fmt.Errorf("%w: empty url", ErrInvalidData)
		}
		return s, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return Decode(raw)
}

// Summary describes a decoded payload for logs and listings.
type Summary struct {
	Kind     string    `json:"kind" doc:"Payload kind" example:"FeatureCollection"`
	Features int       `json:"features" doc:"Number of features"`
	Bound    orb.Bound `json:"bound" doc:"Bounding box of all geometries"`
	URL      string    `json:"url,omitempty" doc:"Remote data URL"`
}

// Summarize reports what data holds.
func Summarize(data overlay.Data) Summary {
	switch d := data.(type) {
	case *geojson.FeatureCollection:
		s := Summary{Kind: "FeatureCollection", Features: len(d.Features)}
		seen := false
		for _, f := range d.Features {
			if f.Geometry == nil {
				continue
			}
			if !seen {
				s.Bound = f.Geometry.Bound()
				seen = true
				continue
			}
			s.Bound = s.Bound.Union(f.Geometry.Bound())
		}
		return s
	case *geojson.Feature:
		s := Summary{Kind: "Feature", Features: 1}
		if d.Geometry != nil {
			s.Bound = d.Geometry.Bound()
		}
		return s
	case *geojson.Geometry:
		s := Summary{Kind: "Geometry"}
		if g := d.Geometry(); g != nil {
			s.Kind = g.GeoJSONType()
			s.Bound = g.Bound()
		}
		return s
	case string:
		return Summary{Kind: "URL", URL: d}
	}
	return Summary{Kind: fmt.Sprintf("%T", data)}
}
