package ingest

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/safestreets/crossing-cli/internal/model"
)

// GeoJSONSource reads features from a GeoJSON FeatureCollection file.
// Coordinates are taken as already being in the working projection.
type GeoJSONSource struct {
	Path string
}

// NewGeoJSONSource creates a source for the given file path.
func NewGeoJSONSource(path string) *GeoJSONSource {
	return &GeoJSONSource{Path: path}
}

// idProperties are checked in order for a stable numeric feature id.
var idProperties = []string{"@id", "id", "osm_id"}

// Features implements FeatureSource. Features with unsupported or empty
// geometry are skipped with a debug log. The feature id comes from an
// id-like property when one parses as an integer, otherwise from the
// feature's ordinal position (stable for a fixed input file).
func (s *GeoJSONSource) Features(ctx context.Context) ([]model.Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "ingest: geojson source")
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", s.Path)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "ingest: parse %s", s.Path)
	}

	log := zap.L().With(zap.String("component", "ingest.geojson"))

	var features []model.Feature
	skipped := 0
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			skipped++
			continue
		}
		kind, ok := kindOf(f.Geometry)
		if !ok {
			skipped++
			continue
		}
		tags := tagsFromProperties(f.Properties)
		features = append(features, model.Feature{
			ID:       featureID(tags, int64(i)),
			Kind:     kind,
			Tags:     tags,
			Geometry: f.Geometry,
		})
	}
	if skipped > 0 {
		log.Debug("skipped unusable features", zap.Int("skipped", skipped))
	}
	log.Info("geojson features loaded", zap.String("path", s.Path), zap.Int("features", len(features)))
	return features, nil
}

// kindOf classifies a geometry into the pipeline's feature kinds.
func kindOf(g geom.T) (model.Kind, bool) {
	switch t := g.(type) {
	case *geom.Point:
		return model.KindPoint, true
	case *geom.LineString:
		return model.KindLine, t.NumCoords() >= 2
	case *geom.MultiLineString:
		return model.KindLine, t.NumLineStrings() > 0
	default:
		return "", false
	}
}

// tagsFromProperties flattens GeoJSON properties into string tags.
func tagsFromProperties(props map[string]interface{}) model.Tags {
	tags := make(model.Tags, len(props))
	for k, v := range props {
		switch val := v.(type) {
		case string:
			tags[k] = val
		case float64:
			tags[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			if val {
				tags[k] = "yes"
			} else {
				tags[k] = "no"
			}
		}
	}
	return tags
}

// featureID extracts a stable numeric id from id-like properties,
// falling back to the given ordinal.
func featureID(tags model.Tags, ordinal int64) int64 {
	for _, key := range idProperties {
		raw := tags.Value(key)
		if raw == "" {
			continue
		}
		// OSM exports often prefix ids, e.g. "way/12345".
		if i := strings.LastIndexByte(raw, '/'); i >= 0 {
			raw = raw[i+1:]
		}
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return id
		}
	}
	return ordinal
}
