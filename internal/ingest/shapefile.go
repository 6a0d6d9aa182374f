package ingest

import (
	"context"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/safestreets/crossing-cli/internal/model"
)

// ShapefileSource reads point and polyline features from an ESRI
// shapefile; DBF attributes become tags.
type ShapefileSource struct {
	Path string
}

// NewShapefileSource creates a source for the given .shp path.
func NewShapefileSource(path string) *ShapefileSource {
	return &ShapefileSource{Path: path}
}

// Features implements FeatureSource. Unsupported shape types and shapes
// that convert to empty geometry are skipped.
func (s *ShapefileSource) Features(ctx context.Context) ([]model.Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "ingest: shapefile source")
	}
	reader, err := shp.Open(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open shapefile %s", s.Path)
	}
	defer func() { _ = reader.Close() }()

	log := zap.L().With(zap.String("component", "ingest.shapefile"))
	fields := reader.Fields()

	var features []model.Feature
	skipped := 0
	for reader.Next() {
		row, shape := reader.Shape()

		g, kind := shapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}

		tags := make(model.Tags, len(fields))
		for i, field := range fields {
			name := strings.ToLower(strings.TrimRight(field.String(), "\x00"))
			value := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if value != "" {
				tags[name] = value
			}
		}

		features = append(features, model.Feature{
			ID:       featureID(tags, int64(row)),
			Kind:     kind,
			Tags:     tags,
			Geometry: g,
		})
	}
	if skipped > 0 {
		log.Debug("skipped unsupported shapes", zap.Int("skipped", skipped))
	}
	log.Info("shapefile features loaded", zap.String("path", s.Path), zap.Int("features", len(features)))
	return features, nil
}

// shapeToGeom converts a go-shp shape to a go-geom geometry. Polylines
// with one part become a LineString, multi-part ones a MultiLineString.
func shapeToGeom(shape shp.Shape) (geom.T, model.Kind) {
	switch t := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{t.X, t.Y}), model.KindPoint

	case *shp.PolyLine:
		if t.NumParts == 0 || len(t.Points) == 0 {
			return nil, ""
		}
		var parts [][]float64
		for i := int32(0); i < t.NumParts; i++ {
			start := t.Parts[i]
			end := int32(len(t.Points))
			if i+1 < t.NumParts {
				end = t.Parts[i+1]
			}
			if end-start < 2 {
				continue
			}
			flat := make([]float64, 0, (end-start)*2)
			for j := start; j < end; j++ {
				flat = append(flat, t.Points[j].X, t.Points[j].Y)
			}
			parts = append(parts, flat)
		}
		switch len(parts) {
		case 0:
			return nil, ""
		case 1:
			return geom.NewLineStringFlat(geom.XY, parts[0]), model.KindLine
		default:
			flat := make([]float64, 0)
			ends := make([]int, 0, len(parts))
			for _, part := range parts {
				flat = append(flat, part...)
				ends = append(ends, len(flat))
			}
			return geom.NewMultiLineStringFlat(geom.XY, flat, ends), model.KindLine
		}

	default:
		return nil, ""
	}
}
