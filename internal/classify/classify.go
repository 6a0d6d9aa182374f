// Package classify labels raw features as roads or crossing points
// using fixed tag vocabularies.
package classify

import (
	"go.uber.org/zap"

	"github.com/twpayne/go-geom"

	"github.com/safestreets/crossing-cli/internal/model"
)

// CrossingTypeUnknown is assigned when the crossing tag is absent or empty.
const CrossingTypeUnknown = "unknown"

// CrossingTypeUnmarked is the tag value identifying unmarked crossings.
const CrossingTypeUnmarked = "unmarked"

// drivableClasses is the highway tag vocabulary accepted as roads.
var drivableClasses = map[string]bool{
	"residential":    true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"living_street":  true,
	"service":        true,
	"unclassified":   true,
}

// markedCrossingTypes is the crossing tag vocabulary treated as legally marked.
var markedCrossingTypes = map[string]bool{
	"controlled":         true,
	"marked":             true,
	"pedestrian_signals": true,
	"traffic_signals":    true,
	"zebra":              true,
	"uncontrolled":       true,
}

// IsDrivable reports whether a highway class belongs to the road vocabulary.
func IsDrivable(class string) bool {
	return drivableClasses[class]
}

// Roads extracts one Road per line feature whose highway tag is in the
// drivable vocabulary. Features with missing or empty geometry are
// skipped, never fatal.
func Roads(features []model.Feature) []model.Road {
	log := zap.L().With(zap.String("component", "classify"))

	var roads []model.Road
	for _, f := range features {
		if f.Kind != model.KindLine {
			continue
		}
		class := f.Tags.Value("highway")
		if !drivableClasses[class] {
			continue
		}
		if !usableLine(f.Geometry) {
			log.Debug("skipping road feature with unusable geometry", zap.Int64("id", f.ID))
			continue
		}
		roads = append(roads, model.Road{
			ID:       f.ID,
			Name:     f.Tags.Value("name"),
			Class:    class,
			Tags:     f.Tags,
			Geometry: f.Geometry,
		})
	}
	return roads
}

// Crossings extracts one CrossingPoint per point feature tagged
// highway=crossing. The crossing type falls back to "unknown"; a value
// outside every vocabulary leaves both Marked and Unmarked false.
func Crossings(features []model.Feature) []model.CrossingPoint {
	log := zap.L().With(zap.String("component", "classify"))

	var crossings []model.CrossingPoint
	for _, f := range features {
		if f.Kind != model.KindPoint {
			continue
		}
		if f.Tags.Value("highway") != "crossing" {
			continue
		}
		pt, ok := f.Geometry.(*geom.Point)
		if !ok || pt == nil {
			log.Debug("skipping crossing feature with unusable geometry", zap.Int64("id", f.ID))
			continue
		}

		crossingType := f.Tags.Value("crossing")
		if crossingType == "" {
			crossingType = CrossingTypeUnknown
		}

		// An explicit crossing=unmarked wins over auxiliary marking tags;
		// marked and unmarked must never both be true.
		unmarked := crossingType == CrossingTypeUnmarked
		marked := !unmarked && (markedCrossingTypes[crossingType] ||
			auxiliaryMarked(f.Tags, "crossing:markings") ||
			auxiliaryMarked(f.Tags, "crossing:signals"))

		crossings = append(crossings, model.CrossingPoint{
			ID:       f.ID,
			Type:     crossingType,
			Marked:   marked,
			Unmarked: unmarked,
			Geometry: pt,
		})
	}
	return crossings
}

// auxiliaryMarked reports whether an auxiliary crossing tag is present
// with a value other than "no".
func auxiliaryMarked(tags model.Tags, key string) bool {
	v := tags.Value(key)
	return v != "" && v != "no"
}

// usableLine reports whether g is a non-empty line geometry.
func usableLine(g geom.T) bool {
	switch t := g.(type) {
	case *geom.LineString:
		return t.NumCoords() >= 2
	case *geom.MultiLineString:
		for i := 0; i < t.NumLineStrings(); i++ {
			if t.LineString(i).NumCoords() >= 2 {
				return true
			}
		}
		return false
	default:
		return false
	}
}
