// Package geomath provides the planar geometry helpers the pipeline
// needs beyond what go-geom's xy package ships: geometry-type dispatch
// for point distance, parametric substrings, and R-tree bounds. All
// inputs are assumed to share a single projected coordinate frame;
// distances are Euclidean in that frame's units.
package geomath

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// EqualXY reports exact coordinate equality on X and Y.
func EqualXY(a, b geom.Coord) bool {
	return a[0] == b[0] && a[1] == b[1]
}

// Endpoints returns the first and last coordinates of a LineString.
func Endpoints(ls *geom.LineString) (start, end geom.Coord) {
	return ls.Coord(0), ls.Coord(ls.NumCoords() - 1)
}

// PointToLine returns the minimum distance from p to the polyline ls.
func PointToLine(p geom.Coord, ls *geom.LineString) float64 {
	if ls.NumCoords() == 1 {
		return xy.Distance(p, ls.Coord(0))
	}
	return xy.DistanceFromPointToLineString(ls.Layout(), p, ls.FlatCoords())
}

// PointToGeom returns the minimum distance from p to a point, line, or
// multi-line geometry. Unsupported geometry types report +Inf.
func PointToGeom(p geom.Coord, g geom.T) float64 {
	switch t := g.(type) {
	case *geom.Point:
		return xy.Distance(p, t.Coords())
	case *geom.LineString:
		return PointToLine(p, t)
	case *geom.MultiLineString:
		min := math.Inf(1)
		for i := 0; i < t.NumLineStrings(); i++ {
			if d := PointToLine(p, t.LineString(i)); d < min {
				min = d
			}
		}
		return min
	default:
		return math.Inf(1)
	}
}

// interpolate returns the coordinate at fraction t along segment ab.
func interpolate(a, b geom.Coord, t float64) geom.Coord {
	return geom.Coord{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
}

// Substring returns the part of ls between the fractional positions
// from and to of its total length, with interpolated endpoints. Both
// arguments are clamped to [0,1]; from must not exceed to.
func Substring(ls *geom.LineString, from, to float64) *geom.LineString {
	from = clamp01(from)
	to = clamp01(to)
	total := ls.Length()

	fromDist := from * total
	toDist := to * total

	coords := []geom.Coord{}
	walked := 0.0
	for i := 1; i < ls.NumCoords(); i++ {
		a, b := ls.Coord(i-1), ls.Coord(i)
		segLen := xy.Distance(a, b)
		if segLen == 0 {
			continue
		}
		segStart := walked
		segEnd := walked + segLen
		walked = segEnd

		if segEnd < fromDist {
			continue
		}
		if len(coords) == 0 {
			t := (fromDist - segStart) / segLen
			coords = append(coords, interpolate(a, b, t))
		}
		if toDist <= segEnd {
			t := (toDist - segStart) / segLen
			end := interpolate(a, b, t)
			if !EqualXY(coords[len(coords)-1], end) {
				coords = append(coords, end)
			}
			break
		}
		if !EqualXY(coords[len(coords)-1], b) {
			coords = append(coords, b)
		}
	}

	// Degenerate slice: collapse to a zero-length two-point line at the
	// interpolated position so callers still get a valid LineString.
	if len(coords) < 2 {
		var at geom.Coord
		if len(coords) == 1 {
			at = coords[0]
		} else {
			at = ls.Coord(ls.NumCoords() - 1)
		}
		coords = []geom.Coord{at, at}
	}

	flat := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		flat = append(flat, c[0], c[1])
	}
	return geom.NewLineStringFlat(geom.XY, flat)
}

// BoundsRect returns the [min, max] corners of a geometry's bounding
// box expanded by pad on every side, in the form the R-tree expects.
func BoundsRect(g geom.T, pad float64) (min, max [2]float64) {
	b := g.Bounds()
	min = [2]float64{b.Min(0) - pad, b.Min(1) - pad}
	max = [2]float64{b.Max(0) + pad, b.Max(1) + pad}
	return min, max
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
