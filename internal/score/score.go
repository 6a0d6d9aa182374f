// Package score computes the normalized crossing-difficulty index for
// road segments and classifies it into presentation labels.
package score

import (
	"math"

	"github.com/safestreets/crossing-cli/internal/model"
)

// Weights combines the four sub-scores into the difficulty index.
// The four weights must sum to 1.
type Weights struct {
	Distance float64 `yaml:"distance" mapstructure:"distance"`
	Speed    float64 `yaml:"speed" mapstructure:"speed"`
	Lanes    float64 `yaml:"lanes" mapstructure:"lanes"`
	Volume   float64 `yaml:"volume" mapstructure:"volume"`
}

// DefaultWeights is the documented default: equal weighting.
var DefaultWeights = Weights{Distance: 0.25, Speed: 0.25, Lanes: 0.25, Volume: 0.25}

// Sum returns the total of the four weights.
func (w Weights) Sum() float64 {
	return w.Distance + w.Speed + w.Lanes + w.Volume
}

// DefaultOverrideClasses are the highway classes whose difficulty index
// is forced to exactly zero.
var DefaultOverrideClasses = []string{"residential", "living_street", "service"}

// distanceNormalization is the denominator of the distance sub-score;
// distances at or beyond it score 1.0. The stored output distance is
// capped at the same value.
const distanceNormalization = 500.0

// volumeByClass maps highway classes onto [0,1] by typical traffic
// volume. Link variants score as their parent class.
var volumeByClass = map[string]float64{
	"trunk":          1.0,
	"trunk_link":     1.0,
	"primary":        0.9,
	"primary_link":   0.9,
	"secondary":      0.7,
	"secondary_link": 0.7,
	"tertiary":       0.55,
	"tertiary_link":  0.55,
	"unclassified":   0.4,
	"residential":    0.2,
	"living_street":  0.1,
	"service":        0.1,
}

// speedScoreDefaults supplies the speed sub-score when maxspeed is
// missing or unparseable, keyed by highway class.
var speedScoreDefaults = map[string]float64{
	"trunk":          0.75,
	"trunk_link":     0.75,
	"primary":        0.625,
	"primary_link":   0.625,
	"secondary":      0.5,
	"secondary_link": 0.5,
	"tertiary":       0.375,
	"tertiary_link":  0.375,
	"unclassified":   0.375,
	"residential":    0.25,
	"living_street":  0.125,
	"service":        0.125,
}

// lanesScoreDefaults supplies the lanes sub-score when the lane count
// is unknown, keyed by highway class.
var lanesScoreDefaults = map[string]float64{
	"trunk":          0.6,
	"trunk_link":     0.4,
	"primary":        0.4,
	"primary_link":   0.2,
	"secondary":      0.4,
	"secondary_link": 0.2,
	"tertiary":       0.2,
	"tertiary_link":  0.2,
	"unclassified":   0.2,
	"residential":    0.2,
	"living_street":  0.0,
	"service":        0.0,
}

const classDefaultFallback = 0.5

// Config carries the scoring parameters fixed for a pipeline run.
type Config struct {
	Weights         Weights
	OverrideClasses map[string]bool
}

// NewConfig builds a Config, substituting documented defaults for zero
// values.
func NewConfig(weights Weights, overrideClasses []string) Config {
	if weights.Sum() == 0 {
		weights = DefaultWeights
	}
	if len(overrideClasses) == 0 {
		overrideClasses = DefaultOverrideClasses
	}
	set := make(map[string]bool, len(overrideClasses))
	for _, c := range overrideClasses {
		set[c] = true
	}
	return Config{Weights: weights, OverrideClasses: set}
}

// DistanceScore maps distance-to-marked-crossing onto [0,1]. A nil
// distance (no candidate anywhere in scope) scores the maximum 1.0.
func DistanceScore(distance *float64) float64 {
	if distance == nil {
		return 1.0
	}
	return clamp01(*distance / distanceNormalization)
}

// SpeedScore maps a known speed limit onto [0,1], or falls back to the
// class default.
func SpeedScore(speedMPH *float64, class string) float64 {
	if speedMPH == nil {
		return classDefault(speedScoreDefaults, class)
	}
	return clamp01((*speedMPH - 20) / 40)
}

// LanesScore maps a known lane count onto [0,1], or falls back to the
// class default.
func LanesScore(lanes *int, class string) float64 {
	if lanes == nil {
		return classDefault(lanesScoreDefaults, class)
	}
	return clamp01(float64(*lanes-1) / 5)
}

// VolumeScore is the ordinal traffic-volume score for a highway class.
func VolumeScore(class string) float64 {
	if v, ok := volumeByClass[class]; ok {
		return v
	}
	return classDefaultFallback
}

// Index combines the sub-scores into the difficulty index. Segments on
// an override class are forced to exactly zero regardless of the
// weighted sum.
func (c Config) Index(distanceScore, speedScore, lanesScore, volumeScore float64, class string) float64 {
	if c.OverrideClasses[class] {
		return 0
	}
	sum := c.Weights.Distance*distanceScore +
		c.Weights.Speed*speedScore +
		c.Weights.Lanes*lanesScore +
		c.Weights.Volume*volumeScore
	return clamp01(sum)
}

// Segment scores one segment given its resolved nearest-crossing data
// and the parsed attributes of its parent road.
func (c Config) Segment(seg model.RoadSegment, near model.NearestCrossing, tags model.Tags) model.ScoredSegment {
	scored := model.ScoredSegment{
		RoadSegment:       seg,
		NearestCrossingID: near.CrossingID,
		DistanceToMarked:  cappedDistance(near.Distance),
		NearestIsMarked:   near.CrossingID != nil,
	}
	if v, ok := tags.SpeedMPH(); ok {
		scored.SpeedMPH = &v
	}
	if n, ok := tags.LaneCount(); ok {
		scored.LaneCount = &n
	}

	scored.DistanceScore = DistanceScore(near.Distance)
	scored.SpeedScore = SpeedScore(scored.SpeedMPH, seg.Class)
	scored.LanesScore = LanesScore(scored.LaneCount, seg.Class)
	scored.VolumeScore = VolumeScore(seg.Class)
	scored.DifficultyIndex = c.Index(scored.DistanceScore, scored.SpeedScore, scored.LanesScore, scored.VolumeScore, seg.Class)
	return scored
}

// cappedDistance caps the stored distance at the normalization constant
// per the output contract. Nil stays nil.
func cappedDistance(d *float64) *float64 {
	if d == nil {
		return nil
	}
	v := math.Min(*d, distanceNormalization)
	return &v
}

// Label buckets a difficulty index using the fixed public breakpoints.
func Label(index float64) string {
	switch {
	case index < 0.2:
		return "easy"
	case index < 0.4:
		return "medium"
	case index < 0.6:
		return "hard"
	default:
		return "severe"
	}
}

func classDefault(defaults map[string]float64, class string) float64 {
	if v, ok := defaults[class]; ok {
		return v
	}
	return classDefaultFallback
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
