// Package model holds the domain types shared by the crossing pipeline stages.
package model

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
)

// Kind identifies the geometry family of a raw feature.
type Kind string

const (
	KindPoint Kind = "point"
	KindLine  Kind = "line"
)

// Tags is the string key/value tag map carried by every raw feature.
// All typed access goes through the accessor methods, which fail soft
// on malformed values instead of returning errors.
type Tags map[string]string

// Value returns the tag value for key, or "" when absent.
func (t Tags) Value(key string) string {
	if t == nil {
		return ""
	}
	return t[key]
}

// Has reports whether key is present with a non-empty value.
func (t Tags) Has(key string) bool {
	return t.Value(key) != ""
}

const kmhToMPH = 0.621371

var (
	mphRegExp     = regexp.MustCompile(`^(\d+\.?\d*)\s*mph$`)
	kmhRegExp     = regexp.MustCompile(`^(\d+\.?\d*)\s*km/h$`)
	numericRegExp = regexp.MustCompile(`^\d+\.?\d*$`)
)

// SpeedMPH parses the maxspeed tag into miles per hour. Values suffixed
// "mph" are taken as-is; "km/h" suffixed and bare numeric values are
// treated as km/h and converted. Anything else (absent, "signals",
// "walk", ...) yields ok=false.
func (t Tags) SpeedMPH() (float64, bool) {
	raw := strings.TrimSpace(t.Value("maxspeed"))
	if raw == "" {
		return 0, false
	}
	if m := mphRegExp.FindStringSubmatch(raw); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	if m := kmhRegExp.FindStringSubmatch(raw); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		return v * kmhToMPH, true
	}
	if numericRegExp.MatchString(raw) {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, false
		}
		return v * kmhToMPH, true
	}
	return 0, false
}

// LaneCount parses the lane count for a road. A plain-integer lanes tag
// wins; otherwise (missing or malformed, like "2; 3") lanes:forward and
// lanes:backward are summed when both are plain integers, else ok=false.
func (t Tags) LaneCount() (int, bool) {
	if raw := strings.TrimSpace(t.Value("lanes")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n, true
		}
	}
	fwd := strings.TrimSpace(t.Value("lanes:forward"))
	bwd := strings.TrimSpace(t.Value("lanes:backward"))
	if fwd == "" || bwd == "" {
		return 0, false
	}
	nf, err := strconv.Atoi(fwd)
	if err != nil {
		return 0, false
	}
	nb, err := strconv.Atoi(bwd)
	if err != nil {
		return 0, false
	}
	return nf + nb, true
}

// Feature is a raw point or line record from the feature source.
// Immutable once ingested.
type Feature struct {
	ID       int64
	Kind     Kind
	Tags     Tags
	Geometry geom.T
}
