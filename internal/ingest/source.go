// Package ingest loads raw point and line features from external
// feature stores into the pipeline's domain model.
package ingest

import (
	"context"

	"github.com/safestreets/crossing-cli/internal/model"
)

// FeatureSource supplies the raw feature set for a pipeline run.
type FeatureSource interface {
	// Features returns every usable feature in the source. Malformed
	// records are skipped, never fatal.
	Features(ctx context.Context) ([]model.Feature, error)
}

// BBoxSource narrows another source to the features intersecting an
// envelope, so a city-wide extract can be scored one district at a time.
type BBoxSource struct {
	src                    FeatureSource
	minX, minY, maxX, maxY float64
}

// NewBBoxSource wraps src with an envelope filter.
func NewBBoxSource(src FeatureSource, minX, minY, maxX, maxY float64) *BBoxSource {
	return &BBoxSource{src: src, minX: minX, minY: minY, maxX: maxX, maxY: maxY}
}

func (s *BBoxSource) Features(ctx context.Context) ([]model.Feature, error) {
	features, err := s.src.Features(ctx)
	if err != nil {
		return nil, err
	}
	return FilterBBox(features, s.minX, s.minY, s.maxX, s.maxY), nil
}

// TagSource narrows another source to the features carrying a tag.
type TagSource struct {
	src        FeatureSource
	key, value string
}

// NewTagSource wraps src with a tag filter. An empty value matches any
// non-empty value of the key.
func NewTagSource(src FeatureSource, key, value string) *TagSource {
	return &TagSource{src: src, key: key, value: value}
}

func (s *TagSource) Features(ctx context.Context) ([]model.Feature, error) {
	features, err := s.src.Features(ctx)
	if err != nil {
		return nil, err
	}
	return FilterTag(features, s.key, s.value), nil
}

// FilterBBox returns the features whose bounding box intersects the
// given envelope.
func FilterBBox(features []model.Feature, minX, minY, maxX, maxY float64) []model.Feature {
	var out []model.Feature
	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bounds()
		if b.Max(0) < minX || b.Min(0) > maxX || b.Max(1) < minY || b.Min(1) > maxY {
			continue
		}
		out = append(out, f)
	}
	return out
}

// FilterTag returns the features carrying the given tag value. An empty
// value matches any non-empty value of the key.
func FilterTag(features []model.Feature, key, value string) []model.Feature {
	var out []model.Feature
	for _, f := range features {
		v := f.Tags.Value(key)
		if v == "" {
			continue
		}
		if value != "" && v != value {
			continue
		}
		out = append(out, f)
	}
	return out
}
