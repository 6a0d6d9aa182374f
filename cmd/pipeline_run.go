package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/safestreets/crossing-cli/internal/ingest"
	"github.com/safestreets/crossing-cli/internal/nearest"
	"github.com/safestreets/crossing-cli/internal/pipeline"
	"github.com/safestreets/crossing-cli/internal/score"
)

var (
	runInput  string
	runPolicy string
	runBBox   string
	runTag    string
)

var pipelineRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Score a feature extract and publish the snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		src, err := openSource(runInput)
		if err != nil {
			return err
		}
		if runBBox != "" {
			src, err = applyBBox(src, runBBox)
			if err != nil {
				return err
			}
		}
		if runTag != "" {
			key, value, _ := strings.Cut(runTag, "=")
			if key == "" {
				return eris.Errorf("tag filter must be key or key=value, got %q", runTag)
			}
			src = ingest.NewTagSource(src, key, value)
		}

		policy := nearest.Policy(cfg.Pipeline.SearchScopePolicy)
		if runPolicy != "" {
			policy = nearest.Policy(runPolicy)
		}
		if !policy.Valid() {
			return eris.Errorf("unknown search scope policy: %s", policy)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		result, err := pipeline.Run(ctx, src, st, pipeline.Options{
			SegmentLength:      cfg.Pipeline.SegmentLength,
			SnapDistance:       cfg.Pipeline.SnapDistance,
			EnrichSnapDistance: cfg.Pipeline.EnrichSnapDist,
			SearchRadius:       cfg.Pipeline.SearchRadius,
			Policy:             policy,
			Workers:            cfg.Pipeline.Workers,
			Scoring:            score.NewConfig(cfg.Scoring.Weights, cfg.Scoring.OverrideClasses),
		})
		if err != nil {
			return err
		}

		fmt.Printf("published run %s: %d roads, %d segments, %d unmarked crossings (%s)\n",
			result.RunID, result.Roads, result.Segments, result.Crossings,
			result.Duration.Round(time.Millisecond))
		return nil
	},
}

func openSource(path string) (ingest.FeatureSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return ingest.NewGeoJSONSource(path), nil
	case ".shp":
		return ingest.NewShapefileSource(path), nil
	default:
		return nil, eris.Errorf("unsupported input format: %s (want .geojson, .json or .shp)", path)
	}
}

func applyBBox(src ingest.FeatureSource, spec string) (ingest.FeatureSource, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return nil, eris.Errorf("bbox must be minx,miny,maxx,maxy, got %q", spec)
	}
	vals := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "parse bbox component %q", part)
		}
		vals[i] = v
	}
	if vals[0] > vals[2] || vals[1] > vals[3] {
		return nil, eris.Errorf("bbox min exceeds max: %q", spec)
	}
	return ingest.NewBBoxSource(src, vals[0], vals[1], vals[2], vals[3]), nil
}

func init() {
	pipelineRunCmd.Flags().StringVar(&runInput, "input", "", "feature extract to score (.geojson, .json or .shp)")
	pipelineRunCmd.Flags().StringVar(&runPolicy, "policy", "", "search scope policy: name-radius or connected-component (default from config)")
	pipelineRunCmd.Flags().StringVar(&runBBox, "bbox", "", "limit scoring to an envelope: minx,miny,maxx,maxy")
	pipelineRunCmd.Flags().StringVar(&runTag, "tag", "", "keep only features with this tag (key or key=value)")
	_ = pipelineRunCmd.MarkFlagRequired("input")
	pipelineCmd.AddCommand(pipelineRunCmd)
}
