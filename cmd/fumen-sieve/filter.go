package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/park285/fumen-sieve/internal/cache"
	"github.com/park285/fumen-sieve/internal/config"
	"github.com/park285/fumen-sieve/internal/obslog"
	"github.com/park285/fumen-sieve/internal/pipeline"
	"github.com/park285/fumen-sieve/internal/records"
	"github.com/park285/fumen-sieve/internal/render"
	"github.com/park285/fumen-sieve/internal/repository"
)

func init() {
	filterCmd := &cobra.Command{
		Use:   "filter",
		Short: "Filter a CSV of fumen references",
		RunE:  runFilter,
	}
	addFilterFlags(filterCmd)
	rootCmd.AddCommand(filterCmd)

	// bare invocation filters, as in `fumen-sieve -f path.csv -b JLO -a SZ -l 2`
	rootCmd.RunE = runFilter
	addFilterFlags(rootCmd)
}

func addFilterFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("file", "f", "", "CSV file from solution-finder spin output")
	f.StringP("before-t", "b", "", "pieces placed before the pivot, in order")
	f.StringP("after-t", "a", "", "pieces placed after the pivot, in order")
	f.IntP("line", "l", 0, "maximum cleared lines")
	f.String("pivot", "T", "pivot piece")
	f.Int("metric-column", records.DefaultMetricColumn, "CSV column holding the line count")
	f.String("prefix", config.DefaultReferencePrefix, "reference prefix in front of fumen data")
	f.String("redis-url", "", "Redis URL for the verdict cache")
	f.String("database-url", "", "Postgres URL for storing accepted references")
	f.String("render-dir", "", "directory for PNG renders of accepted boards")
}

func runFilter(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateFilter(); err != nil {
		return err
	}
	groups, err := cfg.Groups()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	src, file, err := records.Open(cfg.Source, records.WithColumns(cfg.ReferenceColumn, cfg.MetricColumn))
	if err != nil {
		return err
	}
	defer file.Close()

	var opts []pipeline.Option
	if cfg.RedisURL != "" {
		rdb, err := cache.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		opts = append(opts, pipeline.WithCache(cache.NewStore(rdb)))
	}

	var repo *repository.Repository
	if cfg.DatabaseURL != "" {
		if repo, err = repository.NewRepository(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("repository init: %w", err)
		}
		defer repo.Close()
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		opts = append(opts, pipeline.WithAcceptedSink(repo))
	}
	runID, err := repo.StartRun(ctx, cfg.Source, groups.Key(), cfg.MaxMetric)
	if err != nil {
		return err
	}

	if cfg.RenderDir != "" {
		if err := os.MkdirAll(cfg.RenderDir, 0o755); err != nil {
			return fmt.Errorf("render dir: %w", err)
		}
		opts = append(opts, pipeline.WithImages(render.NewSVGRenderer(), pngWriter(cfg.RenderDir)))
	}

	log := obslog.L().With(zap.String("run_id", runID))
	log.Info("sieve_run_start",
		zap.String("source", cfg.Source),
		zap.String("groups", groups.Key()),
		zap.Int("max_metric", cfg.MaxMetric),
	)

	p := pipeline.New(pipeline.Config{
		Groups:          groups,
		MaxMetric:       cfg.MaxMetric,
		ReferencePrefix: cfg.ReferencePrefix,
		RunID:           runID,
	}, cmd.OutOrStdout(), opts...)
	st, runErr := p.Run(ctx, src)

	log.Info("sieve_run_done",
		zap.Int("read", st.Read),
		zap.Int("accepted", st.Accepted),
		zap.Int("no_reference", st.NoReference),
		zap.Int("over_metric", st.OverMetric),
		zap.Int("rejected_gap", st.RejectedGap),
		zap.Int("rejected_before", st.RejectedBefore),
		zap.Int("rejected_after", st.RejectedAfter),
		zap.Int("cache_hits", st.CacheHits),
		zap.Error(runErr),
	)
	if err := repo.FinishRun(ctx, runID, st.Read, st.Accepted); err != nil {
		log.Warn("sieve_run_finish", zap.Error(err))
	}
	return runErr
}

func pngWriter(dir string) pipeline.ImageSink {
	return func(ordinal int, rec records.Record, png []byte) error {
		name := filepath.Join(dir, fmt.Sprintf("%05d-line%d.png", ordinal+1, rec.Line))
		if err := os.WriteFile(name, png, 0o644); err != nil {
			return fmt.Errorf("write render: %w", err)
		}
		return nil
	}
}
