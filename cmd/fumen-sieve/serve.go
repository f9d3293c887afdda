package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/park285/fumen-sieve/internal/cache"
	"github.com/park285/fumen-sieve/internal/config"
	"github.com/park285/fumen-sieve/internal/obslog"
	"github.com/park285/fumen-sieve/internal/server"
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve single-board checks over HTTP",
		RunE:  runServe,
	}
	f := serveCmd.Flags()
	f.String("addr", ":8080", "listen address")
	f.String("prefix", config.DefaultReferencePrefix, "reference prefix in front of fumen data")
	f.String("redis-url", "", "Redis URL for the verdict cache")
	f.String("pivot", "T", "default pivot piece for requests that omit one")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	ctx := cmd.Context()

	opts := []server.Option{server.WithPivot(cfg.Pivot)}
	if cfg.RedisURL != "" {
		rdb, err := cache.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		opts = append(opts, server.WithCache(cache.NewStore(rdb)))
	}

	obslog.L().Info("sieve_http_listen", zap.String("addr", cfg.HTTPAddr))
	return server.New(cfg.ReferencePrefix, opts...).ListenAndServe(ctx, cfg.HTTPAddr)
}
