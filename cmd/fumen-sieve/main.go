package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/park285/fumen-sieve/internal/config"
	"github.com/park285/fumen-sieve/internal/obslog"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "fumen-sieve",
	Short: "Filter solution-finder boards by gap continuity and drop-order support",
	Long: `fumen-sieve reads solution-finder CSV output and prints the fumen references whose
boards can be built in the given drop order.

Without a subcommand it runs filter.

Examples:
  fumen-sieve -f output/path.csv -b JLO -a SZI -l 2
  fumen-sieve filter -f output/path.csv -b JLO -a SZI -l 2
  fumen-sieve serve --addr :8080`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return obslog.InitFromEnv()
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
}

// loadConfig layers flags that were set explicitly on top of file and env values.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	str("file", &cfg.Source)
	str("before-t", &cfg.Before)
	str("after-t", &cfg.After)
	str("pivot", &cfg.Pivot)
	num("line", &cfg.MaxMetric)
	num("metric-column", &cfg.MetricColumn)
	str("prefix", &cfg.ReferencePrefix)
	str("redis-url", &cfg.RedisURL)
	str("database-url", &cfg.DatabaseURL)
	str("render-dir", &cfg.RenderDir)
	str("addr", &cfg.HTTPAddr)
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = obslog.L().Sync()
	if err != nil {
		os.Exit(1)
	}
}
