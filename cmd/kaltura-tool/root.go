package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Sternrassler/kaltura-client/pkg/client"
	"github.com/Sternrassler/kaltura-client/pkg/config"
	"github.com/Sternrassler/kaltura-client/pkg/logging"
	"github.com/Sternrassler/kaltura-client/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// rootOptions are the global flags shared by every subcommand.
type rootOptions struct {
	configPath  string
	logLevel    string
	pretty      bool
	metricsAddr string

	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "kaltura-tool",
		Short: "Kaltura media library maintenance tool",
		Long: `kaltura-tool exports, resolves, reports on and uploads Kaltura media entries.

Connection settings come from a YAML file (--config, $KALTURA_CONFIG or ./kaltura.yaml)
and KALTURA_* environment variables.

Examples:
  kaltura-tool count                                     # Number of media entries
  kaltura-tool export --out entries.jsonl                # Export every entry as JSON lines
  kaltura-tool export --out new.jsonl --lower-bound 1700000000
  kaltura-tool resolve ref-1 ref-2                       # referenceId -> entry id
  kaltura-tool resolve --entry-ids --export-file entries.jsonl
  kaltura-tool report --export-file entries.jsonl --from 2024-01-01 --to 2024-12-31 --out plays.csv
  kaltura-tool upload --file talk.mp4 --ref talk-42 --type video --title "Talk 42"`,
		SilenceUsage:      true,
		PersistentPreRunE: opts.setup,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Configuration file path")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Log level (debug, info, warn, error); overrides the configuration")
	rootCmd.PersistentFlags().BoolVar(&opts.pretty, "pretty", false,
		"Human readable console logs")
	rootCmd.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics and /health on this address while running")

	rootCmd.AddCommand(
		newLookupCmd(opts),
		newResolveCmd(opts),
		newCountCmd(opts),
		newExportCmd(opts),
		newReportCmd(opts),
		newUploadCmd(opts),
		newUploadURLCmd(opts),
		newDeleteCmd(opts),
		newBlockCmd(opts),
		newAppTokenCmd(opts),
		newSessionCmd(opts),
	)
	return rootCmd
}

// setup loads the configuration, configures logging and starts the
// metrics endpoint when one is requested.
func (o *rootOptions) setup(cmd *cobra.Command, args []string) error {
	if o.logLevel != "" {
		if _, err := logging.ParseLevel(o.logLevel); err != nil {
			return err
		}
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(o.logLevel)
	}
	if o.pretty {
		cfg.Logging.Pretty = true
	}
	if o.metricsAddr != "" {
		cfg.Metrics.Addr = o.metricsAddr
	}
	o.cfg = cfg

	o.logger = logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
		Output: cmd.ErrOrStderr(),
	}).With().Str("component", "cli").Logger()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(cmd.Context(), cfg.Metrics.Addr, o.logger); err != nil {
				o.logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}
	return nil
}

// connect creates a client from the loaded configuration. The returned
// function releases the Redis connection.
func (o *rootOptions) connect(ctx context.Context) (*client.Client, func(), error) {
	rdb := o.cfg.RedisClient()
	release := func() {}
	if rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", o.cfg.Redis.Addr, err)
		}
		o.logger.Debug().Str("addr", o.cfg.Redis.Addr).Msg("Connected to Redis")
		release = func() { closeRedis(rdb, o.logger) }
	}

	c, err := client.New(ctx, o.cfg.ClientConfig(rdb, o.logger))
	if err != nil {
		release()
		return nil, nil, err
	}
	return c, release, nil
}

func closeRedis(rdb *redis.Client, logger zerolog.Logger) {
	if err := rdb.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close Redis connection")
	}
}

// readIDs collects identifiers from args, then from a file with one
// identifier per line. "-" reads standard input.
func readIDs(args []string, path string, stdin io.Reader) ([]string, error) {
	ids := append([]string(nil), args...)
	if path == "" {
		return ids, nil
	}

	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open id file: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read id file: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if id := strings.TrimSpace(line); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
