package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"wildlifecore/internal/blob"
	"wildlifecore/internal/catalog"
	"wildlifecore/internal/config"
)

// app carries the per-invocation runtime built in PersistentPreRunE.
type app struct {
	configPath string
	logger     *slog.Logger
	svc        *catalog.Service
	closer     io.Closer
	metrics    *prometheus.Registry
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "wildlifectl",
		Short:         "Manage a hierarchical wildlife catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML config file (default ./wildlife.yaml when present)")
	flags.String("storage-driver", "", "catalog storage backend: memory, sqlite or postgres")
	flags.String("sqlite-path", "", "sqlite database file")
	flags.String("postgres-dsn", "", "postgres connection string")
	flags.String("blob-driver", "", "image storage backend: fs, s3 or memory")
	flags.String("blob-root", "", "root directory for the fs blob driver")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	flags.Bool("metrics-prometheus", false, "print prometheus metrics to stderr when the command finishes")
	flags.Bool("trace", false, "write a JSON trace line per catalog operation to stderr")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return a.setup(cmd)
	}
	root.PersistentPostRunE = func(*cobra.Command, []string) error {
		return a.close()
	}

	root.AddCommand(
		taxonomyCommand(a),
		categoryCommand(a),
		fieldCommand(a),
		recordCommand(a),
		imageCommand(a),
		searchCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	a.logger = cfg.Logger(cmd.ErrOrStderr())
	ctx := cmd.Context()

	store, err := catalog.OpenPersistentStore(ctx, cfg.StorageConfig(), catalog.NewDefaultRulesEngine(), a.logger)
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		a.closer = c
	}
	blobs, err := blob.Open(ctx, cfg.BlobConfig())
	if err != nil {
		_ = a.close()
		return fmt.Errorf("open blob store: %w", err)
	}

	opts := []catalog.Option{catalog.WithLogger(a.logger), catalog.WithBlobStore(blobs)}
	var recorders catalog.MetricsRecorders
	if name := cfg.Metrics.ExpvarName; name != "" {
		recorders = append(recorders, catalog.NewExpvarMetricsRecorder(name))
	}
	if cfg.Metrics.Prometheus {
		a.metrics = prometheus.NewRegistry()
		recorders = append(recorders, catalog.NewPrometheusRecorder(a.metrics))
	}
	if len(recorders) > 0 {
		opts = append(opts, catalog.WithMetricsRecorder(recorders))
	}
	if cfg.Trace.Enabled {
		opts = append(opts, catalog.WithTracer(catalog.NewJSONTracer(cmd.ErrOrStderr())))
	}
	a.svc = catalog.NewService(store, opts...)
	return nil
}

// writeMetrics dumps the prometheus registry in text exposition format. It
// runs after failed commands too, which skip the post-run hooks.
func (a *app) writeMetrics(w io.Writer) error {
	if a.metrics == nil {
		return nil
	}
	families, err := a.metrics.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func (a *app) close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func parseIDs(raw []string) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		id, err := parseID(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// optionalID returns nil when the flag was not given.
func optionalID(cmd *cobra.Command, name string) (*int64, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	v, err := cmd.Flags().GetInt64(name)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
