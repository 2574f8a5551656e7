package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/blobio"
	blobprom "github.com/hupe1980/blobio/metrics/prometheus"
	"github.com/hupe1980/blobio/resource"
)

// EnvPrefix is prepended to every environment variable read by the CLI.
const EnvPrefix = "BLOBIO"

// Build-time variables (set via -ldflags).
var (
	Version   = "dev"
	GitCommit = "unknown"
)

type app struct {
	v      *viper.Viper
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// newClient builds the backend client; replaced in tests.
	newClient func(ctx context.Context, v *viper.Viper) (blobio.Client, error)

	storage   *blobio.Storage
	resources *resource.Controller
	registry  *prometheus.Registry
}

func newApp() *app {
	return &app{
		v:         viper.New(),
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		newClient: newClient,
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "blobio",
		Short:         "Stream objects in and out of blob storage",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.dumpMetrics()
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("blobio {{.Version}} (%s)\n", GitCommit))
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	f := root.PersistentFlags()
	f.String("config", "", "Path to a config file (yaml, toml or json)")
	f.String("backend", "memory", "Backend: azure, s3, minio, objstore or memory")
	f.String("log-level", "warn", "Log level: debug, info, warn or error")
	f.Int("block-size", blobio.DefaultBlockSize, "Upload block size in bytes")
	f.Int("read-buffer", blobio.DefaultReadBufferSize, "Read chunk size in bytes")
	f.Int("concurrency", blobio.DefaultUploadConcurrency, "Blocks staged in parallel per upload")
	f.Int("batch-workers", blobio.DefaultBatchWorkers, "Workers per batch")
	f.Int("retry-attempts", blobio.DefaultRetryPolicy().MaxAttempts, "Attempts per RPC, including the first")
	f.Duration("attempt-timeout", blobio.DefaultRetryPolicy().AttemptTimeout, "Deadline of a single RPC attempt")
	f.Int64("io-limit", 0, "Transfer limit in bytes per second (0 = unlimited)")
	f.Int64("max-requests", 0, "RPCs in flight (0 = unlimited)")
	f.String("content-type", blobio.DefaultContentType, "Content type of uploaded objects")
	f.Bool("metrics", false, "Print Prometheus metrics to stderr on exit")

	// Backend settings.
	f.String("azure-endpoint", "", "Azure endpoint template, %s is replaced by the account")
	f.String("azure-account-key", "", "Azure shared key")
	f.String("azure-sas-token", "", "Azure SAS token")
	f.String("azure-connection-string", "", "Azure connection string")
	f.String("s3-region", "", "S3 region")
	f.String("s3-endpoint", "", "S3 endpoint override (path-style)")
	f.String("minio-endpoint", "localhost:9000", "MinIO host:port")
	f.String("minio-access-key", "", "MinIO access key")
	f.String("minio-secret-key", "", "MinIO secret key")
	f.Bool("minio-secure", false, "Use TLS for MinIO")
	f.String("objstore-dir", "", "Root directory of the filesystem objstore bucket")

	_ = a.v.BindPFlags(f)

	root.AddCommand(
		a.lsCmd(),
		a.catCmd(),
		a.putCmd(),
		a.cpCmd(),
		a.rmCmd(),
		a.statCmd(),
		a.existsCmd(),
	)

	return root
}

func (a *app) init(ctx context.Context) error {
	a.v.SetEnvPrefix(EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if cfgFile := a.v.GetString("config"); cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(a.v.GetString("log-level"))); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger := blobio.NewLogger(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))

	client, err := a.newClient(ctx, a.v)
	if err != nil {
		return err
	}

	a.resources = resource.NewController(resource.Config{
		MaxConcurrentRequests: a.v.GetInt64("max-requests"),
		IOLimitBytesPerSec:    a.v.GetInt64("io-limit"),
	})

	retry := blobio.DefaultRetryPolicy()
	retry.MaxAttempts = a.v.GetInt("retry-attempts")
	retry.AttemptTimeout = a.v.GetDuration("attempt-timeout")

	opts := []blobio.Option{
		blobio.WithLogger(logger),
		blobio.WithBlockSize(a.v.GetInt("block-size")),
		blobio.WithReadBufferSize(a.v.GetInt("read-buffer")),
		blobio.WithUploadConcurrency(a.v.GetInt("concurrency")),
		blobio.WithBatchWorkers(a.v.GetInt("batch-workers")),
		blobio.WithRetryPolicy(retry),
		blobio.WithResourceController(a.resources),
		blobio.WithContentType(a.v.GetString("content-type")),
	}

	if a.v.GetBool("metrics") {
		a.registry = prometheus.NewRegistry()
		collector, err := blobprom.New(a.registry)
		if err != nil {
			return err
		}
		opts = append(opts, blobio.WithMetricsCollector(collector))
	}

	a.storage = blobio.New(client, opts...)

	return nil
}

func (a *app) dumpMetrics() error {
	if a.registry == nil {
		return nil
	}

	families, err := a.registry.Gather()
	if err != nil {
		return err
	}

	enc := expfmt.NewEncoder(a.stderr, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}

	return nil
}

func formatTime(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
