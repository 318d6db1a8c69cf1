package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"wildlifecore/internal/blob"
	"wildlifecore/internal/catalog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wildlife.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.SQLitePath != "wildlife.db" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Blob.Driver != "fs" || cfg.Blob.FSRoot != blob.DefaultFSRoot {
		t.Fatalf("unexpected blob defaults: %+v", cfg.Blob)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
	if cfg.Metrics.ExpvarName != "" || cfg.Metrics.Prometheus || cfg.Trace.Enabled {
		t.Fatalf("expected observability off by default: %+v %+v", cfg.Metrics, cfg.Trace)
	}
}

func TestLoadObservabilitySettings(t *testing.T) {
	path := writeConfig(t, "metrics:\n  prometheus: true\n")
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Metrics.Prometheus || cfg.Trace.Enabled {
		t.Fatalf("unexpected settings from file: %+v %+v", cfg.Metrics, cfg.Trace)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("metrics-prometheus", false, "")
	flags.Bool("trace", false, "")
	if err := flags.Parse([]string{"--trace", "--metrics-prometheus=false"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err = Load(path, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Metrics.Prometheus || !cfg.Trace.Enabled {
		t.Fatalf("expected flags to win: %+v %+v", cfg.Metrics, cfg.Trace)
	}
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: postgres
  postgres_dsn: postgres://db/wildlife
blob:
  driver: s3
  s3:
    bucket: photos
    region: eu-west-1
    path_style: true
log:
  level: debug
`)
	t.Setenv("WILDLIFE_BLOB_S3_BUCKET", "override")
	t.Setenv("WILDLIFE_LOG_FORMAT", "json")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.StorageConfig(); got.Driver != catalog.StoragePostgres || got.PostgresDSN != "postgres://db/wildlife" {
		t.Fatalf("unexpected storage config: %+v", got)
	}
	bc := cfg.BlobConfig()
	if bc.Driver != blob.DriverS3 || bc.S3.Bucket != "override" || bc.S3.Region != "eu-west-1" || !bc.S3.PathStyle {
		t.Fatalf("unexpected blob config: %+v", bc)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log settings: %+v", cfg.Log)
	}
}

func TestLoadFlagsTakePrecedence(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WILDLIFE_STORAGE_DRIVER", "postgres")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("storage-driver", "", "")
	flags.String("blob-driver", "", "")
	if err := flags.Parse([]string{"--storage-driver=memory"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("expected flag to win, got %q", cfg.Storage.Driver)
	}
	// Unchanged flags leave lower layers alone.
	if cfg.Blob.Driver != "fs" {
		t.Fatalf("expected default blob driver, got %q", cfg.Blob.Driver)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"storage driver": "storage:\n  driver: oracle\n",
		"blob driver":    "blob:\n  driver: ftp\n",
		"s3 bucket":      "blob:\n  driver: s3\n",
		"log level":      "log:\n  level: chatty\n",
		"log format":     "log:\n  format: xml\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body), nil); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Log: LogSettings{Level: "warn", Format: "json"}}
	logger := cfg.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "driver", "sqlite")
	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "hidden") {
		t.Fatalf("info record should be filtered: %s", line)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("expected json output: %v (%s)", err, line)
	}
	if entry["msg"] != "shown" || entry["driver"] != "sqlite" {
		t.Fatalf("unexpected entry: %v", entry)
	}

	buf.Reset()
	cfg.Log.Format = "text"
	cfg.Logger(&buf).Warn("plain")
	if !strings.Contains(buf.String(), "msg=plain") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}
