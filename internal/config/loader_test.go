package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/clickrace/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CLICKRACE_HTTP_ADDR", ":18080")
			_ = os.Setenv("CLICKRACE_TCP_ADDR", ":19090")
			_ = os.Setenv("CLICKRACE_USE_CLUSTER", "false")
			_ = os.Setenv("CLICKRACE_WORKER_COUNT", "3")
			_ = os.Setenv("CLICKRACE_EVENT_DURATION_MS", "0")
			_ = os.Setenv("CLICKRACE_WRITE_QUEUE_SIZE", "64")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.HTTPAddr, convey.ShouldEqual, ":18080")
				convey.So(cfg.TCPAddr, convey.ShouldEqual, ":19090")
				convey.So(cfg.UseCluster, convey.ShouldBeFalse)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.EventDurationMS, convey.ShouldEqual, 0)
				convey.So(cfg.WriteQueueSize, convey.ShouldEqual, 64)
			})
		})

		convey.Convey("When loading config with a YAML file and env overrides", func() {
			path := writeConfigFile(t, `
http_addr: ":7070"
worker_count: 5
db_driver: postgres
db_dsn: "host=localhost user=clickrace dbname=clickrace sslmode=disable"
heartbeat_interval_ms: 500
`)
			_ = os.Setenv("CLICKRACE_CONFIG", path)
			_ = os.Setenv("CLICKRACE_WORKER_COUNT", "8")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env wins over the file and the file over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.HTTPAddr, convey.ShouldEqual, ":7070")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8)
				convey.So(cfg.DBDriver, convey.ShouldEqual, config.DriverPostgres)
				convey.So(cfg.HeartbeatIntervalMS, convey.ShouldEqual, 500)
				convey.So(cfg.TCPAddr, convey.ShouldEqual, ":9090")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			path := writeConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("CLICKRACE_CONFIG", path)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("CLICKRACE_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty http addr", func() {
			_ = os.Setenv("CLICKRACE_HTTP_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "http_addr must not be empty")
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("CLICKRACE_WORKER_COUNT", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "CLICKRACE_") {
			_ = os.Unsetenv(name)
		}
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clickrace.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
