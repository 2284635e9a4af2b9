package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ponyo877/roomcast/server/domain"
	"github.com/spf13/viper"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(discardLogger(), viper.New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Address != ":5000" || cfg.GRPC.Address != ":50051" {
		t.Errorf("addresses = %q, %q", cfg.HTTP.Address, cfg.GRPC.Address)
	}
	if cfg.Store.Driver != "memory" || cfg.Store.Retention != 100 || cfg.Query.DefaultLimit != 20 {
		t.Errorf("store/query = %+v %+v", cfg.Store, cfg.Query)
	}
	if cfg.Transport.ReadTimeout != 60*time.Second || cfg.Transport.SendBuffer != 256 {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 {
		t.Errorf("allowedOrigins = %v", cfg.HTTP.AllowedOrigins)
	}
	policy, _ := cfg.BroadcastPolicy()
	if policy != domain.DefaultBroadcastPolicy() {
		t.Errorf("policy = %+v", policy)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roomcast.yaml")
	yaml := strings.Join([]string{
		"store:",
		"  driver: sqlite",
		"  retention: 50",
		"broadcast:",
		"  typingScope: global",
		"transport:",
		"  writeTimeout: 3s",
	}, "\n")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ROOMCAST_STORE_RETENTION", "75")
	t.Setenv("ROOMCAST_LOG_LEVEL", "debug")

	cfg, err := Load(discardLogger(), viper.New(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("driver = %q", cfg.Store.Driver)
	}
	if cfg.Store.Retention != 75 {
		t.Errorf("retention = %d, want env override 75", cfg.Store.Retention)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Transport.WriteTimeout != 3*time.Second {
		t.Errorf("writeTimeout = %v", cfg.Transport.WriteTimeout)
	}
	policy, _ := cfg.BroadcastPolicy()
	if policy.TypingScope != domain.ScopeGlobal || policy.ReadScope != domain.ScopeRoom {
		t.Errorf("policy = %+v", policy)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad scope", map[string]string{"ROOMCAST_BROADCAST_READSCOPE": "everyone"}},
		{"bad driver", map[string]string{"ROOMCAST_STORE_DRIVER": "postgres"}},
		{"zero retention", map[string]string{"ROOMCAST_STORE_RETENTION": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(discardLogger(), viper.New(), ""); err == nil {
				t.Error("Load should fail")
			}
		})
	}
}
