package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearConfigEnv(t *testing.T) {
	for _, k := range []string{
		"HTTP_ADDR", "DB_DSN", "STORAGE_DRIVER", "REDIS_ADDR", "REDIS_DB",
		"SNAPSHOT_CACHE_TTL", "SYNC_RATE_LIMIT_PER_MINUTE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	cfg := LoadConfig()
	if cfg.HTTPAddr != ":8080" || cfg.StorageDriver != StoragePostgres || cfg.SnapshotCacheTTL != 10*time.Minute {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadConfigFileEnvWins(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "examd.yaml")
	body := "http_addr: \":9000\"\nstorage_driver: memory\nredis_addr: cache:6379\nsnapshot_cache_ttl: 2m\nsync_rate_limit_per_minute: 30\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("HTTP_ADDR", ":7000")
	t.Setenv("SNAPSHOT_CACHE_TTL", "45")

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":7000" {
		t.Fatalf("env should win, got %s", cfg.HTTPAddr)
	}
	if cfg.StorageDriver != StorageMemory || cfg.RedisAddr != "cache:6379" || cfg.SyncRateLimitPerMinute != 30 {
		t.Fatalf("file values not applied %+v", cfg)
	}
	if cfg.SnapshotCacheTTL != 45*time.Second {
		t.Fatalf("expected 45s ttl, got %s", cfg.SnapshotCacheTTL)
	}
}

func TestLoadConfigFileRejectsUnknownDriver(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("STORAGE_DRIVER", "sqlite")
	if _, err := LoadConfigFile(""); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
