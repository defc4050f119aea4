package app

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "PORT", "DB_DRIVER", "SQLITE_PATH", "MUTEX_TTL", "MUTEX_WAIT",
		"LOCK_PREPARED_TIMEOUT", "OP_PREPARED_TIMEOUT", "CORS_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "8080" || cfg.LockPreparedTimeout != 5*time.Minute || cfg.OpPreparedTimeout != 5*time.Minute {
		t.Fatalf("defaults: %+v", cfg)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	yml := `port: "9090"
db_driver: sqlite
sqlite_path: /tmp/registry.db
mutex_wait: 750ms
lock_prepared_timeout: 2m
cors_origins:
  - https://a.example
  - https://b.example
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	clearEnv(t)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")
	t.Setenv("OP_PREPARED_TIMEOUT", "90s")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "7070" {
		t.Fatalf("env should override file: port=%s", cfg.Port)
	}
	if cfg.DBDriver != "sqlite" || cfg.SQLitePath != "/tmp/registry.db" {
		t.Fatalf("file values lost: driver=%s path=%s", cfg.DBDriver, cfg.SQLitePath)
	}
	if cfg.MutexWait != 750*time.Millisecond || cfg.LockPreparedTimeout != 2*time.Minute {
		t.Fatalf("durations: wait=%s lock=%s", cfg.MutexWait, cfg.LockPreparedTimeout)
	}
	if cfg.OpPreparedTimeout != 90*time.Second {
		t.Fatalf("env duration: %s", cfg.OpPreparedTimeout)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Fatalf("cors origins: %v", cfg.CORSOrigins)
	}
	if cfg.MutexTTL != 10*time.Second {
		t.Fatalf("unset keys keep defaults: ttl=%s", cfg.MutexTTL)
	}
}

func TestLoadConfigBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("port: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	if _, err := LoadConfig(nil); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a, ,b ,c")
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitList: %v", got)
	}
}
