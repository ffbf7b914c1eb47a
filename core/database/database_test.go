package database

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestConfigNormalizeDefaults(t *testing.T) {
	cfg := Config{Host: "db", Name: "library"}
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Driver != DriverPostgres || cfg.Port != "5432" || cfg.SSLMode != "disable" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxConnections != 10 || cfg.MigrationsDir != "migrations" {
		t.Fatalf("unexpected pool/migrations defaults: %+v", cfg)
	}
}

func TestConfigNormalizeMemorySkipsConnectionFields(t *testing.T) {
	cfg := Config{Driver: "Memory"}
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Driver != DriverMemory {
		t.Fatalf("driver = %q", cfg.Driver)
	}
}

func TestConfigNormalizeRejectsUnknownDriver(t *testing.T) {
	cfg := Config{Driver: "sqlite"}
	if err := cfg.Normalize(); err == nil {
		t.Fatal("expected error")
	}
}

func TestConfigURLEscapesCredentials(t *testing.T) {
	cfg := Config{User: "bot", Password: "p@ss word", Host: "db", Port: "5432", Name: "library", SSLMode: "disable"}
	got := cfg.URL()
	if !strings.HasPrefix(got, "postgres://bot:p%40ss%20word@db:5432/library") {
		t.Fatalf("url = %s", got)
	}
	if !strings.HasSuffix(got, "sslmode=disable") {
		t.Fatalf("url = %s", got)
	}
}

func TestAppliedBetween(t *testing.T) {
	files := []string{"000001_init.up.sql", "000002_positions.up.sql", "000003_more.up.sql"}
	got := appliedBetween(files, 1, 3)
	want := []string{"000002_positions.up.sql", "000003_more.up.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("appliedBetween = %v, want %v", got, want)
	}
	if got := appliedBetween(files, 3, 3); len(got) != 0 {
		t.Fatalf("expected nothing applied, got %v", got)
	}
}

func TestUpFilesSkipsDown(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000002_b.up.sql", "000001_a.up.sql", "000001_a.down.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	got := upFiles(dir)
	want := []string{"000001_a.up.sql", "000002_b.up.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("upFiles = %v, want %v", got, want)
	}
}

func TestWaitReadyGivesUp(t *testing.T) {
	start := time.Now()
	err := WaitReady(context.Background(), "host=127.0.0.1 port=1 dbname=x sslmode=disable connect_timeout=1", 200*time.Millisecond, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected error for closed port")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("WaitReady overran its timeout: %v", time.Since(start))
	}
}
