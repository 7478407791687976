package config

import (
	"strings"
	"testing"
	"time"
)

func mapLookup(env map[string]string) envLookup {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := load(mapLookup(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Database.Backend != BackendPostgres || cfg.Database.DBName != "taxi_dispatch" {
		t.Errorf("unexpected database config %+v", cfg.Database)
	}
	if cfg.Session.Backend != BackendRedis || cfg.Session.TTL != 24*time.Hour {
		t.Errorf("unexpected session config %+v", cfg.Session)
	}
	if cfg.Lock.Backend != BackendRedis || cfg.Lock.TTL != 10*time.Second || cfg.Lock.Wait != 3*time.Second {
		t.Errorf("unexpected lock config %+v", cfg.Lock)
	}
	if cfg.Messaging.Backend != BackendLog || cfg.Messaging.Stream != "dispatch:outbox" {
		t.Errorf("unexpected messaging config %+v", cfg.Messaging)
	}
	if !cfg.NeedsRedis() {
		t.Error("default backends need redis")
	}
	if len(cfg.Dispatch.AdminIDs) != 0 {
		t.Errorf("expected no admins, got %v", cfg.Dispatch.AdminIDs)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Parallel()

	cfg, err := load(mapLookup(map[string]string{
		"STORAGE_BACKEND":   "memory",
		"SESSION_BACKEND":   "memory",
		"LOCK_BACKEND":      "local",
		"ADMIN_IDS":         "100, 200,,300",
		"SERVICE_CITY":      "Svetlogorsk",
		"SESSION_TTL":       "30m",
		"REDIS_DB":          "not-a-number",
		"NEW_RELIC_ENABLED": "false",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NeedsRedis() {
		t.Error("memory and local backends must not need redis")
	}
	want := []int64{100, 200, 300}
	if len(cfg.Dispatch.AdminIDs) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Dispatch.AdminIDs)
	}
	for i, id := range want {
		if cfg.Dispatch.AdminIDs[i] != id {
			t.Errorf("admin %d: expected %d, got %d", i, id, cfg.Dispatch.AdminIDs[i])
		}
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Errorf("expected 30m session TTL, got %s", cfg.Session.TTL)
	}
	if cfg.Redis.DB != 0 {
		t.Errorf("an unparsable value should fall back to the default, got %d", cfg.Redis.DB)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad admin id", map[string]string{"ADMIN_IDS": "100,abc"}, "ADMIN_IDS"},
		{"unknown storage", map[string]string{"STORAGE_BACKEND": "mongo"}, "STORAGE_BACKEND"},
		{"unknown lock", map[string]string{"LOCK_BACKEND": "etcd"}, "LOCK_BACKEND"},
		{"ttl below wait", map[string]string{"LOCK_TTL": "1s", "LOCK_WAIT": "2s"}, "LOCK_TTL"},
		{"new relic without key", map[string]string{"NEW_RELIC_ENABLED": "true"}, "NEW_RELIC_LICENSE_KEY"},
		{"negative session ttl", map[string]string{"SESSION_TTL": "-1m"}, "SESSION_TTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(mapLookup(tt.env))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}
