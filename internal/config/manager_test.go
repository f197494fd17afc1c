package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleJSON = `{
  "telegram": {"token": "123:abc", "poll_timeout": "10s"},
  "logging": {"level": "info", "console": true, "file": {"enabled": false}, "telegram": {"enabled": false}},
  "store": {"quotes_path": "./frases.json", "schedules_path": "./user_schedules.json"},
  "scheduler": {"enabled": true, "timezone": "America/Sao_Paulo"},
  "notifier": {"workers": 2, "queue_size": 16, "rate_per_sec": 5}
}`

const sampleYAML = `telegram:
  token: "123:abc"
  poll_timeout: 10s
logging:
  level: info
  console: true
  file:
    enabled: false
  telegram:
    enabled: false
store:
  quotes_path: ./frases.json
  schedules_path: ./user_schedules.json
scheduler:
  enabled: true
  timezone: America/Sao_Paulo
notifier:
  workers: 2
  queue_size: 16
  rate_per_sec: 5
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadJSONAndYAMLAgree(t *testing.T) {
	t.Parallel()

	jm := NewManager(writeConfig(t, "config.json", sampleJSON))
	jc, err := jm.Load()
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	ym := NewManager(writeConfig(t, "config.yaml", sampleYAML))
	yc, err := ym.Load()
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}

	if *jc != *yc {
		t.Fatalf("json and yaml decode differ:\n%+v\n%+v", jc, yc)
	}
	if jc.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", jc.Telegram.Token)
	}
	if !jc.Scheduler.Enabled || jc.Scheduler.Timezone != "America/Sao_Paulo" {
		t.Fatalf("scheduler = %+v", jc.Scheduler)
	}
	if jc.Notifier.Workers != 2 || jc.Notifier.QueueSize != 16 || jc.Notifier.RatePerSec != 5 {
		t.Fatalf("notifier = %+v", jc.Notifier)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfig(t, "config.json", `{"telegram": {"token": "x", "legacy_owner": 1}}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("unknown key should be rejected")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfig(t, "config.json", `{"telegram": {"token": "x"}}{"extra": true}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("trailing data should be rejected")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: %v %v", d, err)
	}
	if d, err := ParseDurationField("x", "1m30s"); err != nil || d != 90*time.Second {
		t.Fatalf("1m30s: %v %v", d, err)
	}
	if _, err := ParseDurationField("x", "forever"); err == nil {
		t.Fatal("bad duration should be rejected")
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("negative duration should be rejected")
	}
	if d, err := ParseDurationOrDefault("x", "", 7*time.Second); err != nil || d != 7*time.Second {
		t.Fatalf("default: %v %v", d, err)
	}
}

func TestWatchPublishesOnChange(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.json", sampleJSON)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := m.Subscribe(4)
	go func() { _ = m.Watch(ctx) }()

	// give the watcher a moment to attach before the rewrite
	time.Sleep(300 * time.Millisecond)

	next := `{
  "telegram": {"token": "456:def"},
  "logging": {"level": "debug", "console": true, "file": {"enabled": false}, "telegram": {"enabled": false}},
  "store": {"quotes_path": "./frases.json", "schedules_path": "./user_schedules.json"},
  "scheduler": {"enabled": false},
  "notifier": {}
}`
	if err := os.WriteFile(path, []byte(next), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case cfg := <-sub:
		if cfg.Telegram.Token != "456:def" || cfg.Logging.Level != "debug" {
			t.Fatalf("published config = %+v", cfg)
		}
		if got := m.Get(); got.Telegram.Token != "456:def" {
			t.Fatalf("Get after publish = %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no config published after file change")
	}
}

func TestWatchRejectsInvalid(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.json", sampleJSON)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	m.SetValidator(func(_ context.Context, cfg *Config) error {
		if cfg.Telegram.Token == "" {
			return fmt.Errorf("telegram.token is required")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := m.Subscribe(4)
	go func() { _ = m.Watch(ctx) }()
	time.Sleep(300 * time.Millisecond)

	// empty token must be rejected by the validator, keeping the old config
	bad := `{
  "telegram": {"token": ""},
  "logging": {"level": "info", "console": true, "file": {"enabled": false}, "telegram": {"enabled": false}},
  "store": {"quotes_path": "./frases.json", "schedules_path": "./user_schedules.json"},
  "scheduler": {"enabled": true},
  "notifier": {}
}`
	if err := os.WriteFile(path, []byte(bad), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case cfg := <-sub:
		t.Fatalf("rejected config was published: %+v", cfg)
	case <-time.After(1500 * time.Millisecond):
	}
	if got := m.Get(); got.Telegram.Token != "123:abc" {
		t.Fatalf("previous config lost: %+v", got)
	}
}
