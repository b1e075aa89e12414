package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return NewManager(path)
}

const validYAML = `telegram:
  admin_id: 100
  poll_timeout: 10s
logging:
  level: info
  console: true
storage:
  driver: sqlite
  path: bot.db
delivery:
  pace: 100ms
plans:
  "1000":
    price: "₹499"
    users: 1000
  "10000":
    price: "₹3499"
    users: 10000
  "5000":
    price: "₹1999"
    users: 5000
payment:
  upi: promo@upi
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.yaml", validYAML)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.AdminID != 100 {
		t.Fatalf("admin_id = %d", cfg.Telegram.AdminID)
	}
	if cfg.Plans["5000"].Price != "₹1999" || cfg.Plans["5000"].Users != 5000 {
		t.Fatalf("plans[5000] = %+v", cfg.Plans["5000"])
	}
	if cfg.Payment.UPI != "promo@upi" {
		t.Fatalf("upi = %q", cfg.Payment.UPI)
	}
	// Get hands back the committed snapshot.
	if m.Get() != cfg {
		t.Fatal("Get returned a different snapshot than Load")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.json", `{
  "telegram": {"admin_id": 7},
  "logging": {"level": "debug", "console": true},
  "plans": {"1000": {"price": "₹499", "users": 1000}}
}`)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.AdminID != 7 || cfg.Logging.Level != "debug" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadYAMLNumericPlanKeys(t *testing.T) {
	t.Parallel()
	// Unquoted plan keys decode as YAML integers; loading must still produce
	// string catalog keys.
	m := writeConfig(t, "config.yaml", `telegram:
  admin_id: 100
logging:
  level: info
  console: true
plans:
  1000:
    price: "₹499"
    users: 1000
  5000:
    price: "₹1999"
    users: 5000
`)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Plans["5000"].Users != 5000 {
		t.Fatalf("plans = %+v, want string key 5000", cfg.Plans)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.yaml", validYAML+"frobnicator: true\n")
	if _, err := m.Load(); err == nil {
		t.Fatal("unknown top-level field accepted")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing admin",
			mutate:  func(c *Config) { c.Telegram.AdminID = 0 },
			wantErr: "admin_id",
		},
		{
			name:    "no plans",
			mutate:  func(c *Config) { c.Plans = nil },
			wantErr: "at least one plan",
		},
		{
			name:    "zero users",
			mutate:  func(c *Config) { c.Plans["1000"] = Plan{Price: "x", Users: 0} },
			wantErr: "users must be positive",
		},
		{
			name:    "blank key",
			mutate:  func(c *Config) { c.Plans[" "] = Plan{Price: "x", Users: 1} },
			wantErr: "empty plan key",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{
				Telegram: TelegramConfig{AdminID: 1},
				Plans:    map[string]Plan{"1000": {Price: "₹499", Users: 1000}},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestPlanKeysSortedByAudience(t *testing.T) {
	t.Parallel()
	cfg := &Config{Plans: map[string]Plan{
		"10000": {Users: 10000},
		"1000":  {Users: 1000},
		"5000":  {Users: 5000},
	}}
	got := cfg.PlanKeys()
	want := []string{"1000", "5000", "10000"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("PlanKeys = %v, want %v", got, want)
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		def     time.Duration
		want    time.Duration
		wantErr bool
	}{
		{raw: "", def: time.Second, want: time.Second},
		{raw: "  ", def: time.Second, want: time.Second},
		{raw: "250ms", def: time.Second, want: 250 * time.Millisecond},
		{raw: "2m", def: 0, want: 2 * time.Minute},
		{raw: "banana", def: time.Second, wantErr: true},
		{raw: "-1s", def: time.Second, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDurationOrDefault("test.field", tt.raw, tt.def)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseDurationOrDefault(%q) accepted", tt.raw)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseDurationOrDefault(%q) = (%v, %v), want %v", tt.raw, got, err, tt.want)
		}
	}
}

func TestParseMissingFile(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("parse of a missing file succeeded")
	}
}
