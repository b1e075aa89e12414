package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Storage backs the audience and promotion-request tables.
	Storage StorageConfig `json:"storage"`

	// Delivery tunes the fan-out engine.
	Delivery DeliveryConfig `json:"delivery"`

	// Plans is the read-only promotion catalog keyed by plan token
	// (the numeric audience size as a string, e.g. "5000").
	Plans map[string]Plan `json:"plans"`

	Promo   PromoConfig   `json:"promo,omitempty"`
	Payment PaymentConfig `json:"payment,omitempty"`
	Stats   StatsConfig   `json:"stats,omitempty"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and provided via the BOT_TOKEN
	// environment variable instead (do not commit tokens).
	Token   string `json:"token,omitempty"`
	AdminID int64  `json:"admin_id"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Driver values:
//   - "sqlite" (default): SQLite database file
//   - "memory": in-process store (tests, ephemeral runs)
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// DeliveryConfig tunes the paced fan-out.
//
// Pace is the fixed interval between consecutive sends in one delivery run,
// as a Go duration string. Throughput is bounded by audience_size * pace
// (10,000 recipients at the default 100ms is roughly 1000 seconds).
type DeliveryConfig struct {
	Pace string `json:"pace,omitempty"`
}

// Plan is one catalog entry: a price label and the audience size bought.
type Plan struct {
	Price string `json:"price"`
	Users int    `json:"users"`
}

// PromoConfig is the static promo DM sent on chat join requests.
type PromoConfig struct {
	Image    string        `json:"image,omitempty"`
	Caption  string        `json:"caption,omitempty"`
	Channels []ChannelLink `json:"channels,omitempty"`
}

type ChannelLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type PaymentConfig struct {
	UPI string `json:"upi,omitempty"`
}

// StatsConfig controls the periodic audience report to the operator.
// Schedule is a cron expression (default "0 9 * * *").
type StatsConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"`
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior. The Telegram token is checked later, after the
// environment override is merged in.
func (c *Config) Validate() error {
	if c.Telegram.AdminID == 0 {
		return errors.New("telegram.admin_id is required")
	}
	if len(c.Plans) == 0 {
		return errors.New("plans: at least one plan is required")
	}
	for key, p := range c.Plans {
		if strings.TrimSpace(key) == "" {
			return errors.New("plans: empty plan key")
		}
		if p.Users <= 0 {
			return fmt.Errorf("plans[%s]: users must be positive", key)
		}
	}
	return nil
}

// PlanKeys returns catalog keys sorted by audience size ascending,
// so keyboards render smallest plan first.
func (c *Config) PlanKeys() []string {
	keys := make([]string, 0, len(c.Plans))
	for k := range c.Plans {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := c.Plans[keys[i]], c.Plans[keys[j]]
		if a.Users != b.Users {
			return a.Users < b.Users
		}
		return keys[i] < keys[j]
	})
	return keys
}
