// Package stats sends the operator a periodic audience-size report on a cron
// schedule. Purely informational; disabled by default.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"promobot/internal/storage"
	kit "promobot/internal/transport"
	logx "promobot/pkg/logx"
)

const defaultSchedule = "0 9 * * *"

type Config struct {
	Enabled  bool
	Schedule string
}

type Service struct {
	cfg     Config
	store   storage.Store
	adapter kit.Adapter
	adminID int64
	log     logx.Logger

	cron *cron.Cron
}

func New(cfg Config, store storage.Store, adapter kit.Adapter, adminID int64, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, store: store, adapter: adapter, adminID: adminID, log: log}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	spec := s.cfg.Schedule
	if spec == "" {
		spec = defaultSchedule
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, s.report); err != nil {
		return fmt.Errorf("stats schedule %q: %w", spec, err)
	}
	c.Start()
	s.cron = c
	s.log.Info("stats report scheduled", logx.String("spec", spec))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
	}
	s.cron = nil
}

func (s *Service) report() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.store.CountRecipients(ctx)
	if err != nil {
		s.log.Warn("stats count failed", logx.Err(err))
		return
	}
	_, err = s.adapter.SendText(ctx, kit.ChatTarget{ChatID: s.adminID},
		fmt.Sprintf("📊 Daily Report\n\n👥 Total Users: %d", n), nil)
	if err != nil {
		s.log.Warn("stats report send failed", logx.Err(err))
	}
}
