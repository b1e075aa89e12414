// Package delivery executes a paced send-to-many run: one payload, an ordered
// recipient list, fixed spacing between sends, and pruning of permanently
// unreachable recipients from the audience.
//
// Runs are strictly sequential. Telegram-side rate limits make parallel
// fan-out counterproductive, so throughput is bounded by
// len(recipients) * pace (10,000 recipients at 100ms is roughly 1000 seconds).
package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"

	"promobot/internal/storage"
	kit "promobot/internal/transport"
	logx "promobot/pkg/logx"
)

// Report is the per-run accounting returned to the caller.
type Report struct {
	Sent   int
	Pruned int
}

type Engine struct {
	adapter kit.Adapter
	store   storage.Store
	pacer   Pacer
	log     logx.Logger
}

func New(adapter kit.Adapter, store storage.Store, pacer Pacer, log logx.Logger) *Engine {
	if pacer == nil {
		pacer = Interval(DefaultPace)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{adapter: adapter, store: store, pacer: pacer, log: log}
}

// Run delivers payload to each recipient in sequence order. Successful sends
// are counted and paced; permanent failures prune the recipient from the
// audience; transient failures are skipped. A single failure never aborts
// the run. Context cancellation returns the partial report; prunes already
// committed stay committed.
func (e *Engine) Run(ctx context.Context, recipients []int64, payload Payload) Report {
	runID := uuid.NewString()
	start := time.Now()
	log := e.log.With(logx.String("run", runID))
	log.Info("delivery run started", logx.Int("recipients", len(recipients)))

	var rep Report
	for _, uid := range recipients {
		if ctx.Err() != nil {
			log.Warn("delivery run cancelled",
				logx.Int("sent", rep.Sent), logx.Int("pruned", rep.Pruned))
			return rep
		}

		err := payload.Deliver(ctx, e.adapter, kit.ChatTarget{ChatID: uid})
		if err == nil {
			rep.Sent++
			if werr := e.pacer.Wait(ctx); werr != nil {
				return rep
			}
			continue
		}

		if kit.IsPermanent(err) {
			if rerr := e.store.RemoveRecipient(ctx, uid); rerr != nil {
				log.Warn("prune failed", logx.Int64("user_id", uid), logx.Err(rerr))
			} else {
				rep.Pruned++
				log.Debug("recipient pruned", logx.Int64("user_id", uid), logx.Err(err))
			}
			continue
		}

		// Transient: abandoned for this run only, no retry, no backoff.
		log.Debug("send skipped", logx.Int64("user_id", uid), logx.Err(err))
	}

	log.Info("delivery run finished",
		logx.Int("sent", rep.Sent),
		logx.Int("pruned", rep.Pruned),
		logx.Duration("dur", time.Since(start)))
	return rep
}
