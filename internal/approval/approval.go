// Package approval implements the operator decision on a pending promotion
// request: approve (deliver then delete) or reject (delete).
package approval

import (
	"context"
	"errors"

	"promobot/internal/delivery"
	"promobot/internal/storage"
	logx "promobot/pkg/logx"
)

// ErrRequestNotFound is returned for decisions on a missing or
// already-resolved request id.
var ErrRequestNotFound = errors.New("approval: request not found")

type Controller struct {
	store  storage.Store
	engine *delivery.Engine
	log    logx.Logger
}

func New(store storage.Store, engine *delivery.Engine, log logx.Logger) *Controller {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Controller{store: store, engine: engine, log: log}
}

// Approve delivers the request's ad to a bounded prefix of the audience and
// deletes the request. Approval is final: the record is deleted even when
// part of the delivery failed.
func (c *Controller) Approve(ctx context.Context, requestID int64) (delivery.Report, error) {
	p, err := c.store.GetPromotion(ctx, requestID)
	if errors.Is(err, storage.ErrNotFound) {
		return delivery.Report{}, ErrRequestNotFound
	}
	if err != nil {
		return delivery.Report{}, err
	}

	recipients, err := c.store.ListRecipients(ctx, p.AudienceLimit)
	if err != nil {
		return delivery.Report{}, err
	}

	rep := c.engine.Run(ctx, recipients, delivery.Text{Body: p.Content})

	if err := c.store.DeletePromotion(ctx, requestID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		c.log.Warn("failed deleting approved request",
			logx.Int64("request_id", requestID), logx.Err(err))
	}

	c.log.Info("promotion approved",
		logx.Int64("request_id", requestID),
		logx.Int("sent", rep.Sent),
		logx.Int("pruned", rep.Pruned))
	return rep, nil
}

// Reject deletes the request with no delivery attempt.
func (c *Controller) Reject(ctx context.Context, requestID int64) error {
	err := c.store.DeletePromotion(ctx, requestID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrRequestNotFound
	}
	if err != nil {
		return err
	}
	c.log.Info("promotion rejected", logx.Int64("request_id", requestID))
	return nil
}
