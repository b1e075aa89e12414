// Package broadcast gates the operator's send-to-everyone path behind a
// single process-wide armed flag: /admin arms it, and the very next operator
// message is consumed as the broadcast body.
package broadcast

import (
	"context"
	"sync"

	"promobot/internal/delivery"
	"promobot/internal/storage"
	logx "promobot/pkg/logx"
)

type Controller struct {
	mu    sync.Mutex
	armed bool

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

// Arm sets the flag. Exactly one broadcast may be armed at a time; arming an
// armed flag is a no-op.
func (c *Controller) Arm() {
	c.mu.Lock()
	c.armed = true
	c.mu.Unlock()
	c.log.Info("broadcast armed")
}

// Armed reports whether the next operator message will be consumed as a
// broadcast body.
func (c *Controller) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// Consume clears the flag exactly once, unconditionally. If it was armed,
// payload goes to the entire audience. ok is false when the flag was not
// set, in which case nothing was sent.
func (c *Controller) Consume(ctx context.Context, payload delivery.Payload) (delivery.Report, bool, error) {
	c.mu.Lock()
	was := c.armed
	c.armed = false
	c.mu.Unlock()

	if !was {
		return delivery.Report{}, false, nil
	}

	recipients, err := c.store.ListRecipients(ctx, 0)
	if err != nil {
		return delivery.Report{}, true, err
	}

	rep := c.engine.Run(ctx, recipients, payload)
	c.log.Info("broadcast finished",
		logx.Int("sent", rep.Sent),
		logx.Int("pruned", rep.Pruned))
	return rep, true, nil
}
