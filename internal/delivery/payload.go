package delivery

import (
	"context"

	kit "promobot/internal/transport"
)

// Payload is one message body deliverable to a recipient. The two shapes are
// closed: approved ad text, and a verbatim copy of an operator message
// (broadcast, media included).
type Payload interface {
	Deliver(ctx context.Context, ad kit.Adapter, to kit.ChatTarget) error
}

// Text sends a plain text body (the approved promotion content).
type Text struct {
	Body string
}

func (t Text) Deliver(ctx context.Context, ad kit.Adapter, to kit.ChatTarget) error {
	_, err := ad.SendText(ctx, to, t.Body, nil)
	return err
}

// Copy re-sends an existing message as-is. Attached media is forwarded
// verbatim, not just its caption text.
type Copy struct {
	From kit.MessageRef
}

func (c Copy) Deliver(ctx context.Context, ad kit.Adapter, to kit.ChatTarget) error {
	return ad.Copy(ctx, to, c.From)
}
