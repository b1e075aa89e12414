package router

import (
	"context"
	"fmt"

	"promobot/internal/storage"
	kit "promobot/internal/transport"
	logx "promobot/pkg/logx"
	"promobot/pkg/tgui"
)

// OperatorNotifier renders the new-request notification the session service
// emits on ad submission: request details plus Approve/Reject buttons.
type OperatorNotifier struct {
	adapter kit.Adapter
	adminID int64
	log     logx.Logger
}

func NewOperatorNotifier(adapter kit.Adapter, adminID int64, log logx.Logger) *OperatorNotifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &OperatorNotifier{adapter: adapter, adminID: adminID, log: log}
}

func (n *OperatorNotifier) NotifyNewRequest(ctx context.Context, p storage.Promotion) error {
	kb := tgui.NewInline().Row(
		tgui.Btn("✅ Approve", ApproveToken(p.ID)),
		tgui.Btn("❌ Reject", RejectToken(p.ID)),
	)
	text := fmt.Sprintf(
		"🆕 %s\n\nRequest ID: %d\nUser ID: %d\nUsers: %d\n\nAd:\n%s",
		tgui.B("New Promotion Request"),
		p.ID, p.RequesterID, p.AudienceLimit,
		tgui.Esc(p.Content),
	)
	_, err := n.adapter.SendText(ctx, kit.ChatTarget{ChatID: n.adminID}, text, &kit.SendOptions{
		ParseMode:          "HTML",
		DisablePreview:     true,
		ReplyMarkupAdapter: kb.Markup(),
	})
	return err
}
