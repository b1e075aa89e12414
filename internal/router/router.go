// Package router consumes transport updates on a single worker and drives
// the advertiser flow (plan → proof → ad), the operator decisions, and the
// armed broadcast path. One update at a time: delivery runs inline in this
// worker, so ordering across promotions is whatever the operator taps first.
package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"promobot/internal/approval"
	"promobot/internal/broadcast"
	"promobot/internal/config"
	"promobot/internal/delivery"
	"promobot/internal/session"
	"promobot/internal/storage"
	kit "promobot/internal/transport"
	logx "promobot/pkg/logx"
	"promobot/pkg/tgui"
)

type Router struct {
	adapter    kit.Adapter
	cfgm       *config.Manager
	store      storage.Store
	sessions   *session.Service
	approvals  *approval.Controller
	broadcasts *broadcast.Controller
	adminID    int64
	log        logx.Logger
}

func New(
	adapter kit.Adapter,
	cfgm *config.Manager,
	store storage.Store,
	sessions *session.Service,
	approvals *approval.Controller,
	broadcasts *broadcast.Controller,
	adminID int64,
	log logx.Logger,
) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		adapter:    adapter,
		cfgm:       cfgm,
		store:      store,
		sessions:   sessions,
		approvals:  approvals,
		broadcasts: broadcasts,
		adminID:    adminID,
		log:        log,
	}
}

// Run drains the update channel until ctx is cancelled. Single logical
// worker: updates are processed strictly one at a time.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			r.dispatch(ctx, up)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, up kit.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic recovered in update handler",
				logx.Any("panic", rec),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			r.handleMessage(ctx, up.Message)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			r.handleCallback(ctx, up.Callback)
		}
	case kit.UpdateJoinRequest:
		if up.JoinRequest != nil {
			r.handleJoinRequest(ctx, up.JoinRequest)
		}
	}
}

// ---- Messages ----

func (r *Router) handleMessage(ctx context.Context, m *kit.Message) {
	if cmd, ok := command(m.Text); ok {
		r.handleCommand(ctx, m, cmd)
		return
	}

	// Armed broadcast eats the next operator message, whatever it is.
	if m.FromID == r.adminID && r.broadcasts.Armed() {
		payload := delivery.Copy{From: kit.MessageRef{ChatID: m.ChatID, MessageID: m.ID}}
		rep, consumed, err := r.broadcasts.Consume(ctx, payload)
		if !consumed {
			return
		}
		if err != nil {
			r.log.Error("broadcast failed", logx.Err(err))
			r.reply(ctx, m.ChatID, "❌ Broadcast failed.")
			return
		}
		r.reply(ctx, m.ChatID, fmt.Sprintf("✅ Broadcast Done\n\n📤 Sent: %d\n🚮 Removed: %d", rep.Sent, rep.Pruned))
		return
	}

	// Payment screenshot: any photo while a plan is chosen counts as proof.
	if m.HasPhoto {
		if r.sessions.SubmitProof(m.FromID) {
			r.reply(ctx, m.ChatID, "✅ Payment received.\n\nNow send your ad message.")
		}
		return
	}

	// Ad text.
	if strings.TrimSpace(m.Text) == "" {
		return
	}
	if _, ok, err := r.sessions.SubmitAd(ctx, m.FromID, m.Text); err != nil {
		r.log.Error("ad submission failed", logx.Int64("user_id", m.FromID), logx.Err(err))
		r.reply(ctx, m.ChatID, "❌ Something went wrong, please try again.")
	} else if ok {
		r.reply(ctx, m.ChatID, "⏳ Promotion sent for approval.")
	}
}

func (r *Router) handleCommand(ctx context.Context, m *kit.Message, cmd string) {
	switch cmd {
	case "start":
		if err := r.store.AddRecipient(ctx, m.FromID); err != nil {
			r.log.Warn("audience insert failed", logx.Int64("user_id", m.FromID), logx.Err(err))
		}
		r.reply(ctx, m.ChatID,
			"👋 Hello!\n\nThis bot sends promotional messages automatically.\n\nFor Paid Promotion: /promote")

	case "promote":
		cfg := r.cfgm.Get()
		kb := tgui.NewInline()
		for _, key := range cfg.PlanKeys() {
			p := cfg.Plans[key]
			label := fmt.Sprintf("%d Users – %s", p.Users, p.Price)
			kb.Row(tgui.Btn(label, PlanToken(key)))
		}
		r.send(ctx, m.ChatID, "📢 "+tgui.B("PAID PROMOTION")+"\n\nChoose a plan below 👇", kb)

	case "admin":
		if m.FromID != r.adminID {
			return
		}
		kb := tgui.NewInline().
			Row(tgui.Btn("📢 Broadcast", "admin_broadcast")).
			Row(tgui.Btn("📊 Total Users", "admin_count"))
		r.send(ctx, m.ChatID, "🛠 Admin Panel", kb)

	default:
		// Unknown commands fall through silently, like any stray text.
	}
}

// ---- Callbacks ----

func (r *Router) handleCallback(ctx context.Context, cb *kit.Callback) {
	act, err := ParseAction(cb.Data)
	if err != nil {
		r.log.Debug("unknown action token", logx.String("data", cb.Data), logx.Int64("from", cb.FromID))
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "Unknown action", false)
		return
	}

	// Advertiser-facing verb.
	if act.Verb == VerbPlan {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "", false)
		r.handlePlanSelection(ctx, cb, act.PlanKey)
		return
	}

	// Everything else is operator-only.
	if cb.FromID != r.adminID {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "Admin only", true)
		return
	}
	_ = r.adapter.AnswerCallback(ctx, cb.ID, "", false)

	switch act.Verb {
	case VerbCount:
		n, err := r.store.CountRecipients(ctx)
		if err != nil {
			r.log.Error("audience count failed", logx.Err(err))
			return
		}
		r.reply(ctx, cb.ChatID, fmt.Sprintf("👥 Total Users: %d", n))

	case VerbBroadcast:
		r.broadcasts.Arm()
		r.reply(ctx, cb.ChatID, "📢 Send broadcast message now.")

	case VerbApprove:
		rep, err := r.approvals.Approve(ctx, act.RequestID)
		if errors.Is(err, approval.ErrRequestNotFound) {
			r.reply(ctx, cb.ChatID, "❌ Promotion not found")
			return
		}
		if err != nil {
			r.log.Error("approval failed", logx.Int64("request_id", act.RequestID), logx.Err(err))
			r.reply(ctx, cb.ChatID, "❌ Approval failed.")
			return
		}
		r.reply(ctx, cb.ChatID, fmt.Sprintf("✅ Promotion Approved\n\n📤 Sent: %d\n🚮 Removed: %d", rep.Sent, rep.Pruned))

	case VerbReject:
		err := r.approvals.Reject(ctx, act.RequestID)
		if errors.Is(err, approval.ErrRequestNotFound) {
			r.reply(ctx, cb.ChatID, "❌ Promotion not found")
			return
		}
		if err != nil {
			r.log.Error("rejection failed", logx.Int64("request_id", act.RequestID), logx.Err(err))
			return
		}
		r.reply(ctx, cb.ChatID, "❌ Promotion Rejected")
	}
}

func (r *Router) handlePlanSelection(ctx context.Context, cb *kit.Callback, planKey string) {
	plan, err := r.sessions.SelectPlan(cb.FromID, planKey)
	if errors.Is(err, session.ErrUnknownPlan) {
		r.reply(ctx, cb.ChatID, "❌ Invalid plan")
		return
	}
	if err != nil {
		r.log.Error("plan selection failed", logx.Int64("user_id", cb.FromID), logx.Err(err))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ %s\n\n👥 Users: %d\n💰 Price: %s\n",
		tgui.B("Plan Selected"), plan.Users, tgui.Esc(plan.Price))
	if upi := r.cfgm.Get().Payment.UPI; upi != "" {
		fmt.Fprintf(&b, "🏦 UPI: %s\n", tgui.Code(upi))
	}
	b.WriteString("\n📸 Send payment screenshot.")
	r.send(ctx, cb.ChatID, b.String(), nil)
}

// ---- Join requests ----

func (r *Router) handleJoinRequest(ctx context.Context, jr *kit.JoinRequest) {
	if err := r.store.AddRecipient(ctx, jr.FromID); err != nil {
		r.log.Warn("audience insert failed", logx.Int64("user_id", jr.FromID), logx.Err(err))
	}

	promo := r.cfgm.Get().Promo
	if promo.Image == "" {
		return
	}
	kb := tgui.NewInline()
	for _, ch := range promo.Channels {
		kb.Row(tgui.URLBtn(ch.Title, ch.URL))
	}
	_, err := r.adapter.SendPhoto(ctx, kit.ChatTarget{ChatID: jr.FromID}, promo.Image, promo.Caption, &kit.SendOptions{
		ParseMode:          "HTML",
		ReplyMarkupAdapter: kb.Markup(),
	})
	if err != nil {
		// The join-request DM is best-effort; the user may have DMs closed.
		r.log.Debug("join promo dm failed", logx.Int64("user_id", jr.FromID), logx.Err(err))
	}
}

// ---- Helpers ----

func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	r.send(ctx, chatID, text, nil)
}

func (r *Router) send(ctx context.Context, chatID int64, text string, kb *tgui.Inline) {
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	if kb != nil {
		opt.ReplyMarkupAdapter = kb.Markup()
	}
	if _, err := r.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, opt); err != nil {
		r.log.Warn("reply failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
}

// command extracts a bot command name from message text ("/start@PromoBot
// arg" -> "start"). Non-command text returns ok=false.
func command(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", false
	}
	return strings.ToLower(name), true
}
