package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"promobot/internal/storage"
	logx "promobot/pkg/logx"
)

func testCatalog(key string) (Plan, bool) {
	plans := map[string]Plan{
		"1000": {Key: "1000", Price: "₹499", Users: 1000},
		"5000": {Key: "5000", Price: "₹1999", Users: 5000},
	}
	p, ok := plans[key]
	return p, ok
}

type fakeNotifier struct {
	mu   sync.Mutex
	seen []storage.Promotion
	fail error
}

func (f *fakeNotifier) NotifyNewRequest(_ context.Context, p storage.Promotion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.seen = append(f.seen, p)
	return nil
}

func newTestService(t *testing.T) (*Service, *storage.Memory, *fakeNotifier) {
	t.Helper()
	store := storage.NewMemory()
	notify := &fakeNotifier{}
	return New(testCatalog, store, notify, logx.Nop()), store, notify
}

func TestHappyPathSubmission(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store, notify := newTestService(t)

	plan, err := svc.SelectPlan(1, "5000")
	if err != nil {
		t.Fatalf("SelectPlan: %v", err)
	}
	if plan.Users != 5000 || plan.Price != "₹1999" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if !svc.SubmitProof(1) {
		t.Fatal("SubmitProof rejected in plan_chosen")
	}

	p, ok, err := svc.SubmitAd(ctx, 1, "Buy now")
	if err != nil || !ok {
		t.Fatalf("SubmitAd = (%+v, %v, %v)", p, ok, err)
	}
	if p.AudienceLimit != 5000 || p.Content != "Buy now" || p.RequesterID != 1 {
		t.Fatalf("unexpected promotion: %+v", p)
	}

	// One persisted request, one operator notification, session back to idle.
	if _, err := store.GetPromotion(ctx, p.ID); err != nil {
		t.Fatalf("promotion not persisted: %v", err)
	}
	if len(notify.seen) != 1 || notify.seen[0].ID != p.ID {
		t.Fatalf("notifications = %+v, want exactly one for %d", notify.seen, p.ID)
	}
	if got := svc.Phase(1); got != PhaseIdle {
		t.Fatalf("phase after submit = %v, want idle", got)
	}
}

func TestUnknownPlan(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)

	if _, err := svc.SelectPlan(1, "9999"); !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("err = %v, want ErrUnknownPlan", err)
	}
	// No state change on a bad selection.
	if got := svc.Phase(1); got != PhaseIdle {
		t.Fatalf("phase = %v, want idle", got)
	}
}

func TestPhaseMonotonicity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(s *Service)
	}{
		{name: "ad with no session", setup: func(s *Service) {}},
		{name: "ad after proof only", setup: func(s *Service) {
			s.SubmitProof(1)
		}},
		{name: "ad after plan, skipping proof", setup: func(s *Service) {
			_, _ = s.SelectPlan(1, "1000")
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, store, notify := newTestService(t)
			tt.setup(svc)

			if _, ok, err := svc.SubmitAd(ctx, 1, "ad"); ok || err != nil {
				t.Fatalf("SubmitAd = (ok=%v, err=%v), want silent no-op", ok, err)
			}
			if n, _ := store.CountRecipients(ctx); n != 0 {
				t.Fatalf("unexpected audience mutation")
			}
			if len(notify.seen) != 0 {
				t.Fatalf("unexpected notification: %+v", notify.seen)
			}
		})
	}
}

func TestProofIgnoredOutsidePlanChosen(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)

	if svc.SubmitProof(1) {
		t.Fatal("proof accepted with no session")
	}

	_, _ = svc.SelectPlan(1, "1000")
	if !svc.SubmitProof(1) {
		t.Fatal("proof rejected in plan_chosen")
	}
	// A second proof in awaiting_ad is ignored.
	if svc.SubmitProof(1) {
		t.Fatal("second proof accepted in awaiting_ad")
	}
}

func TestPlanReselectionResetsSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, notify := newTestService(t)

	_, _ = svc.SelectPlan(1, "1000")
	svc.SubmitProof(1)
	// Reselecting mid-flow discards ad-submission eligibility.
	_, _ = svc.SelectPlan(1, "5000")

	if _, ok, _ := svc.SubmitAd(ctx, 1, "ad"); ok {
		t.Fatal("SubmitAd succeeded without a fresh proof")
	}
	if len(notify.seen) != 0 {
		t.Fatalf("unexpected notification: %+v", notify.seen)
	}

	// A fresh proof for the new plan unlocks submission with its limit.
	svc.SubmitProof(1)
	p, ok, err := svc.SubmitAd(ctx, 1, "ad")
	if err != nil || !ok {
		t.Fatalf("SubmitAd = (ok=%v, err=%v)", ok, err)
	}
	if p.AudienceLimit != 5000 {
		t.Fatalf("audience limit = %d, want the reselected plan's 5000", p.AudienceLimit)
	}
}

func TestSessionsAreIndependentPerAdvertiser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, _ = svc.SelectPlan(1, "1000")
	svc.SubmitProof(1)

	// Advertiser 2 never progressed; their ad is a no-op.
	if _, ok, _ := svc.SubmitAd(ctx, 2, "ad"); ok {
		t.Fatal("advertiser 2 submitted through advertiser 1's session")
	}
	if _, ok, _ := svc.SubmitAd(ctx, 1, "ad"); !ok {
		t.Fatal("advertiser 1's session was clobbered")
	}
}

func TestNotifierFailureDoesNotLoseRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemory()
	notify := &fakeNotifier{fail: errors.New("telegram down")}
	svc := New(testCatalog, store, notify, logx.Nop())

	_, _ = svc.SelectPlan(1, "1000")
	svc.SubmitProof(1)
	p, ok, err := svc.SubmitAd(ctx, 1, "ad")
	if err != nil || !ok {
		t.Fatalf("SubmitAd = (ok=%v, err=%v)", ok, err)
	}
	if _, err := store.GetPromotion(ctx, p.ID); err != nil {
		t.Fatalf("request lost on notification failure: %v", err)
	}
}
