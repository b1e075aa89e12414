package approval

import (
	"context"
	"errors"
	"sync"
	"testing"

	"promobot/internal/delivery"
	"promobot/internal/storage"
	kit "promobot/internal/transport"
	logx "promobot/pkg/logx"
)

type fakeAdapter struct {
	mu    sync.Mutex
	sends []int64
	fail  map[int64]error
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, _ string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[to.ChatID]; err != nil {
		return kit.MessageRef{}, err
	}
	f.sends = append(f.sends, to.ChatID)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func (f *fakeAdapter) SendPhoto(_ context.Context, to kit.ChatTarget, _, _ string, _ *kit.SendOptions) (kit.MessageRef, error) {
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func (f *fakeAdapter) Copy(context.Context, kit.ChatTarget, kit.MessageRef) error { return nil }
func (f *fakeAdapter) AnswerCallback(context.Context, string, string, bool) error { return nil }

func newController(ad *fakeAdapter, store storage.Store) *Controller {
	engine := delivery.New(ad, store, delivery.Nop(), logx.Nop())
	return New(store, engine, logx.Nop())
}

func TestApproveDeliversBoundedPrefixAndFinalizes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemory()
	for _, id := range []int64{1, 2, 3} {
		if err := store.AddRecipient(ctx, id); err != nil {
			t.Fatalf("AddRecipient: %v", err)
		}
	}
	id, err := store.CreatePromotion(ctx, 9, "Buy now", 2)
	if err != nil {
		t.Fatalf("CreatePromotion: %v", err)
	}
	ad := &fakeAdapter{}
	c := newController(ad, store)

	rep, err := c.Approve(ctx, id)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if rep.Sent != 2 || rep.Pruned != 0 {
		t.Fatalf("report = %+v, want sent=2 pruned=0", rep)
	}
	// audience_limit bounds the prefix: recipient 3 never contacted.
	if len(ad.sends) != 2 || ad.sends[0] != 1 || ad.sends[1] != 2 {
		t.Fatalf("sends = %v, want [1 2]", ad.sends)
	}

	// Request finality: a second decision on the same id fails.
	if _, err := c.Approve(ctx, id); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("second approve err = %v, want ErrRequestNotFound", err)
	}
	if err := c.Reject(ctx, id); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("reject after approve err = %v, want ErrRequestNotFound", err)
	}
}

func TestApproveMissingRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemory()
	ad := &fakeAdapter{}
	c := newController(ad, store)

	if _, err := c.Approve(ctx, 99); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("err = %v, want ErrRequestNotFound", err)
	}
	if len(ad.sends) != 0 {
		t.Fatalf("unexpected delivery: %v", ad.sends)
	}
}

func TestApproveIsFinalEvenUnderDeliveryFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemory()
	if err := store.AddRecipient(ctx, 1); err != nil {
		t.Fatalf("AddRecipient: %v", err)
	}
	id, _ := store.CreatePromotion(ctx, 9, "ad", 10)

	ad := &fakeAdapter{fail: map[int64]error{
		1: kit.NewSendError(kit.FailureTransient, errors.New("flood wait")),
	}}
	c := newController(ad, store)

	rep, err := c.Approve(ctx, id)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if rep.Sent != 0 {
		t.Fatalf("sent = %d, want 0", rep.Sent)
	}
	// Approval deletes the record regardless of delivery outcome.
	if _, err := store.GetPromotion(ctx, id); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("request survived approval: %v", err)
	}
}

func TestRejectDeletesWithoutDelivery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemory()
	if err := store.AddRecipient(ctx, 1); err != nil {
		t.Fatalf("AddRecipient: %v", err)
	}
	id, _ := store.CreatePromotion(ctx, 9, "ad", 10)
	ad := &fakeAdapter{}
	c := newController(ad, store)

	if err := c.Reject(ctx, id); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if len(ad.sends) != 0 {
		t.Fatalf("reject must not deliver, got sends %v", ad.sends)
	}
	if err := c.Reject(ctx, id); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("second reject err = %v, want ErrRequestNotFound", err)
	}
}
