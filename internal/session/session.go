// Package session tracks one advertiser's progress from plan selection to
// ad submission. State is process-memory only: a restart drops in-flight
// conversations, which is acceptable because nothing durable exists until
// the ad text is submitted.
package session

import (
	"context"
	"errors"
	"sync"

	"promobot/internal/storage"
	logx "promobot/pkg/logx"
)

// ErrUnknownPlan is returned when a selection references a plan key absent
// from the catalog. It is the only selection error surfaced to the advertiser.
var ErrUnknownPlan = errors.New("session: unknown plan")

// Phase is the advertiser's position in the submission flow. Transitions are
// strictly forward; the only way back is a reset (new plan selection or a
// completed submission).
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePlanChosen
	PhaseAwaitingAd
)

func (p Phase) String() string {
	switch p {
	case PhasePlanChosen:
		return "plan_chosen"
	case PhaseAwaitingAd:
		return "awaiting_ad"
	default:
		return "idle"
	}
}

// Plan is one catalog entry resolved for a selection.
type Plan struct {
	Key   string
	Price string
	Users int
}

// Catalog resolves a plan key. It is read-only configuration owned elsewhere;
// passing a lookup func keeps the catalog hot-reloadable without the session
// service knowing about config plumbing.
type Catalog func(key string) (Plan, bool)

// Notifier delivers the operator notification emitted on ad submission.
type Notifier interface {
	NotifyNewRequest(ctx context.Context, p storage.Promotion) error
}

type state struct {
	phase        Phase
	audienceSize int
}

type Service struct {
	mu       sync.Mutex
	sessions map[int64]*state

	catalog Catalog
	store   storage.Store
	notify  Notifier
	log     logx.Logger
}

func New(catalog Catalog, store storage.Store, notify Notifier, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		sessions: map[int64]*state{},
		catalog:  catalog,
		store:    store,
		notify:   notify,
		log:      log,
	}
}

// SelectPlan starts (or restarts) a submission flow. Any in-flight state for
// the advertiser is discarded, even mid-flow.
func (s *Service) SelectPlan(userID int64, planKey string) (Plan, error) {
	plan, ok := s.catalog(planKey)
	if !ok {
		return Plan{}, ErrUnknownPlan
	}

	s.mu.Lock()
	s.sessions[userID] = &state{phase: PhasePlanChosen, audienceSize: plan.Users}
	s.mu.Unlock()

	s.log.Debug("plan selected",
		logx.Int64("user_id", userID),
		logx.String("plan", planKey),
		logx.Int("users", plan.Users))
	return plan, nil
}

// SubmitProof records the payment-proof signal. The proof is never verified;
// its presence immediately unlocks ad submission. Outside PhasePlanChosen the
// call is a silent no-op and returns false.
func (s *Service) SubmitProof(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.sessions[userID]
	if st == nil || st.phase != PhasePlanChosen {
		s.log.Debug("proof ignored outside plan_chosen", logx.Int64("user_id", userID))
		return false
	}
	st.phase = PhaseAwaitingAd
	return true
}

// SubmitAd persists the promotion request and notifies the operator. Outside
// PhaseAwaitingAd the call is a silent no-op and returns ok=false. On success
// the session resets to idle.
func (s *Service) SubmitAd(ctx context.Context, userID int64, text string) (storage.Promotion, bool, error) {
	s.mu.Lock()
	st := s.sessions[userID]
	if st == nil || st.phase != PhaseAwaitingAd {
		s.mu.Unlock()
		s.log.Debug("ad ignored outside awaiting_ad", logx.Int64("user_id", userID))
		return storage.Promotion{}, false, nil
	}
	audience := st.audienceSize
	delete(s.sessions, userID)
	s.mu.Unlock()

	id, err := s.store.CreatePromotion(ctx, userID, text, audience)
	if err != nil {
		return storage.Promotion{}, false, err
	}
	p := storage.Promotion{ID: id, RequesterID: userID, Content: text, AudienceLimit: audience}

	if s.notify != nil {
		if err := s.notify.NotifyNewRequest(ctx, p); err != nil {
			// The request is persisted either way; the operator can still
			// find it, so a lost notification is not fatal.
			s.log.Warn("operator notification failed",
				logx.Int64("request_id", p.ID), logx.Err(err))
		}
	}

	s.log.Info("promotion request submitted",
		logx.Int64("request_id", p.ID),
		logx.Int64("user_id", userID),
		logx.Int("audience_limit", audience))
	return p, true, nil
}

// Phase reports the advertiser's current phase (idle when no session exists).
func (s *Service) Phase(userID int64) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.sessions[userID]; st != nil {
		return st.phase
	}
	return PhaseIdle
}

// Reset clears the advertiser's session, if any.
func (s *Service) Reset(userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}
