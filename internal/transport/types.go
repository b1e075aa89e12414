package transport

import (
	"context"
	"errors"
)

type UpdateKind string

const (
	UpdateMessage     UpdateKind = "message"
	UpdateCallback    UpdateKind = "callback"
	UpdateJoinRequest UpdateKind = "join_request"
)

type Update struct {
	Kind        UpdateKind
	Message     *Message
	Callback    *Callback
	JoinRequest *JoinRequest
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
	// HasPhoto marks messages carrying a photo attachment. The photo bytes
	// are never downloaded; presence alone is the payment-proof signal.
	HasPhoto bool
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

// JoinRequest is a pending request to join a chat the bot administers.
type JoinRequest struct {
	ChatID       int64
	FromID       int64
	FromUsername string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode          string
	DisablePreview     bool
	ReplyMarkupAdapter any // adapter-specific markup (Telegram: *telebot.ReplyMarkup)
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, to ChatTarget, photoURL, caption string, opt *SendOptions) (MessageRef, error)
	// Copy re-sends an existing message verbatim, media included.
	Copy(ctx context.Context, to ChatTarget, from MessageRef) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// FailureKind classifies a per-recipient send failure.
//
// Permanent means the recipient is gone for good (blocked the bot, or the
// conversation no longer exists) and should be pruned from the audience.
// Anything the adapter cannot positively identify as permanent is Transient.
type FailureKind int

const (
	FailureTransient FailureKind = iota
	FailurePermanent
)

func (k FailureKind) String() string {
	if k == FailurePermanent {
		return "permanent"
	}
	return "transient"
}

// SendError is the structured failure returned by adapters for per-recipient
// sends. Classification happens once, at the transport boundary; callers only
// ever look at Kind.
type SendError struct {
	Kind FailureKind
	Err  error
}

func (e *SendError) Error() string {
	if e.Err == nil {
		return "send failed (" + e.Kind.String() + ")"
	}
	return e.Err.Error()
}

func (e *SendError) Unwrap() error { return e.Err }

func NewSendError(kind FailureKind, err error) *SendError {
	return &SendError{Kind: kind, Err: err}
}

// IsPermanent reports whether err carries a permanent failure classification.
func IsPermanent(err error) bool {
	var se *SendError
	return errors.As(err, &se) && se.Kind == FailurePermanent
}
