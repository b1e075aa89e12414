package router

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownAction is returned for callback tokens that don't match any
// recognized verb. It is reported to the tapping user, never fatal.
var ErrUnknownAction = errors.New("router: unknown action")

// Verb is the closed set of callback actions. Tokens arrive on the wire as
// "<verb>_<argument>" (plan_5000, approve_42, reject_42, admin_broadcast,
// admin_count) and are parsed exactly once, here.
type Verb int

const (
	VerbPlan Verb = iota + 1
	VerbApprove
	VerbReject
	VerbBroadcast
	VerbCount
)

// Action is one parsed callback token. Only the field matching the verb is
// populated.
type Action struct {
	Verb      Verb
	PlanKey   string // VerbPlan
	RequestID int64  // VerbApprove, VerbReject
}

func ParseAction(data string) (Action, error) {
	data = strings.TrimSpace(data)
	switch data {
	case "admin_broadcast":
		return Action{Verb: VerbBroadcast}, nil
	case "admin_count":
		return Action{Verb: VerbCount}, nil
	}

	switch {
	case strings.HasPrefix(data, "plan_"):
		key := strings.TrimPrefix(data, "plan_")
		if key == "" {
			return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, data)
		}
		return Action{Verb: VerbPlan, PlanKey: key}, nil

	case strings.HasPrefix(data, "approve_"), strings.HasPrefix(data, "reject_"):
		verb := VerbApprove
		arg := strings.TrimPrefix(data, "approve_")
		if strings.HasPrefix(data, "reject_") {
			verb = VerbReject
			arg = strings.TrimPrefix(data, "reject_")
		}
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, data)
		}
		return Action{Verb: verb, RequestID: id}, nil
	}

	return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, data)
}

// PlanToken renders the callback token for a plan button.
func PlanToken(key string) string { return "plan_" + key }

// ApproveToken and RejectToken render operator decision tokens.
func ApproveToken(id int64) string { return "approve_" + strconv.FormatInt(id, 10) }
func RejectToken(id int64) string  { return "reject_" + strconv.FormatInt(id, 10) }
