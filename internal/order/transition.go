package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/account"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/apperr"
)

// Effect is the side effect a transition asks its caller to carry out inside
// the same transaction.
type Effect int

const (
	EffectNone Effect = iota
	// EffectReverseCredits refunds CreditsDebited unless already refunded.
	EffectReverseCredits
	// EffectOpenRevision means a revision request must be created alongside.
	EffectOpenRevision
)

type edge struct {
	role   account.Role
	effect Effect
}

// transitions is the whole order state machine. Deletion is not a status and
// lives in the service.
var transitions = map[Status]map[Status]edge{
	StatusPending: {
		StatusInReview: {role: account.RoleAdmin},
	},
	StatusInReview: {
		StatusInProduction: {role: account.RoleAdmin},
		StatusCanceled:     {role: account.RoleAdmin, effect: EffectReverseCredits},
	},
	StatusInProduction: {
		StatusCompleted:      {role: account.RoleAdmin},
		StatusCanceled:       {role: account.RoleAdmin, effect: EffectReverseCredits},
		StatusAwaitingClient: {role: account.RoleAdmin},
	},
	StatusAwaitingClient: {
		StatusInReview: {role: account.RoleClient},
	},
	StatusCompleted: {
		StatusInRevision: {role: account.RoleClient, effect: EffectOpenRevision},
		StatusPending:    {role: account.RoleAdmin},
	},
	StatusInRevision: {
		StatusCompleted: {role: account.RoleSystem},
	},
	StatusCanceled: {
		StatusPending: {role: account.RoleAdmin},
	},
}

// Trigger returns the role allowed to move an order from one status to
// another, and false when the pair is not in the state machine.
func Trigger(from, to Status) (account.Role, bool) {
	e, ok := transitions[from][to]
	return e.role, ok
}

// Payload carries the optional data some transitions record.
type Payload struct {
	AdminMessage     string
	CancelReason     string
	FinalAudioURL    string
	ResponseText     string
	ResponseAudioURL string
}

// Apply moves o to status to on behalf of actor. It is the single place the
// state machine is enforced. On success o is mutated and the returned Effect
// tells the caller what else the transaction must do.
func Apply(o *Order, to Status, actor account.Actor, p Payload, now time.Time) (Effect, error) {
	e, ok := transitions[o.Status][to]
	if !ok {
		return EffectNone, fmt.Errorf("%w: order %s -> %s", apperr.ErrInvalidTransition, o.Status, to)
	}

	if actor.Role != e.role {
		return EffectNone, fmt.Errorf("%w: %s cannot move order %s -> %s", apperr.ErrForbidden, actor.Role, o.Status, to)
	}

	if e.role == account.RoleClient && !actor.Owns(o.AccountID) {
		return EffectNone, fmt.Errorf("%w: order belongs to another account", apperr.ErrForbidden)
	}

	switch to {
	case StatusAwaitingClient:
		msg := strings.TrimSpace(p.AdminMessage)
		if msg == "" {
			return EffectNone, apperr.Missing("admin_message")
		}

		o.AdminMessage = &msg
		o.ClientResponseText = nil
		o.ClientResponseAudioURL = nil
	case StatusCanceled:
		if reason := strings.TrimSpace(p.CancelReason); reason != "" {
			o.AdminCancelReason = &reason
		}
	case StatusCompleted:
		if url := strings.TrimSpace(p.FinalAudioURL); url != "" {
			o.FinalAudioURL = &url
		}
	case StatusInReview:
		if o.Status == StatusAwaitingClient {
			o.ClientResponseText = optional(p.ResponseText)
			o.ClientResponseAudioURL = optional(p.ResponseAudioURL)
		}
	}

	o.Status = to
	o.UpdatedAt = now

	if e.effect == EffectReverseCredits && o.Reversed() {
		return EffectNone, nil
	}

	return e.effect, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	return &s
}
