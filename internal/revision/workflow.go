package revision

import (
	"fmt"
	"strings"
	"time"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/account"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/apperr"
)

type requirement int

const (
	requireNothing requirement = iota
	requireFeedback
	requireVersion
	requireResponse
)

type edge struct {
	role    account.Role
	require requirement
}

var transitions = map[Status]map[Status]edge{
	StatusRequested: {
		StatusInProgress:    {role: account.RoleAdmin},
		StatusInfoRequested: {role: account.RoleAdmin, require: requireFeedback},
	},
	StatusInProgress: {
		StatusInfoRequested: {role: account.RoleAdmin, require: requireFeedback},
		StatusDenied:        {role: account.RoleAdmin, require: requireFeedback},
		StatusFinalized:     {role: account.RoleAdmin, require: requireVersion},
	},
	StatusInfoRequested: {
		StatusClientResponded: {role: account.RoleClient, require: requireResponse},
	},
	StatusClientResponded: {
		StatusInProgress: {role: account.RoleAdmin},
		StatusFinalized:  {role: account.RoleAdmin, require: requireVersion},
		StatusDenied:     {role: account.RoleAdmin, require: requireFeedback},
	},
}

// Trigger returns the role allowed to move a request between two statuses.
func Trigger(from, to Status) (account.Role, bool) {
	e, ok := transitions[from][to]
	return e.role, ok
}

// Input is what an actor supplies with a revision transition.
type Input struct {
	AdminFeedback    string
	AudioURL         string
	AdminComment     string
	ResponseText     string
	ResponseAudioURL string
}

// Apply moves r to status to. Creating the audio version a finalization
// requires is left to the caller, which knows the next version number.
func Apply(r *Request, to Status, actor account.Actor, in Input, now time.Time) error {
	e, ok := transitions[r.Status][to]
	if !ok {
		return fmt.Errorf("%w: revision %s -> %s", apperr.ErrInvalidTransition, r.Status, to)
	}

	if actor.Role != e.role {
		return fmt.Errorf("%w: %s cannot move revision %s -> %s", apperr.ErrForbidden, actor.Role, r.Status, to)
	}

	if e.role == account.RoleClient && !actor.Owns(r.AccountID) {
		return fmt.Errorf("%w: revision belongs to another account", apperr.ErrForbidden)
	}

	feedback := strings.TrimSpace(in.AdminFeedback)

	switch e.require {
	case requireFeedback:
		if feedback == "" {
			return apperr.Missing("admin_feedback")
		}
	case requireVersion:
		if strings.TrimSpace(in.AudioURL) == "" {
			return apperr.Missing("audio_url")
		}
	case requireResponse:
		text := strings.TrimSpace(in.ResponseText)
		audio := strings.TrimSpace(in.ResponseAudioURL)

		if text == "" && audio == "" {
			return apperr.Missing("client_response")
		}

		r.ClientResponseText = optional(text)
		r.ClientResponseAudioURL = optional(audio)
		r.ClientRespondedAt = &now
	}

	if feedback != "" && e.role == account.RoleAdmin {
		r.AdminFeedback = &feedback
	}

	r.Status = to
	r.UpdatedAt = now

	if to.Terminal() {
		r.CompletedAt = &now
	}

	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
