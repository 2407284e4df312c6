package revision

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the state of a single revision request.
type Status string

const (
	StatusRequested       Status = "requested"
	StatusInProgress      Status = "admin_in_progress"
	StatusInfoRequested   Status = "info_requested_from_client"
	StatusClientResponded Status = "client_responded"
	StatusDenied          Status = "denied"
	StatusFinalized       Status = "finalized"
)

var Statuses = []Status{
	StatusRequested,
	StatusInProgress,
	StatusInfoRequested,
	StatusClientResponded,
	StatusDenied,
	StatusFinalized,
}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}

	return false
}

// Terminal reports whether the request is closed. A closed request hands its
// order back to completed.
func (s Status) Terminal() bool {
	return s == StatusDenied || s == StatusFinalized
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown revision status %q", s)
	}

	return st, nil
}

// Request is a client's ask to redo a completed order. At most one request
// per order is open at a time.
type Request struct {
	ID                uuid.UUID
	OrderID           uuid.UUID
	AccountID         uuid.UUID
	RequestedAt       time.Time
	ClientDescription string
	GuidanceAudioURL  *string
	Status            Status
	AdminFeedback     *string
	CompletedAt       *time.Time

	ClientResponseText     *string
	ClientResponseAudioURL *string
	ClientRespondedAt      *time.Time

	UpdatedAt time.Time

	// Versions is filled on reads only.
	Versions []*AudioVersion
}

func (r *Request) Clone() *Request {
	c := *r
	c.GuidanceAudioURL = clonePtr(r.GuidanceAudioURL)
	c.AdminFeedback = clonePtr(r.AdminFeedback)
	c.CompletedAt = clonePtr(r.CompletedAt)
	c.ClientResponseText = clonePtr(r.ClientResponseText)
	c.ClientResponseAudioURL = clonePtr(r.ClientResponseAudioURL)
	c.ClientRespondedAt = clonePtr(r.ClientRespondedAt)

	if r.Versions != nil {
		c.Versions = make([]*AudioVersion, len(r.Versions))
		for i, v := range r.Versions {
			vc := *v
			c.Versions[i] = &vc
		}
	}

	return &c
}

// AudioVersion is a delivered take. Version numbers count per order and are
// never reused.
type AudioVersion struct {
	ID            uuid.UUID
	RevisionID    uuid.UUID
	OrderID       uuid.UUID
	VersionNumber int
	AudioURL      string
	AdminComment  string
	SentAt        time.Time
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}

	v := *p

	return &v
}
