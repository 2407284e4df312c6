package revision

import (
	"time"

	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/revision"
)

type revisionResponse struct {
	ID                     uuid.UUID         `json:"id"`
	OrderID                uuid.UUID         `json:"order_id"`
	AccountID              uuid.UUID         `json:"account_id"`
	Status                 revision.Status   `json:"status"`
	RequestedAt            time.Time         `json:"requested_at"`
	ClientDescription      string            `json:"client_description"`
	GuidanceAudioURL       *string           `json:"guidance_audio_url,omitempty"`
	AdminFeedback          *string           `json:"admin_feedback,omitempty"`
	ClientResponseText     *string           `json:"client_response_text,omitempty"`
	ClientResponseAudioURL *string           `json:"client_response_audio_url,omitempty"`
	ClientRespondedAt      *time.Time        `json:"client_responded_at,omitempty"`
	CompletedAt            *time.Time        `json:"completed_at,omitempty"`
	UpdatedAt              time.Time         `json:"updated_at"`
	Versions               []versionResponse `json:"versions"`
}

type versionResponse struct {
	ID            uuid.UUID `json:"id"`
	VersionNumber int       `json:"version_number"`
	AudioURL      string    `json:"audio_url"`
	AdminComment  string    `json:"admin_comment,omitempty"`
	SentAt        time.Time `json:"sent_at"`
}

func toResponse(r *revision.Request) revisionResponse {
	resp := revisionResponse{
		ID:                     r.ID,
		OrderID:                r.OrderID,
		AccountID:              r.AccountID,
		Status:                 r.Status,
		RequestedAt:            r.RequestedAt,
		ClientDescription:      r.ClientDescription,
		GuidanceAudioURL:       r.GuidanceAudioURL,
		AdminFeedback:          r.AdminFeedback,
		ClientResponseText:     r.ClientResponseText,
		ClientResponseAudioURL: r.ClientResponseAudioURL,
		ClientRespondedAt:      r.ClientRespondedAt,
		CompletedAt:            r.CompletedAt,
		UpdatedAt:              r.UpdatedAt,
		Versions:               make([]versionResponse, len(r.Versions)),
	}

	for i, v := range r.Versions {
		resp.Versions[i] = versionResponse{
			ID:            v.ID,
			VersionNumber: v.VersionNumber,
			AudioURL:      v.AudioURL,
			AdminComment:  v.AdminComment,
			SentAt:        v.SentAt,
		}
	}

	return resp
}

func toResponseList(revs []*revision.Request) []revisionResponse {
	resp := make([]revisionResponse, len(revs))
	for i, r := range revs {
		resp[i] = toResponse(r)
	}

	return resp
}
