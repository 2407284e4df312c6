package order

import (
	"time"

	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/order"
)

type orderResponse struct {
	ID                     uuid.UUID       `json:"id"`
	SerialNumber           int64           `json:"serial_number"`
	AccountID              uuid.UUID       `json:"account_id"`
	SpeakerID              uuid.UUID       `json:"speaker_id"`
	ScriptText             string          `json:"script_text"`
	Title                  string          `json:"title,omitempty"`
	Style                  string          `json:"style,omitempty"`
	Guidance               string          `json:"guidance,omitempty"`
	AudioKind              order.AudioKind `json:"audio_kind"`
	CreditKind             credit.Kind     `json:"credit_kind"`
	Status                 order.Status    `json:"status"`
	CreditsDebited         int64           `json:"credits_debited"`
	CreditsReversedAt      *time.Time      `json:"credits_reversed_at,omitempty"`
	FinalAudioURL          *string         `json:"final_audio_url,omitempty"`
	ClientNotifiedAt       *time.Time      `json:"client_notified_at,omitempty"`
	AdminCancelReason      *string         `json:"admin_cancel_reason,omitempty"`
	AdminMessage           *string         `json:"admin_message,omitempty"`
	ClientResponseText     *string         `json:"client_response_text,omitempty"`
	ClientResponseAudioURL *string         `json:"client_response_audio_url,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

func toResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:                     o.ID,
		SerialNumber:           o.SerialNumber,
		AccountID:              o.AccountID,
		SpeakerID:              o.SpeakerID,
		ScriptText:             o.ScriptText,
		Title:                  o.Title,
		Style:                  o.Style,
		Guidance:               o.Guidance,
		AudioKind:              o.AudioKind,
		CreditKind:             o.CreditKind,
		Status:                 o.Status,
		CreditsDebited:         o.CreditsDebited,
		CreditsReversedAt:      o.CreditsReversedAt,
		FinalAudioURL:          o.FinalAudioURL,
		ClientNotifiedAt:       o.ClientNotifiedAt,
		AdminCancelReason:      o.AdminCancelReason,
		AdminMessage:           o.AdminMessage,
		ClientResponseText:     o.ClientResponseText,
		ClientResponseAudioURL: o.ClientResponseAudioURL,
		CreatedAt:              o.CreatedAt,
		UpdatedAt:              o.UpdatedAt,
	}
}

func toResponseList(orders []*order.Order) []orderResponse {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toResponse(o)
	}

	return resp
}
