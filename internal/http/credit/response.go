package credit

import (
	"time"

	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
)

type balanceResponse struct {
	AccountID uuid.UUID `json:"account_id"`
	Recording int64     `json:"recording"`
	AI        int64     `json:"ai"`
}

type batchResponse struct {
	ID              uuid.UUID     `json:"id"`
	AccountID       uuid.UUID     `json:"account_id"`
	Source          credit.Source `json:"source"`
	Status          credit.Status `json:"status"`
	RecordingAdded  int64         `json:"recording_added"`
	RecordingUsed   int64         `json:"recording_used"`
	AIAdded         int64         `json:"ai_added"`
	AIUsed          int64         `json:"ai_used"`
	AddedAt         time.Time     `json:"added_at"`
	ExpiresAt       *time.Time    `json:"expires_at,omitempty"`
	Reference       string        `json:"reference,omitempty"`
	Observation     string        `json:"observation,omitempty"`
	AmountPaidCents int64         `json:"amount_paid_cents,omitempty"`
	OrderID         *uuid.UUID    `json:"order_id,omitempty"`
}

type entryResponse struct {
	Batch              batchResponse `json:"batch"`
	RecordingRemaining int64         `json:"recording_remaining"`
	AIRemaining        int64         `json:"ai_remaining"`
	Expired            bool          `json:"expired"`
	RecordingForfeited int64         `json:"recording_forfeited,omitempty"`
	AIForfeited        int64         `json:"ai_forfeited,omitempty"`
}

func toBatch(b *credit.Batch) batchResponse {
	return batchResponse{
		ID:              b.ID,
		AccountID:       b.AccountID,
		Source:          b.Source,
		Status:          b.Status,
		RecordingAdded:  b.RecordingAdded,
		RecordingUsed:   b.RecordingUsed,
		AIAdded:         b.AIAdded,
		AIUsed:          b.AIUsed,
		AddedAt:         b.AddedAt,
		ExpiresAt:       b.ExpiresAt,
		Reference:       b.Reference,
		Observation:     b.Observation,
		AmountPaidCents: b.AmountPaidCents,
		OrderID:         b.OrderID,
	}
}

func toBatchList(batches []*credit.Batch) []batchResponse {
	resp := make([]batchResponse, len(batches))
	for i, b := range batches {
		resp[i] = toBatch(b)
	}

	return resp
}

func toEntryList(entries []credit.Entry) []entryResponse {
	resp := make([]entryResponse, len(entries))
	for i, e := range entries {
		resp[i] = entryResponse{
			Batch:              toBatch(e.Batch),
			RecordingRemaining: e.RecordingRemaining,
			AIRemaining:        e.AIRemaining,
			Expired:            e.Expired,
			RecordingForfeited: e.RecordingForfeited,
			AIForfeited:        e.AIForfeited,
		}
	}

	return resp
}
