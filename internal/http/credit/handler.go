package credit

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/account"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/apperr"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/auth"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/http/httperr"
)

type Handler struct {
	svc *credit.Service
}

func NewHandler(svc *credit.Service) *Handler {
	return &Handler{svc: svc}
}

// AccountRoutes serves /accounts/{id}.
func (h *Handler) AccountRoutes(r chi.Router) {
	r.Get("/balance", h.balance)
	r.Get("/history", h.history)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(account.RoleAdmin))
		r.Post("/adjustments", h.adjust)
		r.Post("/grants", h.grant)
	})
}

// Routes serves /credits.
func (h *Handler) Routes(r chi.Router) {
	r.With(auth.RequireRole(account.RoleAdmin)).Post("/batches/{id}/void", h.void)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := readableAccount(w, r)
	if !ok {
		return
	}

	bal, err := h.svc.Balance(r.Context(), accountID)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	httperr.JSON(w, http.StatusOK, balanceResponse{
		AccountID: accountID,
		Recording: bal.Recording,
		AI:        bal.AI,
	})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	accountID, ok := readableAccount(w, r)
	if !ok {
		return
	}

	entries, err := h.svc.History(r.Context(), accountID)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	httperr.JSON(w, http.StatusOK, toEntryList(entries))
}

type adjustRequest struct {
	RecordingDelta int64  `json:"recording_delta"`
	AIDelta        int64  `json:"ai_delta"`
	Observation    string `json:"observation"`
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, err.Error())
		return
	}

	batches, err := h.svc.AdminAdjust(r.Context(), credit.AdjustParams{
		AccountID:      accountID,
		RecordingDelta: req.RecordingDelta,
		AIDelta:        req.AIDelta,
		Observation:    req.Observation,
	})
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	httperr.JSON(w, http.StatusCreated, toBatchList(batches))
}

type grantRequest struct {
	Recording       int64      `json:"recording"`
	AI              int64      `json:"ai"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	ValidForDays    int        `json:"valid_for_days,omitempty"`
	Reference       string     `json:"reference"`
	AmountPaidCents int64      `json:"amount_paid_cents"`
	Observation     string     `json:"observation,omitempty"`
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, err.Error())
		return
	}

	if req.ExpiresAt != nil && req.ValidForDays > 0 {
		httperr.BadRequest(w, "expires_at and valid_for_days are mutually exclusive")
		return
	}

	p := credit.GrantParams{
		AccountID:       accountID,
		Recording:       req.Recording,
		AI:              req.AI,
		ExpiresAt:       req.ExpiresAt,
		Reference:       req.Reference,
		AmountPaidCents: req.AmountPaidCents,
		Observation:     req.Observation,
	}

	if req.ValidForDays > 0 {
		p.ValidFor = time.Duration(req.ValidForDays) * 24 * time.Hour
	}

	b, err := h.svc.Grant(r.Context(), p)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	httperr.JSON(w, http.StatusCreated, toBatch(b))
}

type voidRequest struct {
	Observation string `json:"observation"`
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req voidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, err.Error())
		return
	}

	b, err := h.svc.VoidBatch(r.Context(), batchID, req.Observation)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	httperr.JSON(w, http.StatusOK, toBatch(b))
}

// readableAccount parses the account in the path and checks the caller may
// see it. Strangers get a 404 so account ids cannot be probed.
func readableAccount(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	accountID, ok := pathID(w, r)
	if !ok {
		return uuid.Nil, false
	}

	actor, _ := auth.FromContext(r.Context())
	if !actor.CanRead(accountID) {
		httperr.Write(w, r, apperr.ErrNotFound)
		return uuid.Nil, false
	}

	return accountID, true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httperr.BadRequest(w, "invalid id")
		return uuid.Nil, false
	}

	return id, true
}
