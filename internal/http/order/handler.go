package order

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/account"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/auth"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/http/httperr"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/order"
)

type Handler struct {
	svc *order.Service
}

func NewHandler(svc *order.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/transitions", h.transition)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(account.RoleAdmin))
		r.Post("/{id}/reopen", h.reopen)
		r.Post("/{id}/notified", h.notified)
		r.Delete("/{id}", h.delete)
	})
}

type createOrderRequest struct {
	AccountID        *uuid.UUID      `json:"account_id,omitempty"`
	SpeakerID        uuid.UUID       `json:"speaker_id"`
	ScriptText       string          `json:"script_text"`
	Title            string          `json:"title"`
	Style            string          `json:"style"`
	Guidance         string          `json:"guidance"`
	AudioKind        order.AudioKind `json:"audio_kind"`
	CreditKind       credit.Kind     `json:"credit_kind"`
	EstimatedCredits int64           `json:"estimated_credits"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, err.Error())
		return
	}

	actor, _ := auth.FromContext(r.Context())

	// Clients order for themselves unless they say otherwise.
	accountID := actor.AccountID
	if req.AccountID != nil {
		accountID = *req.AccountID
	}

	o, err := h.svc.Create(r.Context(), actor, order.CreateParams{
		AccountID:        accountID,
		SpeakerID:        req.SpeakerID,
		ScriptText:       req.ScriptText,
		Title:            req.Title,
		Style:            req.Style,
		Guidance:         req.Guidance,
		AudioKind:        req.AudioKind,
		CreditKind:       req.CreditKind,
		EstimatedCredits: req.EstimatedCredits,
	})
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	httperr.JSON(w, http.StatusCreated, toResponse(o))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := order.ListFilter{}

	if s := r.URL.Query().Get("status"); s != "" {
		st, err := order.ParseStatus(s)
		if err != nil {
			httperr.BadRequest(w, err.Error())
			return
		}

		filter.Status = new(st)
	}

	if s := r.URL.Query().Get("account_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			httperr.BadRequest(w, "invalid account_id")
			return
		}

		filter.AccountID = new(id)
	}

	actor, _ := auth.FromContext(r.Context())

	orders, err := h.svc.List(r.Context(), actor, filter)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	httperr.JSON(w, http.StatusOK, toResponseList(orders))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	actor, _ := auth.FromContext(r.Context())

	o, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	httperr.JSON(w, http.StatusOK, toResponse(o))
}

type transitionRequest struct {
	Expected         order.Status `json:"expected_status"`
	To               order.Status `json:"new_status"`
	AdminMessage     string       `json:"admin_message,omitempty"`
	CancelReason     string       `json:"cancel_reason,omitempty"`
	FinalAudioURL    string       `json:"final_audio_url,omitempty"`
	ResponseText     string       `json:"response_text,omitempty"`
	ResponseAudioURL string       `json:"response_audio_url,omitempty"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, err.Error())
		return
	}

	if !req.To.Valid() || !req.Expected.Valid() {
		httperr.BadRequest(w, "expected_status and new_status must be valid order statuses")
		return
	}

	actor, _ := auth.FromContext(r.Context())

	o, err := h.svc.Transition(r.Context(), actor, order.TransitionParams{
		OrderID:  id,
		Expected: req.Expected,
		To:       req.To,
		Payload: order.Payload{
			AdminMessage:     req.AdminMessage,
			CancelReason:     req.CancelReason,
			FinalAudioURL:    req.FinalAudioURL,
			ResponseText:     req.ResponseText,
			ResponseAudioURL: req.ResponseAudioURL,
		},
	})
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	httperr.JSON(w, http.StatusOK, toResponse(o))
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	actor, _ := auth.FromContext(r.Context())

	o, err := h.svc.Reopen(r.Context(), actor, id)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	httperr.JSON(w, http.StatusOK, toResponse(o))
}

func (h *Handler) notified(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	actor, _ := auth.FromContext(r.Context())

	o, err := h.svc.MarkClientNotified(r.Context(), actor, id)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	httperr.JSON(w, http.StatusOK, toResponse(o))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	actor, _ := auth.FromContext(r.Context())

	if err := h.svc.Delete(r.Context(), actor, id); err != nil {
		httperr.Write(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httperr.BadRequest(w, "invalid id")
		return uuid.Nil, false
	}

	return id, true
}
