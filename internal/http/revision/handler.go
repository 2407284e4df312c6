package revision

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/account"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/auth"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/http/httperr"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/revision"
)

type Handler struct {
	svc *revision.Service
}

func NewHandler(svc *revision.Service) *Handler {
	return &Handler{svc: svc}
}

// OrderRoutes serves the revisions nested under an order, /orders/{id}/revisions.
func (h *Handler) OrderRoutes(r chi.Router) {
	r.Get("/", h.listForOrder)
	r.With(auth.RequireRole(account.RoleClient)).Post("/", h.request)
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/{id}", h.get)
	r.With(auth.RequireRole(account.RoleAdmin)).Post("/{id}/process", h.process)
	r.With(auth.RequireRole(account.RoleClient)).Post("/{id}/response", h.respond)
}

type requestRevisionRequest struct {
	Description      string `json:"description"`
	GuidanceAudioURL string `json:"guidance_audio_url,omitempty"`
}

func (h *Handler) request(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req requestRevisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, err.Error())
		return
	}

	actor, _ := auth.FromContext(r.Context())

	rev, err := h.svc.Request(r.Context(), actor, revision.RequestParams{
		OrderID:          orderID,
		Description:      req.Description,
		GuidanceAudioURL: req.GuidanceAudioURL,
	})
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	httperr.JSON(w, http.StatusCreated, toResponse(rev))
}

func (h *Handler) listForOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}

	actor, _ := auth.FromContext(r.Context())

	revs, err := h.svc.ListForOrder(r.Context(), actor, orderID)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	httperr.JSON(w, http.StatusOK, toResponseList(revs))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	actor, _ := auth.FromContext(r.Context())

	rev, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	httperr.JSON(w, http.StatusOK, toResponse(rev))
}

type processRequest struct {
	Status        revision.Status `json:"new_status"`
	AdminFeedback string          `json:"admin_feedback,omitempty"`
	AudioURL      string          `json:"audio_url,omitempty"`
	AdminComment  string          `json:"admin_comment,omitempty"`
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, err.Error())
		return
	}

	if !req.Status.Valid() {
		httperr.BadRequest(w, "new_status must be a valid revision status")
		return
	}

	actor, _ := auth.FromContext(r.Context())

	rev, err := h.svc.Process(r.Context(), actor, revision.ProcessParams{
		RevisionID:    id,
		To:            req.Status,
		AdminFeedback: req.AdminFeedback,
		AudioURL:      req.AudioURL,
		AdminComment:  req.AdminComment,
	})
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	httperr.JSON(w, http.StatusOK, toResponse(rev))
}

type respondRequest struct {
	ResponseText     string `json:"response_text,omitempty"`
	ResponseAudioURL string `json:"response_audio_url,omitempty"`
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, err.Error())
		return
	}

	actor, _ := auth.FromContext(r.Context())

	rev, err := h.svc.Respond(r.Context(), actor, revision.RespondParams{
		RevisionID:       id,
		ResponseText:     req.ResponseText,
		ResponseAudioURL: req.ResponseAudioURL,
	})
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	httperr.JSON(w, http.StatusOK, toResponse(rev))
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httperr.BadRequest(w, "invalid id")
		return uuid.Nil, false
	}

	return id, true
}
