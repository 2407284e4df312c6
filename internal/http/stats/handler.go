package stats

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/auth"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/http/httperr"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/order"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/stats"
)

type Handler struct {
	svc *stats.Service
}

func NewHandler(svc *stats.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.snapshot)
}

type snapshotResponse struct {
	ActiveClients        int                  `json:"active_clients"`
	OutstandingRecording int64                `json:"outstanding_recording"`
	OutstandingAI        int64                `json:"outstanding_ai"`
	PendingOrders        int                  `json:"pending_orders"`
	OrdersByStatus       map[order.Status]int `json:"orders_by_status"`
	PendingRevisions     int                  `json:"pending_revisions"`
	TakenAt              time.Time            `json:"taken_at"`
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())

	snap, err := h.svc.Snapshot(r.Context(), actor)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	httperr.JSON(w, http.StatusOK, snapshotResponse{
		ActiveClients:        snap.ActiveClients,
		OutstandingRecording: snap.Outstanding.Recording,
		OutstandingAI:        snap.Outstanding.AI,
		PendingOrders:        snap.PendingOrders,
		OrdersByStatus:       snap.OrdersByStatus,
		PendingRevisions:     snap.PendingRevisions,
		TakenAt:              snap.TakenAt,
	})
}
