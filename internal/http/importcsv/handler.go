package importcsv

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/http/httperr"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/importer"
)

const maxUploadSize = 10 << 20

type Handler struct {
	importSvc *importer.Service
	creditSvc *credit.Service
}

func NewHandler(importSvc *importer.Service, creditSvc *credit.Service) *Handler {
	return &Handler{
		importSvc: importSvc,
		creditSvc: creditSvc,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importCSV)
	r.Post("/confirm", h.confirmImport)
}

type batchResponse struct {
	ID              uuid.UUID  `json:"id"`
	AccountID       uuid.UUID  `json:"account_id"`
	RecordingAdded  int64      `json:"recording_added"`
	AIAdded         int64      `json:"ai_added"`
	AddedAt         time.Time  `json:"added_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Reference       string     `json:"reference"`
	AmountPaidCents int64      `json:"amount_paid_cents"`
}

type importSuccessResponse struct {
	Imported int             `json:"imported"`
	Batches  []batchResponse `json:"batches"`
}

type grantDTO struct {
	AccountID       uuid.UUID  `json:"account_id"`
	Recording       int64      `json:"recording"`
	AI              int64      `json:"ai"`
	AddedAt         *time.Time `json:"added_at,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Reference       string     `json:"reference"`
	AmountPaidCents int64      `json:"amount_paid_cents"`
	Observation     string     `json:"observation,omitempty"`
}

type conflictDTO struct {
	Incoming grantDTO      `json:"incoming"`
	Existing batchResponse `json:"existing"`
}

type importConflictResponse struct {
	New       []grantDTO    `json:"new"`
	Conflicts []conflictDTO `json:"conflicts"`
}

type confirmRequest struct {
	Params []grantDTO `json:"params"`
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httperr.BadRequest(w, "failed to parse form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		httperr.BadRequest(w, "file field is required")
		return
	}
	defer file.Close()

	params, err := h.importSvc.Import(importer.Gateway(r.FormValue("gateway")), file)
	if err != nil {
		httperr.BadRequest(w, err.Error())
		return
	}

	result, err := h.creditSvc.ImportGrants(r.Context(), params)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	if len(result.Conflicts) > 0 {
		resp := importConflictResponse{
			New:       make([]grantDTO, 0, len(result.New)),
			Conflicts: make([]conflictDTO, 0, len(result.Conflicts)),
		}
		for _, p := range result.New {
			resp.New = append(resp.New, toGrantDTO(p))
		}

		for _, c := range result.Conflicts {
			resp.Conflicts = append(resp.Conflicts, conflictDTO{
				Incoming: toGrantDTO(c.Incoming),
				Existing: toBatchResponse(c.Existing),
			})
		}

		httperr.JSON(w, http.StatusConflict, resp)

		return
	}

	httperr.JSON(w, http.StatusCreated, toSuccessResponse(result.Granted))
}

func (h *Handler) confirmImport(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body: "+err.Error())
		return
	}

	params := make([]credit.GrantParams, 0, len(req.Params))
	for _, p := range req.Params {
		params = append(params, credit.GrantParams{
			AccountID:       p.AccountID,
			Recording:       p.Recording,
			AI:              p.AI,
			AddedAt:         p.AddedAt,
			ExpiresAt:       p.ExpiresAt,
			Reference:       p.Reference,
			AmountPaidCents: p.AmountPaidCents,
			Observation:     p.Observation,
		})
	}

	batches, err := h.creditSvc.CreateGrants(r.Context(), params)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	httperr.JSON(w, http.StatusCreated, toSuccessResponse(batches))
}

func toSuccessResponse(batches []*credit.Batch) importSuccessResponse {
	responses := make([]batchResponse, 0, len(batches))
	for _, b := range batches {
		responses = append(responses, toBatchResponse(b))
	}

	return importSuccessResponse{
		Imported: len(batches),
		Batches:  responses,
	}
}

func toBatchResponse(b *credit.Batch) batchResponse {
	return batchResponse{
		ID:              b.ID,
		AccountID:       b.AccountID,
		RecordingAdded:  b.RecordingAdded,
		AIAdded:         b.AIAdded,
		AddedAt:         b.AddedAt,
		ExpiresAt:       b.ExpiresAt,
		Reference:       b.Reference,
		AmountPaidCents: b.AmountPaidCents,
	}
}

func toGrantDTO(p credit.GrantParams) grantDTO {
	return grantDTO{
		AccountID:       p.AccountID,
		Recording:       p.Recording,
		AI:              p.AI,
		AddedAt:         p.AddedAt,
		ExpiresAt:       p.ExpiresAt,
		Reference:       p.Reference,
		AmountPaidCents: p.AmountPaidCents,
		Observation:     p.Observation,
	}
}
