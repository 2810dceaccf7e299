package fostering

import (
	"net/http"
	"strings"
	"time"

	"pet-custody/internal/domain/custody"
	"pet-custody/internal/platform/httpx"
	"pet-custody/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, log logger.Logger) {
	r.Get("/foster-assignments/{id}", getHandler(svc, log))
	r.Post("/foster-assignments/{id}/complete", completeHandler(svc, log))
	r.Post("/foster-assignments/{id}/cancel", cancelHandler(svc, log))
	r.Post("/foster-assignments/{id}/reactivate", reactivateHandler(svc, log))
	r.Post("/foster-assignments/{id}/extend", extendHandler(svc, log))

	r.Get("/me/foster-assignments", listMineHandler(svc, log))
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type extendRequest struct {
	ExpectedEndDate string `json:"expected_end_date" validate:"required"` // YYYY-MM-DD
}

type assignmentResponse struct {
	ID                 string     `json:"id"`
	PetID              string     `json:"pet_id"`
	OwnerUserID        string     `json:"owner_user_id"`
	FosterUserID       string     `json:"foster_user_id"`
	TransferRequestID  *string    `json:"transfer_request_id"`
	Status             string     `json:"status"`
	StartDate          time.Time  `json:"start_date"`
	ExpectedEndDate    *time.Time `json:"expected_end_date,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func getHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		a, err := svc.Get(r.Context(), claims, chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toResponse(a))
	}
}

// completeHandler godoc
// @Summary      Completar asignación de foster
// @Tags         foster-assignments
// @Produce      json
// @Param        id  path  string  true  "Foster assignment ID"
// @Success      200  {object}  assignmentResponse
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /foster-assignments/{id}/complete [post]
func completeHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		a, err := svc.Complete(r.Context(), claims, chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toResponse(a))
	}
}

func cancelHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		var req cancelRequest
		if !httpx.Decode(w, r, &req) {
			return
		}

		a, err := svc.Cancel(r.Context(), claims, chi.URLParam(r, "id"), req.Reason)
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toResponse(a))
	}
}

func reactivateHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		a, err := svc.Reactivate(r.Context(), claims, chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toResponse(a))
	}
}

// extendHandler godoc
// @Summary      Extender asignación de foster
// @Tags         foster-assignments
// @Accept       json
// @Produce      json
// @Param        id    path  string         true  "Foster assignment ID"
// @Param        body  body  extendRequest  true  "Nueva fecha"
// @Success      200  {object}  assignmentResponse
// @Failure      409  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /foster-assignments/{id}/extend [post]
func extendHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		var req extendRequest
		if !httpx.Decode(w, r, &req) {
			return
		}
		end, err := httpx.ParseDate("expected_end_date", req.ExpectedEndDate)
		if err == nil && end == nil {
			err = custody.NewValidationError("expected_end_date", "required")
		}
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}

		a, err := svc.Extend(r.Context(), claims, chi.URLParam(r, "id"), *end)
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toResponse(a))
	}
}

func listMineHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		status := custody.FosterStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
		items, err := svc.ListMine(r.Context(), claims, status)
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}

		out := make([]assignmentResponse, 0, len(items))
		for _, a := range items {
			out = append(out, toResponse(a))
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

func toResponse(a custody.FosterAssignment) assignmentResponse {
	var transferID *string
	if a.TransferRequestID != "" {
		id := a.TransferRequestID
		transferID = &id
	}
	return assignmentResponse{
		ID:                 a.ID,
		PetID:              a.PetID,
		OwnerUserID:        a.OwnerUserID,
		FosterUserID:       a.FosterUserID,
		TransferRequestID:  transferID,
		Status:             string(a.Status),
		StartDate:          a.StartDate,
		ExpectedEndDate:    a.ExpectedEndDate,
		CompletedAt:        a.CompletedAt,
		CanceledAt:         a.CanceledAt,
		CancellationReason: a.CancellationReason,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}
