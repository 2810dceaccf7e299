package placement

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
	r.Post("/pets/{petID}/placement-requests", createHandler(svc, log))
	r.Get("/pets/{petID}/placement-requests", listForPetHandler(svc, log))

	r.Get("/placement-requests/{id}", getHandler(svc, log))
	r.Post("/placement-requests/{id}/cancel", cancelHandler(svc, log))
}

type createRequest struct {
	RequestType string `json:"request_type" validate:"required"`
	Notes       string `json:"notes" validate:"max=2000"`
	StartDate   string `json:"start_date"` // YYYY-MM-DD opcional
	EndDate     string `json:"end_date"`   // YYYY-MM-DD opcional
	ExpiresAt   string `json:"expires_at"` // RFC3339 opcional
}

type placementResponse struct {
	ID          string     `json:"id"`
	PetID       string     `json:"pet_id"`
	OwnerUserID string     `json:"owner_user_id"`
	RequestType string     `json:"request_type"`
	Status      string     `json:"status"`
	IsActive    bool       `json:"is_active"`
	Notes       string     `json:"notes"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// createHandler godoc
// @Summary      Crear pedido de ubicación
// @Tags         placement-requests
// @Accept       json
// @Produce      json
// @Param        petID  path  string         true  "Pet ID"
// @Param        body   body  createRequest  true  "Pedido"
// @Success      201  {object}  placementResponse
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /pets/{petID}/placement-requests [post]
func createHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		var req createRequest
		if !httpx.Decode(w, r, &req) {
			return
		}

		start, err := httpx.ParseDate("start_date", req.StartDate)
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		end, err := httpx.ParseDate("end_date", req.EndDate)
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		expires, err := httpx.ParseTimestamp("expires_at", req.ExpiresAt)
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}

		p, err := svc.Create(r.Context(), claims, CreateInput{
			PetID:     chi.URLParam(r, "petID"),
			Type:      custody.PlacementType(strings.ToLower(strings.TrimSpace(req.RequestType))),
			Notes:     req.Notes,
			StartDate: start,
			EndDate:   end,
			ExpiresAt: expires,
		})
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}

		httpx.WriteJSON(w, http.StatusCreated, toResponse(p))
	}
}

func listForPetHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := httpx.RequireClaims(w, r); !ok {
			return
		}

		activeOnly := strings.EqualFold(r.URL.Query().Get("active"), "true")
		items, err := svc.ListForPet(r.Context(), chi.URLParam(r, "petID"), activeOnly)
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}

		out := make([]placementResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toResponse(p))
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

func getHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := httpx.RequireClaims(w, r); !ok {
			return
		}

		p, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toResponse(p))
	}
}

// cancelHandler godoc
// @Summary      Cancelar pedido de ubicación
// @Tags         placement-requests
// @Produce      json
// @Param        id  path  string  true  "Placement request ID"
// @Success      200  {object}  placementResponse
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /placement-requests/{id}/cancel [post]
func cancelHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		p, err := svc.Cancel(r.Context(), claims, chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toResponse(p))
	}
}

func toResponse(p custody.PlacementRequest) placementResponse {
	return placementResponse{
		ID:          p.ID,
		PetID:       p.PetID,
		OwnerUserID: p.OwnerUserID,
		RequestType: string(p.Type),
		Status:      string(p.Status),
		IsActive:    p.IsActive,
		Notes:       p.Notes,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		ExpiresAt:   p.ExpiresAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		ClosedAt:    p.ClosedAt,
	}
}
