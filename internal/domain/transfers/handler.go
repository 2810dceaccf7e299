package transfers

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
	r.Post("/placement-requests/{id}/transfer-requests", createHandler(svc, log))
	r.Get("/placement-requests/{id}/transfer-requests", listForPlacementHandler(svc, log))

	r.Get("/transfer-requests/{id}", getHandler(svc, log))
	r.Post("/transfer-requests/{id}/accept", acceptHandler(svc, log))
	r.Post("/transfer-requests/{id}/reject", rejectHandler(svc, log))

	r.Get("/me/transfer-requests", listMineHandler(svc, log))
}

type createRequest struct {
	RequestedRelationshipType string `json:"requested_relationship_type" validate:"omitempty,oneof=foster permanent temporary"`
	Message                   string `json:"message" validate:"max=2000"`
}

type transferResponse struct {
	ID                        string     `json:"id"`
	PlacementRequestID        string     `json:"placement_request_id"`
	PetID                     string     `json:"pet_id"`
	InitiatorUserID           string     `json:"initiator_user_id"`
	RecipientUserID           string     `json:"recipient_user_id"`
	RequestedRelationshipType string     `json:"requested_relationship_type"`
	Status                    string     `json:"status"`
	Message                   string     `json:"message"`
	AcceptedAt                *time.Time `json:"accepted_at,omitempty"`
	RejectedAt                *time.Time `json:"rejected_at,omitempty"`
	CompletedAt               *time.Time `json:"completed_at,omitempty"`
	CreatedAt                 time.Time  `json:"created_at"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}

// createHandler godoc
// @Summary      Ofertar sobre un pedido de ubicación (helper)
// @Tags         transfer-requests
// @Accept       json
// @Produce      json
// @Param        id    path  string         true  "Placement request ID"
// @Param        body  body  createRequest  true  "Oferta"
// @Success      201  {object}  transferResponse
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /placement-requests/{id}/transfer-requests [post]
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

		t, err := svc.Create(r.Context(), claims, CreateInput{
			PlacementRequestID: chi.URLParam(r, "id"),
			Relationship:       custody.Relationship(strings.ToLower(req.RequestedRelationshipType)),
			Message:            req.Message,
		})
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, toResponse(t))
	}
}

func listForPlacementHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		items, err := svc.ListForPlacement(r.Context(), claims, chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toResponses(items))
	}
}

func getHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		t, err := svc.Get(r.Context(), claims, chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toResponse(t))
	}
}

// acceptHandler godoc
// @Summary      Aceptar oferta (dueño)
// @Tags         transfer-requests
// @Produce      json
// @Param        id  path  string  true  "Transfer request ID"
// @Success      200  {object}  transferResponse
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /transfer-requests/{id}/accept [post]
func acceptHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		t, err := svc.Accept(r.Context(), claims, chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toResponse(t))
	}
}

func rejectHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		t, err := svc.Reject(r.Context(), claims, chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toResponse(t))
	}
}

func listMineHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		status := custody.TransferStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
		items, err := svc.ListMine(r.Context(), claims, status)
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toResponses(items))
	}
}

func toResponses(items []custody.TransferRequest) []transferResponse {
	out := make([]transferResponse, 0, len(items))
	for _, t := range items {
		out = append(out, toResponse(t))
	}
	return out
}

func toResponse(t custody.TransferRequest) transferResponse {
	return transferResponse{
		ID:                        t.ID,
		PlacementRequestID:        t.PlacementRequestID,
		PetID:                     t.PetID,
		InitiatorUserID:           t.InitiatorUserID,
		RecipientUserID:           t.RecipientUserID,
		RequestedRelationshipType: string(t.Relationship),
		Status:                    string(t.Status),
		Message:                   t.Message,
		AcceptedAt:                t.AcceptedAt,
		RejectedAt:                t.RejectedAt,
		CompletedAt:               t.CompletedAt,
		CreatedAt:                 t.CreatedAt,
		UpdatedAt:                 t.UpdatedAt,
	}
}
