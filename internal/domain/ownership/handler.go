package ownership

import (
	"net/http"
	"strconv"
	"time"

	"pet-custody/internal/domain/custody"
	"pet-custody/internal/platform/httpx"
	"pet-custody/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, log logger.Logger) {
	r.Get("/pets/{petID}/ownership", historyHandler(svc, log))
	r.Get("/pets/{petID}/custody-events", timelineHandler(svc, log))
	r.Get("/me/ownership-history", previouslyOwnedHandler(svc, log))
}

type periodResponse struct {
	ID     string     `json:"id"`
	PetID  string     `json:"pet_id"`
	UserID string     `json:"user_id"`
	From   time.Time  `json:"from"`
	To     *time.Time `json:"to,omitempty"`
}

type eventResponse struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	ActorUserID string    `json:"actor_user_id,omitempty"`
	Message     string    `json:"message"`
	Link        string    `json:"link,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// historyHandler godoc
// @Summary      Historial de propiedad de una mascota
// @Tags         ownership
// @Produce      json
// @Param        petID  path  string  true  "Pet ID"
// @Success      200  {array}   periodResponse
// @Failure      403  {object}  map[string]string
// @Router       /pets/{petID}/ownership [get]
func historyHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		items, err := svc.History(r.Context(), claims, chi.URLParam(r, "petID"))
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toPeriods(items))
	}
}

func previouslyOwnedHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		items, err := svc.PreviouslyOwned(r.Context(), claims.UserID)
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toPeriods(items))
	}
}

func timelineHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				httpx.WriteError(w, log, custody.NewValidationError("limit", "must be a positive integer"))
				return
			}
			limit = n
		}

		items, err := svc.Timeline(r.Context(), claims, chi.URLParam(r, "petID"), limit)
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}

		out := make([]eventResponse, 0, len(items))
		for _, e := range items {
			out = append(out, eventResponse{
				ID:          e.ID,
				Type:        string(e.Type),
				EntityType:  e.EntityType,
				EntityID:    e.EntityID,
				ActorUserID: e.ActorUserID,
				Message:     e.Message,
				Link:        e.Link,
				OccurredAt:  e.OccurredAt,
			})
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

func toPeriods(items []custody.OwnershipPeriod) []periodResponse {
	out := make([]periodResponse, 0, len(items))
	for _, p := range items {
		out = append(out, periodResponse{ID: p.ID, PetID: p.PetID, UserID: p.UserID, From: p.From, To: p.To})
	}
	return out
}
