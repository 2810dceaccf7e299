package handovers

import (
	"net/http"
	"time"

	"pet-custody/internal/domain/custody"
	"pet-custody/internal/platform/httpx"
	"pet-custody/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, log logger.Logger) {
	// Entrega inicial
	r.Post("/transfer-requests/{id}/handover", initiateHandler(svc, log))
	r.Get("/handovers/{id}", getHandler(svc, log))
	r.Post("/handovers/{id}/confirm", confirmHandler(svc, log))
	r.Post("/handovers/{id}/complete", completeHandler(svc, log))
	r.Post("/handovers/{id}/cancel", cancelHandler(svc, log))

	// Devolución
	r.Post("/foster-assignments/{id}/return-handovers", initiateReturnHandler(svc, log))
	r.Get("/foster-assignments/{id}/return-handovers/{handoverID}", getReturnHandler(svc, log))
	r.Post("/foster-assignments/{id}/return-handovers/{handoverID}/confirm", confirmReturnHandler(svc, log))
	r.Post("/foster-assignments/{id}/return-handovers/{handoverID}/complete", completeReturnHandler(svc, log))
}

type initiateRequest struct {
	ScheduledAt string `json:"scheduled_at"` // RFC3339 opcional
	Location    string `json:"location" validate:"max=500"`
}

type confirmRequest struct {
	ConditionConfirmed *bool  `json:"condition_confirmed" validate:"required"`
	ConditionNotes     string `json:"condition_notes" validate:"max=2000"`
}

type stateResponse struct {
	Status             string     `json:"status"`
	ScheduledAt        *time.Time `json:"scheduled_at,omitempty"`
	Location           string     `json:"location,omitempty"`
	ConditionConfirmed bool       `json:"condition_confirmed"`
	ConditionNotes     string     `json:"condition_notes,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type handoverResponse struct {
	ID                string     `json:"id"`
	TransferRequestID string     `json:"transfer_request_id"`
	OwnerUserID       string     `json:"owner_user_id"`
	HelperUserID      string     `json:"helper_user_id"`
	OwnerInitiatedAt  time.Time  `json:"owner_initiated_at"`
	HelperConfirmedAt *time.Time `json:"helper_confirmed_at,omitempty"`
	stateResponse
}

type returnResponse struct {
	ID                 string     `json:"id"`
	FosterAssignmentID string     `json:"foster_assignment_id"`
	OwnerUserID        string     `json:"owner_user_id"`
	FosterUserID       string     `json:"foster_user_id"`
	FosterInitiatedAt  time.Time  `json:"foster_initiated_at"`
	OwnerConfirmedAt   *time.Time `json:"owner_confirmed_at,omitempty"`
	stateResponse
}

func decodeStart(w http.ResponseWriter, r *http.Request, log logger.Logger) (custody.StartInput, bool) {
	var req initiateRequest
	if !httpx.Decode(w, r, &req) {
		return custody.StartInput{}, false
	}
	at, err := httpx.ParseTimestamp("scheduled_at", req.ScheduledAt)
	if err != nil {
		httpx.WriteError(w, log, err)
		return custody.StartInput{}, false
	}
	return custody.StartInput{ScheduledAt: at, Location: req.Location}, true
}

// initiateHandler godoc
// @Summary      Agendar entrega (dueño)
// @Tags         handovers
// @Accept       json
// @Produce      json
// @Param        id    path  string           true  "Transfer request ID"
// @Param        body  body  initiateRequest  false "Agenda"
// @Success      201  {object}  handoverResponse
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /transfer-requests/{id}/handover [post]
func initiateHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}
		in, ok := decodeStart(w, r, log)
		if !ok {
			return
		}

		h, err := svc.Initiate(r.Context(), claims, chi.URLParam(r, "id"), in)
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, toHandoverResponse(h))
	}
}

func getHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		h, err := svc.Get(r.Context(), claims, chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toHandoverResponse(h))
	}
}

// confirmHandler godoc
// @Summary      Confirmar condición (helper)
// @Tags         handovers
// @Accept       json
// @Produce      json
// @Param        id    path  string          true  "Handover ID"
// @Param        body  body  confirmRequest  true  "Revisión"
// @Success      200  {object}  handoverResponse
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /handovers/{id}/confirm [post]
func confirmHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		var req confirmRequest
		if !httpx.Decode(w, r, &req) {
			return
		}

		h, err := svc.HelperConfirm(r.Context(), claims, chi.URLParam(r, "id"), *req.ConditionConfirmed, req.ConditionNotes)
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toHandoverResponse(h))
	}
}

// completeHandler godoc
// @Summary      Completar entrega (dueño o helper)
// @Tags         handovers
// @Produce      json
// @Param        id  path  string  true  "Handover ID"
// @Success      200  {object}  handoverResponse
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /handovers/{id}/complete [post]
func completeHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		h, err := svc.Complete(r.Context(), claims, chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toHandoverResponse(h))
	}
}

func cancelHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		h, err := svc.Cancel(r.Context(), claims, chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toHandoverResponse(h))
	}
}

// initiateReturnHandler godoc
// @Summary      Agendar devolución (foster)
// @Tags         return-handovers
// @Accept       json
// @Produce      json
// @Param        id    path  string           true  "Foster assignment ID"
// @Param        body  body  initiateRequest  false "Agenda"
// @Success      201  {object}  returnResponse
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /foster-assignments/{id}/return-handovers [post]
func initiateReturnHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}
		in, ok := decodeStart(w, r, log)
		if !ok {
			return
		}

		h, err := svc.InitiateReturn(r.Context(), claims, chi.URLParam(r, "id"), in)
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, toReturnResponse(h))
	}
}

func getReturnHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		h, err := svc.GetReturn(r.Context(), claims, chi.URLParam(r, "id"), chi.URLParam(r, "handoverID"))
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toReturnResponse(h))
	}
}

func confirmReturnHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		var req confirmRequest
		if !httpx.Decode(w, r, &req) {
			return
		}

		h, err := svc.OwnerConfirm(r.Context(), claims, chi.URLParam(r, "id"), chi.URLParam(r, "handoverID"), *req.ConditionConfirmed, req.ConditionNotes)
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toReturnResponse(h))
	}
}

func completeReturnHandler(svc *Service, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.RequireClaims(w, r)
		if !ok {
			return
		}

		h, err := svc.CompleteReturn(r.Context(), claims, chi.URLParam(r, "id"), chi.URLParam(r, "handoverID"))
		if err != nil {
			httpx.WriteError(w, log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toReturnResponse(h))
	}
}

func toState(s custody.HandoverState) stateResponse {
	return stateResponse{
		Status:             string(s.Status),
		ScheduledAt:        s.ScheduledAt,
		Location:           s.Location,
		ConditionConfirmed: s.ConditionConfirmed,
		ConditionNotes:     s.ConditionNotes,
		CompletedAt:        s.CompletedAt,
		CanceledAt:         s.CanceledAt,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func toHandoverResponse(h custody.TransferHandover) handoverResponse {
	return handoverResponse{
		ID:                h.ID,
		TransferRequestID: h.TransferRequestID,
		OwnerUserID:       h.OwnerUserID,
		HelperUserID:      h.HelperUserID,
		OwnerInitiatedAt:  h.InitiatedAt,
		HelperConfirmedAt: h.ConfirmedAt,
		stateResponse:     toState(h.HandoverState),
	}
}

func toReturnResponse(h custody.FosterReturnHandover) returnResponse {
	return returnResponse{
		ID:                 h.ID,
		FosterAssignmentID: h.FosterAssignmentID,
		OwnerUserID:        h.OwnerUserID,
		FosterUserID:       h.FosterUserID,
		FosterInitiatedAt:  h.InitiatedAt,
		OwnerConfirmedAt:   h.ConfirmedAt,
		stateResponse:      toState(h.HandoverState),
	}
}
