// Package httpx junta los helpers HTTP que antes estaban duplicados en cada
// handler (writeJSON y el mapeo de errores de dominio a status).
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"pet-custody/internal/domain/custody"
	"pet-custody/internal/middleware"
	"pet-custody/internal/platform/logger"
	"pet-custody/internal/ports/auth"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Reportar los campos con su nombre JSON.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorResponse{Error: msg})
}

// WriteError traduce errores de dominio:
// 403 forbidden, 409 estado/duplicado, 422 validación, 404 no encontrado.
// Cualquier otro error es infraestructura: se loguea y se responde 500.
func WriteError(w http.ResponseWriter, log logger.Logger, err error) {
	var verr *custody.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, custody.ErrInvalidInput):
		WriteMessage(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, custody.ErrForbidden):
		WriteMessage(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, custody.ErrNotFound):
		WriteMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, custody.ErrConflict), errors.Is(err, custody.ErrDuplicate):
		WriteMessage(w, http.StatusConflict, err.Error())
	default:
		if log != nil {
			log.Error("request failed", map[string]any{"error": err.Error()})
		}
		WriteMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// RequireClaims corta con 401 si no hay usuario autenticado.
func RequireClaims(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		WriteMessage(w, http.StatusUnauthorized, "unauthorized")
		return auth.Claims{}, false
	}
	return claims, true
}

// Decode lee el body JSON y valida los tags `validate`.
// Escribe la respuesta (400/422) y devuelve false si algo falla.
// Un body vacío se acepta como objeto vacío.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body != nil {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			WriteMessage(w, http.StatusBadRequest, "invalid json")
			return false
		}
	}

	if err := validate.Struct(dst); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) {
			fields := make(map[string]string, len(ves))
			for _, fe := range ves {
				fields[fe.Field()] = fe.Tag()
			}
			WriteJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Fields: fields})
			return false
		}
		WriteMessage(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

// ParseDate acepta YYYY-MM-DD. Vacío => nil.
func ParseDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, custody.NewValidationError(field, "must be YYYY-MM-DD")
	}
	return &t, nil
}

// ParseTimestamp acepta RFC3339. Vacío => nil.
func ParseTimestamp(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, custody.NewValidationError(field, "must be RFC3339")
	}
	t = t.UTC()
	return &t, nil
}
