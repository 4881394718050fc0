package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mertkaradayi/bookcart/internal/domain"
	apperrors "github.com/mertkaradayi/bookcart/pkg/errors"
	pkgvalidator "github.com/mertkaradayi/bookcart/pkg/validator"
)

// envelope is the uniform response shape. Data carries the payload,
// Status the outcome token, Error the failure detail.
type envelope struct {
	Data   any        `json:"data,omitempty"`
	Status string     `json:"status,omitempty"`
	Error  *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func respondData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

func respondStatus(w http.ResponseWriter, status string, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data, Status: status})
}

// rejectionCode maps a rejection token to its HTTP status.
func rejectionCode(status string) int {
	switch status {
	case domain.StatusNotEnoughStock, domain.StatusCartLimitReached:
		return http.StatusConflict
	case domain.StatusItemNotFound, domain.StatusBookNotFound:
		return http.StatusNotFound
	case domain.StatusInvalidQuantity:
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

func respondRejection(w http.ResponseWriter, status string) {
	writeJSON(w, rejectionCode(status), envelope{
		Status: status,
		Error: &errorBody{
			Code:    "MUTATION_REJECTED",
			Message: "cart mutation rejected: " + status,
		},
	})
}

func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var valErr *pkgvalidator.ValidationError
	if errors.As(err, &valErr) {
		writeJSON(w, http.StatusBadRequest, envelope{
			Status: domain.StatusInvalidQuantity,
			Error: &errorBody{
				Code:    "VALIDATION_FAILED",
				Message: valErr.Error(),
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	code := apperrors.HTTPStatus(err)
	body := errorBody{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body.Code = appErr.Code
		body.Message = appErr.Message
	}

	if code >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, code, envelope{Error: &body})
}
