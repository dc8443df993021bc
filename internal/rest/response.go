package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"storefront/internal/apperror"
	"storefront/internal/logger"

	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: logger.RequestIDFrom(ctx),
	})
}

// errorStatus maps an error kind to its HTTP status and a stable code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, apperror.ErrEmptyCart):
		return http.StatusBadRequest, "empty_cart"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrProductUnavailable):
		return http.StatusConflict, "product_unavailable"
	case errors.Is(err, apperror.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, apperror.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, apperror.ErrNoOpTransition):
		return http.StatusConflict, "no_op_transition"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError hides the detail of unclassified failures from the client.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.FromCtx(ctx).Error("request failed", zap.Error(err))
		message = http.StatusText(status)
	}
	respondError(ctx, w, status, code, message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.Validationf("invalid JSON body: %v", err)
	}
	return nil
}

const maxBodyBytes = 1 << 20
