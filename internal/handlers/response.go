// internal/handlers/response.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ammerola/salesflow-be/internal/core/domain"
)

// maxJSONBody caps request bodies decoded by the handlers
const maxJSONBody = 4 << 20

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Line   *int   `json:"line,omitempty"`
	SKU    string `json:"sku,omitempty"`
	// Outcome is set when a batch aborted after committing some entries
	Outcome *domain.BatchOutcome `json:"outcome,omitempty"`
}

func respondJSON(w http.ResponseWriter, logger *slog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response",
			slog.String("error", err.Error()))
	}
}

func respondError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	respondJSON(w, logger, status, ErrorResponse{Error: message})
}

// respondServiceError maps the sale engine's error kinds to HTTP statuses.
// Unknown errors are logged and hidden behind a generic message.
func respondServiceError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	respondBatchError(ctx, w, logger, err, nil, fallback)
}

// respondBatchError is respondServiceError for batch endpoints. A non-nil
// outcome is always included so clients learn which entries committed.
func respondBatchError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error, outcome *domain.BatchOutcome, fallback string) {
	body := ErrorResponse{Error: err.Error(), Reason: domain.Reason(err)}
	var se *domain.SaleError
	if errors.As(err, &se) {
		body.SKU = se.SKU
		if se.Line >= 0 {
			line := se.Line
			body.Line = &line
		}
	}

	var status int
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrLockTimeout):
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "1")
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		body = ErrorResponse{Error: "Request timed out"}
	default:
		logger.ErrorContext(ctx, fallback, slog.String("error", err.Error()))
		status = http.StatusInternalServerError
		body = ErrorResponse{Error: fallback}
	}

	body.Outcome = outcome
	respondJSON(w, logger, status, body)
}

// decodeJSON reads a bounded JSON body and rejects unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// queryInt parses an optional integer query parameter within [lo, hi]
func queryInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", name, lo, hi)
	}
	return n, nil
}

// queryTime parses an RFC 3339 timestamp or a 2006-01-02 date
func queryTime(r *http.Request, name string) (time.Time, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), true, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("%s must be RFC 3339 or YYYY-MM-DD", name)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}
