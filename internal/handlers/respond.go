// Package handlers implements the HTTP API. Every response uses one
// envelope shape so clients can branch on success and statusCode alone.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/viewtube/backend/internal/apierr"
	"github.com/viewtube/backend/internal/logging"
)

type envelope struct {
	Success    bool     `json:"success"`
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Data       any      `json:"data,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

func respond(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	writeEnvelope(ctx, w, envelope{
		Success:    status < http.StatusBadRequest,
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	apiErr := apierr.From(err)

	logger := logging.FromContext(ctx)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		logger.Error("request failed", "status", apiErr.StatusCode, "error", err)
	} else {
		logger.Warn("request rejected", "status", apiErr.StatusCode, "message", apiErr.Message)
	}

	writeEnvelope(ctx, w, envelope{
		Success:    false,
		StatusCode: apiErr.StatusCode,
		Message:    apiErr.Message,
		Errors:     apiErr.Errors,
	})
}

func writeEnvelope(ctx context.Context, w http.ResponseWriter, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.StatusCode)

	if err := json.NewEncoder(w).Encode(env); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", env.StatusCode, "error", err)
	}
}
