package handlers

import (
	"context"

	"github.com/viewtube/backend/internal/models"
)

// SessionManager drives login, token rotation, and logout.
type SessionManager interface {
	Login(ctx context.Context, identifier, password string) (models.User, models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
	Logout(ctx context.Context, userID string) error
}

// DurationProber reads playback duration from an uploaded media file.
type DurationProber interface {
	Duration(ctx context.Context, location string) (float64, error)
}
