package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/viewtube/backend/internal/apierr"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/repositories"
)

// PlaylistHandler implements playlist endpoints.
type PlaylistHandler struct {
	Playlists repositories.PlaylistRepository
}

type createPlaylistRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type updatePlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create handles POST /api/v1/playlists.
func (h PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createPlaylistRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	now := time.Now().UTC()
	playlist := models.Playlist{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Videos:      []string{},
		Owner:       currentUserID(r),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Playlists.Create(ctx, playlist); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, apierr.Conflict("a playlist with this name already exists"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to create playlist", err))
		return
	}

	respond(ctx, w, http.StatusCreated, "playlist created", playlist)
}

// Get handles GET /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlist, err := h.Playlists.FindByID(ctx, chi.URLParam(r, "playlistId"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apierr.NotFound("playlist not found"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to load playlist", err))
		return
	}

	respond(ctx, w, http.StatusOK, "playlist", playlist)
}

// ListForUser handles GET /api/v1/playlists/user/{userId}.
func (h PlaylistHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlists, err := h.Playlists.ListForOwner(ctx, chi.URLParam(r, "userId"), parsePage(r))
	if err != nil {
		respondError(ctx, w, apierr.Internal("failed to list playlists", err))
		return
	}

	respond(ctx, w, http.StatusOK, "user playlists", playlists)
}

// AddVideo handles PATCH /api/v1/playlists/{playlistId}/add/{videoId}.
func (h PlaylistHandler) AddVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlist, err := h.Playlists.AddVideo(ctx, chi.URLParam(r, "playlistId"), currentUserID(r), chi.URLParam(r, "videoId"))
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrVideoAlreadyInPlaylist):
			respondError(ctx, w, apierr.BadRequest("video already in playlist"))
		case errors.Is(err, repositories.ErrNotFound):
			respondError(ctx, w, apierr.NotFound("playlist not found"))
		default:
			respondError(ctx, w, apierr.Internal("failed to add video", err))
		}
		return
	}

	respond(ctx, w, http.StatusOK, "video added to playlist", playlist)
}

// RemoveVideo handles PATCH /api/v1/playlists/{playlistId}/remove/{videoId}.
func (h PlaylistHandler) RemoveVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlist, err := h.Playlists.RemoveVideo(ctx, chi.URLParam(r, "playlistId"), currentUserID(r), chi.URLParam(r, "videoId"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apierr.NotFound("playlist not found"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to remove video", err))
		return
	}

	respond(ctx, w, http.StatusOK, "video removed from playlist", playlist)
}

// Update handles PATCH /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updatePlaylistRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	set := map[string]any{}
	if name := strings.TrimSpace(req.Name); name != "" {
		set["name"] = name
	}
	if description := strings.TrimSpace(req.Description); description != "" {
		set["description"] = description
	}
	if len(set) == 0 {
		respondError(ctx, w, apierr.BadRequest("name or description is required"))
		return
	}

	playlist, err := h.Playlists.UpdateDetails(ctx, chi.URLParam(r, "playlistId"), currentUserID(r), set)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apierr.NotFound("playlist not found"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to update playlist", err))
		return
	}

	respond(ctx, w, http.StatusOK, "playlist updated", playlist)
}

// Delete handles DELETE /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Playlists.DeleteOwn(ctx, chi.URLParam(r, "playlistId"), currentUserID(r)); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apierr.NotFound("playlist not found"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to delete playlist", err))
		return
	}

	respond(ctx, w, http.StatusOK, "playlist deleted", nil)
}
