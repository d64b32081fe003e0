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

// CommentHandler implements video comment endpoints.
type CommentHandler struct {
	Comments repositories.CommentRepository
	Videos   repositories.VideoRepository
}

type commentRequest struct {
	Content string `json:"content" validate:"required"`
}

// List handles GET /api/v1/comments/{videoId}.
func (h CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	comments, err := h.Comments.ListForVideo(ctx, chi.URLParam(r, "videoId"), parsePage(r))
	if err != nil {
		respondError(ctx, w, apierr.Internal("failed to list comments", err))
		return
	}

	respond(ctx, w, http.StatusOK, "video comments", comments)
}

// Add handles POST /api/v1/comments/{videoId}.
func (h CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req commentRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	videoID := chi.URLParam(r, "videoId")
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apierr.NotFound("video not found"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to load video", err))
		return
	}

	now := time.Now().UTC()
	comment := models.Comment{
		ID:        uuid.NewString(),
		Content:   strings.TrimSpace(req.Content),
		Video:     videoID,
		Owner:     currentUserID(r),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Comments.Create(ctx, comment); err != nil {
		respondError(ctx, w, apierr.Internal("failed to add comment", err))
		return
	}

	respond(ctx, w, http.StatusCreated, "comment added", comment)
}

// Update handles PATCH /api/v1/comments/c/{commentId}.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req commentRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	comment, err := h.Comments.UpdateOwn(ctx, chi.URLParam(r, "commentId"), currentUserID(r), strings.TrimSpace(req.Content))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apierr.NotFound("comment not found"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to update comment", err))
		return
	}

	respond(ctx, w, http.StatusOK, "comment updated", comment)
}

// Delete handles DELETE /api/v1/comments/c/{commentId}.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Comments.DeleteOwn(ctx, chi.URLParam(r, "commentId"), currentUserID(r)); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apierr.NotFound("comment not found"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to delete comment", err))
		return
	}

	respond(ctx, w, http.StatusOK, "comment deleted", nil)
}
