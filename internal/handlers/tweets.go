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

// TweetHandler implements channel tweet endpoints.
type TweetHandler struct {
	Tweets repositories.TweetRepository
}

type tweetRequest struct {
	Content string `json:"content" validate:"required,max=280"`
}

// Create handles POST /api/v1/tweets.
func (h TweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req tweetRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	now := time.Now().UTC()
	tweet := models.Tweet{
		ID:        uuid.NewString(),
		Content:   strings.TrimSpace(req.Content),
		Owner:     currentUserID(r),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Tweets.Create(ctx, tweet); err != nil {
		respondError(ctx, w, apierr.Internal("failed to create tweet", err))
		return
	}

	respond(ctx, w, http.StatusCreated, "tweet created", tweet)
}

// ListForUser handles GET /api/v1/tweets/user/{userId}.
func (h TweetHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tweets, err := h.Tweets.ListForUser(ctx, chi.URLParam(r, "userId"), parsePage(r))
	if err != nil {
		respondError(ctx, w, apierr.Internal("failed to list tweets", err))
		return
	}

	respond(ctx, w, http.StatusOK, "user tweets", tweets)
}

// Update handles PATCH /api/v1/tweets/{tweetId}.
func (h TweetHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req tweetRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	tweet, err := h.Tweets.UpdateOwn(ctx, chi.URLParam(r, "tweetId"), currentUserID(r), strings.TrimSpace(req.Content))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apierr.NotFound("tweet not found"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to update tweet", err))
		return
	}

	respond(ctx, w, http.StatusOK, "tweet updated", tweet)
}

// Delete handles DELETE /api/v1/tweets/{tweetId}.
func (h TweetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Tweets.DeleteOwn(ctx, chi.URLParam(r, "tweetId"), currentUserID(r)); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apierr.NotFound("tweet not found"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to delete tweet", err))
		return
	}

	respond(ctx, w, http.StatusOK, "tweet deleted", nil)
}
