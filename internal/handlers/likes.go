package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/viewtube/backend/internal/apierr"
	"github.com/viewtube/backend/internal/repositories"
)

// LikeHandler implements like toggles for videos, comments and tweets.
type LikeHandler struct {
	Likes repositories.LikeRepository
}

// ToggleVideo handles POST /api/v1/likes/toggle/v/{videoId}.
func (h LikeHandler) ToggleVideo(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, repositories.LikeVideo, chi.URLParam(r, "videoId"))
}

// ToggleComment handles POST /api/v1/likes/toggle/c/{commentId}.
func (h LikeHandler) ToggleComment(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, repositories.LikeComment, chi.URLParam(r, "commentId"))
}

// ToggleTweet handles POST /api/v1/likes/toggle/t/{tweetId}.
func (h LikeHandler) ToggleTweet(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, repositories.LikeTweet, chi.URLParam(r, "tweetId"))
}

func (h LikeHandler) toggle(w http.ResponseWriter, r *http.Request, target repositories.LikeTarget, targetID string) {
	ctx := r.Context()

	if targetID == "" {
		respondError(ctx, w, apierr.BadRequest("target id is required"))
		return
	}

	liked, err := h.Likes.Toggle(ctx, target, targetID, currentUserID(r))
	if err != nil {
		respondError(ctx, w, apierr.Internal("failed to toggle like", err))
		return
	}

	message := "unliked"
	if liked {
		message = "liked"
	}
	respond(ctx, w, http.StatusOK, message, map[string]bool{"liked": liked})
}

// Videos handles GET /api/v1/likes/videos.
func (h LikeHandler) Videos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videos, err := h.Likes.LikedVideos(ctx, currentUserID(r), parsePage(r))
	if err != nil {
		respondError(ctx, w, apierr.Internal("failed to list liked videos", err))
		return
	}

	respond(ctx, w, http.StatusOK, "liked videos", videos)
}
