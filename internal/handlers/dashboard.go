package handlers

import (
	"net/http"

	"github.com/viewtube/backend/internal/apierr"
	"github.com/viewtube/backend/internal/repositories"
)

// DashboardHandler implements the channel owner's dashboard endpoints.
type DashboardHandler struct {
	Dashboard repositories.DashboardRepository
	Videos    repositories.VideoRepository
}

// Stats handles GET /api/v1/dashboard/stats.
func (h DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.Dashboard.ChannelStats(ctx, currentUserID(r))
	if err != nil {
		respondError(ctx, w, apierr.Internal("failed to load channel stats", err))
		return
	}

	respond(ctx, w, http.StatusOK, "channel stats", stats)
}

// ChannelVideos handles GET /api/v1/dashboard/videos, including unpublished ones.
func (h DashboardHandler) ChannelVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videos, err := h.Videos.ListByChannel(ctx, currentUserID(r), false, parsePage(r))
	if err != nil {
		respondError(ctx, w, apierr.Internal("failed to list channel videos", err))
		return
	}

	respond(ctx, w, http.StatusOK, "channel videos", videos)
}
