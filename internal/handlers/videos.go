package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/viewtube/backend/internal/apierr"
	"github.com/viewtube/backend/internal/logging"
	"github.com/viewtube/backend/internal/metrics"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/repositories"
	"github.com/viewtube/backend/internal/storage"
)

// VideoHandler implements video publishing and playback endpoints.
type VideoHandler struct {
	Videos  repositories.VideoRepository
	Users   repositories.UserRepository
	Assets  storage.AssetStore
	Prober  DurationProber
	Metrics metrics.Recorder
}

// Publish handles POST /api/v1/videos. The request is multipart: title
// and description plus videoFile and thumbnail uploads.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(ctx, w, apierr.BadRequest("invalid multipart form"))
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" {
		respondError(ctx, w, apierr.BadRequest("title is required"))
		return
	}

	videoFile, err := uploadFormFile(ctx, h.Assets, r, "videoFile", "videos", true)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	h.recordUpload("video")

	thumbnail, err := uploadFormFile(ctx, h.Assets, r, "thumbnail", "thumbnails", true)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	h.recordUpload("thumbnail")

	duration := 0.0
	if h.Prober != nil {
		if probed, err := h.Prober.Duration(ctx, videoFile.URL); err == nil {
			duration = probed
		} else {
			logging.FromContext(ctx).Warn("probe video duration", "url", videoFile.URL, "error", err)
		}
	}

	now := time.Now().UTC()
	video := models.Video{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		VideoFile:   videoFile,
		Thumbnail:   thumbnail,
		Duration:    duration,
		IsPublished: true,
		Owner:       currentUserID(r),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		respondError(ctx, w, apierr.Internal("failed to publish video", err))
		return
	}

	logging.FromContext(ctx).Info("video published", "videoId", video.ID, "owner", video.Owner)
	respond(ctx, w, http.StatusCreated, "video published", video)
}

// Get handles GET /api/v1/videos/{videoId} and bumps the view counter.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, err := h.Videos.FindByID(ctx, chi.URLParam(r, "videoId"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apierr.NotFound("video not found"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to load video", err))
		return
	}

	if err := h.Videos.IncrementViews(ctx, video.ID); err != nil {
		logging.FromContext(ctx).Warn("increment views", "videoId", video.ID, "error", err)
	} else {
		video.Views++
	}

	respond(ctx, w, http.StatusOK, "video", video)
}

// List handles GET /api/v1/videos?channel={userId}. Anonymous callers
// see published videos only; owners see their full catalog.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channelID := strings.TrimSpace(r.URL.Query().Get("channel"))
	if channelID == "" {
		channelID = currentUserID(r)
	}
	if channelID == "" {
		respondError(ctx, w, apierr.BadRequest("channel is required"))
		return
	}

	publishedOnly := channelID != currentUserID(r)
	videos, err := h.Videos.ListByChannel(ctx, channelID, publishedOnly, parsePage(r))
	if err != nil {
		respondError(ctx, w, apierr.Internal("failed to list videos", err))
		return
	}

	respond(ctx, w, http.StatusOK, "channel videos", videos)
}

type updateVideoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Update handles PATCH /api/v1/videos/{videoId}.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, err := h.ownedVideo(w, r)
	if err != nil {
		return
	}

	var req updateVideoRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	set := map[string]any{}
	if title := strings.TrimSpace(req.Title); title != "" {
		set["title"] = title
	}
	if description := strings.TrimSpace(req.Description); description != "" {
		set["description"] = description
	}
	if len(set) == 0 {
		respondError(ctx, w, apierr.BadRequest("title or description is required"))
		return
	}

	updated, err := h.Videos.UpdateFields(ctx, video.ID, set)
	if err != nil {
		respondError(ctx, w, apierr.Internal("failed to update video", err))
		return
	}

	respond(ctx, w, http.StatusOK, "video updated", updated)
}

// UpdateThumbnail handles PATCH /api/v1/videos/{videoId}/thumbnail.
func (h VideoHandler) UpdateThumbnail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, err := h.ownedVideo(w, r)
	if err != nil {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(ctx, w, apierr.BadRequest("invalid multipart form"))
		return
	}

	thumbnail, err := uploadFormFile(ctx, h.Assets, r, "thumbnail", "thumbnails", true)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	h.recordUpload("thumbnail")

	updated, err := h.Videos.UpdateFields(ctx, video.ID, map[string]any{"thumbnail": thumbnail})
	if err != nil {
		respondError(ctx, w, apierr.Internal("failed to update thumbnail", err))
		return
	}

	deleteAssetAsync(ctx, h.Assets, video.Thumbnail)
	respond(ctx, w, http.StatusOK, "thumbnail updated", updated)
}

// UpdateVideoFile handles PATCH /api/v1/videos/{videoId}/file,
// replacing the stored video file and re-probing its duration.
func (h VideoHandler) UpdateVideoFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, err := h.ownedVideo(w, r)
	if err != nil {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(ctx, w, apierr.BadRequest("invalid multipart form"))
		return
	}

	videoFile, err := uploadFormFile(ctx, h.Assets, r, "videoFile", "videos", true)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	h.recordUpload("video")

	set := map[string]any{"videoFile": videoFile}
	if h.Prober != nil {
		if probed, err := h.Prober.Duration(ctx, videoFile.URL); err == nil {
			set["duration"] = probed
		} else {
			logging.FromContext(ctx).Warn("probe video duration", "url", videoFile.URL, "error", err)
		}
	}

	updated, err := h.Videos.UpdateFields(ctx, video.ID, set)
	if err != nil {
		respondError(ctx, w, apierr.Internal("failed to update video file", err))
		return
	}

	deleteAssetAsync(ctx, h.Assets, video.VideoFile)
	respond(ctx, w, http.StatusOK, "video file updated", updated)
}

// Delete handles DELETE /api/v1/videos/{videoId}. Stored assets are
// released best-effort after the record is removed.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, err := h.Videos.Delete(ctx, chi.URLParam(r, "videoId"), currentUserID(r))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apierr.NotFound("video not found"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to delete video", err))
		return
	}

	deleteAssetAsync(ctx, h.Assets, video.VideoFile)
	deleteAssetAsync(ctx, h.Assets, video.Thumbnail)

	respond(ctx, w, http.StatusOK, "video deleted", nil)
}

// TogglePublish handles PATCH /api/v1/videos/{videoId}/toggle-publish.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, err := h.Videos.TogglePublish(ctx, chi.URLParam(r, "videoId"), currentUserID(r))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apierr.NotFound("video not found"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to toggle publish status", err))
		return
	}

	respond(ctx, w, http.StatusOK, "publish status toggled", video)
}

// Watch handles POST /api/v1/videos/{videoId}/watch, appending the
// video to the caller's watch history.
func (h VideoHandler) Watch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, err := h.Videos.FindByID(ctx, chi.URLParam(r, "videoId"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apierr.NotFound("video not found"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to load video", err))
		return
	}

	entry := models.WatchEntry{VideoID: video.ID, OwnerID: video.Owner}
	if err := h.Users.AppendWatchHistory(ctx, currentUserID(r), entry); err != nil {
		respondError(ctx, w, apierr.Internal("failed to record watch", err))
		return
	}

	respond(ctx, w, http.StatusOK, "watch recorded", nil)
}

// ownedVideo loads the path video and enforces ownership, writing the
// error response itself on failure.
func (h VideoHandler) ownedVideo(w http.ResponseWriter, r *http.Request) (models.Video, error) {
	ctx := r.Context()

	video, err := h.Videos.FindByID(ctx, chi.URLParam(r, "videoId"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apierr.NotFound("video not found"))
			return models.Video{}, err
		}
		respondError(ctx, w, apierr.Internal("failed to load video", err))
		return models.Video{}, err
	}
	if video.Owner != currentUserID(r) {
		err := apierr.NotFound("video not found")
		respondError(ctx, w, err)
		return models.Video{}, err
	}
	return video, nil
}

func (h VideoHandler) recordUpload(kind string) {
	if h.Metrics != nil {
		h.Metrics.RecordAssetUploaded(kind)
	}
}
