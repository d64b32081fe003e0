package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/viewtube/backend/internal/apierr"
	"github.com/viewtube/backend/internal/auth"
	"github.com/viewtube/backend/internal/logging"
	"github.com/viewtube/backend/internal/metrics"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/repositories"
	"github.com/viewtube/backend/internal/storage"
)

// UserHandler implements registration, session, and profile endpoints.
type UserHandler struct {
	Users    repositories.UserRepository
	Sessions SessionManager
	Assets   storage.AssetStore
	Metrics  metrics.Recorder
	NowFunc  func() time.Time
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email" validate:"omitempty,email"`
}

type sessionResponse struct {
	User   models.User      `json:"user"`
	Tokens models.TokenPair `json:"tokens"`
}

// Register handles POST /api/v1/users/register. The request is
// multipart: text fields plus a required avatar and optional cover image.
func (h UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(ctx, w, apierr.BadRequest("invalid multipart form"))
		return
	}

	username := strings.TrimSpace(strings.ToLower(r.FormValue("username")))
	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	fullName := strings.TrimSpace(r.FormValue("fullName"))
	password := r.FormValue("password")

	if username == "" || email == "" || fullName == "" || password == "" {
		respondError(ctx, w, apierr.BadRequest("all fields are required", "username, email, fullName and password must be set"))
		return
	}
	if !strings.Contains(email, "@") {
		respondError(ctx, w, apierr.BadRequest("invalid email format"))
		return
	}
	if len(password) < 8 {
		respondError(ctx, w, apierr.BadRequest("password must be at least 8 characters"))
		return
	}

	avatar, err := uploadFormFile(ctx, h.Assets, r, "avatar", "avatars", true)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	h.recordUpload("avatar")

	coverImage, err := uploadFormFile(ctx, h.Assets, r, "coverImage", "covers", false)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if coverImage.PublicID != "" {
		h.recordUpload("coverImage")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		respondError(ctx, w, apierr.Internal("failed to secure password", err))
		return
	}

	now := h.now()
	user := models.User{
		ID:         uuid.NewString(),
		Username:   username,
		Email:      email,
		FullName:   fullName,
		Password:   string(hashed),
		Avatar:     avatar,
		CoverImage: coverImage,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, apierr.Conflict("username or email already exists"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to create user", err))
		return
	}

	logging.FromContext(ctx).Info("user registered", "userId", user.ID, "username", user.Username)
	respond(ctx, w, http.StatusCreated, "user registered", user.PublicProfile())
}

// Login handles POST /api/v1/users/login. The identifier may be a
// username or an email address.
func (h UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	identifier := strings.TrimSpace(strings.ToLower(req.Username))
	if identifier == "" {
		identifier = strings.TrimSpace(strings.ToLower(req.Email))
	}
	if identifier == "" {
		respondError(ctx, w, apierr.BadRequest("username or email is required"))
		return
	}

	user, pair, err := h.Sessions.Login(ctx, identifier, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrAuthenticationFailed) {
			h.recordAuthFailure()
			respondError(ctx, w, apierr.Unauthorized("invalid credentials"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to create session", err))
		return
	}

	h.recordTokens()
	setAuthCookies(w, pair)
	respond(ctx, w, http.StatusOK, "logged in", sessionResponse{User: user.PublicProfile(), Tokens: pair})
}

// Refresh handles POST /api/v1/users/refresh-token. The token is read
// from the refreshToken cookie first, then the request body.
func (h UserHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	presented := ""
	if cookie, err := r.Cookie("refreshToken"); err == nil {
		presented = cookie.Value
	}
	if presented == "" {
		var req refreshRequest
		if err := decodeAndValidate(r.Body, &req); err == nil {
			presented = req.RefreshToken
		}
	}
	if presented == "" {
		respondError(ctx, w, apierr.Unauthorized("refresh token is required"))
		return
	}

	pair, err := h.Sessions.Refresh(ctx, presented)
	if err != nil {
		if errors.Is(err, auth.ErrAuthenticationFailed) {
			h.recordAuthFailure()
			respondError(ctx, w, apierr.Unauthorized("invalid refresh token"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to refresh session", err))
		return
	}

	h.recordTokens()
	setAuthCookies(w, pair)
	respond(ctx, w, http.StatusOK, "session refreshed", pair)
}

// Logout handles POST /api/v1/users/logout.
func (h UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Sessions.Logout(ctx, currentUserID(r)); err != nil {
		respondError(ctx, w, apierr.Internal("failed to end session", err))
		return
	}

	clearAuthCookies(w)
	respond(ctx, w, http.StatusOK, "logged out", nil)
}

// ChangePassword handles POST /api/v1/users/change-password.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req changePasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	user, err := h.Users.FindByID(ctx, currentUserID(r))
	if err != nil {
		respondError(ctx, w, apierr.Unauthorized("unauthorized"))
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)) != nil {
		h.recordAuthFailure()
		respondError(ctx, w, apierr.BadRequest("old password is incorrect"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(ctx, w, apierr.Internal("failed to secure password", err))
		return
	}
	if _, err := h.Users.UpdateFields(ctx, user.ID, map[string]any{"password": string(hashed)}); err != nil {
		respondError(ctx, w, apierr.Internal("failed to update password", err))
		return
	}

	respond(ctx, w, http.StatusOK, "password changed", nil)
}

// CurrentUser handles GET /api/v1/users/current-user.
func (h UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.Users.FindByID(ctx, currentUserID(r))
	if err != nil {
		respondError(ctx, w, apierr.Unauthorized("unauthorized"))
		return
	}

	respond(ctx, w, http.StatusOK, "current user", user.PublicProfile())
}

// UpdateAccount handles PATCH /api/v1/users/update-account.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateAccountRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	set := map[string]any{}
	if fullName := strings.TrimSpace(req.FullName); fullName != "" {
		set["fullName"] = fullName
	}
	if email := strings.TrimSpace(strings.ToLower(req.Email)); email != "" {
		set["email"] = email
	}
	if len(set) == 0 {
		respondError(ctx, w, apierr.BadRequest("fullName or email is required"))
		return
	}

	user, err := h.Users.UpdateFields(ctx, currentUserID(r), set)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, apierr.Conflict("email already in use"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to update account", err))
		return
	}

	respond(ctx, w, http.StatusOK, "account updated", user.PublicProfile())
}

// UpdateAvatar handles PATCH /api/v1/users/avatar.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", "avatars")
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-image.
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", "covers")
}

func (h UserHandler) updateImage(w http.ResponseWriter, r *http.Request, field, folder string) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(ctx, w, apierr.BadRequest("invalid multipart form"))
		return
	}

	previous, err := h.Users.FindByID(ctx, currentUserID(r))
	if err != nil {
		respondError(ctx, w, apierr.Unauthorized("unauthorized"))
		return
	}

	ref, err := uploadFormFile(ctx, h.Assets, r, field, folder, true)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	h.recordUpload(field)

	user, err := h.Users.UpdateFields(ctx, previous.ID, map[string]any{field: ref})
	if err != nil {
		respondError(ctx, w, apierr.Internal("failed to update "+field, err))
		return
	}

	old := previous.Avatar
	if field == "coverImage" {
		old = previous.CoverImage
	}
	deleteAssetAsync(ctx, h.Assets, old)

	respond(ctx, w, http.StatusOK, field+" updated", user.PublicProfile())
}

// ChannelProfile handles GET /api/v1/users/c/{username}. Anonymous
// viewers get isSubscribed=false.
func (h UserHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	username := strings.TrimSpace(strings.ToLower(chi.URLParam(r, "username")))
	if username == "" {
		respondError(ctx, w, apierr.BadRequest("username is required"))
		return
	}

	profile, err := h.Users.ChannelProfile(ctx, username, currentUserID(r))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apierr.NotFound("channel not found"))
			return
		}
		respondError(ctx, w, apierr.Internal("failed to load channel", err))
		return
	}

	respond(ctx, w, http.StatusOK, "channel profile", profile)
}

// WatchHistory handles GET /api/v1/users/history.
func (h UserHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	history, err := h.Users.WatchHistory(ctx, currentUserID(r), parsePage(r))
	if err != nil {
		respondError(ctx, w, apierr.Internal("failed to load watch history", err))
		return
	}

	respond(ctx, w, http.StatusOK, "watch history", history)
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func (h UserHandler) recordTokens() {
	if h.Metrics != nil {
		h.Metrics.RecordTokenIssued("accessToken")
		h.Metrics.RecordTokenIssued("refreshToken")
	}
}

func (h UserHandler) recordAuthFailure() {
	if h.Metrics != nil {
		h.Metrics.RecordAuthFailure()
	}
}

func (h UserHandler) recordUpload(kind string) {
	if h.Metrics != nil {
		h.Metrics.RecordAssetUploaded(kind)
	}
}
