package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/viewtube/backend/internal/auth"
	"github.com/viewtube/backend/internal/docstore"
	"github.com/viewtube/backend/internal/keys"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/repositories"
	"github.com/viewtube/backend/internal/token"
)

type fakeAssetStore struct {
	mu      sync.Mutex
	uploads []string
	deletes []string
}

func (s *fakeAssetStore) Upload(_ context.Context, folder, filename string, r io.Reader) (models.AssetRef, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return models.AssetRef{}, err
	}
	key := folder + "/" + filename
	s.mu.Lock()
	s.uploads = append(s.uploads, key)
	s.mu.Unlock()
	return models.AssetRef{URL: "https://cdn.example.com/" + key, PublicID: key}, nil
}

func (s *fakeAssetStore) Delete(_ context.Context, publicID string) error {
	s.mu.Lock()
	s.deletes = append(s.deletes, publicID)
	s.mu.Unlock()
	return nil
}

type fixedProber struct{ seconds float64 }

func (p fixedProber) Duration(context.Context, string) (float64, error) {
	return p.seconds, nil
}

type testEnv struct {
	server *httptest.Server
	assets *fakeAssetStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := docstore.NewMemoryStore()
	for _, schema := range repositories.Schemas() {
		store.EnsureUnique(schema.Name, schema.Unique...)
	}

	repo, err := keys.NewFSRepository(t.TempDir())
	if err != nil {
		t.Fatalf("new key repository: %v", err)
	}
	tokens, err := token.NewService(repo, time.Hour)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}

	users := repositories.NewUsers(store)
	manager := auth.NewManager(tokens, users, time.Minute, time.Hour)
	assets := &fakeAssetStore{}

	router := chi.NewRouter()
	RegisterRoutes(router, Dependencies{
		Users:         users,
		Videos:        repositories.NewVideos(store),
		Comments:      repositories.NewComments(store),
		Likes:         repositories.NewLikes(store),
		Tweets:        repositories.NewTweets(store),
		Subscriptions: repositories.NewSubscriptions(store),
		Playlists:     repositories.NewPlaylists(store),
		Dashboard:     repositories.NewDashboard(store),
		Sessions:      manager,
		Verifier:      manager,
		Assets:        assets,
		Prober:        fixedProber{seconds: 98.5},
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{server: server, assets: assets}
}

func (e *testEnv) register(t *testing.T, username string) {
	t.Helper()

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	form.WriteField("username", username)
	form.WriteField("email", username+"@example.com")
	form.WriteField("fullName", "User "+username)
	form.WriteField("password", "correct horse")
	part, _ := form.CreateFormFile("avatar", username+".png")
	part.Write([]byte("png-bytes"))
	form.Close()

	resp := e.do(t, http.MethodPost, "/api/v1/users/register", body, form.FormDataContentType(), "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", username, resp.StatusCode, readBody(t, resp))
	}
}

func (e *testEnv) login(t *testing.T, username string) (accessToken, refreshToken string) {
	t.Helper()

	payload := fmt.Sprintf(`{"username":%q,"password":"correct horse"}`, username)
	resp := e.do(t, http.MethodPost, "/api/v1/users/login", strings.NewReader(payload), "application/json", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", username, resp.StatusCode, readBody(t, resp))
	}

	var env struct {
		Data sessionResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if env.Data.User.Password != "" || env.Data.User.RefreshToken != "" {
		t.Fatal("login response must not expose credentials")
	}
	return env.Data.Tokens.AccessToken, env.Data.Tokens.RefreshToken
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType, accessToken string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.server.URL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func decodeData[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env.Data
}

func TestRegisterLoginAndCurrentUser(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	access, _ := env.login(t, "alice")

	resp := env.do(t, http.MethodGet, "/api/v1/users/current-user", nil, "", access)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("current-user: status %d: %s", resp.StatusCode, readBody(t, resp))
	}
	user := decodeData[models.User](t, resp)
	if user.Username != "alice" {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.Password != "" || user.RefreshToken != "" {
		t.Fatal("current-user must not expose credentials")
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	form.WriteField("username", "alice")
	form.WriteField("email", "other@example.com")
	form.WriteField("fullName", "Second Alice")
	form.WriteField("password", "correct horse")
	part, _ := form.CreateFormFile("avatar", "a.png")
	part.Write([]byte("png"))
	form.Close()

	resp := env.do(t, http.MethodPost, "/api/v1/users/register", body, form.FormDataContentType(), "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d", resp.StatusCode)
	}
}

func TestRefreshRotatesAndRejectsReplay(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	_, refresh := env.login(t, "alice")

	payload := fmt.Sprintf(`{"refreshToken":%q}`, refresh)
	resp := env.do(t, http.MethodPost, "/api/v1/users/refresh-token", strings.NewReader(payload), "application/json", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first refresh: status %d: %s", resp.StatusCode, readBody(t, resp))
	}
	pair := decodeData[models.TokenPair](t, resp)
	resp.Body.Close()
	if pair.RefreshToken == refresh {
		t.Fatal("expected rotated refresh token")
	}

	resp = env.do(t, http.MethodPost, "/api/v1/users/refresh-token", strings.NewReader(payload), "application/json", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 replaying superseded token, got %d", resp.StatusCode)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	access, refresh := env.login(t, "alice")

	resp := env.do(t, http.MethodPost, "/api/v1/users/logout", nil, "", access)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: status %d", resp.StatusCode)
	}

	payload := fmt.Sprintf(`{"refreshToken":%q}`, refresh)
	resp = env.do(t, http.MethodPost, "/api/v1/users/refresh-token", strings.NewReader(payload), "application/json", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 refreshing after logout, got %d", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/v1/users/current-user", "/api/v1/users/history", "/api/v1/dashboard/stats"} {
		resp := env.do(t, http.MethodGet, path, nil, "", "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s without token, got %d", path, resp.StatusCode)
		}
	}
}

func publishVideo(t *testing.T, env *testEnv, access, title string) models.Video {
	t.Helper()

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	form.WriteField("title", title)
	form.WriteField("description", "a test upload")
	part, _ := form.CreateFormFile("videoFile", "clip.mp4")
	part.Write([]byte("mp4-bytes"))
	part, _ = form.CreateFormFile("thumbnail", "thumb.jpg")
	part.Write([]byte("jpg-bytes"))
	form.Close()

	resp := env.do(t, http.MethodPost, "/api/v1/videos/", body, form.FormDataContentType(), access)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("publish: status %d: %s", resp.StatusCode, readBody(t, resp))
	}
	return decodeData[models.Video](t, resp)
}

func TestPublishAndGetVideo(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "creator")
	access, _ := env.login(t, "creator")

	video := publishVideo(t, env, access, "first upload")
	if video.Duration != 98.5 {
		t.Fatalf("expected probed duration, got %v", video.Duration)
	}
	if !video.IsPublished {
		t.Fatal("expected video published by default")
	}

	resp := env.do(t, http.MethodGet, "/api/v1/videos/"+video.ID, nil, "", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get video: status %d", resp.StatusCode)
	}
	fetched := decodeData[models.Video](t, resp)
	if fetched.Views != 1 {
		t.Fatalf("expected view counted, got %d", fetched.Views)
	}
}

func TestVideoOwnershipGuards(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "creator")
	env.register(t, "intruder")
	creatorAccess, _ := env.login(t, "creator")
	intruderAccess, _ := env.login(t, "intruder")

	video := publishVideo(t, env, creatorAccess, "mine")

	payload := `{"title":"hijacked"}`
	resp := env.do(t, http.MethodPatch, "/api/v1/videos/"+video.ID, strings.NewReader(payload), "application/json", intruderAccess)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign update, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodDelete, "/api/v1/videos/"+video.ID, nil, "", intruderAccess)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign delete, got %d", resp.StatusCode)
	}
}

func TestCommentFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "creator")
	env.register(t, "fan")
	creatorAccess, _ := env.login(t, "creator")
	fanAccess, _ := env.login(t, "fan")

	video := publishVideo(t, env, creatorAccess, "commented")

	payload := `{"content":"great video"}`
	resp := env.do(t, http.MethodPost, "/api/v1/comments/"+video.ID, strings.NewReader(payload), "application/json", fanAccess)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add comment: status %d: %s", resp.StatusCode, readBody(t, resp))
	}
	comment := decodeData[models.Comment](t, resp)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/api/v1/comments/"+video.ID, nil, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list comments: status %d", resp.StatusCode)
	}
	list := decodeData[[]models.CommentView](t, resp)
	resp.Body.Close()
	if len(list) != 1 || list[0].ID != comment.ID {
		t.Fatalf("expected the added comment, got %+v", list)
	}
	if list[0].OwnerProfile.Username != "fan" {
		t.Fatalf("expected joined owner profile, got %+v", list[0].OwnerProfile)
	}

	resp = env.do(t, http.MethodDelete, "/api/v1/comments/c/"+comment.ID, nil, "", creatorAccess)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 deleting someone else's comment, got %d", resp.StatusCode)
	}
}

func TestLikeAndSubscriptionToggles(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "creator")
	env.register(t, "fan")
	creatorAccess, _ := env.login(t, "creator")
	fanAccess, _ := env.login(t, "fan")

	video := publishVideo(t, env, creatorAccess, "likeable")

	resp := env.do(t, http.MethodPost, "/api/v1/likes/toggle/v/"+video.ID, nil, "", fanAccess)
	liked := decodeData[map[string]bool](t, resp)
	resp.Body.Close()
	if !liked["liked"] {
		t.Fatal("expected first toggle to like")
	}

	resp = env.do(t, http.MethodGet, "/api/v1/likes/videos", nil, "", fanAccess)
	likedVideos := decodeData[[]models.Video](t, resp)
	resp.Body.Close()
	if len(likedVideos) != 1 || likedVideos[0].ID != video.ID {
		t.Fatalf("expected liked video in feed, got %+v", likedVideos)
	}

	profileBefore := env.channelProfile(t, "creator", fanAccess)
	if profileBefore.IsSubscribed {
		t.Fatal("fan should not be subscribed yet")
	}

	resp = env.do(t, http.MethodPost, "/api/v1/subscriptions/c/"+profileBefore.ID, nil, "", fanAccess)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("subscribe: status %d", resp.StatusCode)
	}

	profileAfter := env.channelProfile(t, "creator", fanAccess)
	if !profileAfter.IsSubscribed || profileAfter.SubscriberCount != 1 {
		t.Fatalf("expected subscribed profile, got %+v", profileAfter)
	}
}

func (e *testEnv) channelProfile(t *testing.T, username, access string) models.ChannelProfile {
	t.Helper()
	resp := e.do(t, http.MethodGet, "/api/v1/users/c/"+username, nil, "", access)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("channel profile: status %d: %s", resp.StatusCode, readBody(t, resp))
	}
	return decodeData[models.ChannelProfile](t, resp)
}

func TestPlaylistFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "curator")
	access, _ := env.login(t, "curator")

	payload := `{"name":"favorites","description":"the best"}`
	resp := env.do(t, http.MethodPost, "/api/v1/playlists/", strings.NewReader(payload), "application/json", access)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create playlist: status %d: %s", resp.StatusCode, readBody(t, resp))
	}
	playlist := decodeData[models.Playlist](t, resp)
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/api/v1/playlists/", strings.NewReader(payload), "application/json", access)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate playlist name, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPatch, "/api/v1/playlists/"+playlist.ID+"/add/v1", nil, "", access)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add video: status %d", resp.StatusCode)
	}
	resp = env.do(t, http.MethodPatch, "/api/v1/playlists/"+playlist.ID+"/add/v1", nil, "", access)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 adding duplicate video, got %d", resp.StatusCode)
	}
}

func TestWatchHistoryFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "creator")
	env.register(t, "viewer")
	creatorAccess, _ := env.login(t, "creator")
	viewerAccess, _ := env.login(t, "viewer")

	video := publishVideo(t, env, creatorAccess, "watched")

	resp := env.do(t, http.MethodPost, "/api/v1/videos/"+video.ID+"/watch", nil, "", viewerAccess)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("record watch: status %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/users/history", nil, "", viewerAccess)
	history := decodeData[[]models.VideoView](t, resp)
	resp.Body.Close()
	if len(history) != 1 || history[0].ID != video.ID {
		t.Fatalf("expected watched video in history, got %+v", history)
	}
	if history[0].OwnerProfile.Username != "creator" {
		t.Fatalf("expected joined owner in history, got %+v", history[0].OwnerProfile)
	}
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "creator")
	env.register(t, "fan")
	creatorAccess, _ := env.login(t, "creator")
	fanAccess, _ := env.login(t, "fan")

	video := publishVideo(t, env, creatorAccess, "tracked")

	resp := env.do(t, http.MethodPost, "/api/v1/likes/toggle/v/"+video.ID, nil, "", fanAccess)
	resp.Body.Close()
	profile := env.channelProfile(t, "creator", fanAccess)
	resp = env.do(t, http.MethodPost, "/api/v1/subscriptions/c/"+profile.ID, nil, "", fanAccess)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/api/v1/dashboard/stats", nil, "", creatorAccess)
	stats := decodeData[models.ChannelStats](t, resp)
	resp.Body.Close()
	if stats.TotalVideos != 1 || stats.TotalSubscribers != 1 || stats.TotalLikes != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestDashboardVideosIncludesUnpublished(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "creator")
	access, _ := env.login(t, "creator")

	video := publishVideo(t, env, access, "drafted")

	resp := env.do(t, http.MethodPatch, "/api/v1/videos/"+video.ID+"/toggle-publish", nil, "", access)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("toggle publish: status %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/dashboard/videos", nil, "", access)
	videos := decodeData[[]models.Video](t, resp)
	resp.Body.Close()
	if len(videos) != 1 || videos[0].ID != video.ID {
		t.Fatalf("expected the unpublished video on the dashboard, got %+v", videos)
	}
	if videos[0].IsPublished {
		t.Fatal("expected video to be unpublished after toggle")
	}

	resp = env.do(t, http.MethodGet, "/api/v1/dashboard/videos", nil, "", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}
