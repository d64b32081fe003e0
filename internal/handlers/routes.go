package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/viewtube/backend/internal/metrics"
	"github.com/viewtube/backend/internal/middleware"
	"github.com/viewtube/backend/internal/repositories"
	"github.com/viewtube/backend/internal/storage"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         repositories.UserRepository
	Videos        repositories.VideoRepository
	Comments      repositories.CommentRepository
	Likes         repositories.LikeRepository
	Tweets        repositories.TweetRepository
	Subscriptions repositories.SubscriptionRepository
	Playlists     repositories.PlaylistRepository
	Dashboard     repositories.DashboardRepository

	Sessions SessionManager
	Verifier middleware.AccessVerifier
	Assets   storage.AssetStore
	Prober   DurationProber
	Metrics  metrics.Recorder

	AuthLimiter middleware.RateLimiter
}

// RegisterRoutes wires every handler into the provided router.
func RegisterRoutes(router chi.Router, deps Dependencies) {
	users := UserHandler{Users: deps.Users, Sessions: deps.Sessions, Assets: deps.Assets, Metrics: deps.Metrics}
	videos := VideoHandler{Videos: deps.Videos, Users: deps.Users, Assets: deps.Assets, Prober: deps.Prober, Metrics: deps.Metrics}
	comments := CommentHandler{Comments: deps.Comments, Videos: deps.Videos}
	likes := LikeHandler{Likes: deps.Likes}
	tweets := TweetHandler{Tweets: deps.Tweets}
	subscriptions := SubscriptionHandler{Subscriptions: deps.Subscriptions}
	playlists := PlaylistHandler{Playlists: deps.Playlists}
	dashboard := DashboardHandler{Dashboard: deps.Dashboard, Videos: deps.Videos}
	health := HealthHandler{}

	requireAuth := middleware.RequireAuth(deps.Verifier)
	optionalAuth := middleware.OptionalAuth(deps.Verifier)

	router.Get("/healthz", health.Handle)

	router.Route("/api/v1", func(api chi.Router) {
		api.Route("/users", func(g chi.Router) {
			g.Group(func(limited chi.Router) {
				limited.Use(middleware.Limit(deps.AuthLimiter, "auth"))
				limited.Post("/register", users.Register)
				limited.Post("/login", users.Login)
				limited.Post("/refresh-token", users.Refresh)
			})

			g.Group(func(authed chi.Router) {
				authed.Use(requireAuth)
				authed.Post("/logout", users.Logout)
				authed.Post("/change-password", users.ChangePassword)
				authed.Get("/current-user", users.CurrentUser)
				authed.Patch("/update-account", users.UpdateAccount)
				authed.Patch("/avatar", users.UpdateAvatar)
				authed.Patch("/cover-image", users.UpdateCoverImage)
				authed.Get("/history", users.WatchHistory)
			})

			g.With(optionalAuth).Get("/c/{username}", users.ChannelProfile)
		})

		api.Route("/videos", func(g chi.Router) {
			g.With(optionalAuth).Get("/", videos.List)
			g.With(optionalAuth).Get("/{videoId}", videos.Get)

			g.Group(func(authed chi.Router) {
				authed.Use(requireAuth)
				authed.Post("/", videos.Publish)
				authed.Patch("/{videoId}", videos.Update)
				authed.Patch("/{videoId}/thumbnail", videos.UpdateThumbnail)
				authed.Patch("/{videoId}/file", videos.UpdateVideoFile)
				authed.Patch("/{videoId}/toggle-publish", videos.TogglePublish)
				authed.Post("/{videoId}/watch", videos.Watch)
				authed.Delete("/{videoId}", videos.Delete)
			})
		})

		api.Route("/comments", func(g chi.Router) {
			g.Get("/{videoId}", comments.List)

			g.Group(func(authed chi.Router) {
				authed.Use(requireAuth)
				authed.Post("/{videoId}", comments.Add)
				authed.Patch("/c/{commentId}", comments.Update)
				authed.Delete("/c/{commentId}", comments.Delete)
			})
		})

		api.Route("/likes", func(g chi.Router) {
			g.Use(requireAuth)
			g.Post("/toggle/v/{videoId}", likes.ToggleVideo)
			g.Post("/toggle/c/{commentId}", likes.ToggleComment)
			g.Post("/toggle/t/{tweetId}", likes.ToggleTweet)
			g.Get("/videos", likes.Videos)
		})

		api.Route("/tweets", func(g chi.Router) {
			g.Get("/user/{userId}", tweets.ListForUser)

			g.Group(func(authed chi.Router) {
				authed.Use(requireAuth)
				authed.Post("/", tweets.Create)
				authed.Patch("/{tweetId}", tweets.Update)
				authed.Delete("/{tweetId}", tweets.Delete)
			})
		})

		api.Route("/subscriptions", func(g chi.Router) {
			g.Get("/c/{channelId}", subscriptions.Subscribers)
			g.Get("/u/{subscriberId}", subscriptions.Subscribed)
			g.With(requireAuth).Post("/c/{channelId}", subscriptions.Toggle)
		})

		api.Route("/playlists", func(g chi.Router) {
			g.Get("/{playlistId}", playlists.Get)
			g.Get("/user/{userId}", playlists.ListForUser)

			g.Group(func(authed chi.Router) {
				authed.Use(requireAuth)
				authed.Post("/", playlists.Create)
				authed.Patch("/{playlistId}", playlists.Update)
				authed.Patch("/{playlistId}/add/{videoId}", playlists.AddVideo)
				authed.Patch("/{playlistId}/remove/{videoId}", playlists.RemoveVideo)
				authed.Delete("/{playlistId}", playlists.Delete)
			})
		})

		api.Route("/dashboard", func(g chi.Router) {
			g.Use(requireAuth)
			g.Get("/stats", dashboard.Stats)
			g.Get("/videos", dashboard.ChannelVideos)
		})
	})
}
