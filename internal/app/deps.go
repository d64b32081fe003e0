package app

import (
	"github.com/viewtube/backend/internal/auth"
	"github.com/viewtube/backend/internal/config"
	"github.com/viewtube/backend/internal/docstore"
	"github.com/viewtube/backend/internal/handlers"
	"github.com/viewtube/backend/internal/media"
	"github.com/viewtube/backend/internal/metrics"
	"github.com/viewtube/backend/internal/middleware"
	"github.com/viewtube/backend/internal/repositories"
	"github.com/viewtube/backend/internal/storage"
	"github.com/viewtube/backend/internal/token"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(store docstore.Store, tokens *token.Service, assets storage.AssetStore, recorder metrics.Recorder, cfg config.Config) handlers.Dependencies {
	users := repositories.NewUsers(store)
	manager := auth.NewManager(tokens, users, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	return handlers.Dependencies{
		Users:         users,
		Videos:        repositories.NewVideos(store),
		Comments:      repositories.NewComments(store),
		Likes:         repositories.NewLikes(store),
		Tweets:        repositories.NewTweets(store),
		Subscriptions: repositories.NewSubscriptions(store),
		Playlists:     repositories.NewPlaylists(store),
		Dashboard:     repositories.NewDashboard(store),

		Sessions: manager,
		Verifier: manager,
		Assets:   assets,
		Prober:   media.NewFFProbe(cfg.FFProbePath, cfg.FFProbeTimeout),
		Metrics:  recorder,

		AuthLimiter: middleware.NewIPRateLimiter(cfg.AuthRateRequests, cfg.AuthRateWindow, cfg.AuthRateRequests, 10*cfg.AuthRateWindow),
	}
}
