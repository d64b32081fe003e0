package repositories

import (
	"context"
	"fmt"

	"github.com/viewtube/backend/internal/docstore"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/pipeline"
)

// DashboardRepository computes a channel owner's aggregate counters.
type DashboardRepository interface {
	ChannelStats(ctx context.Context, channelID string) (models.ChannelStats, error)
}

// Dashboard is the document-store backed dashboard repository.
type Dashboard struct {
	store docstore.Store
}

// NewDashboard constructs a dashboard repository over the given store.
func NewDashboard(store docstore.Store) *Dashboard {
	return &Dashboard{store: store}
}

// ChannelStats aggregates the channel's totals: video count, summed
// views, subscriber count, and likes received across all its videos.
func (r *Dashboard) ChannelStats(ctx context.Context, channelID string) (models.ChannelStats, error) {
	var stats models.ChannelStats

	videos := r.store.Collection(CollectionVideos)
	subscriptions := r.store.Collection(CollectionSubscriptions)

	count, err := terminalInt(ctx, videos, pipeline.Pipeline{
		pipeline.Match{Filter: map[string]any{"owner": channelID}},
		pipeline.Count{As: "n"},
	}, "n")
	if err != nil {
		return stats, fmt.Errorf("count channel videos: %w", err)
	}
	stats.TotalVideos = count

	views, err := terminalInt(ctx, videos, pipeline.Pipeline{
		pipeline.Match{Filter: map[string]any{"owner": channelID}},
		pipeline.Sum{As: "n", Field: "views"},
	}, "n")
	if err != nil {
		return stats, fmt.Errorf("sum channel views: %w", err)
	}
	stats.TotalViews = int64(views)

	subscribers, err := terminalInt(ctx, subscriptions, pipeline.Pipeline{
		pipeline.Match{Filter: map[string]any{"channel": channelID}},
		pipeline.Count{As: "n"},
	}, "n")
	if err != nil {
		return stats, fmt.Errorf("count channel subscribers: %w", err)
	}
	stats.TotalSubscribers = subscribers

	// Likes attach to videos, not channels, so the total is summed
	// through a per-video join.
	likes, err := terminalInt(ctx, videos, pipeline.Pipeline{
		pipeline.Match{Filter: map[string]any{"owner": channelID}},
		pipeline.Lookup{From: CollectionLikes, LocalField: "_id", ForeignField: "video", As: "likes"},
		pipeline.AddCount{Field: "likeCount", Of: "likes"},
		pipeline.Sum{As: "n", Field: "likeCount"},
	}, "n")
	if err != nil {
		return stats, fmt.Errorf("sum channel likes: %w", err)
	}
	stats.TotalLikes = likes

	return stats, nil
}

// terminalInt runs a pipeline ending in Count or Sum and extracts the
// single numeric result.
func terminalInt(ctx context.Context, c docstore.Collection, p pipeline.Pipeline, field string) (int, error) {
	docs, err := c.Aggregate(ctx, p)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}
	switch v := docs[0][field].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("unexpected %s value %T", field, docs[0][field])
	}
}

var _ DashboardRepository = (*Dashboard)(nil)
