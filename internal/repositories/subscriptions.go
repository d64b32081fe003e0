package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/viewtube/backend/internal/docstore"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/pipeline"
)

// SubscriptionRepository exposes data access for channel subscriptions.
type SubscriptionRepository interface {
	Toggle(ctx context.Context, subscriberID, channelID string) (bool, error)
	Subscribers(ctx context.Context, channelID string, page pipeline.Page) ([]models.User, error)
	SubscribedChannels(ctx context.Context, subscriberID string, page pipeline.Page) ([]models.User, error)
}

// Subscriptions is the document-store backed subscription repository.
type Subscriptions struct {
	store docstore.Store
}

// NewSubscriptions constructs a subscription repository over the given store.
func NewSubscriptions(store docstore.Store) *Subscriptions {
	return &Subscriptions{store: store}
}

func (r *Subscriptions) collection() docstore.Collection {
	return r.store.Collection(CollectionSubscriptions)
}

// Toggle flips the subscriber's subscription to the channel. It reports
// true when the call resulted in a subscription, false when it removed one.
func (r *Subscriptions) Toggle(ctx context.Context, subscriberID, channelID string) (bool, error) {
	filter := docstore.Filter{"subscriber": subscriberID, "channel": channelID}

	if _, err := r.collection().DeleteOne(ctx, filter); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, fmt.Errorf("remove subscription: %w", err)
	}

	doc := docstore.Document{
		"_id":        uuid.NewString(),
		"subscriber": subscriberID,
		"channel":    channelID,
		"createdAt":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := r.collection().InsertOne(ctx, doc); err != nil {
		return false, fmt.Errorf("insert subscription: %w", err)
	}
	return true, nil
}

// Subscribers returns the public profiles of users subscribed to the channel.
func (r *Subscriptions) Subscribers(ctx context.Context, channelID string, page pipeline.Page) ([]models.User, error) {
	return r.joinedProfiles(ctx, "channel", channelID, "subscriber", page)
}

// SubscribedChannels returns the public profiles of channels the user
// subscribes to.
func (r *Subscriptions) SubscribedChannels(ctx context.Context, subscriberID string, page pipeline.Page) ([]models.User, error) {
	return r.joinedProfiles(ctx, "subscriber", subscriberID, "channel", page)
}

func (r *Subscriptions) joinedProfiles(ctx context.Context, matchField, matchID, joinField string, page pipeline.Page) ([]models.User, error) {
	p := pipeline.Pipeline{
		pipeline.Match{Filter: map[string]any{matchField: matchID}},
		pipeline.Sort{Field: "createdAt", Desc: true},
	}.Paginate(page)
	p = append(p,
		pipeline.Lookup{From: CollectionUsers, LocalField: joinField, ForeignField: "_id", As: "profile", Project: publicUserFields},
		pipeline.Flatten{Field: "profile"},
		pipeline.ReplaceRoot{Field: "profile"},
	)
	docs, err := r.collection().Aggregate(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("aggregate subscription profiles: %w", err)
	}
	return docstore.DecodeAll[models.User](docs)
}

var _ SubscriptionRepository = (*Subscriptions)(nil)
