package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/viewtube/backend/internal/docstore"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/pipeline"
)

// TweetRepository exposes data access for channel tweets.
type TweetRepository interface {
	Create(ctx context.Context, tweet models.Tweet) error
	UpdateOwn(ctx context.Context, id, ownerID, content string) (models.Tweet, error)
	DeleteOwn(ctx context.Context, id, ownerID string) error
	ListForUser(ctx context.Context, ownerID string, page pipeline.Page) ([]models.Tweet, error)
}

// Tweets is the document-store backed tweet repository.
type Tweets struct {
	store docstore.Store
}

// NewTweets constructs a tweet repository over the given store.
func NewTweets(store docstore.Store) *Tweets {
	return &Tweets{store: store}
}

func (r *Tweets) collection() docstore.Collection {
	return r.store.Collection(CollectionTweets)
}

// Create persists a new tweet.
func (r *Tweets) Create(ctx context.Context, tweet models.Tweet) error {
	doc, err := docstore.Encode(tweet)
	if err != nil {
		return fmt.Errorf("encode tweet: %w", err)
	}
	if err := r.collection().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert tweet: %w", err)
	}
	return nil
}

// UpdateOwn rewrites the tweet's content when owned by ownerID.
func (r *Tweets) UpdateOwn(ctx context.Context, id, ownerID, content string) (models.Tweet, error) {
	doc, err := r.collection().UpdateOne(ctx, docstore.Filter{"_id": id, "owner": ownerID}, docstore.Update{
		Set: map[string]any{
			"content":   content,
			"updatedAt": time.Now().UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return models.Tweet{}, err
	}
	var tweet models.Tweet
	if err := docstore.Decode(doc, &tweet); err != nil {
		return models.Tweet{}, err
	}
	return tweet, nil
}

// DeleteOwn removes the tweet when owned by ownerID.
func (r *Tweets) DeleteOwn(ctx context.Context, id, ownerID string) error {
	_, err := r.collection().DeleteOne(ctx, docstore.Filter{"_id": id, "owner": ownerID})
	return err
}

// ListForUser returns a channel's tweets, newest first.
func (r *Tweets) ListForUser(ctx context.Context, ownerID string, page pipeline.Page) ([]models.Tweet, error) {
	docs, err := r.collection().Aggregate(ctx, pipeline.Pipeline{
		pipeline.Match{Filter: map[string]any{"owner": ownerID}},
		pipeline.Sort{Field: "createdAt", Desc: true},
	}.Paginate(page))
	if err != nil {
		return nil, fmt.Errorf("aggregate user tweets: %w", err)
	}
	return docstore.DecodeAll[models.Tweet](docs)
}

var _ TweetRepository = (*Tweets)(nil)
