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

// LikeTarget names the resource kind a like attaches to. The values
// double as the document field holding the target id.
type LikeTarget string

const (
	LikeVideo   LikeTarget = "video"
	LikeComment LikeTarget = "comment"
	LikeTweet   LikeTarget = "tweet"
)

// LikeRepository exposes data access for likes across videos, comments
// and tweets.
type LikeRepository interface {
	Toggle(ctx context.Context, target LikeTarget, targetID, userID string) (bool, error)
	LikedVideos(ctx context.Context, userID string, page pipeline.Page) ([]models.Video, error)
}

// Likes is the document-store backed like repository.
type Likes struct {
	store docstore.Store
}

// NewLikes constructs a like repository over the given store.
func NewLikes(store docstore.Store) *Likes {
	return &Likes{store: store}
}

func (r *Likes) collection() docstore.Collection {
	return r.store.Collection(CollectionLikes)
}

// Toggle flips the user's like for the target. It reports true when the
// call resulted in a like, false when it removed one.
func (r *Likes) Toggle(ctx context.Context, target LikeTarget, targetID, userID string) (bool, error) {
	filter := docstore.Filter{string(target): targetID, "likedBy": userID}

	if _, err := r.collection().DeleteOne(ctx, filter); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, fmt.Errorf("remove like: %w", err)
	}

	doc := docstore.Document{
		"_id":          uuid.NewString(),
		string(target): targetID,
		"likedBy":      userID,
		"createdAt":    time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := r.collection().InsertOne(ctx, doc); err != nil {
		return false, fmt.Errorf("insert like: %w", err)
	}
	return true, nil
}

// LikedVideos returns the videos the user has liked. Likes pointing at
// comments or tweets are excluded by requiring the video field.
func (r *Likes) LikedVideos(ctx context.Context, userID string, page pipeline.Page) ([]models.Video, error) {
	// Pagination runs over the likes themselves; the join happens on
	// the page, not the whole set.
	p := pipeline.Pipeline{
		pipeline.Match{Filter: map[string]any{"likedBy": userID}, Exists: []string{"video"}},
		pipeline.Sort{Field: "createdAt", Desc: true},
	}.Paginate(page)
	p = append(p,
		pipeline.Lookup{From: CollectionVideos, LocalField: "video", ForeignField: "_id", As: "likedVideo"},
		pipeline.Flatten{Field: "likedVideo"},
		pipeline.ReplaceRoot{Field: "likedVideo"},
	)
	docs, err := r.collection().Aggregate(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("aggregate liked videos: %w", err)
	}
	return docstore.DecodeAll[models.Video](docs)
}

var _ LikeRepository = (*Likes)(nil)
