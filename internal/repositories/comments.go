package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/viewtube/backend/internal/docstore"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/pipeline"
)

// CommentRepository exposes data access for video comments.
type CommentRepository interface {
	Create(ctx context.Context, comment models.Comment) error
	UpdateOwn(ctx context.Context, id, ownerID, content string) (models.Comment, error)
	DeleteOwn(ctx context.Context, id, ownerID string) error
	ListForVideo(ctx context.Context, videoID string, page pipeline.Page) ([]models.CommentView, error)
}

// Comments is the document-store backed comment repository.
type Comments struct {
	store docstore.Store
}

// NewComments constructs a comment repository over the given store.
func NewComments(store docstore.Store) *Comments {
	return &Comments{store: store}
}

func (r *Comments) collection() docstore.Collection {
	return r.store.Collection(CollectionComments)
}

// Create persists a new comment.
func (r *Comments) Create(ctx context.Context, comment models.Comment) error {
	doc, err := docstore.Encode(comment)
	if err != nil {
		return fmt.Errorf("encode comment: %w", err)
	}
	if err := r.collection().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// UpdateOwn rewrites the comment's content when owned by ownerID.
// Returns ErrNotFound for both a missing comment and a foreign one.
func (r *Comments) UpdateOwn(ctx context.Context, id, ownerID, content string) (models.Comment, error) {
	doc, err := r.collection().UpdateOne(ctx, docstore.Filter{"_id": id, "owner": ownerID}, docstore.Update{
		Set: map[string]any{
			"content":   content,
			"updatedAt": time.Now().UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return models.Comment{}, err
	}
	var comment models.Comment
	if err := docstore.Decode(doc, &comment); err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

// DeleteOwn removes the comment when owned by ownerID.
func (r *Comments) DeleteOwn(ctx context.Context, id, ownerID string) error {
	_, err := r.collection().DeleteOne(ctx, docstore.Filter{"_id": id, "owner": ownerID})
	return err
}

// ListForVideo returns a video's comments joined with each author's
// public profile, oldest first.
func (r *Comments) ListForVideo(ctx context.Context, videoID string, page pipeline.Page) ([]models.CommentView, error) {
	docs, err := r.collection().Aggregate(ctx, pipeline.Pipeline{
		pipeline.Match{Filter: map[string]any{"video": videoID}},
		pipeline.Sort{Field: "createdAt"},
		pipeline.Lookup{From: CollectionUsers, LocalField: "owner", ForeignField: "_id", As: "ownerProfile", Project: publicUserFields},
		pipeline.Flatten{Field: "ownerProfile"},
	}.Paginate(page))
	if err != nil {
		return nil, fmt.Errorf("aggregate video comments: %w", err)
	}
	return docstore.DecodeAll[models.CommentView](docs)
}

var _ CommentRepository = (*Comments)(nil)
