package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/viewtube/backend/internal/docstore"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/pipeline"
)

// VideoRepository exposes data access for uploaded videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	UpdateFields(ctx context.Context, id string, set map[string]any) (models.Video, error)
	Delete(ctx context.Context, id, ownerID string) (models.Video, error)
	TogglePublish(ctx context.Context, id, ownerID string) (models.Video, error)
	IncrementViews(ctx context.Context, id string) error
	ListByChannel(ctx context.Context, ownerID string, publishedOnly bool, page pipeline.Page) ([]models.Video, error)
}

// Videos is the document-store backed video repository.
type Videos struct {
	store docstore.Store
}

// NewVideos constructs a video repository over the given store.
func NewVideos(store docstore.Store) *Videos {
	return &Videos{store: store}
}

func (r *Videos) collection() docstore.Collection {
	return r.store.Collection(CollectionVideos)
}

// Create persists a new video record.
func (r *Videos) Create(ctx context.Context, video models.Video) error {
	doc, err := docstore.Encode(video)
	if err != nil {
		return fmt.Errorf("encode video: %w", err)
	}
	if err := r.collection().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

// FindByID fetches a video by id.
func (r *Videos) FindByID(ctx context.Context, id string) (models.Video, error) {
	doc, err := r.collection().FindOne(ctx, docstore.Filter{"_id": id})
	if err != nil {
		return models.Video{}, err
	}
	var video models.Video
	if err := docstore.Decode(doc, &video); err != nil {
		return models.Video{}, err
	}
	return video, nil
}

// UpdateFields sets the given fields on the video and returns the
// updated record.
func (r *Videos) UpdateFields(ctx context.Context, id string, set map[string]any) (models.Video, error) {
	values := make(map[string]any, len(set)+1)
	for k, v := range set {
		values[k] = v
	}
	values["updatedAt"] = time.Now().UTC().Format(time.RFC3339Nano)

	doc, err := r.collection().UpdateOne(ctx, docstore.Filter{"_id": id}, docstore.Update{Set: values})
	if err != nil {
		return models.Video{}, err
	}
	var video models.Video
	if err := docstore.Decode(doc, &video); err != nil {
		return models.Video{}, err
	}
	return video, nil
}

// Delete removes the video when owned by ownerID and returns the
// deleted record so the caller can release its stored assets.
func (r *Videos) Delete(ctx context.Context, id, ownerID string) (models.Video, error) {
	doc, err := r.collection().DeleteOne(ctx, docstore.Filter{"_id": id, "owner": ownerID})
	if err != nil {
		return models.Video{}, err
	}
	var video models.Video
	if err := docstore.Decode(doc, &video); err != nil {
		return models.Video{}, err
	}
	return video, nil
}

// TogglePublish flips the publish flag on the owner's video.
func (r *Videos) TogglePublish(ctx context.Context, id, ownerID string) (models.Video, error) {
	video, err := r.FindByID(ctx, id)
	if err != nil {
		return models.Video{}, err
	}
	if video.Owner != ownerID {
		return models.Video{}, ErrNotFound
	}
	return r.UpdateFields(ctx, id, map[string]any{"isPublished": !video.IsPublished})
}

// IncrementViews bumps the view counter by one. Reads and writes are
// not transactional, so concurrent plays may undercount slightly.
func (r *Videos) IncrementViews(ctx context.Context, id string) error {
	video, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.collection().UpdateOne(ctx, docstore.Filter{"_id": id}, docstore.Update{
		Set: map[string]any{"views": video.Views + 1},
	})
	return err
}

// ListByChannel returns a channel's videos, newest first.
func (r *Videos) ListByChannel(ctx context.Context, ownerID string, publishedOnly bool, page pipeline.Page) ([]models.Video, error) {
	filter := map[string]any{"owner": ownerID}
	if publishedOnly {
		filter["isPublished"] = true
	}
	docs, err := r.collection().Aggregate(ctx, pipeline.Pipeline{
		pipeline.Match{Filter: filter},
		pipeline.Sort{Field: "createdAt", Desc: true},
	}.Paginate(page))
	if err != nil {
		return nil, fmt.Errorf("aggregate channel videos: %w", err)
	}
	return docstore.DecodeAll[models.Video](docs)
}

var _ VideoRepository = (*Videos)(nil)
