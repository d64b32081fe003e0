package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/viewtube/backend/internal/docstore"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/pipeline"
)

// ErrVideoAlreadyInPlaylist rejects adding a video a playlist already holds.
var ErrVideoAlreadyInPlaylist = errors.New("video already in playlist")

// PlaylistRepository exposes data access for user playlists.
type PlaylistRepository interface {
	Create(ctx context.Context, playlist models.Playlist) error
	FindByID(ctx context.Context, id string) (models.Playlist, error)
	ListForOwner(ctx context.Context, ownerID string, page pipeline.Page) ([]models.Playlist, error)
	AddVideo(ctx context.Context, id, ownerID, videoID string) (models.Playlist, error)
	RemoveVideo(ctx context.Context, id, ownerID, videoID string) (models.Playlist, error)
	UpdateDetails(ctx context.Context, id, ownerID string, set map[string]any) (models.Playlist, error)
	DeleteOwn(ctx context.Context, id, ownerID string) error
}

// Playlists is the document-store backed playlist repository.
type Playlists struct {
	store docstore.Store
}

// NewPlaylists constructs a playlist repository over the given store.
func NewPlaylists(store docstore.Store) *Playlists {
	return &Playlists{store: store}
}

func (r *Playlists) collection() docstore.Collection {
	return r.store.Collection(CollectionPlaylists)
}

// Create persists a new playlist. ErrConflict when the owner already
// has a playlist with the same name.
func (r *Playlists) Create(ctx context.Context, playlist models.Playlist) error {
	_, err := r.collection().FindOne(ctx, docstore.Filter{"owner": playlist.Owner, "name": playlist.Name})
	if err == nil {
		return ErrConflict
	}
	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("check playlist name: %w", err)
	}

	doc, err := docstore.Encode(playlist)
	if err != nil {
		return fmt.Errorf("encode playlist: %w", err)
	}
	if err := r.collection().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert playlist: %w", err)
	}
	return nil
}

// FindByID fetches a playlist by id.
func (r *Playlists) FindByID(ctx context.Context, id string) (models.Playlist, error) {
	doc, err := r.collection().FindOne(ctx, docstore.Filter{"_id": id})
	if err != nil {
		return models.Playlist{}, err
	}
	return decodePlaylist(doc)
}

// ListForOwner returns a user's playlists, newest first.
func (r *Playlists) ListForOwner(ctx context.Context, ownerID string, page pipeline.Page) ([]models.Playlist, error) {
	docs, err := r.collection().Aggregate(ctx, pipeline.Pipeline{
		pipeline.Match{Filter: map[string]any{"owner": ownerID}},
		pipeline.Sort{Field: "createdAt", Desc: true},
	}.Paginate(page))
	if err != nil {
		return nil, fmt.Errorf("aggregate user playlists: %w", err)
	}
	return docstore.DecodeAll[models.Playlist](docs)
}

// AddVideo appends the video to the owner's playlist.
// ErrVideoAlreadyInPlaylist when the video is already present.
func (r *Playlists) AddVideo(ctx context.Context, id, ownerID, videoID string) (models.Playlist, error) {
	playlist, err := r.findOwned(ctx, id, ownerID)
	if err != nil {
		return models.Playlist{}, err
	}
	for _, existing := range playlist.Videos {
		if existing == videoID {
			return models.Playlist{}, ErrVideoAlreadyInPlaylist
		}
	}

	doc, err := r.collection().UpdateOne(ctx, docstore.Filter{"_id": id, "owner": ownerID}, docstore.Update{
		Push: map[string]any{"videos": videoID},
		Set:  map[string]any{"updatedAt": time.Now().UTC().Format(time.RFC3339Nano)},
	})
	if err != nil {
		return models.Playlist{}, err
	}
	return decodePlaylist(doc)
}

// RemoveVideo drops the video from the owner's playlist. Removing an
// absent video is a no-op.
func (r *Playlists) RemoveVideo(ctx context.Context, id, ownerID, videoID string) (models.Playlist, error) {
	doc, err := r.collection().UpdateOne(ctx, docstore.Filter{"_id": id, "owner": ownerID}, docstore.Update{
		Pull: map[string]any{"videos": videoID},
		Set:  map[string]any{"updatedAt": time.Now().UTC().Format(time.RFC3339Nano)},
	})
	if err != nil {
		return models.Playlist{}, err
	}
	return decodePlaylist(doc)
}

// UpdateDetails sets name and/or description on the owner's playlist.
func (r *Playlists) UpdateDetails(ctx context.Context, id, ownerID string, set map[string]any) (models.Playlist, error) {
	values := make(map[string]any, len(set)+1)
	for k, v := range set {
		values[k] = v
	}
	values["updatedAt"] = time.Now().UTC().Format(time.RFC3339Nano)

	doc, err := r.collection().UpdateOne(ctx, docstore.Filter{"_id": id, "owner": ownerID}, docstore.Update{Set: values})
	if err != nil {
		return models.Playlist{}, err
	}
	return decodePlaylist(doc)
}

// DeleteOwn removes the playlist when owned by ownerID.
func (r *Playlists) DeleteOwn(ctx context.Context, id, ownerID string) error {
	_, err := r.collection().DeleteOne(ctx, docstore.Filter{"_id": id, "owner": ownerID})
	return err
}

func (r *Playlists) findOwned(ctx context.Context, id, ownerID string) (models.Playlist, error) {
	doc, err := r.collection().FindOne(ctx, docstore.Filter{"_id": id, "owner": ownerID})
	if err != nil {
		return models.Playlist{}, err
	}
	return decodePlaylist(doc)
}

func decodePlaylist(doc docstore.Document) (models.Playlist, error) {
	var playlist models.Playlist
	if err := docstore.Decode(doc, &playlist); err != nil {
		return models.Playlist{}, err
	}
	return playlist, nil
}

var _ PlaylistRepository = (*Playlists)(nil)
