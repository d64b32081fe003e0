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

// publicUserFields are the profile fields safe to embed in joined
// responses. Password and refreshToken never appear here.
var publicUserFields = []string{"_id", "username", "email", "fullName", "avatar", "coverImage"}

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error)
	UpdateFields(ctx context.Context, id string, set map[string]any) (models.User, error)
	SetRefreshToken(ctx context.Context, userID, refreshToken string) error
	ClearRefreshToken(ctx context.Context, userID string) error
	AppendWatchHistory(ctx context.Context, userID string, entry models.WatchEntry) error
	ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error)
	WatchHistory(ctx context.Context, userID string, page pipeline.Page) ([]models.VideoView, error)
}

// Users is the document-store backed user repository.
type Users struct {
	store docstore.Store
}

// NewUsers constructs a user repository over the given store.
func NewUsers(store docstore.Store) *Users {
	return &Users{store: store}
}

func (r *Users) collection() docstore.Collection {
	return r.store.Collection(CollectionUsers)
}

// Create persists a new user. ErrConflict when the username or email is taken.
func (r *Users) Create(ctx context.Context, user models.User) error {
	doc, err := docstore.Encode(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := r.collection().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByID fetches a user by id.
func (r *Users) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, docstore.Filter{"_id": id})
}

// FindByUsernameOrEmail resolves a login identifier, trying the
// username first and falling back to the email address.
func (r *Users) FindByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error) {
	user, err := r.findOne(ctx, docstore.Filter{"username": identifier})
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.User{}, err
	}
	return r.findOne(ctx, docstore.Filter{"email": identifier})
}

func (r *Users) findOne(ctx context.Context, filter docstore.Filter) (models.User, error) {
	doc, err := r.collection().FindOne(ctx, filter)
	if err != nil {
		return models.User{}, err
	}
	var user models.User
	if err := docstore.Decode(doc, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// UpdateFields sets the given fields on the user and returns the
// updated record. updatedAt is stamped automatically.
func (r *Users) UpdateFields(ctx context.Context, id string, set map[string]any) (models.User, error) {
	values := make(map[string]any, len(set)+1)
	for k, v := range set {
		values[k] = v
	}
	values["updatedAt"] = time.Now().UTC().Format(time.RFC3339Nano)

	doc, err := r.collection().UpdateOne(ctx, docstore.Filter{"_id": id}, docstore.Update{Set: values})
	if err != nil {
		return models.User{}, err
	}
	var user models.User
	if err := docstore.Decode(doc, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// SetRefreshToken replaces the single persisted refresh token.
func (r *Users) SetRefreshToken(ctx context.Context, userID, refreshToken string) error {
	_, err := r.collection().UpdateOne(ctx, docstore.Filter{"_id": userID}, docstore.Update{
		Set: map[string]any{"refreshToken": refreshToken},
	})
	return err
}

// ClearRefreshToken removes the persisted refresh token, ending the session.
func (r *Users) ClearRefreshToken(ctx context.Context, userID string) error {
	_, err := r.collection().UpdateOne(ctx, docstore.Filter{"_id": userID}, docstore.Update{
		Unset: []string{"refreshToken"},
	})
	return err
}

// AppendWatchHistory records a watched video at the end of the user's history.
func (r *Users) AppendWatchHistory(ctx context.Context, userID string, entry models.WatchEntry) error {
	value, err := docstore.Encode(entry)
	if err != nil {
		return fmt.Errorf("encode watch entry: %w", err)
	}
	_, err = r.collection().UpdateOne(ctx, docstore.Filter{"_id": userID}, docstore.Update{
		Push: map[string]any{"watchHistory": value},
	})
	return err
}

// ChannelProfile resolves a channel page by username: the owner's
// public profile with subscriber counters and whether the viewer is
// subscribed. viewerID may be empty for anonymous requests.
func (r *Users) ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	docs, err := r.collection().Aggregate(ctx, pipeline.Pipeline{
		pipeline.Match{Filter: map[string]any{"username": username}},
		pipeline.Lookup{From: CollectionSubscriptions, LocalField: "_id", ForeignField: "channel", As: "subscribers"},
		pipeline.Lookup{From: CollectionSubscriptions, LocalField: "_id", ForeignField: "subscriber", As: "subscribedTo"},
		pipeline.AddCount{Field: "subscriberCount", Of: "subscribers"},
		pipeline.AddCount{Field: "channelsSubscribedToCount", Of: "subscribedTo"},
		pipeline.Contains{Field: "isSubscribed", In: "subscribers", Key: "subscriber", Value: viewerID},
		pipeline.Project{Include: []string{
			"_id", "username", "email", "fullName", "avatar", "coverImage",
			"subscriberCount", "channelsSubscribedToCount", "isSubscribed",
		}},
	})
	if err != nil {
		return models.ChannelProfile{}, fmt.Errorf("aggregate channel profile: %w", err)
	}
	if len(docs) == 0 {
		return models.ChannelProfile{}, ErrNotFound
	}
	var profile models.ChannelProfile
	if err := docstore.Decode(docs[0], &profile); err != nil {
		return models.ChannelProfile{}, err
	}
	return profile, nil
}

// WatchHistory returns the user's watched videos in watch order, each
// joined with its owner's public profile.
func (r *Users) WatchHistory(ctx context.Context, userID string, page pipeline.Page) ([]models.VideoView, error) {
	docs, err := r.collection().Aggregate(ctx, pipeline.Pipeline{
		pipeline.Match{Filter: map[string]any{"_id": userID}},
		pipeline.Unwind{Field: "watchHistory"},
		pipeline.Lookup{From: CollectionVideos, LocalField: "watchHistory.videoId", ForeignField: "_id", As: "video"},
		pipeline.Flatten{Field: "video"},
		pipeline.Lookup{From: CollectionUsers, LocalField: "video.owner", ForeignField: "_id", As: "videoOwner", Project: publicUserFields},
		pipeline.Flatten{Field: "videoOwner"},
		pipeline.Set{Field: "video.ownerProfile", From: "videoOwner"},
		pipeline.ReplaceRoot{Field: "video"},
	}.Paginate(page))
	if err != nil {
		return nil, fmt.Errorf("aggregate watch history: %w", err)
	}
	return docstore.DecodeAll[models.VideoView](docs)
}

var _ UserRepository = (*Users)(nil)
