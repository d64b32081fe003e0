// Package repositories implements the data access layer. Each resource
// gets a repository over the document store; list reads are expressed
// as aggregation pipelines so the same composition runs on both store
// engines.
package repositories

import (
	"github.com/viewtube/backend/internal/docstore"
)

// Collection names used across the repositories.
const (
	CollectionUsers         = "users"
	CollectionVideos        = "videos"
	CollectionComments      = "comments"
	CollectionLikes         = "likes"
	CollectionTweets        = "tweets"
	CollectionSubscriptions = "subscriptions"
	CollectionPlaylists     = "playlists"
)

// ErrNotFound and ErrConflict re-export the store sentinels so callers
// depend on this package only.
var (
	ErrNotFound = docstore.ErrNotFound
	ErrConflict = docstore.ErrConflict
)

// Schemas declares every collection plus the unique indexes the
// platform depends on. The migrate command feeds this to the store.
func Schemas() []docstore.CollectionSchema {
	return []docstore.CollectionSchema{
		{Name: CollectionUsers, Unique: []string{"username", "email"}},
		{Name: CollectionVideos},
		{Name: CollectionComments},
		{Name: CollectionLikes},
		{Name: CollectionTweets},
		{Name: CollectionSubscriptions},
		{Name: CollectionPlaylists},
	}
}
