package models

import "time"

// User represents an account within the ViewTube platform. The password
// field always holds a bcrypt hash, never the clear text.
type User struct {
	ID           string       `json:"_id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	FullName     string       `json:"fullName"`
	Password     string       `json:"password,omitempty"`
	Avatar       AssetRef     `json:"avatar"`
	CoverImage   AssetRef     `json:"coverImage"`
	WatchHistory []WatchEntry `json:"watchHistory"`
	RefreshToken string       `json:"refreshToken,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// PublicProfile strips credential material from a user record before it
// leaves the service.
func (u User) PublicProfile() User {
	u.Password = ""
	u.RefreshToken = ""
	return u
}

// AssetRef points at a media file held by the external object store.
type AssetRef struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// WatchEntry is one append-only element of a user's watch history.
type WatchEntry struct {
	VideoID string `json:"videoId"`
	OwnerID string `json:"ownerId"`
}

// Video stores playback metadata for an uploaded video.
type Video struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	VideoFile   AssetRef  `json:"videoFile"`
	Thumbnail   AssetRef  `json:"thumbnail"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	IsPublished bool      `json:"isPublished"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Comment is a user's comment on a video.
type Comment struct {
	ID        string    `json:"_id"`
	Content   string    `json:"content"`
	Video     string    `json:"video"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Like records a user liking exactly one of a video, comment, or tweet.
type Like struct {
	ID        string    `json:"_id"`
	Video     string    `json:"video,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	Tweet     string    `json:"tweet,omitempty"`
	LikedBy   string    `json:"likedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Tweet is a short text post attached to a channel.
type Tweet struct {
	ID        string    `json:"_id"`
	Content   string    `json:"content"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Subscription links a subscriber to the channel they follow. One
// document per (subscriber, channel) pair.
type Subscription struct {
	ID         string    `json:"_id"`
	Subscriber string    `json:"subscriber"`
	Channel    string    `json:"channel"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Playlist is an ordered collection of video ids owned by a user.
type Playlist struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Videos      []string  `json:"videos"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ChannelProfile is the public view of a channel: the owner's profile
// joined with its subscription counters, relative to the viewing user.
type ChannelProfile struct {
	ID                string   `json:"_id"`
	Username          string   `json:"username"`
	Email             string   `json:"email"`
	FullName          string   `json:"fullName"`
	Avatar            AssetRef `json:"avatar"`
	CoverImage        AssetRef `json:"coverImage"`
	SubscriberCount   int      `json:"subscriberCount"`
	SubscribedToCount int      `json:"channelsSubscribedToCount"`
	IsSubscribed      bool     `json:"isSubscribed"`
}

// VideoView is a video joined with its owner's public profile.
type VideoView struct {
	Video
	OwnerProfile User `json:"ownerProfile"`
}

// CommentView is a comment joined with its author's public profile.
type CommentView struct {
	Comment
	OwnerProfile User `json:"ownerProfile"`
}

// ChannelStats aggregates a channel's dashboard counters.
type ChannelStats struct {
	TotalVideos      int   `json:"totalVideos"`
	TotalViews       int64 `json:"totalViews"`
	TotalSubscribers int   `json:"totalSubscribers"`
	TotalLikes       int   `json:"totalLikes"`
}

// TokenPair groups the bearer credentials issued to authenticated users.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
