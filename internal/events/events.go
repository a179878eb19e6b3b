// Package events defines the wire contract for the social_media topic
// exchange: routing keys and the JSON payload shapes carried under them.
// Payloads are immutable facts published after a local mutation commits;
// consumers derive their own state from them and never mutate the event.
package events

import "time"

// Exchange is the single logical topic exchange all services share.
// It is declared non-durable: messages are lost on broker restart, an
// accepted trade of durability for availability.
const Exchange = "social_media"

// Routing keys. Dot-separated, matched by subscriber binding patterns.
const (
	PostCreated = "post.created"
	PostDeleted = "post.deleted"
)

// PostCreatedPayload is published by the post service after a post is
// persisted.
type PostCreatedPayload struct {
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// PostDeletedPayload is published by the post service after a post is
// removed. MediaIDs lists the media records attached to the post so the
// media service can clean up the backing assets.
type PostDeletedPayload struct {
	PostID   string   `json:"postId"`
	UserID   string   `json:"userId"`
	MediaIDs []string `json:"mediaIds"`
}
