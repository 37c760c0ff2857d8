package domain

import (
	"github.com/google/uuid"
	"time"
)

// Follower is a remote or local actor following a local account.
// Accepted=false means the follow awaits approval; no Accept has been
// delivered yet.
type Follower struct {
	Id             uuid.UUID
	UserId         uuid.UUID
	ActorURI       string
	InboxURI       string
	SharedInboxURI string
	Accepted       bool
	FollowURI      string // id of the inbound Follow activity
	CreatedAt      time.Time
}

// Following is a local account following a remote or local actor.
// Pending=true until an Accept arrives; local targets flip immediately.
// The row is deleted on Reject or Undo, so a row is always in exactly
// one of {pending, accepted}.
type Following struct {
	Id             uuid.UUID
	UserId         uuid.UUID
	TargetActorURI string
	Pending        bool
	FollowURI      string // id of our outbound Follow activity
	CreatedAt      time.Time
}

// FeedItem is one element of the merged timeline. Remote items carry
// the author's actor URI; local items the username.
type FeedItem struct {
	Id        string    `json:"id"`
	Author    string    `json:"author"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Published time.Time `json:"published"`
	Local     bool      `json:"local"`
}

// HandleInfo is the normalized result of resolving a human-entered
// handle.
type HandleInfo struct {
	ActorURI    string `json:"actorUrl"`
	InboxURI    string `json:"inbox"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Summary     string `json:"bio"`
	IsLocal     bool   `json:"isLocal"`
}
