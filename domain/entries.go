package domain

import (
	"fmt"
	"github.com/google/uuid"
	"time"
)

// Entry visibility levels. Visibility gates the delivery audience and
// timeline assembly, never storage.
const (
	EntryVisibilityPublic    = "public"
	EntryVisibilityFollowers = "followers"
	EntryVisibilityPrivate   = "private"
)

type SaveEntry struct {
	UserId     uuid.UUID
	Title      string
	Content    string
	Visibility string
}

// Entry is a federated note: a titled markdown document published by a
// local account.
type Entry struct {
	Id          uuid.UUID
	UserId      uuid.UUID
	CreatedBy   string
	Title       string
	Content     string
	Visibility  string
	ActivityURI string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

func (e *Entry) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tCreatedBy: %s \n\tTitle: %s \n\tCreatedAt: %s)", e.Id, e.CreatedBy, e.Title, e.CreatedAt)
}
