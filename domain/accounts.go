package domain

import (
	"fmt"
	"github.com/google/uuid"
	"time"
)

// Profile visibility levels. Public profiles auto-accept follow
// requests; restricted and private profiles hold them for approval.
const (
	VisibilityPublic     = "public"
	VisibilityRestricted = "restricted"
	VisibilityPrivate    = "private"
)

type Account struct {
	Id                uuid.UUID
	Username          string
	DisplayName       string
	Summary           string
	WebPublicKey      string
	WebPrivateKey     string
	AuthToken         string
	FederationEnabled bool
	Visibility        string
	CreatedAt         time.Time
}

func (acc *Account) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tUsername: %s \n\tVisibility: %s \n\tCreatedAt: %s)", acc.Id, acc.Username, acc.Visibility, acc.CreatedAt)
}
