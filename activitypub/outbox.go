package activitypub

import (
	"fmt"
	"time"

	"github.com/deemkeen/inkwell/domain"
	"github.com/deemkeen/inkwell/util"
	"github.com/google/uuid"
)

const ActivityStreamsContext = "https://www.w3.org/ns/activitystreams"
const PublicAudience = "https://www.w3.org/ns/activitystreams#Public"

// LocalActorURI is the canonical identity of a local account.
func LocalActorURI(conf *util.AppConfig, username string) string {
	return fmt.Sprintf("%s/users/%s", conf.ServerOrigin(), username)
}

// NewActivityURI mints a globally unique activity id.
func NewActivityURI(conf *util.AppConfig) string {
	return fmt.Sprintf("%s/activities/%s", conf.ServerOrigin(), uuid.New().String())
}

// EntryURI is the object id of a published entry.
func EntryURI(conf *util.AppConfig, entryId uuid.UUID) string {
	return fmt.Sprintf("%s/entries/%s", conf.ServerOrigin(), entryId.String())
}

// BuildNote renders an entry as a Note object: the title as an h1
// followed by the markdown body rendered to HTML.
func BuildNote(entry *domain.Entry, account *domain.Account, conf *util.AppConfig) map[string]interface{} {
	actorURI := LocalActorURI(conf, account.Username)
	followersURI := actorURI + "/followers"

	to := []string{followersURI}
	cc := []string{}
	if entry.Visibility == domain.EntryVisibilityPublic {
		to = []string{PublicAudience}
		cc = []string{followersURI}
	}

	note := map[string]interface{}{
		"id":           EntryURI(conf, entry.Id),
		"type":         "Note",
		"attributedTo": actorURI,
		"content":      util.RenderEntryContent(entry.Title, entry.Content),
		"published":    entry.CreatedAt.Format(time.RFC3339),
		"to":           to,
		"cc":           cc,
	}

	if entry.UpdatedAt != nil {
		note["updated"] = entry.UpdatedAt.Format(time.RFC3339)
	}

	return note
}

// BuildCreate wraps an entry's Note in a Create activity.
func BuildCreate(entry *domain.Entry, account *domain.Account, conf *util.AppConfig) map[string]interface{} {
	actorURI := LocalActorURI(conf, account.Username)
	note := BuildNote(entry, account, conf)

	activityURI := entry.ActivityURI
	if activityURI == "" {
		activityURI = NewActivityURI(conf)
	}

	return map[string]interface{}{
		"@context":  ActivityStreamsContext,
		"id":        activityURI,
		"type":      "Create",
		"actor":     actorURI,
		"published": entry.CreatedAt.Format(time.RFC3339),
		"to":        note["to"],
		"cc":        note["cc"],
		"object":    note,
	}
}

// BuildFollow builds an outbound Follow activity with the given id.
func BuildFollow(followURI string, actorURI string, targetActorURI string) map[string]interface{} {
	return map[string]interface{}{
		"@context": ActivityStreamsContext,
		"id":       followURI,
		"type":     "Follow",
		"actor":    actorURI,
		"object":   targetActorURI,
	}
}

// BuildAccept builds an Accept for an inbound Follow.
func BuildAccept(conf *util.AppConfig, account *domain.Account, followURI string, followerActorURI string) map[string]interface{} {
	actorURI := LocalActorURI(conf, account.Username)

	return map[string]interface{}{
		"@context": ActivityStreamsContext,
		"id":       NewActivityURI(conf),
		"type":     "Accept",
		"actor":    actorURI,
		"object": map[string]interface{}{
			"id":     followURI,
			"type":   "Follow",
			"actor":  followerActorURI,
			"object": actorURI,
		},
	}
}

// BuildReject is the refusal counterpart of BuildAccept.
func BuildReject(conf *util.AppConfig, account *domain.Account, followURI string, followerActorURI string) map[string]interface{} {
	actorURI := LocalActorURI(conf, account.Username)

	return map[string]interface{}{
		"@context": ActivityStreamsContext,
		"id":       NewActivityURI(conf),
		"type":     "Reject",
		"actor":    actorURI,
		"object": map[string]interface{}{
			"id":     followURI,
			"type":   "Follow",
			"actor":  followerActorURI,
			"object": actorURI,
		},
	}
}

// BuildUndoFollow retracts a previously issued Follow.
func BuildUndoFollow(conf *util.AppConfig, account *domain.Account, followURI string, targetActorURI string) map[string]interface{} {
	actorURI := LocalActorURI(conf, account.Username)

	return map[string]interface{}{
		"@context": ActivityStreamsContext,
		"id":       NewActivityURI(conf),
		"type":     "Undo",
		"actor":    actorURI,
		"object": map[string]interface{}{
			"id":     followURI,
			"type":   "Follow",
			"actor":  actorURI,
			"object": targetActorURI,
		},
	}
}

// BuildUpdate wraps the edited entry's Note in an Update activity.
func BuildUpdate(entry *domain.Entry, account *domain.Account, conf *util.AppConfig) map[string]interface{} {
	actorURI := LocalActorURI(conf, account.Username)
	note := BuildNote(entry, account, conf)

	return map[string]interface{}{
		"@context": ActivityStreamsContext,
		"id":       NewActivityURI(conf),
		"type":     "Update",
		"actor":    actorURI,
		"to":       note["to"],
		"cc":       note["cc"],
		"object":   note,
	}
}

// BuildDelete announces the removal of an entry. The object is reduced
// to its id, which is all a remote needs to drop it.
func BuildDelete(entry *domain.Entry, account *domain.Account, conf *util.AppConfig) map[string]interface{} {
	actorURI := LocalActorURI(conf, account.Username)

	return map[string]interface{}{
		"@context": ActivityStreamsContext,
		"id":       NewActivityURI(conf),
		"type":     "Delete",
		"actor":    actorURI,
		"to":       []string{PublicAudience},
		"object": map[string]interface{}{
			"id":   EntryURI(conf, entry.Id),
			"type": "Tombstone",
		},
	}
}
