package web

import (
	"net/http"
	"strings"

	"github.com/deemkeen/inkwell/activitypub"
	"github.com/deemkeen/inkwell/db"
	"github.com/deemkeen/inkwell/domain"
	"github.com/deemkeen/inkwell/util"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// wantsActivityJSON checks whether the client asked for an activity
// document rather than a web page.
func wantsActivityJSON(accept string) bool {
	return strings.Contains(accept, "application/activity+json") ||
		strings.Contains(accept, "application/ld+json")
}

// HandleActor serves the Person document of a local account, or
// redirects browsers to the profile page. Disabled and unknown
// accounts are both 404 so account existence never leaks.
func HandleActor(c *gin.Context, conf *util.AppConfig) {
	username := c.Param("username")

	err, acc := db.GetDB().ReadAccByUsername(username)
	if err != nil || acc == nil || !acc.FederationEnabled {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	if !wantsActivityJSON(c.GetHeader("Accept")) {
		c.Redirect(http.StatusFound, "/u/"+acc.Username)
		return
	}

	c.Header("Content-Type", "application/activity+json; charset=utf-8")
	c.JSON(http.StatusOK, BuildActorDocument(acc, conf))
}

// BuildActorDocument assembles the Person document with key block and
// endpoints.
func BuildActorDocument(acc *domain.Account, conf *util.AppConfig) map[string]interface{} {
	actorURI := activitypub.LocalActorURI(conf, acc.Username)

	displayName := acc.DisplayName
	if displayName == "" {
		displayName = acc.Username
	}

	return map[string]interface{}{
		"@context": []string{
			"https://www.w3.org/ns/activitystreams",
			"https://w3id.org/security/v1",
		},
		"id":                        actorURI,
		"type":                      "Person",
		"preferredUsername":         acc.Username,
		"name":                      displayName,
		"summary":                   acc.Summary,
		"inbox":                     actorURI + "/inbox",
		"outbox":                    actorURI + "/outbox",
		"followers":                 actorURI + "/followers",
		"following":                 actorURI + "/following",
		"url":                       actorURI,
		"manuallyApprovesFollowers": acc.Visibility != domain.VisibilityPublic,
		"discoverable":              acc.Visibility == domain.VisibilityPublic,
		"endpoints": map[string]interface{}{
			"sharedInbox": conf.ServerOrigin() + "/inbox",
		},
		"publicKey": map[string]interface{}{
			"id":           actorURI + "#main-key",
			"owner":        actorURI,
			"publicKeyPem": acc.WebPublicKey,
		},
	}
}

// HandleEntryObject serves a single public entry as its Note object.
func HandleEntryObject(c *gin.Context, conf *util.AppConfig) {
	entryId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	dbErr, entry := db.GetDB().ReadEntryById(entryId)
	if dbErr != nil || entry == nil || entry.Visibility != domain.EntryVisibilityPublic {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	accErr, acc := db.GetDB().ReadAccByUsername(entry.CreatedBy)
	if accErr != nil || acc == nil || !acc.FederationEnabled {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	note := activitypub.BuildNote(entry, acc, conf)
	note["@context"] = activitypub.ActivityStreamsContext

	c.Header("Content-Type", "application/activity+json; charset=utf-8")
	c.JSON(http.StatusOK, note)
}
