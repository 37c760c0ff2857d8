package web

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/deemkeen/inkwell/activitypub"
	"github.com/deemkeen/inkwell/db"
	"github.com/deemkeen/inkwell/domain"
	"github.com/deemkeen/inkwell/util"
	"github.com/gin-gonic/gin"
)

const outboxPageSize = 20

// HandleOutbox serves a user's outbox. Without the page parameter it
// returns the OrderedCollection summary; with it, one
// OrderedCollectionPage of Create activities, newest first. Only public
// entries appear here regardless of who asks.
func HandleOutbox(c *gin.Context, conf *util.AppConfig) {
	username := c.Param("username")

	err, acc := db.GetDB().ReadAccByUsername(username)
	if err != nil || acc == nil || !acc.FederationEnabled {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	c.Header("Content-Type", "application/activity+json; charset=utf-8")

	outboxURL := activitypub.LocalActorURI(conf, acc.Username) + "/outbox"

	if c.Query("page") == "" {
		err, total := db.GetDB().CountPublicEntriesByUsername(acc.Username)
		if err != nil {
			log.Printf("Outbox: Failed to count entries of %s: %v", acc.Username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal Server Error"})
			return
		}

		c.JSON(http.StatusOK, map[string]interface{}{
			"@context":   activitypub.ActivityStreamsContext,
			"id":         outboxURL,
			"type":       "OrderedCollection",
			"totalItems": total,
			"first":      outboxURL + "?page=1",
		})
		return
	}

	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}

	offset := (page - 1) * outboxPageSize
	dbErr, entries := db.GetDB().ReadPublicEntriesByUsername(acc.Username, outboxPageSize+1, offset)
	if dbErr != nil {
		log.Printf("Outbox: Failed to read entries of %s: %v", acc.Username, dbErr)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal Server Error"})
		return
	}

	hasMore := false
	items := []interface{}{}
	if entries != nil {
		pageEntries := *entries
		if len(pageEntries) > outboxPageSize {
			hasMore = true
			pageEntries = pageEntries[:outboxPageSize]
		}
		items = makeCreateActivities(pageEntries, acc, conf)
	}

	collectionPage := map[string]interface{}{
		"@context":     activitypub.ActivityStreamsContext,
		"id":           fmt.Sprintf("%s?page=%d", outboxURL, page),
		"type":         "OrderedCollectionPage",
		"partOf":       outboxURL,
		"orderedItems": items,
	}
	if hasMore {
		collectionPage["next"] = fmt.Sprintf("%s?page=%d", outboxURL, page+1)
	}
	if page > 1 {
		collectionPage["prev"] = fmt.Sprintf("%s?page=%d", outboxURL, page-1)
	}

	c.JSON(http.StatusOK, collectionPage)
}

func makeCreateActivities(entries []domain.Entry, acc *domain.Account, conf *util.AppConfig) []interface{} {
	activities := make([]interface{}, 0, len(entries))
	for i := range entries {
		create := activitypub.BuildCreate(&entries[i], acc, conf)
		delete(create, "@context")
		activities = append(activities, create)
	}
	return activities
}
