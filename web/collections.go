package web

import (
	"net/http"

	"github.com/deemkeen/inkwell/activitypub"
	"github.com/deemkeen/inkwell/db"
	"github.com/deemkeen/inkwell/util"
	"github.com/gin-gonic/gin"
)

// HandleFollowersCollection lists the actor URIs of accepted followers
// as a flat OrderedCollection. Pending follows never show up.
func HandleFollowersCollection(c *gin.Context, conf *util.AppConfig) {
	username := c.Param("username")

	err, acc := db.GetDB().ReadAccByUsername(username)
	if err != nil || acc == nil || !acc.FederationEnabled {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	items := []string{}
	err, followers := db.GetDB().ReadAcceptedFollowersByUserId(acc.Id)
	if err == nil && followers != nil {
		for _, f := range *followers {
			items = append(items, f.ActorURI)
		}
	}

	serveOrderedCollection(c, activitypub.LocalActorURI(conf, acc.Username)+"/followers", items)
}

// HandleFollowingCollection is the outbound counterpart; only accepted
// follows are listed.
func HandleFollowingCollection(c *gin.Context, conf *util.AppConfig) {
	username := c.Param("username")

	err, acc := db.GetDB().ReadAccByUsername(username)
	if err != nil || acc == nil || !acc.FederationEnabled {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	items := []string{}
	err, following := db.GetDB().ReadFollowingByUserId(acc.Id)
	if err == nil && following != nil {
		for _, f := range *following {
			if f.Pending {
				continue
			}
			items = append(items, f.TargetActorURI)
		}
	}

	serveOrderedCollection(c, activitypub.LocalActorURI(conf, acc.Username)+"/following", items)
}

func serveOrderedCollection(c *gin.Context, id string, items []string) {
	c.Header("Content-Type", "application/activity+json; charset=utf-8")
	c.JSON(http.StatusOK, map[string]interface{}{
		"@context":     activitypub.ActivityStreamsContext,
		"id":           id,
		"type":         "OrderedCollection",
		"totalItems":   len(items),
		"orderedItems": items,
	})
}
