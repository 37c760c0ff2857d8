package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/deemkeen/inkwell/activitypub"
	"github.com/deemkeen/inkwell/db"
	"github.com/deemkeen/inkwell/util"
	"github.com/gin-gonic/gin"
)

// WebFingerResponse is the JRD served for local accounts. Besides the
// self link it always carries the peer instance link that other
// deployments require before they federate with us.
type WebFingerResponse struct {
	Subject string                      `json:"subject"`
	Links   []activitypub.WebFingerLink `json:"links"`
}

// HandleWebfinger answers inbound discovery requests.
// Malformed resource: 400. Foreign domain, unknown or disabled user: 404.
func HandleWebfinger(c *gin.Context, conf *util.AppConfig) {
	resource := c.Query("resource")
	if resource == "" || !strings.HasPrefix(resource, "acct:") {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed resource"})
		return
	}

	acct := strings.TrimPrefix(resource, "acct:")
	parts := strings.SplitN(acct, "@", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed resource"})
		return
	}

	username, resourceDomain := parts[0], parts[1]
	if resourceDomain != conf.Conf.SslDomain {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	err, acc := db.GetDB().ReadAccByUsername(username)
	if err != nil || acc == nil || !acc.FederationEnabled {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	actorURI := activitypub.LocalActorURI(conf, acc.Username)
	resp := WebFingerResponse{
		Subject: fmt.Sprintf("acct:%s@%s", acc.Username, conf.Conf.SslDomain),
		Links: []activitypub.WebFingerLink{
			{
				Rel:  "self",
				Type: "application/activity+json",
				Href: actorURI,
			},
			{
				Rel:  activitypub.PeerInstanceRel,
				Href: conf.ServerOrigin(),
			},
		},
	}

	c.Header("Content-Type", "application/jrd+json; charset=utf-8")
	c.JSON(http.StatusOK, resp)
}
