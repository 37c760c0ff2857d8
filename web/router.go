package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/deemkeen/inkwell/activitypub"
	"github.com/deemkeen/inkwell/util"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Router wires every HTTP surface: web pages, RSS, the management API
// and, when federation is switched on, the ActivityPub endpoints.
func Router(conf *util.AppConfig) error {
	log.Printf("Starting HTTP server on %s:%d", conf.Conf.Host, conf.Conf.HttpPort)
	g := NewRouter(conf)
	return g.Run(fmt.Sprintf(":%d", conf.Conf.HttpPort))
}

// NewRouter builds the gin engine without starting it, so tests can
// drive it through httptest.
func NewRouter(conf *util.AppConfig) *gin.Engine {
	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	g.GET("/u/:username", func(c *gin.Context) {
		HandleProfile(c, conf)
	})

	// RSS
	g.GET("/feed", func(c *gin.Context) {
		c.Header("Content-Type", "application/xml; charset=utf-8")

		username := c.Query("username")
		rss, err := GetRSS(conf, username)
		if err != nil {
			c.Render(404, render.String{Format: ""})
		} else {
			c.Render(200, render.String{Format: rss})
		}
	})

	g.GET("/feed/:id", func(c *gin.Context) {
		c.Header("Content-Type", "application/xml; charset=utf-8")
		entryId, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.Render(404, render.String{Format: ""})
			return
		}

		rssItem, err := GetRSSItem(conf, entryId)
		if err != nil {
			c.Render(404, render.String{Format: ""})
		} else {
			c.Render(200, render.String{Format: rssItem})
		}
	})

	// Management API, bearer token auth
	api := g.Group("/api", AuthRequired())
	{
		api.GET("/profile", func(c *gin.Context) { HandleGetProfile(c, conf) })
		api.PUT("/profile", func(c *gin.Context) { HandleUpdateProfile(c, conf) })
		api.GET("/entries", func(c *gin.Context) { HandleListEntries(c, conf) })
		api.POST("/entries", func(c *gin.Context) { HandleCreateEntry(c, conf) })
		api.PUT("/entries/:id", func(c *gin.Context) { HandleUpdateEntry(c, conf) })
		api.DELETE("/entries/:id", func(c *gin.Context) { HandleDeleteEntry(c, conf) })
		api.GET("/followers", func(c *gin.Context) { HandleListFollowers(c, conf) })
		api.POST("/followers/accept", func(c *gin.Context) { HandleAcceptFollower(c, conf) })
		api.POST("/followers/reject", func(c *gin.Context) { HandleRejectFollower(c, conf) })
		api.GET("/following", func(c *gin.Context) { HandleListFollowing(c, conf) })
		api.POST("/follow", func(c *gin.Context) { HandleFollow(c, conf) })
		api.POST("/unfollow", func(c *gin.Context) { HandleUnfollow(c, conf) })
		api.GET("/feed", func(c *gin.Context) { HandleFeed(c, conf) })
		api.GET("/lookup", func(c *gin.Context) { HandleLookup(c, conf) })
	}

	if conf.Conf.WithAp {
		// Stricter rate limit for federation endpoints: 5 req/sec per IP
		apLimiter := NewRateLimiter(rate.Limit(5), 10)

		// Max 1MB request body size for activities
		maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024)

		g.GET("/.well-known/webfinger", func(c *gin.Context) {
			HandleWebfinger(c, conf)
		})

		g.GET("/users/:username", func(c *gin.Context) {
			HandleActor(c, conf)
		})

		g.GET("/users/:username/outbox", func(c *gin.Context) {
			HandleOutbox(c, conf)
		})

		g.GET("/users/:username/followers", func(c *gin.Context) {
			HandleFollowersCollection(c, conf)
		})

		g.GET("/users/:username/following", func(c *gin.Context) {
			HandleFollowingCollection(c, conf)
		})

		g.GET("/entries/:id", func(c *gin.Context) {
			HandleEntryObject(c, conf)
		})

		g.POST("/users/:username/inbox", RateLimitMiddleware(apLimiter), maxBodySize, func(c *gin.Context) {
			username := c.Param("username")
			log.Printf("POST /users/%s/inbox", username)
			activitypub.HandleInbox(c.Writer, c.Request, username, conf)
		})

		g.POST("/inbox", RateLimitMiddleware(apLimiter), maxBodySize, func(c *gin.Context) {
			handleSharedInbox(c, conf)
		})
	}

	return g
}

// handleSharedInbox routes an activity posted to the shared inbox to
// the per-user handler. The target is derived from the addressing
// fields; activities with no resolvable local target are accepted and
// dropped, never bounced.
func handleSharedInbox(c *gin.Context, conf *util.AppConfig) {
	body, err := c.GetRawData()
	if err != nil {
		log.Printf("Shared inbox: Failed to read body: %v", err)
		c.Status(400)
		return
	}

	var activity map[string]interface{}
	if err := json.Unmarshal(body, &activity); err != nil {
		log.Printf("Shared inbox: Failed to parse activity: %v", err)
		c.Status(400)
		return
	}

	targetUsername := sharedInboxTarget(activity, conf)
	if targetUsername == "" {
		log.Printf("Shared inbox: No local target for activity type %v", activity["type"])
		c.Status(202)
		return
	}

	log.Printf("Shared inbox: Routing to user %s", targetUsername)
	req := c.Request.Clone(c.Request.Context())
	req.Body = io.NopCloser(bytes.NewReader(body))
	activitypub.HandleInbox(c.Writer, req, targetUsername, conf)
}

// sharedInboxTarget scans to, cc and object for a local actor URI.
func sharedInboxTarget(activity map[string]interface{}, conf *util.AppConfig) string {
	// Followers collection URIs resolve to their owner too, since the
	// username is cut at the first path segment after /users/.
	scan := func(value interface{}) string {
		switch v := value.(type) {
		case string:
			return activitypub.LocalUsernameFromActor(v, conf)
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					if username := activitypub.LocalUsernameFromActor(s, conf); username != "" {
						return username
					}
				}
			}
		}
		return ""
	}

	if username := scan(activity["to"]); username != "" {
		return username
	}
	if username := scan(activity["cc"]); username != "" {
		return username
	}
	// Follow and Undo carry the target as the object.
	if username := scan(activity["object"]); username != "" {
		return username
	}
	if obj, ok := activity["object"].(map[string]interface{}); ok {
		if username := scan(obj["object"]); username != "" {
			return username
		}
	}
	return ""
}
