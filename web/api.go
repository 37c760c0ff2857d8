package web

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/deemkeen/inkwell/activitypub"
	"github.com/deemkeen/inkwell/db"
	"github.com/deemkeen/inkwell/domain"
	"github.com/deemkeen/inkwell/util"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	feedDefaultLimit = 20
	feedMaxLimit     = 50
)

type profileResponse struct {
	Username          string `json:"username"`
	DisplayName       string `json:"displayName"`
	Summary           string `json:"bio"`
	Visibility        string `json:"visibility"`
	FederationEnabled bool   `json:"federationEnabled"`
	ActorURI          string `json:"actorUrl"`
}

func makeProfileResponse(acc *domain.Account, conf *util.AppConfig) profileResponse {
	return profileResponse{
		Username:          acc.Username,
		DisplayName:       acc.DisplayName,
		Summary:           acc.Summary,
		Visibility:        acc.Visibility,
		FederationEnabled: acc.FederationEnabled,
		ActorURI:          activitypub.LocalActorURI(conf, acc.Username),
	}
}

// HandleGetProfile returns the authenticated account's own profile.
func HandleGetProfile(c *gin.Context, conf *util.AppConfig) {
	c.JSON(http.StatusOK, makeProfileResponse(currentAccount(c), conf))
}

type profileUpdateRequest struct {
	DisplayName       *string `json:"displayName"`
	Summary           *string `json:"bio"`
	Visibility        *string `json:"visibility"`
	FederationEnabled *bool   `json:"federationEnabled"`
}

// HandleUpdateProfile applies a partial profile update. Enabling
// federation on an account that never had keys mints its RSA pair on
// the spot; keys are never rotated afterwards.
func HandleUpdateProfile(c *gin.Context, conf *util.AppConfig) {
	acc := currentAccount(c)

	var req profileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request body"})
		return
	}

	if req.DisplayName != nil {
		acc.DisplayName = util.NormalizeInput(*req.DisplayName)
	}
	if req.Summary != nil {
		acc.Summary = util.NormalizeInput(*req.Summary)
	}
	if req.Visibility != nil {
		switch *req.Visibility {
		case domain.VisibilityPublic, domain.VisibilityRestricted, domain.VisibilityPrivate:
			acc.Visibility = *req.Visibility
		default:
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid visibility"})
			return
		}
	}
	if req.FederationEnabled != nil {
		acc.FederationEnabled = *req.FederationEnabled
	}

	if acc.FederationEnabled && acc.WebPrivateKey == "" {
		keys := util.GeneratePemKeypair()
		if err := db.GetDB().UpdateAccKeys(acc.Id, keys.Public, keys.Private); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal Server Error"})
			return
		}
		acc.WebPublicKey = keys.Public
		acc.WebPrivateKey = keys.Private
	}

	if err := db.GetDB().UpdateAccProfile(acc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal Server Error"})
		return
	}

	c.JSON(http.StatusOK, makeProfileResponse(acc, conf))
}

type entryRequest struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Visibility string `json:"visibility"`
}

func validEntryVisibility(v string) bool {
	switch v {
	case domain.EntryVisibilityPublic, domain.EntryVisibilityFollowers, domain.EntryVisibilityPrivate:
		return true
	}
	return false
}

type entryResponse struct {
	Id          string     `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Visibility  string     `json:"visibility"`
	ActivityURI string     `json:"activityUrl,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

func makeEntryResponse(entry *domain.Entry) entryResponse {
	return entryResponse{
		Id:          entry.Id.String(),
		Title:       entry.Title,
		Content:     entry.Content,
		Visibility:  entry.Visibility,
		ActivityURI: entry.ActivityURI,
		CreatedAt:   entry.CreatedAt,
		UpdatedAt:   entry.UpdatedAt,
	}
}

// HandleCreateEntry publishes a new entry. Delivery to followers is
// fired off in the background; the entry is stored either way.
func HandleCreateEntry(c *gin.Context, conf *util.AppConfig) {
	acc := currentAccount(c)

	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request body"})
		return
	}
	if req.Visibility == "" {
		req.Visibility = domain.EntryVisibilityPublic
	}
	if !validEntryVisibility(req.Visibility) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid visibility"})
		return
	}

	entry := &domain.Entry{
		Id:         uuid.New(),
		UserId:     acc.Id,
		CreatedBy:  acc.Username,
		Title:      util.NormalizeTitle(req.Title),
		Content:    req.Content,
		Visibility: req.Visibility,
		CreatedAt:  time.Now(),
	}
	if acc.FederationEnabled && entry.Visibility != domain.EntryVisibilityPrivate {
		entry.ActivityURI = activitypub.NewActivityURI(conf)
	}

	if err := db.GetDB().CreateEntry(entry); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal Server Error"})
		return
	}

	if entry.ActivityURI != "" {
		go func(entry domain.Entry, acc domain.Account) {
			create := activitypub.BuildCreate(&entry, &acc, conf)
			delivered := activitypub.DeliverToFollowers(&acc, create, conf)
			log.Printf("Api: Delivered entry %s to %d inboxes", entry.Id, delivered)
		}(*entry, *acc)
	}

	c.JSON(http.StatusCreated, makeEntryResponse(entry))
}

// HandleUpdateEntry edits an entry in place and announces the edit to
// followers when it federates.
func HandleUpdateEntry(c *gin.Context, conf *util.AppConfig) {
	acc := currentAccount(c)

	entryId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	dbErr, entry := db.GetDB().ReadEntryById(entryId)
	if dbErr != nil || entry == nil || entry.UserId != acc.Id {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request body"})
		return
	}
	if req.Visibility != "" && !validEntryVisibility(req.Visibility) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid visibility"})
		return
	}

	entry.Title = util.NormalizeTitle(req.Title)
	entry.Content = req.Content
	if req.Visibility != "" {
		entry.Visibility = req.Visibility
	}
	now := time.Now()
	entry.UpdatedAt = &now

	if err := db.GetDB().UpdateEntry(entry); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal Server Error"})
		return
	}

	if acc.FederationEnabled && entry.Visibility != domain.EntryVisibilityPrivate {
		go func(entry domain.Entry, acc domain.Account) {
			update := activitypub.BuildUpdate(&entry, &acc, conf)
			activitypub.DeliverToFollowers(&acc, update, conf)
		}(*entry, *acc)
	}

	c.JSON(http.StatusOK, makeEntryResponse(entry))
}

// HandleDeleteEntry removes an entry and tells followers to drop it.
func HandleDeleteEntry(c *gin.Context, conf *util.AppConfig) {
	acc := currentAccount(c)

	entryId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	dbErr, entry := db.GetDB().ReadEntryById(entryId)
	if dbErr != nil || entry == nil || entry.UserId != acc.Id {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	if err := db.GetDB().DeleteEntry(entry.Id, acc.Id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal Server Error"})
		return
	}

	if acc.FederationEnabled && entry.Visibility != domain.EntryVisibilityPrivate {
		go func(entry domain.Entry, acc domain.Account) {
			tombstone := activitypub.BuildDelete(&entry, &acc, conf)
			activitypub.DeliverToFollowers(&acc, tombstone, conf)
		}(*entry, *acc)
	}

	c.Status(http.StatusNoContent)
}

// HandleListEntries returns the authenticated account's own entries,
// all visibilities included.
func HandleListEntries(c *gin.Context, conf *util.AppConfig) {
	acc := currentAccount(c)

	err, entries := db.GetDB().ReadEntriesByUserId(acc.Id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal Server Error"})
		return
	}

	resp := []entryResponse{}
	if entries != nil {
		for i := range *entries {
			resp = append(resp, makeEntryResponse(&(*entries)[i]))
		}
	}
	c.JSON(http.StatusOK, gin.H{"entries": resp})
}

type followerView struct {
	ActorURI  string    `json:"actorUrl"`
	Accepted  bool      `json:"accepted"`
	CreatedAt time.Time `json:"createdAt"`
}

// HandleListFollowers lists everyone following the account, pending
// requests included so restricted profiles can see what awaits review.
func HandleListFollowers(c *gin.Context, conf *util.AppConfig) {
	acc := currentAccount(c)

	err, followers := db.GetDB().ReadFollowersByUserId(acc.Id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal Server Error"})
		return
	}

	resp := []followerView{}
	if followers != nil {
		for _, f := range *followers {
			resp = append(resp, followerView{
				ActorURI:  f.ActorURI,
				Accepted:  f.Accepted,
				CreatedAt: f.CreatedAt,
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{"followers": resp})
}

type followingView struct {
	ActorURI  string    `json:"actorUrl"`
	Pending   bool      `json:"pending"`
	CreatedAt time.Time `json:"createdAt"`
}

// HandleListFollowing lists outbound follows, pending ones included.
func HandleListFollowing(c *gin.Context, conf *util.AppConfig) {
	acc := currentAccount(c)

	err, following := db.GetDB().ReadFollowingByUserId(acc.Id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal Server Error"})
		return
	}

	resp := []followingView{}
	if following != nil {
		for _, f := range *following {
			resp = append(resp, followingView{
				ActorURI:  f.TargetActorURI,
				Pending:   f.Pending,
				CreatedAt: f.CreatedAt,
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{"following": resp})
}

type handleRequest struct {
	Handle string `json:"handle"`
}

// HandleFollow follows a handle on behalf of the authenticated account.
func HandleFollow(c *gin.Context, conf *util.AppConfig) {
	acc := currentAccount(c)

	var req handleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Handle == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request body"})
		return
	}

	info, err := activitypub.IssueFollow(acc, req.Handle, conf)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, info)
}

// HandleUnfollow undoes a follow issued earlier.
func HandleUnfollow(c *gin.Context, conf *util.AppConfig) {
	acc := currentAccount(c)

	var req handleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Handle == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request body"})
		return
	}

	if err := activitypub.IssueUnfollow(acc, req.Handle, conf); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// HandleFeed serves the merged timeline with cursor pagination.
// limit is clamped to 1..50 and defaults to 20.
func HandleFeed(c *gin.Context, conf *util.AppConfig) {
	acc := currentAccount(c)

	limit := feedDefaultLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil {
			limit = v
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > feedMaxLimit {
		limit = feedMaxLimit
	}

	page, err := activitypub.BuildFeed(acc, c.Query("cursor"), limit, conf)
	if err != nil {
		log.Printf("Api: Feed build failed for %s: %v", acc.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal Server Error"})
		return
	}

	c.JSON(http.StatusOK, page)
}

// HandleLookup resolves a handle without changing any state.
func HandleLookup(c *gin.Context, conf *util.AppConfig) {
	handle := c.Query("handle")
	if handle == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Missing handle"})
		return
	}

	info, err := activitypub.LookupHandle(handle, conf)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, info)
}

type followerDecisionRequest struct {
	ActorURI string `json:"actorUrl"`
}

// localRequester resolves a follower's actor URI to the local account
// that issued the follow, or nil for remote requesters.
func localRequester(actorURI string, conf *util.AppConfig) *domain.Account {
	username := activitypub.LocalUsernameFromActor(actorURI, conf)
	if username == "" {
		return nil
	}
	err, requester := db.GetDB().ReadAccByUsername(username)
	if err != nil || requester == nil {
		return nil
	}
	return requester
}

// HandleAcceptFollower approves a pending follow request. A local
// requester's mirrored Following row is flipped directly; a remote one
// gets the signed Accept delivered to its inbox.
func HandleAcceptFollower(c *gin.Context, conf *util.AppConfig) {
	acc := currentAccount(c)

	var req followerDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ActorURI == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request body"})
		return
	}

	err, follower := db.GetDB().ReadFollowerByUserAndActor(acc.Id, req.ActorURI)
	if err != nil || follower == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	if err := db.GetDB().AcceptFollower(acc.Id, req.ActorURI); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal Server Error"})
		return
	}

	if requester := localRequester(follower.ActorURI, conf); requester != nil {
		targetURI := activitypub.LocalActorURI(conf, acc.Username)
		if err := db.GetDB().AcceptFollowing(requester.Id, targetURI); err != nil {
			log.Printf("Api: Failed to flip local follow of %s: %v", requester.Username, err)
		}
	} else {
		accept := activitypub.BuildAccept(conf, acc, follower.FollowURI, follower.ActorURI)
		if !activitypub.Deliver(acc, follower.InboxURI, accept, conf) {
			log.Printf("Api: Failed to deliver Accept to %s", follower.InboxURI)
		}
	}

	c.Status(http.StatusNoContent)
}

// HandleRejectFollower refuses a pending follow request and deletes the
// row. A local requester's Following row is removed directly; a remote
// one gets the signed Reject.
func HandleRejectFollower(c *gin.Context, conf *util.AppConfig) {
	acc := currentAccount(c)

	var req followerDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ActorURI == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request body"})
		return
	}

	err, follower := db.GetDB().ReadFollowerByUserAndActor(acc.Id, req.ActorURI)
	if err != nil || follower == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	if err := db.GetDB().DeleteFollowerByUserAndActor(acc.Id, req.ActorURI); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal Server Error"})
		return
	}

	if requester := localRequester(follower.ActorURI, conf); requester != nil {
		targetURI := activitypub.LocalActorURI(conf, acc.Username)
		if err := db.GetDB().DeleteFollowingByUserAndTarget(requester.Id, targetURI); err != nil {
			log.Printf("Api: Failed to remove local follow of %s: %v", requester.Username, err)
		}
	} else {
		reject := activitypub.BuildReject(conf, acc, follower.FollowURI, follower.ActorURI)
		if !activitypub.Deliver(acc, follower.InboxURI, reject, conf) {
			log.Printf("Api: Failed to deliver Reject to %s", follower.InboxURI)
		}
	}

	c.Status(http.StatusNoContent)
}
