package web

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deemkeen/inkwell/activitypub"
	"github.com/deemkeen/inkwell/db"
	"github.com/deemkeen/inkwell/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	dir, err := os.MkdirTemp("", "inkwell-web-test-*")
	if err != nil {
		panic(err)
	}
	os.Setenv("INKWELL_DB", filepath.Join(dir, "test.db"))
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func apiTestAccount(t *testing.T, visibility string) *domain.Account {
	t.Helper()
	acc := &domain.Account{
		Id:                uuid.New(),
		Username:          "user" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12],
		AuthToken:         uuid.New().String(),
		FederationEnabled: true,
		Visibility:        visibility,
		CreatedAt:         time.Now(),
	}
	if err := db.GetDB().CreateAccount(acc); err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}
	return acc
}

// decisionContext builds a gin context for a follower decision handler,
// authenticated as the given account.
func decisionContext(t *testing.T, acc *domain.Account, actorURI string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := fmt.Sprintf(`{"actorUrl":%q}`, actorURI)
	c.Request = httptest.NewRequest("POST", "/api/followers/accept", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(accountContextKey, acc)
	return c, w
}

func TestHandleAcceptFollowerLocalRequester(t *testing.T) {
	conf := testConf()
	owner := apiTestAccount(t, domain.VisibilityRestricted)
	requester := apiTestAccount(t, domain.VisibilityPublic)

	requesterActor := activitypub.LocalActorURI(conf, requester.Username)
	ownerActor := activitypub.LocalActorURI(conf, owner.Username)

	err := db.GetDB().CreateFollowing(&domain.Following{
		Id:             uuid.New(),
		UserId:         requester.Id,
		TargetActorURI: ownerActor,
		Pending:        true,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("Failed to seed following row: %v", err)
	}
	err = db.GetDB().CreateFollower(&domain.Follower{
		Id:        uuid.New(),
		UserId:    owner.Id,
		ActorURI:  requesterActor,
		InboxURI:  requesterActor + "/inbox",
		Accepted:  false,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Failed to seed follower row: %v", err)
	}

	c, w := decisionContext(t, owner, requesterActor)
	HandleAcceptFollower(c, conf)
	c.Writer.WriteHeaderNow()

	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", w.Code, w.Body.String())
	}

	dbErr, follower := db.GetDB().ReadFollowerByUserAndActor(owner.Id, requesterActor)
	if dbErr != nil || follower == nil {
		t.Fatalf("Follower row missing: %v", dbErr)
	}
	if !follower.Accepted {
		t.Error("Approval must flip the follower row")
	}

	dbErr, following := db.GetDB().ReadFollowingByUserAndTarget(requester.Id, ownerActor)
	if dbErr != nil || following == nil {
		t.Fatalf("Following row missing: %v", dbErr)
	}
	if following.Pending {
		t.Error("Approval must flip the local requester's pending follow")
	}
}

func TestHandleRejectFollowerLocalRequester(t *testing.T) {
	conf := testConf()
	owner := apiTestAccount(t, domain.VisibilityRestricted)
	requester := apiTestAccount(t, domain.VisibilityPublic)

	requesterActor := activitypub.LocalActorURI(conf, requester.Username)
	ownerActor := activitypub.LocalActorURI(conf, owner.Username)

	err := db.GetDB().CreateFollowing(&domain.Following{
		Id:             uuid.New(),
		UserId:         requester.Id,
		TargetActorURI: ownerActor,
		Pending:        true,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("Failed to seed following row: %v", err)
	}
	err = db.GetDB().CreateFollower(&domain.Follower{
		Id:        uuid.New(),
		UserId:    owner.Id,
		ActorURI:  requesterActor,
		InboxURI:  requesterActor + "/inbox",
		Accepted:  false,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Failed to seed follower row: %v", err)
	}

	c, w := decisionContext(t, owner, requesterActor)
	HandleRejectFollower(c, conf)
	c.Writer.WriteHeaderNow()

	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", w.Code, w.Body.String())
	}

	dbErr, follower := db.GetDB().ReadFollowerByUserAndActor(owner.Id, requesterActor)
	if dbErr == nil && follower != nil {
		t.Error("Refusal must remove the follower row")
	}

	dbErr, following := db.GetDB().ReadFollowingByUserAndTarget(requester.Id, ownerActor)
	if dbErr == nil && following != nil {
		t.Error("Refusal must remove the local requester's follow")
	}
}

func TestHandleAcceptFollowerUnknownActor(t *testing.T) {
	conf := testConf()
	owner := apiTestAccount(t, domain.VisibilityRestricted)

	c, w := decisionContext(t, owner, "https://remote.example/users/nobody")
	HandleAcceptFollower(c, conf)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown follow request, got %d", w.Code)
	}
}
