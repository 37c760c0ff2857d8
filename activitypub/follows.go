package activitypub

import (
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/inkwell/db"
	"github.com/deemkeen/inkwell/domain"
	"github.com/deemkeen/inkwell/util"
	"github.com/google/uuid"
)

// ReceiveFollow handles an inbound Follow aimed at a local account.
// The insert is idempotent: replaying the same Follow never errors and
// never creates a second row. Public profiles auto-accept and send a
// signed Accept back; anything else stays pending and nothing is sent
// until an explicit approval action.
func ReceiveFollow(account *domain.Account, activity map[string]interface{}, conf *util.AppConfig) error {
	actorURI, _ := activity["actor"].(string)
	followURI, _ := activity["id"].(string)
	if actorURI == "" {
		return fmt.Errorf("follow activity missing actor")
	}

	inboxURI := actorURI + "/inbox"
	sharedInboxURI := ""
	if actor, err := FetchActor(actorURI); err == nil {
		inboxURI = actor.Inbox
		sharedInboxURI = actor.Endpoints.SharedInbox
	} else {
		log.Printf("Follows: Could not fetch actor %s, defaulting inbox: %v", actorURI, err)
	}

	autoAccept := account.Visibility == domain.VisibilityPublic

	follower := &domain.Follower{
		Id:             uuid.New(),
		UserId:         account.Id,
		ActorURI:       actorURI,
		InboxURI:       inboxURI,
		SharedInboxURI: sharedInboxURI,
		Accepted:       autoAccept,
		FollowURI:      followURI,
		CreatedAt:      time.Now(),
	}

	if err := db.GetDB().CreateFollower(follower); err != nil {
		return fmt.Errorf("failed to store follower: %w", err)
	}

	// A replayed Follow is a no-op insert, so the stored row decides
	// whether an Accept goes out. A row still pending from a restricted
	// phase never auto-delivers one, whatever the profile says now.
	err, stored := db.GetDB().ReadFollowerByUserAndActor(account.Id, actorURI)
	if err != nil || stored == nil {
		return fmt.Errorf("failed to read back follower %s: %v", actorURI, err)
	}

	if stored.Accepted {
		followId := stored.FollowURI
		if followId == "" {
			followId = followURI
		}
		accept := BuildAccept(conf, account, followId, actorURI)
		if !Deliver(account, stored.InboxURI, accept, conf) {
			// The follower row stays; the remote can retry its Follow.
			log.Printf("Follows: Failed to deliver Accept to %s", stored.InboxURI)
		}
	}

	return nil
}

// ReceiveUndoFollow removes the follower row matching the sender.
// Matching is by actor URI only; the nested Follow object is not
// checked against the stored follow id.
func ReceiveUndoFollow(account *domain.Account, actorURI string) error {
	if err := db.GetDB().DeleteFollowerByUserAndActor(account.Id, actorURI); err != nil {
		return fmt.Errorf("failed to remove follower: %w", err)
	}
	log.Printf("Follows: Removed follower %s of %s", actorURI, account.Username)
	return nil
}

// ReceiveAccept confirms an outbound Follow. The original Follow's
// actor is extracted from the Accept's object; when it resolves to a
// known local account only that account's pending row is flipped.
// Otherwise any pending follow targeting the accepting actor is flipped
// as a best effort, since inbox deliveries carry no ordering guarantee.
func ReceiveAccept(activity map[string]interface{}, conf *util.AppConfig) error {
	acceptingActor, _ := activity["actor"].(string)
	if acceptingActor == "" {
		return fmt.Errorf("accept activity missing actor")
	}

	if account := localAccountFromFollowObject(activity["object"], conf); account != nil {
		if err := db.GetDB().AcceptFollowing(account.Id, acceptingActor); err != nil {
			return fmt.Errorf("failed to accept follow: %w", err)
		}
		log.Printf("Follows: %s accepted follow from %s", acceptingActor, account.Username)
		return nil
	}

	if err := db.GetDB().AcceptAnyPendingFollowingByTarget(acceptingActor); err != nil {
		return fmt.Errorf("failed to accept follow: %w", err)
	}
	log.Printf("Follows: Accepted pending follow(s) to %s (fallback match)", acceptingActor)
	return nil
}

// ReceiveReject is symmetric to ReceiveAccept but deletes the row
// instead of flipping it.
func ReceiveReject(activity map[string]interface{}, conf *util.AppConfig) error {
	rejectingActor, _ := activity["actor"].(string)
	if rejectingActor == "" {
		return fmt.Errorf("reject activity missing actor")
	}

	if account := localAccountFromFollowObject(activity["object"], conf); account != nil {
		if err := db.GetDB().DeleteFollowingByUserAndTarget(account.Id, rejectingActor); err != nil {
			return fmt.Errorf("failed to remove follow: %w", err)
		}
		log.Printf("Follows: %s rejected follow from %s", rejectingActor, account.Username)
		return nil
	}

	if err := db.GetDB().DeleteAnyPendingFollowingByTarget(rejectingActor); err != nil {
		return fmt.Errorf("failed to remove follow: %w", err)
	}
	log.Printf("Follows: Removed pending follow(s) to %s (fallback match)", rejectingActor)
	return nil
}

// localAccountFromFollowObject digs the original Follow's actor out of
// an Accept/Reject object and resolves it to a local account, or nil.
func localAccountFromFollowObject(object interface{}, conf *util.AppConfig) *domain.Account {
	obj, ok := object.(map[string]interface{})
	if !ok {
		return nil
	}
	followActor, _ := obj["actor"].(string)
	username := LocalUsernameFromActor(followActor, conf)
	if username == "" {
		return nil
	}
	err, account := db.GetDB().ReadAccByUsername(username)
	if err != nil || account == nil {
		return nil
	}
	return account
}

// IssueFollow follows a target on behalf of a local account. Local
// targets never leave the process: a public target is accepted on both
// sides synchronously, anything else waits for the owner's approval.
// Remote targets get a pending row and a signed Follow; a delivery
// failure rolls the row back so the local model never reflects a follow
// the network did not carry.
func IssueFollow(account *domain.Account, handle string, conf *util.AppConfig) (*domain.HandleInfo, error) {
	info, err := LookupHandle(handle, conf)
	if err != nil {
		return nil, err
	}

	if info.IsLocal {
		return issueLocalFollow(account, info, conf)
	}
	return issueRemoteFollow(account, info, conf)
}

func issueLocalFollow(account *domain.Account, info *domain.HandleInfo, conf *util.AppConfig) (*domain.HandleInfo, error) {
	database := db.GetDB()

	err, target := database.ReadAccByUsername(info.Username)
	if err != nil || target == nil {
		return nil, fmt.Errorf("unknown user: %s", info.Username)
	}

	// Only a public target auto-accepts.
	accepted := target.Visibility == domain.VisibilityPublic
	actorURI := LocalActorURI(conf, account.Username)

	following := &domain.Following{
		Id:             uuid.New(),
		UserId:         account.Id,
		TargetActorURI: info.ActorURI,
		Pending:        !accepted,
		CreatedAt:      time.Now(),
	}
	follower := &domain.Follower{
		Id:        uuid.New(),
		UserId:    target.Id,
		ActorURI:  actorURI,
		InboxURI:  actorURI + "/inbox",
		Accepted:  accepted,
		CreatedAt: time.Now(),
	}
	if err := database.CreateLocalFollowPair(following, follower); err != nil {
		return nil, fmt.Errorf("failed to store local follow: %w", err)
	}
	return info, nil
}

func issueRemoteFollow(account *domain.Account, info *domain.HandleInfo, conf *util.AppConfig) (*domain.HandleInfo, error) {
	database := db.GetDB()

	// A row already present, pending or accepted, belongs to an earlier
	// follow. Nothing is sent and nothing may be rolled back.
	err, existing := database.ReadFollowingByUserAndTarget(account.Id, info.ActorURI)
	if err == nil && existing != nil {
		return info, nil
	}

	followURI := NewActivityURI(conf)
	following := &domain.Following{
		Id:             uuid.New(),
		UserId:         account.Id,
		TargetActorURI: info.ActorURI,
		Pending:        true,
		FollowURI:      followURI,
		CreatedAt:      time.Now(),
	}
	if err := database.CreateFollowing(following); err != nil {
		return nil, fmt.Errorf("failed to store follow: %w", err)
	}

	follow := BuildFollow(followURI, LocalActorURI(conf, account.Username), info.ActorURI)
	if !Deliver(account, info.InboxURI, follow, conf) {
		// Remove only the row this call created.
		if err := database.DeleteFollowingByUserAndTarget(account.Id, info.ActorURI); err != nil {
			log.Printf("Follows: Rollback of follow to %s failed: %v", info.ActorURI, err)
		}
		return nil, fmt.Errorf("failed to deliver follow to %s", info.ActorURI)
	}

	return info, nil
}

// IssueUnfollow removes a following relationship. For local targets the
// mirrored follower row goes too; for remote targets a signed
// Undo(Follow) is sent best-effort and a delivery failure never blocks
// the local state change.
func IssueUnfollow(account *domain.Account, handle string, conf *util.AppConfig) error {
	info, err := LookupHandle(handle, conf)
	if err != nil {
		return err
	}

	database := db.GetDB()

	if info.IsLocal {
		err, target := database.ReadAccByUsername(info.Username)
		if err != nil || target == nil {
			return fmt.Errorf("unknown user: %s", info.Username)
		}
		actorURI := LocalActorURI(conf, account.Username)
		if err := database.DeleteLocalFollowPair(account.Id, info.ActorURI, target.Id, actorURI); err != nil {
			return fmt.Errorf("failed to remove local follow: %w", err)
		}
		return nil
	}

	err, following := database.ReadFollowingByUserAndTarget(account.Id, info.ActorURI)
	if err != nil || following == nil {
		return fmt.Errorf("not following %s", handle)
	}

	if err := database.DeleteFollowingByUserAndTarget(account.Id, info.ActorURI); err != nil {
		return fmt.Errorf("failed to remove follow: %w", err)
	}

	undo := BuildUndoFollow(conf, account, following.FollowURI, info.ActorURI)
	if !Deliver(account, info.InboxURI, undo, conf) {
		log.Printf("Follows: Failed to deliver Undo to %s, local state removed anyway", info.ActorURI)
	}

	return nil
}
