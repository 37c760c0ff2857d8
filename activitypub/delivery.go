package activitypub

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/deemkeen/inkwell/db"
	"github.com/deemkeen/inkwell/domain"
	"github.com/deemkeen/inkwell/util"
	"golang.org/x/sync/errgroup"
)

const deliveryTimeout = 10 * time.Second

// maxConcurrentDeliveries caps fan-out parallelism per activity.
const maxConcurrentDeliveries = 8

var deliveryClient = &http.Client{Timeout: deliveryTimeout}

// Deliver signs and POSTs an activity to a single remote inbox. It
// reports success or failure and never propagates an error to the
// caller; delivery is strictly best-effort, at-most-once.
func Deliver(account *domain.Account, inboxURI string, activity map[string]interface{}, conf *util.AppConfig) bool {
	activityJSON, err := json.Marshal(activity)
	if err != nil {
		log.Printf("Delivery: Failed to marshal activity for %s: %v", inboxURI, err)
		return false
	}

	hash := sha256.Sum256(activityJSON)
	digest := "SHA-256=" + base64.StdEncoding.EncodeToString(hash[:])

	req, err := http.NewRequest("POST", inboxURI, bytes.NewReader(activityJSON))
	if err != nil {
		log.Printf("Delivery: Failed to create request for %s: %v", inboxURI, err)
		return false
	}

	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "inkwell/1.0 ActivityPub")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("Digest", digest)

	privateKey, err := ParsePrivateKey(account.WebPrivateKey)
	if err != nil {
		log.Printf("Delivery: Failed to parse private key for %s: %v", account.Username, err)
		return false
	}

	keyID := fmt.Sprintf("%s#main-key", LocalActorURI(conf, account.Username))
	if err := SignRequest(req, privateKey, keyID); err != nil {
		log.Printf("Delivery: Failed to sign request for %s: %v", inboxURI, err)
		return false
	}

	resp, err := deliveryClient.Do(req)
	if err != nil {
		log.Printf("Delivery: Request to %s failed: %v", inboxURI, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("Delivery: %s returned status %d", inboxURI, resp.StatusCode)
		return false
	}

	return true
}

// DeliverToFollowers fans an activity out to every accepted follower's
// inbox concurrently and returns the number of successful deliveries.
// One follower's failure never cancels delivery to the others, and
// there is no retry queue; a failed delivery is simply lost.
func DeliverToFollowers(account *domain.Account, activity map[string]interface{}, conf *util.AppConfig) int {
	err, followers := db.GetDB().ReadAcceptedFollowersByUserId(account.Id)
	if err != nil {
		log.Printf("Delivery: Failed to read followers of %s: %v", account.Username, err)
		return 0
	}

	if followers == nil || len(*followers) == 0 {
		return 0
	}

	// Prefer the shared inbox and dedupe, so one activity reaches a
	// multi-follower peer exactly once.
	inboxes := make(map[string]bool)
	for _, follower := range *followers {
		inbox := follower.InboxURI
		if follower.SharedInboxURI != "" {
			inbox = follower.SharedInboxURI
		}
		inboxes[inbox] = true
	}

	var delivered atomic.Int64
	var g errgroup.Group
	g.SetLimit(maxConcurrentDeliveries)

	for inbox := range inboxes {
		inbox := inbox
		g.Go(func() error {
			if Deliver(account, inbox, activity, conf) {
				delivered.Add(1)
			}
			return nil
		})
	}

	// Deliver never returns an error; Wait is only a completion barrier.
	g.Wait()

	count := int(delivered.Load())
	log.Printf("Delivery: Delivered to %d/%d inboxes for %s", count, len(inboxes), account.Username)
	return count
}
