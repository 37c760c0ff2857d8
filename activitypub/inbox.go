package activitypub

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/deemkeen/inkwell/db"
	"github.com/deemkeen/inkwell/util"
)

// Activity is the minimal wire shape every inbound activity must have.
// The envelope is used for validation only; dispatch works on the raw
// map so that unknown extra fields survive.
type Activity struct {
	Context interface{} `json:"@context"`
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Actor   string      `json:"actor"`
	Object  interface{} `json:"object"`
	Target  interface{} `json:"target,omitempty"`
	To      interface{} `json:"to,omitempty"`
	Cc      interface{} `json:"cc,omitempty"`
}

// HandleInbox processes an inbound activity for a local account.
// Order matters: shape validation (400), then the signature gate (401),
// and only then any handler with side effects. Once both gates pass the
// response is 202 whatever the handler outcome; processing is
// accept-and-handle semantics, not request/reply.
func HandleInbox(w http.ResponseWriter, r *http.Request, username string, conf *util.AppConfig) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Inbox: Failed to read body: %v", err)
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var envelope Activity
	if err := json.Unmarshal(body, &envelope); err != nil {
		log.Printf("Inbox: Failed to parse activity: %v", err)
		http.Error(w, "Invalid activity", http.StatusBadRequest)
		return
	}

	activityType, actorURI := envelope.Type, envelope.Actor
	if activityType == "" || actorURI == "" {
		log.Printf("Inbox: Activity missing type or actor")
		http.Error(w, "Invalid activity", http.StatusBadRequest)
		return
	}

	var activity map[string]interface{}
	if err := json.Unmarshal(body, &activity); err != nil {
		http.Error(w, "Invalid activity", http.StatusBadRequest)
		return
	}

	// Disabled and non-existent accounts are indistinguishable.
	err, account := db.GetDB().ReadAccByUsername(username)
	if err != nil || account == nil || !account.FederationEnabled {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	remoteActor, err := FetchActor(actorURI)
	if err != nil {
		log.Printf("Inbox: Failed to fetch actor %s: %v", actorURI, err)
		http.Error(w, "Failed to verify actor", http.StatusUnauthorized)
		return
	}

	signedActor, err := VerifyRequest(r, remoteActor.PublicKey.PublicKeyPem)
	if err != nil {
		log.Printf("Inbox: Signature verification failed: %v", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}
	if signedActor != actorURI && signedActor != remoteActor.PublicKey.Owner {
		log.Printf("Inbox: Signature key %s does not belong to claimed actor %s", signedActor, actorURI)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	log.Printf("Inbox: Received %s from %s for %s", activityType, actorURI, username)

	// Every branch is explicit; anything unhandled logs and no-ops so
	// nothing is dropped silently.
	switch activityType {
	case "Follow":
		if err := ReceiveFollow(account, activity, conf); err != nil {
			log.Printf("Inbox: Failed to handle Follow: %v", err)
		}
	case "Undo":
		if isFollowObject(activity["object"]) {
			if err := ReceiveUndoFollow(account, actorURI); err != nil {
				log.Printf("Inbox: Failed to handle Undo: %v", err)
			}
		} else {
			log.Printf("Inbox: Ignoring Undo of non-Follow object from %s", actorURI)
		}
	case "Accept":
		if err := ReceiveAccept(activity, conf); err != nil {
			log.Printf("Inbox: Failed to handle Accept: %v", err)
		}
	case "Reject":
		if err := ReceiveReject(activity, conf); err != nil {
			log.Printf("Inbox: Failed to handle Reject: %v", err)
		}
	case "Create", "Update", "Delete":
		// Remote content is fetched lazily by the feed aggregator,
		// never cached from pushed activities.
		log.Printf("Inbox: Ignoring %s from %s", activityType, actorURI)
	default:
		log.Printf("Inbox: Unhandled activity type %s from %s", activityType, actorURI)
	}

	w.WriteHeader(http.StatusAccepted)
}

func isFollowObject(object interface{}) bool {
	obj, ok := object.(map[string]interface{})
	if !ok {
		return false
	}
	objType, _ := obj["type"].(string)
	return objType == "Follow"
}
