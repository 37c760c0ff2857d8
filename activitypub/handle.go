package activitypub

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/deemkeen/inkwell/db"
	"github.com/deemkeen/inkwell/domain"
	"github.com/deemkeen/inkwell/util"
)

// handleRegex accepts "@user@domain", "user@domain", "@user" and "user".
var handleRegex = regexp.MustCompile(`^@?([a-zA-Z0-9_]{1,100})(?:@([a-zA-Z0-9][a-zA-Z0-9.-]*\.[a-zA-Z]{2,}|localhost(?::\d+)?))?$`)

// ParseHandle splits a human-entered handle into username and domain.
// An empty domain means the target is local.
func ParseHandle(raw string) (string, string, error) {
	matches := handleRegex.FindStringSubmatch(strings.TrimSpace(raw))
	if matches == nil {
		return "", "", fmt.Errorf("invalid handle: %q", raw)
	}
	return matches[1], matches[2], nil
}

// LookupHandle resolves a handle to a normalized record. Local targets
// are looked up directly; remote targets go through WebFinger and an
// actor fetch, and are refused when the remote is not a peer instance.
func LookupHandle(raw string, conf *util.AppConfig) (*domain.HandleInfo, error) {
	username, handleDomain, err := ParseHandle(raw)
	if err != nil {
		return nil, err
	}

	if handleDomain == "" || handleDomain == conf.Conf.SslDomain {
		return lookupLocal(username, conf)
	}

	actorURL, err := ResolveActorURL(username, handleDomain)
	if err != nil {
		return nil, err
	}

	actor, err := FetchActor(actorURL)
	if err != nil {
		return nil, err
	}

	actorUsername := actor.PreferredUsername
	if actorUsername == "" {
		actorUsername = extractUsername(actor.ID)
	}

	return &domain.HandleInfo{
		ActorURI:    actor.ID,
		InboxURI:    actor.Inbox,
		Username:    actorUsername,
		DisplayName: actor.Name,
		Summary:     actor.Summary,
		IsLocal:     false,
	}, nil
}

func lookupLocal(username string, conf *util.AppConfig) (*domain.HandleInfo, error) {
	err, acc := db.GetDB().ReadAccByUsername(username)
	if err != nil || acc == nil {
		return nil, fmt.Errorf("unknown user: %s", username)
	}
	// A disabled account must be indistinguishable from a missing one.
	if !acc.FederationEnabled {
		return nil, fmt.Errorf("unknown user: %s", username)
	}

	actorURI := LocalActorURI(conf, acc.Username)
	return &domain.HandleInfo{
		ActorURI:    actorURI,
		InboxURI:    actorURI + "/inbox",
		Username:    acc.Username,
		DisplayName: acc.DisplayName,
		Summary:     acc.Summary,
		IsLocal:     true,
	}, nil
}

// IsLocalActor reports whether an actor URI belongs to this server.
// The canonical local identity is always {origin}/users/{username};
// any other origin is remote.
func IsLocalActor(actorURI string, conf *util.AppConfig) bool {
	return strings.HasPrefix(actorURI, conf.ServerOrigin()+"/users/")
}

// LocalUsernameFromActor returns the username of a local actor URI, or
// "" when the URI is not local.
func LocalUsernameFromActor(actorURI string, conf *util.AppConfig) string {
	prefix := conf.ServerOrigin() + "/users/"
	if !strings.HasPrefix(actorURI, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(actorURI, prefix)
	if idx := strings.Index(rest, "/"); idx >= 0 {
		rest = rest[:idx]
	}
	return rest
}
