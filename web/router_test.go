package web

import (
	"testing"

	"github.com/deemkeen/inkwell/util"
)

func testConf() *util.AppConfig {
	conf := &util.AppConfig{}
	conf.Conf.SslDomain = "local.example"
	conf.Conf.WithAp = true
	return conf
}

func TestSharedInboxTargetFromTo(t *testing.T) {
	conf := testConf()

	activity := map[string]interface{}{
		"type":  "Create",
		"actor": "https://remote.example/users/bob",
		"to":    []interface{}{"https://local.example/users/alice"},
	}

	if got := sharedInboxTarget(activity, conf); got != "alice" {
		t.Errorf("Expected alice, got %q", got)
	}
}

func TestSharedInboxTargetFromCcFollowers(t *testing.T) {
	conf := testConf()

	activity := map[string]interface{}{
		"type": "Create",
		"to":   []interface{}{"https://www.w3.org/ns/activitystreams#Public"},
		"cc":   []interface{}{"https://local.example/users/alice/followers"},
	}

	if got := sharedInboxTarget(activity, conf); got != "alice" {
		t.Errorf("Followers collection should route to its owner, got %q", got)
	}
}

func TestSharedInboxTargetFromFollowObject(t *testing.T) {
	conf := testConf()

	activity := map[string]interface{}{
		"type":   "Follow",
		"actor":  "https://remote.example/users/bob",
		"object": "https://local.example/users/alice",
	}

	if got := sharedInboxTarget(activity, conf); got != "alice" {
		t.Errorf("Follow object should route to the target, got %q", got)
	}
}

func TestSharedInboxTargetFromNestedUndo(t *testing.T) {
	conf := testConf()

	activity := map[string]interface{}{
		"type":  "Undo",
		"actor": "https://remote.example/users/bob",
		"object": map[string]interface{}{
			"type":   "Follow",
			"actor":  "https://remote.example/users/bob",
			"object": "https://local.example/users/alice",
		},
	}

	if got := sharedInboxTarget(activity, conf); got != "alice" {
		t.Errorf("Nested Undo object should route to the target, got %q", got)
	}
}

func TestSharedInboxTargetNoLocalTarget(t *testing.T) {
	conf := testConf()

	activity := map[string]interface{}{
		"type":   "Create",
		"actor":  "https://remote.example/users/bob",
		"to":     []interface{}{"https://other.example/users/carol"},
		"object": map[string]interface{}{"type": "Note"},
	}

	if got := sharedInboxTarget(activity, conf); got != "" {
		t.Errorf("Foreign addressing should yield no target, got %q", got)
	}
}
