package activitypub

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// PeerInstanceRel is the link relation a WebFinger response must carry
// for us to treat the remote server as a peer instance. Servers that do
// not advertise it are refused, whatever else they speak.
const PeerInstanceRel = "https://inkwell.sh/ns/instance"

const fetchTimeout = 5 * time.Second

// fetchClient bounds every outbound discovery/actor/outbox fetch so a
// single unresponsive peer cannot stall a request.
var fetchClient = &http.Client{Timeout: fetchTimeout}

type WebFingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href,omitempty"`
}

type WebFingerResponse struct {
	Subject string          `json:"subject"`
	Links   []WebFingerLink `json:"links"`
}

// SelfLink returns the actor document URL from the JRD, or "".
func (w *WebFingerResponse) SelfLink() string {
	for _, link := range w.Links {
		if link.Rel == "self" && link.Type == "application/activity+json" {
			return link.Href
		}
	}
	return ""
}

// HasPeerLink reports whether the JRD self-identifies a peer instance.
func (w *WebFingerResponse) HasPeerLink() bool {
	for _, link := range w.Links {
		if link.Rel == PeerInstanceRel {
			return true
		}
	}
	return false
}

// ResolveWebFinger fetches the remote JRD for user@domain.
func ResolveWebFinger(username string, domain string) (*WebFingerResponse, error) {
	resource := fmt.Sprintf("acct:%s@%s", username, domain)
	wfURL := fmt.Sprintf("https://%s/.well-known/webfinger?resource=%s", domain, url.QueryEscape(resource))

	req, err := http.NewRequest("GET", wfURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/jrd+json")
	req.Header.Set("User-Agent", "inkwell/1.0 ActivityPub")

	resp, err := fetchClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webfinger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("webfinger lookup failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var wf WebFingerResponse
	if err := json.Unmarshal(body, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse webfinger JSON: %w", err)
	}

	return &wf, nil
}

// ResolveActorURL maps user@domain to an actor document URL, refusing
// servers that do not advertise the peer instance link.
func ResolveActorURL(username string, domain string) (string, error) {
	wf, err := ResolveWebFinger(username, domain)
	if err != nil {
		return "", err
	}

	if !wf.HasPeerLink() {
		return "", fmt.Errorf("%s is not a peer instance", domain)
	}

	self := wf.SelfLink()
	if self == "" {
		return "", fmt.Errorf("webfinger response for %s@%s has no self link", username, domain)
	}

	return self, nil
}
