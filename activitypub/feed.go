package activitypub

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"sort"
	"time"

	"github.com/deemkeen/inkwell/db"
	"github.com/deemkeen/inkwell/domain"
	"github.com/deemkeen/inkwell/util"
	"github.com/google/uuid"
)

// FeedPage is one cursor-paginated slice of the merged timeline.
type FeedPage struct {
	Items      []domain.FeedItem `json:"items"`
	NextCursor string            `json:"nextCursor,omitempty"`
	HasMore    bool              `json:"hasMore"`
}

// titleRegex re-derives an entry title from the leading h1 our own
// outbox rendering produces.
var titleRegex = regexp.MustCompile(`(?s)^\s*<h1>(.*?)</h1>\s*`)

// BuildFeed assembles the merged timeline for a local user: own posts,
// accepted local follows straight from the database, and accepted
// remote follows fetched live from their outboxes. Remote fetch
// failures skip the peer, never fail the feed.
func BuildFeed(account *domain.Account, cursor string, limit int, conf *util.AppConfig) (*FeedPage, error) {
	database := db.GetDB()

	var items []domain.FeedItem
	seen := map[uuid.UUID]bool{account.Id: true}

	// Own posts, no visibility filter.
	err, own := database.ReadEntriesByUserId(account.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to read own entries: %w", err)
	}
	items = appendLocalEntries(items, own)

	err, following := database.ReadFollowingByUserId(account.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to read following: %w", err)
	}

	if following != nil {
		for _, f := range *following {
			if f.Pending {
				continue
			}

			if username := LocalUsernameFromActor(f.TargetActorURI, conf); username != "" {
				err, target := database.ReadAccByUsername(username)
				if err != nil || target == nil || seen[target.Id] {
					continue
				}
				seen[target.Id] = true
				err, entries := database.ReadTimelineEntriesByUserId(target.Id)
				if err != nil {
					log.Printf("Feed: Failed to read entries of %s: %v", username, err)
					continue
				}
				items = appendLocalEntries(items, entries)
				continue
			}

			remote, err := FetchRemoteOutbox(f.TargetActorURI)
			if err != nil {
				log.Printf("Feed: Skipping %s: %v", f.TargetActorURI, err)
				continue
			}
			items = append(items, remote...)
		}
	}

	page := paginateFeed(items, cursor, limit)
	return &page, nil
}

func appendLocalEntries(items []domain.FeedItem, entries *[]domain.Entry) []domain.FeedItem {
	if entries == nil {
		return items
	}
	for _, entry := range *entries {
		published := entry.CreatedAt
		items = append(items, domain.FeedItem{
			Id:        EntryURIFallback(entry),
			Author:    entry.CreatedBy,
			Title:     entry.Title,
			Content:   util.RenderMarkdown(entry.Content),
			Published: published,
			Local:     true,
		})
	}
	return items
}

// EntryURIFallback prefers the stored activity id and falls back to the
// row id for entries created before federation was enabled.
func EntryURIFallback(entry domain.Entry) string {
	if entry.ActivityURI != "" {
		return entry.ActivityURI
	}
	return entry.Id.String()
}

// paginateFeed sorts newest-first, drops everything at or after the
// cursor, and cuts a page of at most limit items. One extra item past
// the limit decides hasMore. Items sharing an identical timestamp have no secondary sort
// key, so ties at a page boundary can be skipped by the next cursor.
func paginateFeed(items []domain.FeedItem, cursor string, limit int) FeedPage {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Published.After(items[j].Published)
	})

	if cursor != "" {
		if cursorTime, err := time.Parse(time.RFC3339Nano, cursor); err == nil {
			filtered := items[:0]
			for _, item := range items {
				if item.Published.Before(cursorTime) {
					filtered = append(filtered, item)
				}
			}
			items = filtered
		}
	}

	page := FeedPage{Items: []domain.FeedItem{}}
	if len(items) > limit {
		page.HasMore = true
		items = items[:limit]
	}
	// Keep an empty slice so the items field never serializes as null.
	if items != nil {
		page.Items = items
	}

	if len(items) > 0 && page.HasMore {
		page.NextCursor = items[len(items)-1].Published.Format(time.RFC3339Nano)
	}

	return page
}

// outboxPage mirrors the OrderedCollectionPage a peer's outbox serves.
type outboxPage struct {
	Type         string `json:"type"`
	OrderedItems []struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		Actor     string `json:"actor"`
		Published string `json:"published"`
		Object    struct {
			ID           string `json:"id"`
			Type         string `json:"type"`
			Content      string `json:"content"`
			Published    string `json:"published"`
			AttributedTo string `json:"attributedTo"`
		} `json:"object"`
	} `json:"orderedItems"`
}

// FetchRemoteOutbox pulls the first outbox page of a remote actor and
// converts its Create items to feed items. Bounded by the shared fetch
// timeout; any failure is the caller's cue to skip the peer.
func FetchRemoteOutbox(actorURI string) ([]domain.FeedItem, error) {
	outboxURL := actorURI + "/outbox?page=true"

	req, err := http.NewRequest("GET", outboxURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "inkwell/1.0 ActivityPub")

	resp, err := fetchClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("outbox fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("outbox fetch failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read outbox: %w", err)
	}

	return ParseOutboxPage(body, actorURI)
}

// ParseOutboxPage extracts the Create items of an outbox page. The
// title is re-derived from the leading h1 the peer rendered into the
// Note content and stripped from the body.
func ParseOutboxPage(body []byte, actorURI string) ([]domain.FeedItem, error) {
	var page outboxPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse outbox page: %w", err)
	}

	var items []domain.FeedItem
	for _, item := range page.OrderedItems {
		if item.Type != "Create" {
			continue
		}

		publishedStr := item.Object.Published
		if publishedStr == "" {
			publishedStr = item.Published
		}
		published, err := time.Parse(time.RFC3339, publishedStr)
		if err != nil {
			log.Printf("Feed: Skipping item with bad published time from %s: %v", actorURI, err)
			continue
		}

		title, content := SplitTitle(item.Object.Content)

		items = append(items, domain.FeedItem{
			Id:        item.ID,
			Author:    actorURI,
			Title:     title,
			Content:   content,
			Published: published,
			Local:     false,
		})
	}

	return items, nil
}

// SplitTitle parses a leading <h1> off rendered Note content.
func SplitTitle(content string) (string, string) {
	matches := titleRegex.FindStringSubmatch(content)
	if matches == nil {
		return "", content
	}
	return matches[1], content[len(matches[0]):]
}
