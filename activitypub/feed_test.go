package activitypub

import (
	"testing"
	"time"

	"github.com/deemkeen/inkwell/domain"
)

func feedItemsAt(times ...time.Time) []domain.FeedItem {
	items := make([]domain.FeedItem, 0, len(times))
	for i, published := range times {
		items = append(items, domain.FeedItem{
			Id:        string(rune('a' + i)),
			Title:     "Item",
			Published: published,
		})
	}
	return items
}

func TestPaginateFeedFirstPage(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	t1 := base
	t2 := base.Add(-time.Hour)
	t3 := base.Add(-2 * time.Hour)
	t4 := base.Add(-3 * time.Hour)

	// Deliberately unsorted input.
	items := feedItemsAt(t3, t1, t4, t2)

	page := paginateFeed(items, "", 2)
	if len(page.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(page.Items))
	}
	if !page.Items[0].Published.Equal(t1) || !page.Items[1].Published.Equal(t2) {
		t.Errorf("Expected newest-first order, got %v then %v",
			page.Items[0].Published, page.Items[1].Published)
	}
	if !page.HasMore {
		t.Error("Expected hasMore on a truncated page")
	}
	if page.NextCursor != t2.Format(time.RFC3339Nano) {
		t.Errorf("Expected nextCursor %s, got %s", t2.Format(time.RFC3339Nano), page.NextCursor)
	}
}

func TestPaginateFeedSecondPage(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	t1 := base
	t2 := base.Add(-time.Hour)
	t3 := base.Add(-2 * time.Hour)
	t4 := base.Add(-3 * time.Hour)

	items := feedItemsAt(t1, t2, t3, t4)

	page := paginateFeed(items, t2.Format(time.RFC3339Nano), 2)
	if len(page.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(page.Items))
	}
	// Strictly older than the cursor: t2 itself is excluded.
	if !page.Items[0].Published.Equal(t3) || !page.Items[1].Published.Equal(t4) {
		t.Errorf("Expected t3 then t4, got %v then %v",
			page.Items[0].Published, page.Items[1].Published)
	}
	if page.HasMore {
		t.Error("Last page should not report hasMore")
	}
	if page.NextCursor != "" {
		t.Errorf("Last page should have no nextCursor, got %s", page.NextCursor)
	}
}

func TestPaginateFeedEmpty(t *testing.T) {
	page := paginateFeed(nil, "", 20)
	if page.Items == nil {
		t.Error("Items should be an empty slice, not nil")
	}
	if len(page.Items) != 0 || page.HasMore || page.NextCursor != "" {
		t.Errorf("Empty input should yield an empty page, got %+v", page)
	}
}

func TestPaginateFeedBadCursorIgnored(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	items := feedItemsAt(base, base.Add(-time.Hour))

	page := paginateFeed(items, "not-a-timestamp", 20)
	if len(page.Items) != 2 {
		t.Errorf("Unparseable cursor should be ignored, got %d items", len(page.Items))
	}
}

func TestSplitTitle(t *testing.T) {
	title, content := SplitTitle("<h1>Hello World</h1>\n<p>body</p>")
	if title != "Hello World" {
		t.Errorf("Expected title 'Hello World', got %q", title)
	}
	if content != "<p>body</p>" {
		t.Errorf("Expected body without h1, got %q", content)
	}

	title, content = SplitTitle("<p>no heading here</p>")
	if title != "" {
		t.Errorf("Expected empty title, got %q", title)
	}
	if content != "<p>no heading here</p>" {
		t.Errorf("Content should be untouched, got %q", content)
	}
}

func TestParseOutboxPage(t *testing.T) {
	body := []byte(`{
		"type": "OrderedCollectionPage",
		"orderedItems": [
			{
				"id": "https://remote.example/activities/1",
				"type": "Create",
				"actor": "https://remote.example/users/bob",
				"published": "2026-01-01T10:00:00Z",
				"object": {
					"id": "https://remote.example/entries/1",
					"type": "Note",
					"content": "<h1>A Title</h1>\n<p>hello</p>",
					"published": "2026-01-01T10:00:00Z"
				}
			},
			{
				"id": "https://remote.example/activities/2",
				"type": "Announce",
				"actor": "https://remote.example/users/bob",
				"published": "2026-01-01T11:00:00Z",
				"object": {}
			},
			{
				"id": "https://remote.example/activities/3",
				"type": "Create",
				"actor": "https://remote.example/users/bob",
				"published": "2026-01-01T12:00:00Z",
				"object": {
					"id": "https://remote.example/entries/3",
					"type": "Note",
					"content": "<p>untitled</p>",
					"published": "bogus"
				}
			}
		]
	}`)

	items, err := ParseOutboxPage(body, "https://remote.example/users/bob")
	if err != nil {
		t.Fatalf("ParseOutboxPage failed: %v", err)
	}

	// The Announce is filtered, the bad timestamp is skipped.
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	item := items[0]
	if item.Id != "https://remote.example/activities/1" {
		t.Errorf("Unexpected item id %q", item.Id)
	}
	if item.Title != "A Title" {
		t.Errorf("Expected re-derived title, got %q", item.Title)
	}
	if item.Content != "<p>hello</p>" {
		t.Errorf("Expected stripped content, got %q", item.Content)
	}
	if item.Local {
		t.Error("Remote items must not be flagged local")
	}
}

func TestParseOutboxPageFallsBackToActivityPublished(t *testing.T) {
	body := []byte(`{
		"type": "OrderedCollectionPage",
		"orderedItems": [
			{
				"id": "https://remote.example/activities/1",
				"type": "Create",
				"actor": "https://remote.example/users/bob",
				"published": "2026-02-02T09:00:00Z",
				"object": {
					"id": "https://remote.example/entries/1",
					"type": "Note",
					"content": "<p>x</p>"
				}
			}
		]
	}`)

	items, err := ParseOutboxPage(body, "https://remote.example/users/bob")
	if err != nil || len(items) != 1 {
		t.Fatalf("ParseOutboxPage failed: %v (%d items)", err, len(items))
	}
	want := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	if !items[0].Published.Equal(want) {
		t.Errorf("Expected activity published time, got %v", items[0].Published)
	}
}

func TestParseOutboxPageRejectsGarbage(t *testing.T) {
	if _, err := ParseOutboxPage([]byte("not json"), "x"); err == nil {
		t.Error("Garbage input should error")
	}
}
