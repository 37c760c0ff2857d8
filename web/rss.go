package web

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/inkwell/db"
	"github.com/deemkeen/inkwell/domain"
	"github.com/deemkeen/inkwell/util"
	"github.com/google/uuid"
	"github.com/gorilla/feeds"
)

const rssMaxItems = 50

// GetRSS renders the public entries of one account as an RSS feed.
// Disabled accounts stay invisible here too.
func GetRSS(conf *util.AppConfig, username string) (string, error) {
	err, acc := db.GetDB().ReadAccByUsername(username)
	if err != nil || acc == nil || !acc.FederationEnabled {
		return "", errors.New("unknown user")
	}

	err, entries := db.GetDB().ReadPublicEntriesByUsername(username, rssMaxItems, 0)
	if err != nil {
		log.Printf("Rss: Could not read entries of %s: %v", username, err)
		return "", errors.New("error retrieving entries")
	}

	link := fmt.Sprintf("%s/u/%s", conf.ServerOrigin(), username)
	author := &feeds.Author{
		Name:  acc.Username,
		Email: fmt.Sprintf("%s@%s", acc.Username, conf.Conf.SslDomain),
	}

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("Inkwell Entries - %s", username),
		Link:        &feeds.Link{Href: link},
		Description: acc.Summary,
		Author:      author,
		Created:     time.Now(),
	}

	if entries != nil {
		for _, entry := range *entries {
			feed.Items = append(feed.Items, &feeds.Item{
				Id:      entry.Id.String(),
				Title:   entry.Title,
				Link:    &feeds.Link{Href: fmt.Sprintf("%s/entries/%s", conf.ServerOrigin(), entry.Id)},
				Content: util.RenderMarkdown(entry.Content),
				Author:  author,
				Created: entry.CreatedAt,
			})
		}
	}

	return feed.ToRss()
}

// GetRSSItem renders a single public entry as a one-item feed.
func GetRSSItem(conf *util.AppConfig, id uuid.UUID) (string, error) {
	err, entry := db.GetDB().ReadEntryById(id)
	if err != nil || entry == nil || entry.Visibility != domain.EntryVisibilityPublic {
		return "", errors.New("unknown entry")
	}

	url := fmt.Sprintf("%s/entries/%s", conf.ServerOrigin(), entry.Id)
	author := &feeds.Author{
		Name:  entry.CreatedBy,
		Email: fmt.Sprintf("%s@%s", entry.CreatedBy, conf.Conf.SslDomain),
	}

	feed := &feeds.Feed{
		Title:       entry.Title,
		Link:        &feeds.Link{Href: url},
		Description: "single entry",
		Author:      author,
		Created:     time.Now(),
	}

	feed.Items = []*feeds.Item{{
		Id:      entry.Id.String(),
		Title:   entry.Title,
		Link:    &feeds.Link{Href: url},
		Content: util.RenderMarkdown(entry.Content),
		Author:  author,
		Created: entry.CreatedAt,
	}}

	return feed.ToRss()
}
