package web

import (
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/deemkeen/inkwell/db"
	"github.com/deemkeen/inkwell/domain"
	"github.com/deemkeen/inkwell/util"
	"github.com/gin-gonic/gin"
)

const profilePageSize = 20

type ProfilePageData struct {
	Title   string
	Domain  string
	User    UserView
	Entries []EntryView
}

type UserView struct {
	Username    string
	DisplayName string
	Summary     string
	JoinedAgo   string
}

type EntryView struct {
	Title       string
	ContentHTML template.HTML
	TimeAgo     string
}

var profileTemplate = template.Must(template.New("profile").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { max-width: 42rem; margin: 2rem auto; padding: 0 1rem; font-family: serif; }
article { margin-bottom: 2rem; border-bottom: 1px solid #ddd; padding-bottom: 1rem; }
.meta { color: #666; font-size: 0.85rem; }
</style>
</head>
<body>
<header>
<h1>{{if .User.DisplayName}}{{.User.DisplayName}}{{else}}{{.User.Username}}{{end}}</h1>
<p class="meta">@{{.User.Username}}@{{.Domain}} · joined {{.User.JoinedAgo}}</p>
{{if .User.Summary}}<p>{{.User.Summary}}</p>{{end}}
</header>
<main>
{{range .Entries}}
<article>
<h2>{{.Title}}</h2>
<div>{{.ContentHTML}}</div>
<p class="meta">{{.TimeAgo}}</p>
</article>
{{else}}
<p>No entries yet.</p>
{{end}}
</main>
</body>
</html>`))

func formatTimeAgo(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return "just now"
	} else if duration < time.Hour {
		mins := int(duration.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	} else if duration < 24*time.Hour {
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	} else if duration < 30*24*time.Hour {
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	} else {
		return t.Format("Jan 2, 2006")
	}
}

// HandleProfile renders the public entries of an account as a plain
// HTML page. Same visibility rule as the outbox: public entries only,
// disabled accounts 404.
func HandleProfile(c *gin.Context, conf *util.AppConfig) {
	username := c.Param("username")

	err, account := db.GetDB().ReadAccByUsername(username)
	if err != nil || account == nil || !account.FederationEnabled {
		c.String(http.StatusNotFound, "Not Found")
		return
	}

	err, entries := db.GetDB().ReadPublicEntriesByUsername(username, profilePageSize, 0)
	if err != nil {
		log.Printf("Ui: Failed to read entries of %s: %v", username, err)
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if entries == nil {
		entries = &[]domain.Entry{}
	}

	views := make([]EntryView, 0, len(*entries))
	for _, entry := range *entries {
		views = append(views, EntryView{
			Title:       entry.Title,
			ContentHTML: template.HTML(util.RenderMarkdown(entry.Content)),
			TimeAgo:     formatTimeAgo(entry.CreatedAt),
		})
	}

	data := ProfilePageData{
		Title:  fmt.Sprintf("@%s", username),
		Domain: conf.Conf.SslDomain,
		User: UserView{
			Username:    account.Username,
			DisplayName: account.DisplayName,
			Summary:     account.Summary,
			JoinedAgo:   formatTimeAgo(account.CreatedAt),
		},
		Entries: views,
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := profileTemplate.Execute(c.Writer, data); err != nil {
		log.Printf("Ui: Template render failed: %v", err)
	}
}
