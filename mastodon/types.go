// Package mastodon is the platform API binding: admin account listings,
// status hydration, report filing, and admin moderation actions. It
// speaks the Mastodon v1/v2 REST API.
package mastodon

import (
	"time"

	"github.com/mastowatch/mastowatch/automod/event"
)

// AdminAccount is the admin-scoped account representation from
// /api/v1/admin/accounts. It wraps the public account view and adds the
// moderation metadata that detection rules may target.
type AdminAccount struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Domain    string    `json:"domain"`
	Email     string    `json:"email"`
	IP        string    `json:"ip"`
	Confirmed bool      `json:"confirmed"`
	Suspended bool      `json:"suspended"`
	Silenced  bool      `json:"silenced"`
	Disabled  bool      `json:"disabled"`
	CreatedAt time.Time `json:"created_at"`

	Account Account `json:"account"`
}

// Account is the public account view nested inside AdminAccount.
type Account struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Acct           string    `json:"acct"`
	DisplayName    string    `json:"display_name"`
	Note           string    `json:"note"`
	CreatedAt      time.Time `json:"created_at"`
	FollowersCount int64     `json:"followers_count"`
	FollowingCount int64     `json:"following_count"`
	StatusesCount  int64     `json:"statuses_count"`
}

type Status struct {
	ID               string            `json:"id"`
	Content          string            `json:"content"`
	CreatedAt        time.Time         `json:"created_at"`
	Visibility       string            `json:"visibility"`
	MediaAttachments []MediaAttachment `json:"media_attachments"`
}

type MediaAttachment struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	Description string `json:"description"`
	// Meta carries no mime type; Mastodon exposes it only on the admin
	// media view, so Type plus URL extension is what rules get.
	MimeType string `json:"mime_type"`
}

type Report struct {
	ID          string `json:"id"`
	ActionTaken bool   `json:"action_taken"`
}

// Subject flattens an admin account and its hydrated statuses into the
// engine's evaluation shape. The admin metadata always rides along, the
// evaluator never sees a stripped view.
func (a *AdminAccount) Subject(statuses []Status) *event.Subject {
	sub := &event.Subject{
		ID:          a.ID,
		Username:    a.Account.Username,
		Acct:        a.Account.Acct,
		DisplayName: a.Account.DisplayName,
		Bio:         a.Account.Note,
		CreatedAt:   a.Account.CreatedAt,

		FollowersCount: a.Account.FollowersCount,
		FollowingCount: a.Account.FollowingCount,
		StatusesCount:  a.Account.StatusesCount,

		Email:     a.Email,
		IP:        a.IP,
		Confirmed: a.Confirmed,
		Suspended: a.Suspended,
	}
	if sub.Username == "" {
		sub.Username = a.Username
	}
	for _, st := range statuses {
		out := event.Status{
			ID:        st.ID,
			Content:   st.Content,
			CreatedAt: st.CreatedAt,
		}
		for _, m := range st.MediaAttachments {
			out.Attachments = append(out.Attachments, event.Attachment{
				ID:          m.ID,
				Type:        m.Type,
				MimeType:    m.MimeType,
				Description: m.Description,
			})
		}
		sub.Statuses = append(sub.Statuses, out)
	}
	return sub
}
