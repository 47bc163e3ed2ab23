package mastodon

import (
	"net/url"
	"strings"
)

// ParseNextMaxID extracts the max_id cursor from a Link response header.
// Mastodon paginates listings with RFC 8288 Link headers; the rel="next"
// URL carries the max_id for the following page. Returns "" when there
// is no next page.
func ParseNextMaxID(linkHeader string) string {
	for _, part := range strings.Split(linkHeader, ",") {
		section := strings.Split(part, ";")
		if len(section) < 2 {
			continue
		}
		if !strings.Contains(section[1], `rel="next"`) {
			continue
		}
		raw := strings.Trim(strings.TrimSpace(section[0]), "<>")
		u, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		return u.Query().Get("max_id")
	}
	return ""
}
