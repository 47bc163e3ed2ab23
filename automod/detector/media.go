package detector

import (
	"context"
	"fmt"
	"slices"

	"github.com/mastowatch/mastowatch/automod/event"
	"github.com/mastowatch/mastowatch/automod/rules"
)

// evaluateMedia inspects status attachments against the rule's media
// params. Multiple offending attachments roll up into a single Evidence
// (one per rule per subject per pass); the metric value carries the
// offender count and the snippet names the first offender.
func (d *Set) evaluateMedia(ctx context.Context, sub *event.Subject, rule *rules.Rule) (*event.Evidence, error) {
	var offenders int
	var first *event.Evidence

	for _, st := range sub.Statuses {
		for _, att := range st.Attachments {
			reason := mediaOffense(&att, &rule.Media)
			if reason == "" {
				continue
			}
			offenders++
			if first == nil {
				first = &event.Evidence{
					MatchedField: event.FieldContent,
					Snippet:      fmt.Sprintf("attachment %s: %s", att.ID, reason),
					StatusID:     st.ID,
				}
			}
		}
	}
	if first == nil {
		return nil, nil
	}
	first.MetricValue = float64(offenders)
	return first, nil
}

func mediaOffense(att *event.Attachment, params *rules.MediaParams) string {
	if params.RequireAltText && att.Description == "" {
		return "missing alt text"
	}
	if len(params.AllowedMimeTypes) > 0 && att.MimeType != "" && !slices.Contains(params.AllowedMimeTypes, att.MimeType) {
		return "disallowed mime type " + att.MimeType
	}
	return ""
}
