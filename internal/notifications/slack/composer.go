// Package slack composes relay notifications and renders them as Slack
// Block Kit payloads.
package slack

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"hubrelay/internal/types"
)

// MaxFields is the number of form fields shown individually.
const MaxFields = 10

const (
	timeLayout        = "2006/01/02 15:04"
	emptyPlaceholder  = "(empty)"
	noPagePlaceholder = "N/A"
	defaultAppBaseURL = "https://app.hubspot.com"
	actionLabel       = "View in HubSpot"
)

// Options controls presentation details that come from configuration.
type Options struct {
	Location   *time.Location
	AppBaseURL string
}

// DefaultOptions renders times in Asia/Tokyo and links to app.hubspot.com.
func DefaultOptions() Options {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		loc = time.FixedZone("JST", 9*60*60)
	}
	return Options{Location: loc, AppBaseURL: defaultAppBaseURL}
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = DefaultOptions().Location
	}
	if o.AppBaseURL == "" {
		o.AppBaseURL = defaultAppBaseURL
	}
	o.AppBaseURL = strings.TrimRight(o.AppBaseURL, "/")
	return o
}

// Compose builds the message for ev. It depends only on its inputs.
func Compose(ev types.CanonicalEvent, opts Options) types.ComposedMessage {
	opts = opts.withDefaults()
	name := displayName(ev)
	portal := strconv.FormatInt(ev.PortalID, 10)

	var msg types.ComposedMessage
	switch ev.Kind {
	case types.EventContactCreated:
		msg.SummaryText = "New contact: " + name
		msg.ActionURL = fmt.Sprintf("%s/contacts/%s/contact/%s", opts.AppBaseURL, portal, ev.ObjectID)
		msg.Sections = append(msg.Sections,
			types.Section{Kind: types.SectionHeader, Heading: "New contact created"},
			types.Section{Kind: types.SectionText, Body: fmt.Sprintf(
				"*Contact ID:* `%s`\n*Portal ID:* `%s`\n*Created at:* %s",
				ev.ObjectID, portal, formatTime(ev, opts.Location))},
		)
	default:
		msg.SummaryText = "Form submission: " + name
		msg.ActionURL = fmt.Sprintf("%s/forms/%s/editor/%s/submissions", opts.AppBaseURL, portal, ev.RecordID())
		page := noPagePlaceholder
		if ev.PageURL != nil && *ev.PageURL != "" {
			page = *ev.PageURL
		}
		msg.Sections = append(msg.Sections,
			types.Section{Kind: types.SectionHeader, Heading: "New form submission"},
			types.Section{Kind: types.SectionText, Body: fmt.Sprintf(
				"*Form:* %s\n*Submitted at:* %s\n*Page:* %s\n*Portal ID:* %s",
				name, formatTime(ev, opts.Location), page, portal)},
		)
	}

	msg.Sections = append(msg.Sections, fieldSections(ev.Fields)...)
	msg.Sections = append(msg.Sections, types.Section{Kind: types.SectionAction, Label: actionLabel, URL: msg.ActionURL})
	return msg
}

func displayName(ev types.CanonicalEvent) string {
	if ev.DisplayName != nil && *ev.DisplayName != "" {
		return *ev.DisplayName
	}
	return ev.RecordID()
}

func formatTime(ev types.CanonicalEvent, loc *time.Location) string {
	s := ev.OccurredTime().In(loc).Format(timeLayout)
	if ev.ApproximateTime {
		s += " (received)"
	}
	return s
}

// fieldSections renders up to MaxFields pairs: one pair as a text section,
// several as a grid, plus a note counting the rest.
func fieldSections(fs types.FieldSet) []types.Section {
	all := fs.Fields()
	if len(all) == 0 {
		return nil
	}

	shown := all
	if len(shown) > MaxFields {
		shown = shown[:MaxFields]
	}
	for i := range shown {
		if shown[i].Value == "" {
			shown[i].Value = emptyPlaceholder
		}
	}

	var out []types.Section
	if len(shown) == 1 {
		out = append(out, types.Section{
			Kind:    types.SectionText,
			Heading: shown[0].Name,
			Body:    shown[0].Value,
			Fields:  shown,
		})
	} else {
		out = append(out, types.Section{Kind: types.SectionFieldGrid, Fields: shown})
	}

	if rest := len(all) - len(shown); rest > 0 {
		out = append(out, types.Section{
			Kind: types.SectionNote,
			Body: fmt.Sprintf("...and %d more fields", rest),
		})
	}
	return out
}
