package slack

import (
	"unicode/utf8"

	"hubrelay/internal/types"
)

// Block Kit text limits.
const (
	maxHeaderLen  = 150
	maxSectionLen = 3000
	maxFieldLen   = 2000
)

// Render converts a composed message to a Block Kit payload.
func Render(msg types.ComposedMessage) Payload {
	p := Payload{Text: msg.SummaryText, Blocks: make([]Block, 0, len(msg.Sections))}

	for _, s := range msg.Sections {
		switch s.Kind {
		case types.SectionHeader:
			p.Blocks = append(p.Blocks, Block{
				Type: "header",
				Text: &Text{Type: "plain_text", Text: clip(s.Heading, maxHeaderLen)},
			})
		case types.SectionText:
			body := s.Body
			if s.Heading != "" {
				body = fieldText(types.Field{Name: s.Heading, Value: s.Body})
			}
			p.Blocks = append(p.Blocks, Block{
				Type: "section",
				Text: &Text{Type: "mrkdwn", Text: clip(body, maxSectionLen)},
			})
		case types.SectionFieldGrid:
			fields := make([]*Text, 0, len(s.Fields))
			for _, f := range s.Fields {
				fields = append(fields, &Text{Type: "mrkdwn", Text: clip(fieldText(f), maxFieldLen)})
			}
			p.Blocks = append(p.Blocks, Block{Type: "section", Fields: fields})
		case types.SectionNote:
			p.Blocks = append(p.Blocks, Block{
				Type:     "context",
				Elements: []Element{{Type: "mrkdwn", Text: s.Body}},
			})
		case types.SectionAction:
			p.Blocks = append(p.Blocks, Block{
				Type: "actions",
				Elements: []Element{{
					Type: "button",
					Text: &Text{Type: "plain_text", Text: s.Label},
					URL:  s.URL,
				}},
			})
		}
	}
	return p
}

func fieldText(f types.Field) string {
	return "*" + f.Name + ":*\n" + f.Value
}

// clip truncates s to n runes, marking the cut with an ellipsis.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
