package types

// SectionKind tags the variant held by a Section.
type SectionKind string

const (
	SectionHeader    SectionKind = "header"
	SectionText      SectionKind = "text"
	SectionFieldGrid SectionKind = "field_grid"
	SectionNote      SectionKind = "note"
	SectionAction    SectionKind = "action"
)

// Section is one presentation block of a ComposedMessage. Only the members
// relevant to Kind are populated.
type Section struct {
	Kind    SectionKind `json:"kind"`
	Heading string      `json:"heading,omitempty"`
	Body    string      `json:"body,omitempty"`
	Fields  []Field     `json:"fields,omitempty"`
	Label   string      `json:"label,omitempty"`
	URL     string      `json:"url,omitempty"`
}

// ComposedMessage is the presentation-ready notification for a single
// CanonicalEvent. It is derived purely from the event.
type ComposedMessage struct {
	SummaryText string    `json:"summary_text"`
	Sections    []Section `json:"sections"`
	ActionURL   string    `json:"action_url"`
}

// FieldCount returns the number of field pairs shown individually across
// text and grid sections.
func (m ComposedMessage) FieldCount() int {
	n := 0
	for _, s := range m.Sections {
		n += len(s.Fields)
	}
	return n
}
