package types

// FormRef identifies a HubSpot form. The v3 forms API returns id, the
// legacy API guid; both name the same form.
type FormRef struct {
	ID   string `json:"id,omitempty"`
	GUID string `json:"guid,omitempty"`
	Name string `json:"name"`
}

// Key returns the identifier used by the submissions API.
func (f FormRef) Key() string {
	if f.ID != "" {
		return f.ID
	}
	return f.GUID
}

// Submission is one record from the form submissions API.
type Submission struct {
	SubmittedAt int64   `json:"submittedAt"`
	Values      []Field `json:"values"`
	PageURL     string  `json:"pageUrl"`
	PortalID    int64   `json:"portalId"`
}
