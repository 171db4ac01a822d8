package similarity

// Placeholder values used when the endpoint omits a field. No Document
// field is ever left unset.
const (
	PlaceholderTitle   = "No title available"
	PlaceholderSource  = "Unknown source"
	PlaceholderPage    = "N/A"
	PlaceholderDetails = "No details available"
)

// Document is one retrieved report excerpt. Instances are built solely
// from the endpoint response and are read-only afterwards; their order
// as received defines both context ordering and display ordering.
type Document struct {
	Title     string `json:"title"`
	Source    string `json:"source"`
	PageLabel string `json:"page_label"`
	URL       string `json:"url"`
	// Body is the raw excerpt text.
	Body string `json:"body"`
	// CombinedDetails is the endpoint's pre-combined display text.
	// Empty when the endpoint did not provide one.
	CombinedDetails string `json:"combined_details,omitempty"`
}

// ContextText returns the best available text for context assembly:
// the pre-combined details when present, otherwise the raw body.
func (d Document) ContextText() string {
	if d.CombinedDetails != "" {
		return d.CombinedDetails
	}
	return d.Body
}

func documentFromWire(w wireDocument) Document {
	d := Document{
		Title:           w.Title,
		Source:          w.Source,
		PageLabel:       w.PageLabel,
		URL:             w.URL,
		Body:            w.Body,
		CombinedDetails: w.CombinedDetails,
	}
	if d.Title == "" {
		d.Title = PlaceholderTitle
	}
	if d.Source == "" {
		d.Source = PlaceholderSource
	}
	if d.PageLabel == "" {
		d.PageLabel = PlaceholderPage
	}
	if d.Body == "" {
		d.Body = PlaceholderDetails
	}
	return d
}
