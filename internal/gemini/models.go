package gemini

// ModelOption is one selectable generation model tier.
type ModelOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ModelOptions returns the supported model tiers, cheapest first.
func ModelOptions() []ModelOption {
	return []ModelOption{
		{ID: "gemini-2.0-flash", Label: "Gemini 2.0 Flash (budget)"},
		{ID: "gemini-2.5-flash-lite", Label: "Gemini 2.5 Flash Lite (fast, low cost)"},
		{ID: "gemini-2.5-flash", Label: "Gemini 2.5 Flash (balanced)"},
		{ID: "gemini-2.5-pro", Label: "Gemini 2.5 Pro (highest quality)"},
	}
}

// ValidModel reports whether id names a supported model tier.
func ValidModel(id string) bool {
	for _, m := range ModelOptions() {
		if m.ID == id {
			return true
		}
	}
	return false
}
