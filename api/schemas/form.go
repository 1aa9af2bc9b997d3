// api/schemas/form.go
package schemas

import "strings"

// FieldName is a semantic field category. The detector normalizes the free
// text it sees on a page into one of these; the mapper only understands
// these categories when pairing product data with selectors.
type FieldName string

const (
	FieldCompanyName      FieldName = "company_name"
	FieldWebsiteURL       FieldName = "website_url"
	FieldContactEmail     FieldName = "contact_email"
	FieldDescription      FieldName = "description"
	FieldShortDescription FieldName = "short_description"
	FieldCategory         FieldName = "category"
	FieldLogo             FieldName = "logo"
	FieldTwitterURL       FieldName = "twitter_url"
	FieldLinkedInURL      FieldName = "linkedin_url"
	FieldPricingModel     FieldName = "pricing_model"
)

// FormField is one input detected on a submission form.
type FormField struct {
	FieldName   FieldName `json:"field_name"`
	FieldType   string    `json:"field_type"`
	Label       string    `json:"field_label,omitempty"`
	Selector    string    `json:"selector"`
	Placeholder string    `json:"placeholder,omitempty"`
	IsRequired  bool      `json:"is_required"`
	// Confidence is the detector's 0-100 score for this classification.
	Confidence int      `json:"confidence_score,omitempty"`
	Options    []string `json:"options,omitempty"`
}

// FormStructure is the detector's view of a submission form, cached on the
// Directory after the first successful detection.
type FormStructure struct {
	FormAction           string      `json:"form_action,omitempty"`
	Fields               []FormField `json:"fields"`
	SubmitButtonSelector string      `json:"submit_button_selector,omitempty"`
	Notes                string      `json:"additional_notes,omitempty"`
}

// StandardizeFieldName maps the arbitrary names and labels a detector emits
// onto the fixed semantic categories. Unrecognized fields keep a sanitized
// version of their original name so they round-trip through the cache.
func StandardizeFieldName(name, label string) FieldName {
	text := strings.ToLower(name + " " + label)

	contains := func(terms ...string) bool {
		for _, t := range terms {
			if strings.Contains(text, t) {
				return true
			}
		}
		return false
	}

	switch {
	case contains("company", "product name", "app name", "startup"):
		return FieldCompanyName
	case contains("twitter", "x.com"):
		return FieldTwitterURL
	case contains("linkedin"):
		return FieldLinkedInURL
	case contains("website", "url", "link", "site"):
		return FieldWebsiteURL
	case contains("email"):
		return FieldContactEmail
	case contains("short description", "tagline", "pitch"):
		return FieldShortDescription
	case contains("description", "about", "details"):
		return FieldDescription
	case contains("category", "industry", "sector"):
		return FieldCategory
	case contains("logo", "image", "icon"):
		return FieldLogo
	case contains("pricing", "price"):
		return FieldPricingModel
	default:
		return FieldName(strings.ReplaceAll(strings.ToLower(name), " ", "_"))
	}
}
