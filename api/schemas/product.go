// api/schemas/product.go
package schemas

import "time"

// Product is the SaaS product being listed. It is read-only input to the
// submission workflow; the engine never mutates it.
type Product struct {
	ID               int64             `json:"id"`
	OwnerID          int64             `json:"owner_id"`
	Name             string            `json:"name"`
	WebsiteURL       string            `json:"website_url"`
	Description      string            `json:"description"`
	ShortDescription string            `json:"short_description,omitempty"`
	Tagline          string            `json:"tagline,omitempty"`
	Category         string            `json:"category,omitempty"`
	LogoURL          string            `json:"logo_url,omitempty"`
	ContactEmail     string            `json:"contact_email"`
	PricingModel     string            `json:"pricing_model,omitempty"`
	Features         []string          `json:"features,omitempty"`
	SocialLinks      map[string]string `json:"social_links,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// ShortText returns the short description, falling back to the tagline when
// the short description is empty. Directories that ask for a one-liner get
// whichever the product actually has.
func (p *Product) ShortText() string {
	if p.ShortDescription != "" {
		return p.ShortDescription
	}
	return p.Tagline
}
