// Package mapper translates detected form fields into concrete values
// drawn from a product profile. The mapping is pure and deterministic:
// no I/O, no browser, no model calls.
package mapper

import (
	"strings"

	"github.com/listforge/listforge/api/schemas"
)

// Map builds a selector -> value assignment for every detected field that
// the product can supply a non-empty value for. Fields with an empty
// selector or no matching product data are skipped silently; required
// fields are not treated specially here, the form either accepts the
// submission or it does not.
func Map(product *schemas.Product, fields []schemas.FormField) map[string]string {
	values := make(map[string]string)
	if product == nil {
		return values
	}

	for _, field := range fields {
		if field.Selector == "" {
			continue
		}
		value := valueFor(product, field)
		if value == "" {
			continue
		}
		values[field.Selector] = value
	}
	return values
}

func valueFor(product *schemas.Product, field schemas.FormField) string {
	switch field.FieldName {
	case schemas.FieldCompanyName:
		return product.Name
	case schemas.FieldWebsiteURL:
		return product.WebsiteURL
	case schemas.FieldContactEmail:
		return product.ContactEmail
	case schemas.FieldDescription:
		return product.Description
	case schemas.FieldShortDescription:
		return product.ShortText()
	case schemas.FieldCategory:
		return matchOption(product.Category, field.Options)
	case schemas.FieldLogo:
		return product.LogoURL
	case schemas.FieldTwitterURL:
		return socialLink(product, "twitter", "x")
	case schemas.FieldLinkedInURL:
		return socialLink(product, "linkedin")
	case schemas.FieldPricingModel:
		return matchOption(product.PricingModel, field.Options)
	default:
		return ""
	}
}

// matchOption picks the select option closest to the desired value.
// Exact match wins, then a case-insensitive substring match in either
// direction. With no options (a free-text field) the value passes through.
func matchOption(value string, options []string) string {
	if value == "" {
		return ""
	}
	if len(options) == 0 {
		return value
	}

	lower := strings.ToLower(value)
	for _, opt := range options {
		if strings.EqualFold(opt, value) {
			return opt
		}
	}
	for _, opt := range options {
		optLower := strings.ToLower(opt)
		if strings.Contains(optLower, lower) || strings.Contains(lower, optLower) {
			return opt
		}
	}
	return ""
}

func socialLink(product *schemas.Product, keys ...string) string {
	if len(product.SocialLinks) == 0 {
		return ""
	}
	for _, key := range keys {
		if v, ok := product.SocialLinks[key]; ok && v != "" {
			return v
		}
	}
	// Tolerate mixed-case keys in stored profiles.
	for name, v := range product.SocialLinks {
		lowered := strings.ToLower(name)
		for _, key := range keys {
			if lowered == key && v != "" {
				return v
			}
		}
	}
	return ""
}
