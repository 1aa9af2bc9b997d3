package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listforge/listforge/api/schemas"
)

func sampleProduct() *schemas.Product {
	return &schemas.Product{
		Name:             "Acme Analytics",
		WebsiteURL:       "https://acme.example.com",
		ContactEmail:     "hello@acme.example.com",
		Description:      "A long-form description of the Acme analytics platform.",
		ShortDescription: "Analytics for everyone.",
		Tagline:          "Measure what matters.",
		Category:         "Analytics",
		LogoURL:          "https://acme.example.com/logo.png",
		PricingModel:     "freemium",
		SocialLinks: map[string]string{
			"twitter":  "https://twitter.com/acme",
			"linkedin": "https://linkedin.com/company/acme",
		},
	}
}

func TestMap_CoreFields(t *testing.T) {
	t.Parallel()

	product := sampleProduct()
	fields := []schemas.FormField{
		{FieldName: schemas.FieldCompanyName, Selector: "#name"},
		{FieldName: schemas.FieldWebsiteURL, Selector: "#url"},
		{FieldName: schemas.FieldContactEmail, Selector: "#email"},
		{FieldName: schemas.FieldDescription, Selector: "#desc"},
		{FieldName: schemas.FieldLogo, Selector: "#logo"},
	}

	values := Map(product, fields)
	require.Len(t, values, 5)
	assert.Equal(t, "Acme Analytics", values["#name"])
	assert.Equal(t, "https://acme.example.com", values["#url"])
	assert.Equal(t, "hello@acme.example.com", values["#email"])
	assert.Equal(t, product.Description, values["#desc"])
	assert.Equal(t, product.LogoURL, values["#logo"])
}

func TestMap_ShortDescriptionFallsBackToTagline(t *testing.T) {
	t.Parallel()

	product := sampleProduct()
	product.ShortDescription = ""
	fields := []schemas.FormField{
		{FieldName: schemas.FieldShortDescription, Selector: "#short"},
	}

	values := Map(product, fields)
	assert.Equal(t, "Measure what matters.", values["#short"])
}

func TestMap_SkipsEmptyValuesAndSelectors(t *testing.T) {
	t.Parallel()

	product := sampleProduct()
	product.ContactEmail = ""
	fields := []schemas.FormField{
		{FieldName: schemas.FieldContactEmail, Selector: "#email"},
		{FieldName: schemas.FieldCompanyName, Selector: ""},
		{FieldName: schemas.FieldName("unknown_field"), Selector: "#mystery"},
	}

	values := Map(product, fields)
	assert.Empty(t, values)
}

func TestMap_SocialLinks(t *testing.T) {
	t.Parallel()

	product := sampleProduct()
	fields := []schemas.FormField{
		{FieldName: schemas.FieldTwitterURL, Selector: "#tw"},
		{FieldName: schemas.FieldLinkedInURL, Selector: "#li"},
	}

	values := Map(product, fields)
	assert.Equal(t, "https://twitter.com/acme", values["#tw"])
	assert.Equal(t, "https://linkedin.com/company/acme", values["#li"])
}

func TestMap_TwitterAcceptsXKey(t *testing.T) {
	t.Parallel()

	product := sampleProduct()
	product.SocialLinks = map[string]string{"x": "https://x.com/acme"}
	fields := []schemas.FormField{
		{FieldName: schemas.FieldTwitterURL, Selector: "#tw"},
	}

	values := Map(product, fields)
	assert.Equal(t, "https://x.com/acme", values["#tw"])
}

func TestMap_SelectOptionMatching(t *testing.T) {
	t.Parallel()

	product := sampleProduct()
	tests := []struct {
		name    string
		options []string
		want    string
	}{
		{"exact case-insensitive", []string{"Marketing", "analytics", "Sales"}, "analytics"},
		{"substring match", []string{"Data & Analytics Tools", "CRM"}, "Data & Analytics Tools"},
		{"no match drops the field", []string{"CRM", "HR"}, ""},
		{"free text passes through", nil, "Analytics"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fields := []schemas.FormField{
				{FieldName: schemas.FieldCategory, Selector: "#cat", Options: tc.options},
			}
			values := Map(product, fields)
			if tc.want == "" {
				assert.NotContains(t, values, "#cat")
			} else {
				assert.Equal(t, tc.want, values["#cat"])
			}
		})
	}
}

func TestMap_NilProduct(t *testing.T) {
	t.Parallel()

	values := Map(nil, []schemas.FormField{{FieldName: schemas.FieldCompanyName, Selector: "#name"}})
	assert.Empty(t, values)
}
