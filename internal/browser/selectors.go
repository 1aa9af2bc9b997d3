// internal/browser/selectors.go
package browser

import (
	"context"
	"strings"
)

// SelectorSet holds the ordered candidate selectors probed when a directory
// record does not pin an exact selector. First match wins. Entries starting
// with "//" are treated as XPath expressions.
type SelectorSet struct {
	UsernameFields []string
	PasswordFields []string
	LoginButtons   []string
	URLFields      []string
	NextButtons    []string
	SubmitButtons  []string
}

// DefaultSelectorSet covers the markup seen across common directory sites.
func DefaultSelectorSet() SelectorSet {
	return SelectorSet{
		UsernameFields: []string{
			"input[name='username']",
			"input[name='email']",
			"input[type='email']",
			"#username",
			"#email",
			"input[name='login']",
		},
		PasswordFields: []string{
			"input[type='password']",
			"input[name='password']",
			"#password",
		},
		LoginButtons: []string{
			"button[type='submit']",
			"input[type='submit']",
			"//button[contains(., 'Log in')]",
			"//button[contains(., 'Login')]",
			"//button[contains(., 'Sign in')]",
		},
		URLFields: []string{
			"input[type='url']",
			"input[name='url']",
			"input[name='website']",
			"input[name='link']",
			"#url",
			"#website",
		},
		NextButtons: []string{
			"//button[contains(., 'Next')]",
			"//button[contains(., 'Continue')]",
			"button[type='submit']",
		},
		SubmitButtons: []string{
			"button[type='submit']",
			"input[type='submit']",
			"//button[contains(., 'Submit')]",
			"//button[contains(., 'Add')]",
			"//button[contains(., 'Send')]",
		},
	}
}

// isXPath reports whether a candidate should be evaluated as an XPath
// expression rather than a CSS query.
func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "//") || strings.HasPrefix(selector, "(")
}

// firstPresent walks the candidates in order and returns the first one the
// probe reports as present on the page. Probe errors on individual
// candidates are swallowed; an empty string means nothing matched.
func firstPresent(ctx context.Context, candidates []string, probe func(context.Context, string) (bool, error)) string {
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return ""
		}
		found, err := probe(ctx, candidate)
		if err != nil {
			continue
		}
		if found {
			return candidate
		}
	}
	return ""
}
