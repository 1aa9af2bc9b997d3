// internal/engine/classifier.go
package engine

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/listforge/listforge/api/schemas"
)

// Verdict is the classification of a post-submit page.
type Verdict struct {
	Success bool
	// Marker is the configured phrase that decided the verdict, empty when
	// the optimistic default applied.
	Marker  string
	Message string
}

// Classifier decides whether a post-submit page state represents an accepted
// submission. Success markers always win; failure markers are consulted only
// when no success marker matched; a page matching neither is treated as
// success, since many directories show a bare confirmation page with no
// recognizable phrasing.
type Classifier struct {
	successMarkers []string
	failureMarkers []string
}

func NewClassifier(successMarkers, failureMarkers []string) *Classifier {
	return &Classifier{
		successMarkers: lowerAll(successMarkers),
		failureMarkers: lowerAll(failureMarkers),
	}
}

// Classify inspects the visible text and final URL of the post-submit page.
func (c *Classifier) Classify(outcome schemas.SubmitOutcome) Verdict {
	haystack := strings.ToLower(visibleText(outcome.HTML) + " " + outcome.FinalURL)

	for _, marker := range c.successMarkers {
		if strings.Contains(haystack, marker) {
			return Verdict{
				Success: true,
				Marker:  marker,
				Message: fmt.Sprintf("submission confirmed (matched %q)", marker),
			}
		}
	}
	for _, marker := range c.failureMarkers {
		if strings.Contains(haystack, marker) {
			return Verdict{
				Success: false,
				Marker:  marker,
				Message: fmt.Sprintf("directory reported a problem (matched %q)", marker),
			}
		}
	}
	return Verdict{
		Success: true,
		Message: "no outcome markers found; assuming submitted",
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// visibleText extracts the user-visible text of a page, skipping script,
// style and noscript subtrees. A parse failure falls back to the raw markup,
// which still lets substring markers match.
func visibleText(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return raw
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				b.WriteString(text)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return b.String()
}
