package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/listforge/listforge/api/schemas"
)

func newTestClassifier() *Classifier {
	return NewClassifier(
		[]string{"thank you", "submitted", "pending review"},
		[]string{"error", "invalid", "required field"},
	)
}

func TestClassify_SuccessMarkerWins(t *testing.T) {
	t.Parallel()

	c := newTestClassifier()
	v := c.Classify(schemas.SubmitOutcome{
		HTML: "<html><body><p>Thank you! Your listing is pending review.</p></body></html>",
	})
	assert.True(t, v.Success)
	assert.Equal(t, "thank you", v.Marker)
}

func TestClassify_SuccessBeatsFailureOnSamePage(t *testing.T) {
	t.Parallel()

	c := newTestClassifier()
	v := c.Classify(schemas.SubmitOutcome{
		HTML: "<html><body>Submitted. Note: fix any error in your profile later.</body></html>",
	})
	assert.True(t, v.Success, "success markers are checked before failure markers")
}

func TestClassify_FailureMarker(t *testing.T) {
	t.Parallel()

	c := newTestClassifier()
	v := c.Classify(schemas.SubmitOutcome{
		HTML: "<html><body>The email address is invalid.</body></html>",
	})
	assert.False(t, v.Success)
	assert.Equal(t, "invalid", v.Marker)
}

func TestClassify_NoMarkersDefaultsToSuccess(t *testing.T) {
	t.Parallel()

	c := newTestClassifier()
	v := c.Classify(schemas.SubmitOutcome{
		HTML: "<html><body>Your listing will appear shortly.</body></html>",
	})
	assert.True(t, v.Success)
	assert.Empty(t, v.Marker)
}

func TestClassify_MarkerInFinalURL(t *testing.T) {
	t.Parallel()

	c := newTestClassifier()
	v := c.Classify(schemas.SubmitOutcome{
		FinalURL: "https://dir.example.com/submitted?id=9",
		HTML:     "<html><body></body></html>",
	})
	assert.True(t, v.Success)
	assert.Equal(t, "submitted", v.Marker)
}

func TestClassify_ScriptTextIsInvisible(t *testing.T) {
	t.Parallel()

	c := newTestClassifier()
	v := c.Classify(schemas.SubmitOutcome{
		HTML: `<html><head><script>console.log("error tracking loaded")</script></head><body>All done.</body></html>`,
	})
	assert.True(t, v.Success, "markers inside script tags must not classify the page")
}

func TestVisibleText_FallsBackOnUnparseableInput(t *testing.T) {
	t.Parallel()

	// html.Parse is extremely tolerant; the fallback just needs to keep
	// substring matching possible for whatever we got back.
	text := visibleText("plain words with no markup")
	assert.Contains(t, text, "plain words")
}
