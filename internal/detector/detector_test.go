package detector

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listforge/listforge/api/schemas"
	"github.com/listforge/listforge/internal/llmclient"
	"github.com/listforge/listforge/internal/observability"
)

func TestMain(m *testing.M) {
	observability.ResetForTest()
	os.Exit(m.Run())
}

type stubClient struct {
	reply      string
	err        error
	lastPrompt string
}

func (s *stubClient) GenerateResponse(_ context.Context, req llmclient.GenerationRequest) (string, error) {
	s.lastPrompt = req.UserPrompt
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

const goodReply = `{
  "form_action": "/submit",
  "submit_button_selector": "button[type=submit]",
  "fields": [
    {"field_name": "product name", "field_type": "text", "field_label": "Your product", "selector": "#name", "is_required": true, "confidence_score": 95},
    {"field_name": "homepage", "field_type": "url", "field_label": "Website link", "selector": "#url", "confidence_score": 90},
    {"field_name": "orphan", "field_type": "text", "field_label": "No selector", "selector": ""}
  ]
}`

func TestDetect_ParsesAndStandardizes(t *testing.T) {
	t.Parallel()

	client := &stubClient{reply: goodReply}
	d := NewAIFormDetector(client, 0.1)

	structure, err := d.Detect(context.Background(), "<html><form></form></html>", "https://dir.example.com/submit")
	require.NoError(t, err)
	require.NotNil(t, structure)

	assert.Equal(t, "/submit", structure.FormAction)
	assert.Equal(t, "button[type=submit]", structure.SubmitButtonSelector)
	require.Len(t, structure.Fields, 2, "field without a selector is dropped")
	assert.Equal(t, schemas.FieldCompanyName, structure.Fields[0].FieldName)
	assert.Equal(t, schemas.FieldWebsiteURL, structure.Fields[1].FieldName)
}

func TestDetect_TruncatesLargeHTML(t *testing.T) {
	t.Parallel()

	client := &stubClient{reply: `{"fields": []}`}
	d := NewAIFormDetector(client, 0.1)

	html := strings.Repeat("x", maxHTMLChars*3)
	_, err := d.Detect(context.Background(), html, "https://dir.example.com")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(client.lastPrompt), maxHTMLChars+200)
}

func TestDetect_DegradesOnModelError(t *testing.T) {
	t.Parallel()

	client := &stubClient{err: fmt.Errorf("model unavailable")}
	d := NewAIFormDetector(client, 0.1)

	structure, err := d.Detect(context.Background(), "<html></html>", "https://dir.example.com")
	require.NoError(t, err)
	require.NotNil(t, structure)
	assert.Empty(t, structure.Fields)
}

func TestDetect_DegradesOnGarbageReply(t *testing.T) {
	t.Parallel()

	client := &stubClient{reply: "I could not find a form on this page, sorry!"}
	d := NewAIFormDetector(client, 0.1)

	structure, err := d.Detect(context.Background(), "<html></html>", "https://dir.example.com")
	require.NoError(t, err)
	require.NotNil(t, structure)
	assert.Empty(t, structure.Fields)
}

func TestParseStructure_StripsCodeFences(t *testing.T) {
	t.Parallel()

	fenced := "Here is the structure:\n```json\n" + goodReply + "\n```\n"
	structure, err := ParseStructure(fenced)
	require.NoError(t, err)
	assert.Len(t, structure.Fields, 2)
}

func TestParseStructure_RejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := ParseStructure("   ")
	assert.Error(t, err)
}
