// Package detector turns raw directory page HTML into a structured form
// description using an LLM. Detection is best-effort: a model failure or
// unparseable reply degrades to an empty structure rather than aborting
// the submission attempt that asked for it.
package detector

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/listforge/listforge/api/schemas"
	"github.com/listforge/listforge/internal/llmclient"
	"github.com/listforge/listforge/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxHTMLChars bounds the page snippet sent to the model.
const maxHTMLChars = 10000

const systemPrompt = `You are an expert at analyzing HTML submission forms on software directory websites.
Given page HTML, identify the submission form and describe every input the form collects.
Respond with a single JSON object and nothing else. The object has this shape:
{
  "form_action": "<form action URL or empty string>",
  "submit_button_selector": "<CSS selector for the submit button>",
  "fields": [
    {
      "field_name": "<what the field collects, lowercase snake_case>",
      "field_type": "<text|email|url|textarea|select|file|checkbox|radio>",
      "field_label": "<visible label text>",
      "selector": "<CSS selector that uniquely targets the input>",
      "placeholder": "<placeholder text or empty string>",
      "is_required": <true|false>,
      "confidence_score": <integer 0-100>,
      "options": ["<select options if field_type is select>"]
    }
  ]
}
Prefer id-based selectors, then name attributes, then stable class names.
If the page contains no submission form, return {"fields": []}.`

// AIFormDetector implements schemas.FormDetector on top of an LLM client.
type AIFormDetector struct {
	client      llmclient.Client
	temperature float32
	logger      *zap.Logger
}

var _ schemas.FormDetector = (*AIFormDetector)(nil)

func NewAIFormDetector(client llmclient.Client, temperature float32) *AIFormDetector {
	return &AIFormDetector{
		client:      client,
		temperature: temperature,
		logger:      observability.GetLogger().Named("detector"),
	}
}

// Detect asks the model to describe the submission form found in html.
// It never returns a nil structure alongside a nil error.
func (d *AIFormDetector) Detect(ctx context.Context, html, pageURL string) (*schemas.FormStructure, error) {
	snippet := html
	if len(snippet) > maxHTMLChars {
		snippet = snippet[:maxHTMLChars]
	}

	userPrompt := fmt.Sprintf("Page URL: %s\n\nHTML:\n%s", pageURL, snippet)

	raw, err := d.client.GenerateResponse(ctx, llmclient.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Options: llmclient.GenerationOptions{
			Temperature:     d.temperature,
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		d.logger.Warn("Form detection model call failed, degrading to empty structure",
			zap.String("page_url", pageURL), zap.Error(err))
		return &schemas.FormStructure{}, nil
	}

	structure, err := ParseStructure(raw)
	if err != nil {
		d.logger.Warn("Form detection reply was not parseable, degrading to empty structure",
			zap.String("page_url", pageURL), zap.Error(err))
		return &schemas.FormStructure{}, nil
	}

	d.logger.Info("Form structure detected",
		zap.String("page_url", pageURL),
		zap.Int("field_count", len(structure.Fields)))
	return structure, nil
}

// ParseStructure decodes a model reply into a FormStructure. It tolerates
// markdown code fences and leading prose, standardizes field names, and
// drops fields that carry no selector.
func ParseStructure(raw string) (*schemas.FormStructure, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty model reply")
	}

	var structure schemas.FormStructure
	if err := json.UnmarshalFromString(cleaned, &structure); err != nil {
		return nil, fmt.Errorf("decode form structure: %w", err)
	}

	kept := structure.Fields[:0]
	for _, field := range structure.Fields {
		if field.Selector == "" {
			continue
		}
		field.FieldName = schemas.StandardizeFieldName(string(field.FieldName), field.Label)
		kept = append(kept, field)
	}
	structure.Fields = kept
	return &structure, nil
}

// stripFences removes a surrounding ```json ... ``` fence and any prose
// before the first brace.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndex(s, "}"); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}
	return strings.TrimSpace(s)
}
