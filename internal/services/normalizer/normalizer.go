package normalizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/interfaces"
	"github.com/ternarybob/vacans/internal/models"
)

// ErrNotJobPosting signals that the model classified the page as non-job
// content (listings index, login wall, error page). Callers skip the URL
// silently; this is filtered content, not a failure.
var ErrNotJobPosting = errors.New("not a job posting")

const (
	// maxContentLength bounds the raw text sent to the model
	maxContentLength = 4000
	// maxTaxonomyRoles bounds the role vocabulary in the prompt
	maxTaxonomyRoles = 100
)

// Normalizer turns raw extracted page text into a structured job record via
// a language-model call constrained to the role taxonomy.
type Normalizer struct {
	llm     interfaces.LLMService
	roles   interfaces.CredentialStorage
	logger  arbor.ILogger
}

// NewNormalizer creates a content normalizer
func NewNormalizer(llm interfaces.LLMService, roles interfaces.CredentialStorage, logger arbor.ILogger) *Normalizer {
	return &Normalizer{
		llm:    llm,
		roles:  roles,
		logger: logger,
	}
}

// Normalize sends the extracted text to the model and parses the structured
// response. Returns (nil, nil) when the model is unavailable or the response
// is unusable — the caller falls back to extraction-tier data. Returns
// ErrNotJobPosting for the explicit non-job sentinel.
func (n *Normalizer) Normalize(ctx context.Context, rawText, companyName, sourceURL string) (*models.NormalizedJob, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, nil
	}

	prompt := n.buildPrompt(ctx, rawText, companyName, sourceURL)

	response, err := n.llm.Chat(ctx, []interfaces.Message{
		{Role: "user", Content: prompt},
	})
	if err != nil {
		n.logger.Warn().
			Str("url", sourceURL).
			Err(err).
			Msg("Model call failed, falling back to extraction data")
		return nil, nil
	}

	return n.parseResponse(response, sourceURL)
}

// buildPrompt composes the extraction prompt: bounded raw text, company
// context, and the role taxonomy the model must choose from.
func (n *Normalizer) buildPrompt(ctx context.Context, rawText, companyName, sourceURL string) string {
	rawText = truncateOnRuneBoundary(rawText, maxContentLength)

	taxonomy := n.taxonomyNames(ctx)

	var b strings.Builder
	b.WriteString("Extract job posting details from the following page content.\n\n")
	fmt.Fprintf(&b, "Company: %s\nSource URL: %s\n\n", companyName, sourceURL)

	if len(taxonomy) > 0 {
		b.WriteString("Valid job roles (pick the best match, or the nearest standard equivalent if none fit):\n")
		b.WriteString(strings.Join(taxonomy, ", "))
		b.WriteString("\n\n")
	}

	b.WriteString(`Return ONLY a JSON object with exactly these fields:
{
  "title": "job title",
  "job_role": "best matching role name",
  "description": "cleaned job description",
  "location": "location or 'Remote'",
  "experience_required": "experience band, e.g. '3-5 years'",
  "salary_range": "salary range or null",
  "job_type": "full_time|part_time|contract|internship",
  "is_remote": true or false,
  "direct_apply_link": "application URL if present"
}

If the content is not a single job posting (a listings page, login wall, or error page), return exactly: {"error": "Not a job posting"}

Page content:
`)
	b.WriteString(rawText)

	return b.String()
}

// taxonomyNames returns up to maxTaxonomyRoles role names; an empty list on
// storage failure just omits the taxonomy constraint.
func (n *Normalizer) taxonomyNames(ctx context.Context) []string {
	roles, err := n.roles.ListRoles(ctx)
	if err != nil {
		n.logger.Debug().Err(err).Msg("Failed to load role taxonomy for prompt")
		return nil
	}

	if len(roles) > maxTaxonomyRoles {
		roles = roles[:maxTaxonomyRoles]
	}

	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names
}

// parseResponse extracts the JSON object from the model output, handling
// code fences and surrounding prose.
func (n *Normalizer) parseResponse(response, sourceURL string) (*models.NormalizedJob, error) {
	jsonText := extractJSON(response)
	if jsonText == "" {
		n.logger.Warn().Str("url", sourceURL).Msg("Model response contained no JSON, falling back")
		return nil, nil
	}

	// Check the sentinel before the full schema: the error shape is a
	// deliberate model output, not a parse failure
	var sentinel struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(jsonText), &sentinel); err == nil && sentinel.Error != "" {
		return nil, ErrNotJobPosting
	}

	var job models.NormalizedJob
	if err := json.Unmarshal([]byte(jsonText), &job); err != nil {
		n.logger.Warn().Str("url", sourceURL).Err(err).Msg("Model response was not parseable JSON, falling back")
		return nil, nil
	}

	if job.Title == "" && job.Description == "" {
		return nil, nil
	}

	return &job, nil
}

// truncateOnRuneBoundary caps s at max bytes without splitting a UTF-8 rune
func truncateOnRuneBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// extractJSON pulls the first JSON object out of a model response that may
// be wrapped in markdown code fences or prose.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```json")
		response = strings.TrimPrefix(response, "```")
		if idx := strings.Index(response, "```"); idx >= 0 {
			response = response[:idx]
		}
		response = strings.TrimSpace(response)
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return ""
	}
	return response[start : end+1]
}
