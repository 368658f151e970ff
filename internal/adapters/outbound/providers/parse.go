package providers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/noxaudit/noxaudit/internal/domain"
)

const findingSchema = `{
  "type": "object",
  "properties": {
    "findings": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "severity": {"type": "string", "enum": ["high", "medium", "low"]},
          "file": {"type": "string"},
          "line": {"type": ["integer", "null"]},
          "title": {"type": "string"},
          "description": {"type": "string"},
          "suggestion": {"type": ["string", "null"]},
          "focus": {"type": ["string", "null"]}
        },
        "required": ["severity", "file", "title", "description"]
      }
    }
  },
  "required": ["findings"]
}`

// buildUserMessage renders files and prior decisions into the review request.
func buildUserMessage(files []domain.FileContent, decisionContext string) string {
	var b strings.Builder
	b.WriteString("Review the following codebase files and report any findings.\n\n")
	if decisionContext != "" {
		b.WriteString(decisionContext)
		b.WriteString("\n")
	}
	b.WriteString("## Files\n\n")
	for i, f := range files {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "### `%s`\n```\n%s\n```", f.Path, f.Content)
	}
	b.WriteString("\n\nRespond with a JSON object matching this schema:\n```json\n")
	b.WriteString(findingSchema)
	b.WriteString("\n```\n\nReturn ONLY the JSON object, no other text.")
	return b.String()
}

// stripFence extracts the body of a ```json (or bare ```) block when present.
func stripFence(text string) string {
	if _, after, ok := strings.Cut(text, "```json"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	if _, after, ok := strings.Cut(text, "```"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(text)
}

// flexLine accepts an integer, an integral float, a numeric string or null.
type flexLine struct{ v *int }

func (l *flexLine) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		l.v = nil
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("line %q is not a number", s)
	}
	l.v = domain.IntPtr(int(f))
	return nil
}

type rawFinding struct {
	Severity    string   `json:"severity"`
	File        string   `json:"file"`
	Line        flexLine `json:"line"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Suggestion  *string  `json:"suggestion"`
	Focus       *string  `json:"focus"`
}

type rawFindings struct {
	Findings []rawFinding `json:"findings"`
}

func normalizeSeverity(s string) (domain.Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return domain.SeverityHigh, nil
	case "info", "informational":
		return domain.SeverityLow, nil
	}
	return domain.ParseSeverity(strings.ToLower(strings.TrimSpace(s)))
}

// ParseFindings decodes a provider's text output. A finding's own focus wins
// over defaultFocus; identity is computed from the resolved focus.
func ParseFindings(text, defaultFocus string) ([]domain.Finding, error) {
	var data rawFindings
	if err := json.Unmarshal([]byte(stripFence(text)), &data); err != nil {
		return nil, fmt.Errorf("decoding findings: %w", err)
	}

	findings := make([]domain.Finding, 0, len(data.Findings))
	for i, r := range data.Findings {
		if r.File == "" || r.Title == "" {
			return nil, fmt.Errorf("finding %d: file and title are required", i)
		}
		sev, err := normalizeSeverity(r.Severity)
		if err != nil {
			return nil, fmt.Errorf("finding %d: %w", i, err)
		}
		focus := defaultFocus
		if r.Focus != nil && strings.TrimSpace(*r.Focus) != "" {
			focus = strings.TrimSpace(*r.Focus)
		}
		f := domain.Finding{
			ID:          domain.FindingID(r.File, r.Title, r.Line.v, focus),
			Severity:    sev,
			File:        r.File,
			Line:        r.Line.v,
			Title:       r.Title,
			Description: r.Description,
			Focus:       focus,
		}
		if r.Suggestion != nil {
			f.Suggestion = *r.Suggestion
		}
		findings = append(findings, f)
	}
	return findings, nil
}

const classificationPrompt = `You are a file relevance classifier for a code audit tool.

Audit focus areas: %[1]s

Review the provided files and identify which are relevant for auditing the specified focus areas.

For each file that IS relevant, output a finding with:
  - severity: "low"
  - title: "audit-relevant"
  - file: <exact file path as provided, do not change the path>
  - description: one-sentence reason why this file is worth auditing for %[1]s

For files that are clearly NOT relevant (auto-generated files, lock files, binary build
artifacts, or configs completely unrelated to %[1]s), omit them entirely.

When in doubt, INCLUDE the file. The goal is to filter only obviously irrelevant files
to reduce API costs, not to perform a detailed analysis.`

// ClassificationPrompt builds the pre-pass system prompt for focus names.
func ClassificationPrompt(focusNames []string) string {
	return fmt.Sprintf(classificationPrompt, strings.Join(focusNames, ", "))
}

// parseClassifications maps a classification response onto the input files.
// The response uses the finding schema; each reported file is relevant.
func parseClassifications(text string, files []domain.FileContent) ([]domain.Classification, error) {
	var data rawFindings
	if err := json.Unmarshal([]byte(stripFence(text)), &data); err != nil {
		return nil, fmt.Errorf("decoding classification: %w", err)
	}
	reasons := make(map[string]string, len(data.Findings))
	for _, r := range data.Findings {
		if _, seen := reasons[r.File]; !seen {
			reasons[r.File] = r.Description
		}
	}

	out := make([]domain.Classification, 0, len(files))
	for _, f := range files {
		reason, relevant := reasons[f.Path]
		out = append(out, domain.Classification{Path: f.Path, Relevant: relevant, Reason: reason})
	}
	return out, nil
}
