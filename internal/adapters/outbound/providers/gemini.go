package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noxaudit/noxaudit/internal/domain"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultGeminiModel is used when no model is configured.
	DefaultGeminiModel = "gemini-2.5-flash"
)

// Gemini implements domain.Provider over the Gemini Batch API with inline
// requests.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	retry   retryPolicy
	log     zerolog.Logger

	mu        sync.Mutex
	lastUsage domain.Usage
}

// NewGemini creates a Gemini provider. The key comes from opts,
// GEMINI_API_KEY or GOOGLE_API_KEY.
func NewGemini(model string, opts Options) (*Gemini, error) {
	key := opts.apiKey("GEMINI_API_KEY", "GOOGLE_API_KEY")
	if key == "" {
		return nil, domain.NewConfigurationError("new_provider", "gemini",
			fmt.Errorf("GEMINI_API_KEY (or GOOGLE_API_KEY) environment variable is not set"))
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{
		apiKey:  key,
		model:   strings.TrimPrefix(model, "models/"),
		baseURL: strings.TrimSuffix(opts.baseURL(geminiBaseURL), "/"),
		client:  opts.client(),
		retry:   opts.retry(),
		log:     opts.Log.With().Str("provider", "gemini").Logger(),
	}, nil
}

func (g *Gemini) Name() string  { return "gemini" }
func (g *Gemini) Model() string { return g.model }

func (g *Gemini) LastUsage() domain.Usage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastUsage
}

func (g *Gemini) setUsage(u geminiUsage) {
	g.mu.Lock()
	g.lastUsage = domain.Usage{
		InputTokens:     u.PromptTokenCount,
		OutputTokens:    u.CandidatesTokenCount,
		CacheReadTokens: u.CachedContentTokenCount,
	}
	g.mu.Unlock()
}

func (g *Gemini) headers() map[string]string {
	return map[string]string{"x-goog-api-key": g.apiKey}
}

func contentRequest(system, user string) geminiRequest {
	return geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: system}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: user}}}},
	}
}

// Submit creates a batch job holding one inline request.
func (g *Gemini) Submit(ctx context.Context, req domain.BatchRequest) (string, error) {
	if len(req.Files) == 0 {
		return "", domain.NewValidationError("submit", "gemini", fmt.Errorf("no files to audit"))
	}

	body := geminiBatchCreate{Batch: geminiBatchSpec{
		DisplayName: "noxaudit-" + req.CustomID,
		InputConfig: geminiInputConfig{Requests: geminiInlineRequests{Requests: []geminiInlineRequest{{
			Request:  contentRequest(req.SystemPrompt, buildUserMessage(req.Files, req.DecisionContext)),
			Metadata: map[string]string{"key": req.CustomID},
		}}}},
	}}

	var op geminiOperation
	url := fmt.Sprintf("%s/models/%s:batchGenerateContent", g.baseURL, g.model)
	if err := doJSON(ctx, g.client, g.retry, http.MethodPost, url, g.headers(), body, &op); err != nil {
		return "", domain.NewProviderError("submit", "gemini", err)
	}
	name := op.batchName()
	if name == "" {
		return "", domain.NewProviderError("submit", "gemini", fmt.Errorf("response carried no batch name"))
	}
	g.log.Debug().Str("batch_id", name).Int("files", len(req.Files)).Msg("batch submitted")
	return name, nil
}

// Poll reads the batch job and, once it has succeeded, its inline responses.
func (g *Gemini) Poll(ctx context.Context, batchID, defaultFocus string) (domain.BatchStatus, error) {
	var op geminiOperation
	url := g.baseURL + "/" + strings.TrimPrefix(batchID, "/")
	if err := doJSON(ctx, g.client, g.retry, http.MethodGet, url, g.headers(), nil, &op); err != nil {
		return domain.BatchStatus{}, domain.NewProviderError("poll", batchID, err)
	}

	state, outcome := mapGeminiState(op.state())
	status := domain.BatchStatus{BatchID: batchID, State: state, Outcome: outcome}
	switch {
	case state != domain.BatchEnded:
		status.Counts.Processing = 1
		return status, nil
	case outcome == domain.OutcomeSucceeded:
		status.Counts.Succeeded = 1
	default:
		status.Counts.Errored = 1
	}

	status.Findings = []domain.Finding{}
	if outcome != domain.OutcomeSucceeded {
		return status, nil
	}
	for _, r := range op.inlined() {
		if r.Error != nil {
			g.log.Warn().Str("batch_id", batchID).Str("error", r.Error.Message).Msg("batch request failed")
			continue
		}
		if r.Response == nil {
			continue
		}
		g.setUsage(r.Response.UsageMetadata)
		text := r.Response.text()
		if text == "" {
			continue
		}
		findings, err := ParseFindings(text, defaultFocus)
		if err != nil {
			return domain.BatchStatus{}, domain.NewProviderError("parse_results", batchID, err)
		}
		status.Findings = append(status.Findings, findings...)
	}
	return status, nil
}

// Classify runs the synchronous file-relevance pre-pass.
func (g *Gemini) Classify(ctx context.Context, files []domain.FileContent, prompt string) ([]domain.Classification, error) {
	var resp geminiResponse
	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	body := contentRequest(prompt, buildUserMessage(files, ""))
	if err := doJSON(ctx, g.client, g.retry, http.MethodPost, url, g.headers(), body, &resp); err != nil {
		return nil, domain.NewProviderError("classify", "gemini", err)
	}
	g.setUsage(resp.UsageMetadata)
	out, err := parseClassifications(resp.text(), files)
	if err != nil {
		return nil, domain.NewProviderError("classify", "gemini", err)
	}
	return out, nil
}

// mapGeminiState accepts both the BATCH_STATE_* and JOB_STATE_* spellings.
func mapGeminiState(raw string) (domain.BatchState, domain.BatchOutcome) {
	s := strings.TrimPrefix(strings.TrimPrefix(raw, "BATCH_STATE_"), "JOB_STATE_")
	switch s {
	case "SUCCEEDED":
		return domain.BatchEnded, domain.OutcomeSucceeded
	case "FAILED":
		return domain.BatchEnded, domain.OutcomeFailed
	case "CANCELLED":
		return domain.BatchEnded, domain.OutcomeCancelled
	case "EXPIRED":
		return domain.BatchEnded, domain.OutcomeExpired
	case "RUNNING":
		return domain.BatchRunning, ""
	default:
		return domain.BatchPending, ""
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiUsage struct {
	PromptTokenCount        int `json:"promptTokenCount"`
	CandidatesTokenCount    int `json:"candidatesTokenCount"`
	CachedContentTokenCount int `json:"cachedContentTokenCount"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata geminiUsage `json:"usageMetadata"`
}

func (r geminiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

type geminiInlineRequest struct {
	Request  geminiRequest     `json:"request"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type geminiInlineRequests struct {
	Requests []geminiInlineRequest `json:"requests"`
}

type geminiInputConfig struct {
	Requests geminiInlineRequests `json:"requests"`
}

type geminiBatchSpec struct {
	DisplayName string            `json:"display_name"`
	InputConfig geminiInputConfig `json:"input_config"`
}

type geminiBatchCreate struct {
	Batch geminiBatchSpec `json:"batch"`
}

type geminiStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type geminiInlinedResponse struct {
	Response *geminiResponse `json:"response"`
	Error    *geminiStatus   `json:"error"`
}

type geminiBatchOutput struct {
	InlinedResponses *struct {
		InlinedResponses []geminiInlinedResponse `json:"inlinedResponses"`
	} `json:"inlinedResponses"`
}

type geminiBatchMeta struct {
	Name   string             `json:"name"`
	State  string             `json:"state"`
	Output *geminiBatchOutput `json:"output"`
}

// geminiOperation covers both the long-running operation envelope and a bare
// batch resource, which the API returns depending on the endpoint.
type geminiOperation struct {
	Name     string             `json:"name"`
	State    string             `json:"state"`
	Done     bool               `json:"done"`
	Metadata *geminiBatchMeta   `json:"metadata"`
	Response *geminiBatchOutput `json:"response"`
	Output   *geminiBatchOutput `json:"output"`
	Dest     *geminiBatchOutput `json:"dest"`
}

func (op geminiOperation) batchName() string {
	if op.Metadata != nil && op.Metadata.Name != "" {
		return op.Metadata.Name
	}
	return op.Name
}

func (op geminiOperation) state() string {
	if op.Metadata != nil && op.Metadata.State != "" {
		return op.Metadata.State
	}
	return op.State
}

func (op geminiOperation) inlined() []geminiInlinedResponse {
	candidates := []*geminiBatchOutput{op.Response, op.Output, op.Dest}
	if op.Metadata != nil {
		candidates = append(candidates, op.Metadata.Output)
	}
	for _, c := range candidates {
		if c != nil && c.InlinedResponses != nil {
			return c.InlinedResponses.InlinedResponses
		}
	}
	return nil
}
