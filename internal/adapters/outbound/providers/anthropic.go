package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noxaudit/noxaudit/internal/domain"
)

const (
	anthropicBaseURL    = "https://api.anthropic.com"
	anthropicAPIVersion = "2023-06-01"
	// DefaultAnthropicModel is used when no model is configured.
	DefaultAnthropicModel = "claude-sonnet-4-5"
)

// Anthropic implements domain.Provider over the Message Batches API.
type Anthropic struct {
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
	client    *http.Client
	retry     retryPolicy
	log       zerolog.Logger

	mu        sync.Mutex
	lastUsage domain.Usage
}

// NewAnthropic creates an Anthropic provider. The key comes from opts or
// ANTHROPIC_API_KEY.
func NewAnthropic(model string, opts Options) (*Anthropic, error) {
	key := opts.apiKey("ANTHROPIC_API_KEY")
	if key == "" {
		return nil, domain.NewConfigurationError("new_provider", "anthropic",
			fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set"))
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &Anthropic{
		apiKey:    key,
		model:     model,
		baseURL:   strings.TrimSuffix(opts.baseURL(anthropicBaseURL), "/"),
		maxTokens: opts.maxTokens(),
		client:    opts.client(),
		retry:     opts.retry(),
		log:       opts.Log.With().Str("provider", "anthropic").Logger(),
	}, nil
}

func (a *Anthropic) Name() string  { return "anthropic" }
func (a *Anthropic) Model() string { return a.model }

func (a *Anthropic) LastUsage() domain.Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastUsage
}

func (a *Anthropic) setUsage(u anthropicUsage) {
	a.mu.Lock()
	a.lastUsage = domain.Usage{
		InputTokens:      u.InputTokens,
		OutputTokens:     u.OutputTokens,
		CacheReadTokens:  u.CacheReadInputTokens,
		CacheWriteTokens: u.CacheCreationInputTokens,
	}
	a.mu.Unlock()
}

func (a *Anthropic) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}
}

func (a *Anthropic) params(system, user string) anthropicRequest {
	return anthropicRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: user}},
	}
}

// Submit creates a single-request message batch.
func (a *Anthropic) Submit(ctx context.Context, req domain.BatchRequest) (string, error) {
	if len(req.Files) == 0 {
		return "", domain.NewValidationError("submit", "anthropic", fmt.Errorf("no files to audit"))
	}

	body := anthropicBatchCreate{Requests: []anthropicBatchItem{{
		CustomID: req.CustomID,
		Params:   a.params(req.SystemPrompt, buildUserMessage(req.Files, req.DecisionContext)),
	}}}

	var batch anthropicBatch
	url := a.baseURL + "/v1/messages/batches"
	if err := doJSON(ctx, a.client, a.retry, http.MethodPost, url, a.headers(), body, &batch); err != nil {
		return "", domain.NewProviderError("submit", "anthropic", err)
	}
	if batch.ID == "" {
		return "", domain.NewProviderError("submit", "anthropic", fmt.Errorf("response carried no batch id"))
	}
	a.log.Debug().Str("batch_id", batch.ID).Int("files", len(req.Files)).Msg("batch submitted")
	return batch.ID, nil
}

// Poll reads the batch and, once it has ended, its results.
func (a *Anthropic) Poll(ctx context.Context, batchID, defaultFocus string) (domain.BatchStatus, error) {
	var batch anthropicBatch
	url := a.baseURL + "/v1/messages/batches/" + batchID
	if err := doJSON(ctx, a.client, a.retry, http.MethodGet, url, a.headers(), nil, &batch); err != nil {
		return domain.BatchStatus{}, domain.NewProviderError("poll", batchID, err)
	}

	status := domain.BatchStatus{
		BatchID: batchID,
		Counts: domain.RequestCounts{
			Processing: batch.RequestCounts.Processing,
			Succeeded:  batch.RequestCounts.Succeeded,
			Errored:    batch.RequestCounts.Errored,
		},
	}
	if batch.ProcessingStatus != "ended" {
		status.State = domain.BatchRunning
		return status, nil
	}

	status.State = domain.BatchEnded
	status.Findings = []domain.Finding{}
	if batch.ResultsURL == "" {
		status.Outcome = outcomeFromCounts(batch.RequestCounts)
		return status, nil
	}

	var raw []byte
	if err := doJSON(ctx, a.client, a.retry, http.MethodGet, batch.ResultsURL, a.headers(), nil, &raw); err != nil {
		return domain.BatchStatus{}, domain.NewProviderError("poll_results", batchID, err)
	}

	outcome := outcomeFromCounts(batch.RequestCounts)
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 32*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry anthropicResultLine
		if err := json.Unmarshal(line, &entry); err != nil {
			return domain.BatchStatus{}, domain.NewProviderError("poll_results", batchID, fmt.Errorf("decoding result line: %w", err))
		}
		switch entry.Result.Type {
		case "succeeded":
			outcome = domain.OutcomeSucceeded
			a.setUsage(entry.Result.Message.Usage)
			findings, err := ParseFindings(entry.Result.Message.text(), defaultFocus)
			if err != nil {
				return domain.BatchStatus{}, domain.NewProviderError("parse_results", batchID, err)
			}
			status.Findings = append(status.Findings, findings...)
		case "canceled":
			outcome = domain.OutcomeCancelled
		case "expired":
			outcome = domain.OutcomeExpired
		default:
			a.log.Warn().Str("batch_id", batchID).Str("custom_id", entry.CustomID).
				Str("result", entry.Result.Type).Msg("batch request did not succeed")
			outcome = domain.OutcomeFailed
		}
	}
	if err := sc.Err(); err != nil {
		return domain.BatchStatus{}, domain.NewProviderError("poll_results", batchID, err)
	}
	status.Outcome = outcome
	return status, nil
}

// Classify runs the synchronous file-relevance pre-pass.
func (a *Anthropic) Classify(ctx context.Context, files []domain.FileContent, prompt string) ([]domain.Classification, error) {
	var msg anthropicMessageResponse
	url := a.baseURL + "/v1/messages"
	body := a.params(prompt, buildUserMessage(files, ""))
	if err := doJSON(ctx, a.client, a.retry, http.MethodPost, url, a.headers(), body, &msg); err != nil {
		return nil, domain.NewProviderError("classify", "anthropic", err)
	}
	a.setUsage(msg.Usage)
	out, err := parseClassifications(msg.text(), files)
	if err != nil {
		return nil, domain.NewProviderError("classify", "anthropic", err)
	}
	return out, nil
}

func outcomeFromCounts(c anthropicCounts) domain.BatchOutcome {
	switch {
	case c.Succeeded > 0:
		return domain.OutcomeSucceeded
	case c.Canceled > 0:
		return domain.OutcomeCancelled
	case c.Expired > 0:
		return domain.OutcomeExpired
	default:
		return domain.OutcomeFailed
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicBatchCreate struct {
	Requests []anthropicBatchItem `json:"requests"`
}

type anthropicBatchItem struct {
	CustomID string           `json:"custom_id"`
	Params   anthropicRequest `json:"params"`
}

type anthropicCounts struct {
	Processing int `json:"processing"`
	Succeeded  int `json:"succeeded"`
	Errored    int `json:"errored"`
	Canceled   int `json:"canceled"`
	Expired    int `json:"expired"`
}

type anthropicBatch struct {
	ID               string          `json:"id"`
	ProcessingStatus string          `json:"processing_status"`
	RequestCounts    anthropicCounts `json:"request_counts"`
	ResultsURL       string          `json:"results_url"`
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

type anthropicMessageResponse struct {
	Content []anthropicBlock `json:"content"`
	Usage   anthropicUsage   `json:"usage"`
}

func (m anthropicMessageResponse) text() string {
	var b strings.Builder
	for _, c := range m.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

type anthropicResultLine struct {
	CustomID string `json:"custom_id"`
	Result   struct {
		Type    string                   `json:"type"`
		Message anthropicMessageResponse `json:"message"`
	} `json:"result"`
}
