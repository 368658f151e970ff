package providers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/noxaudit/noxaudit/internal/adapters/outbound/providers"
	"github.com/noxaudit/noxaudit/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleFiles = []domain.FileContent{{Path: "app.py", Content: "import os\n"}}

const findingsJSON = `{"findings":[{"severity":"medium","file":"app.py","line":1,"title":"Unused import","description":"os is unused"}]}`

func resultLine(customID, typ, text string) string {
	line := map[string]any{
		"custom_id": customID,
		"result": map[string]any{
			"type": typ,
			"message": map[string]any{
				"content": []map[string]string{{"type": "text", "text": text}},
				"usage":   map[string]int{"input_tokens": 1200, "output_tokens": 80, "cache_read_input_tokens": 10},
			},
		},
	}
	b, _ := json.Marshal(line)
	return string(b)
}

type anthropicFake struct {
	status  string
	counts  map[string]int
	results string
	created atomic.Int32
	lastReq map[string]any
}

func (f *anthropicFake) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("POST /v1/messages/batches", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastReq))
		f.created.Add(1)
		fmt.Fprint(w, `{"id":"msgbatch_01","processing_status":"in_progress"}`)
	})
	mux.HandleFunc("GET /v1/messages/batches/msgbatch_01", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"id":                "msgbatch_01",
			"processing_status": f.status,
			"request_counts":    f.counts,
		}
		if f.status == "ended" && f.results != "" {
			body["results_url"] = srv.URL + "/results"
		}
		_ = json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("GET /results", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, f.results)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newAnthropic(t *testing.T, url string) *providers.Anthropic {
	t.Helper()
	p, err := providers.NewAnthropic("claude-haiku-4-5", providers.Options{
		APIKey:         "test-key",
		BaseURL:        url,
		RetryBaseDelay: time.Millisecond,
	})
	require.NoError(t, err)
	return p
}

func TestAnthropic_SubmitSendsOneRequest(t *testing.T) {
	fake := &anthropicFake{}
	p := newAnthropic(t, fake.server(t).URL)

	id, err := p.Submit(context.Background(), domain.BatchRequest{
		Files:           sampleFiles,
		SystemPrompt:    "be thorough",
		DecisionContext: "## Prior decisions",
		CustomID:        "requests-security",
	})
	require.NoError(t, err)
	assert.Equal(t, "msgbatch_01", id)
	assert.Equal(t, int32(1), fake.created.Load())

	reqs := fake.lastReq["requests"].([]any)
	require.Len(t, reqs, 1)
	item := reqs[0].(map[string]any)
	assert.Equal(t, "requests-security", item["custom_id"])
	params := item["params"].(map[string]any)
	assert.Equal(t, "claude-haiku-4-5", params["model"])
	assert.Equal(t, "be thorough", params["system"])
}

func TestAnthropic_SubmitRejectsEmptyFiles(t *testing.T) {
	p := newAnthropic(t, "http://unused.invalid")
	_, err := p.Submit(context.Background(), domain.BatchRequest{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAnthropic_PollInProgress(t *testing.T) {
	fake := &anthropicFake{status: "in_progress", counts: map[string]int{"processing": 1}}
	p := newAnthropic(t, fake.server(t).URL)

	st, err := p.Poll(context.Background(), "msgbatch_01", "security")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchRunning, st.State)
	assert.False(t, st.Ended())
	assert.Nil(t, st.Findings)
	assert.Equal(t, 1, st.Counts.Processing)
}

func TestAnthropic_PollSucceeded(t *testing.T) {
	fake := &anthropicFake{
		status:  "ended",
		counts:  map[string]int{"succeeded": 1},
		results: resultLine("requests-security", "succeeded", "```json\n"+findingsJSON+"\n```") + "\n",
	}
	p := newAnthropic(t, fake.server(t).URL)

	st, err := p.Poll(context.Background(), "msgbatch_01", "security")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchEnded, st.State)
	assert.Equal(t, domain.OutcomeSucceeded, st.Outcome)
	require.Len(t, st.Findings, 1)
	assert.Equal(t, "security", st.Findings[0].Focus)
	assert.Equal(t, domain.Usage{InputTokens: 1200, OutputTokens: 80, CacheReadTokens: 10}, p.LastUsage())

	again, err := p.Poll(context.Background(), "msgbatch_01", "security")
	require.NoError(t, err)
	assert.Equal(t, domain.FindingIDs(st.Findings), domain.FindingIDs(again.Findings))
}

func TestAnthropic_PollCancelledIsEmptyNotError(t *testing.T) {
	fake := &anthropicFake{
		status:  "ended",
		counts:  map[string]int{"canceled": 1},
		results: resultLine("requests-security", "canceled", "") + "\n",
	}
	p := newAnthropic(t, fake.server(t).URL)

	st, err := p.Poll(context.Background(), "msgbatch_01", "security")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchEnded, st.State)
	assert.Equal(t, domain.OutcomeCancelled, st.Outcome)
	assert.NotNil(t, st.Findings)
	assert.Empty(t, st.Findings)
}

func TestAnthropic_PollEndedWithoutResults(t *testing.T) {
	fake := &anthropicFake{status: "ended", counts: map[string]int{"expired": 1}}
	p := newAnthropic(t, fake.server(t).URL)

	st, err := p.Poll(context.Background(), "msgbatch_01", "")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeExpired, st.Outcome)
	assert.Empty(t, st.Findings)
}

func TestAnthropic_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"id":"msgbatch_02"}`)
	}))
	t.Cleanup(srv.Close)
	p := newAnthropic(t, srv.URL)

	id, err := p.Submit(context.Background(), domain.BatchRequest{Files: sampleFiles})
	require.NoError(t, err)
	assert.Equal(t, "msgbatch_02", id)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnthropic_AuthFailureIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid x-api-key"}`)
	}))
	t.Cleanup(srv.Close)
	p := newAnthropic(t, srv.URL)

	_, err := p.Submit(context.Background(), domain.BatchRequest{Files: sampleFiles})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.True(t, providers.IsAuthError(err))
}

func TestAnthropic_Classify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		text := `{"findings":[{"severity":"low","file":"b.py","title":"audit-relevant","description":"handles auth"}]}`
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": text}},
			"usage":   map[string]int{"input_tokens": 50, "output_tokens": 5},
		})
	}))
	t.Cleanup(srv.Close)
	p := newAnthropic(t, srv.URL)

	files := []domain.FileContent{{Path: "a.py"}, {Path: "b.py"}}
	out, err := p.Classify(context.Background(), files, providers.ClassificationPrompt([]string{"security"}))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.False(t, out[0].Relevant)
	assert.True(t, out[1].Relevant)
	assert.Equal(t, "handles auth", out[1].Reason)
	assert.Equal(t, 50, p.LastUsage().InputTokens)
}
