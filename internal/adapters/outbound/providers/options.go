package providers

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options carries what every provider constructor needs. Zero values fall
// back to production defaults and credentials from the environment.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Log            zerolog.Logger
	MaxRetries     int
	RetryBaseDelay time.Duration
	MaxTokens      int
}

func (o Options) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: 5 * time.Minute}
}

func (o Options) baseURL(def string) string {
	if o.BaseURL != "" {
		return o.BaseURL
	}
	return def
}

func (o Options) maxTokens() int {
	if o.MaxTokens > 0 {
		return o.MaxTokens
	}
	return 16384
}

func (o Options) retry() retryPolicy {
	p := retryPolicy{maxRetries: 3, baseDelay: time.Second}
	if o.MaxRetries > 0 {
		p.maxRetries = o.MaxRetries
	}
	if o.RetryBaseDelay > 0 {
		p.baseDelay = o.RetryBaseDelay
	}
	return p
}

// apiKey returns the explicit key or the first non-empty environment variable.
func (o Options) apiKey(envVars ...string) string {
	if o.APIKey != "" {
		return o.APIKey
	}
	for _, v := range envVars {
		if key := os.Getenv(v); key != "" {
			return key
		}
	}
	return ""
}
