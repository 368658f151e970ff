package domain

import (
	"strings"
	"time"
)

// ScheduleOff marks a weekday without a scheduled audit.
const ScheduleOff = "off"

// RepoConfig is one audited repository.
type RepoConfig struct {
	Name            string   `yaml:"name"               json:"name"                       validate:"required"`
	Path            string   `yaml:"path"               json:"path"                       validate:"required"`
	Provider        string   `yaml:"provider,omitempty" json:"provider,omitempty"`
	ExcludePatterns []string `yaml:"exclude,omitempty"  json:"exclude,omitempty"          validate:"dive,required"`
}

// DecisionsConfig locates the decision ledger. ExpiryDays of 0 disables
// expiry.
type DecisionsConfig struct {
	Path       string `yaml:"path"        json:"path"        validate:"required"`
	ExpiryDays int    `yaml:"expiry_days" json:"expiry_days" validate:"gte=0"`
}

// BatchConfig tunes the synchronous poll loop.
type BatchConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"     json:"poll_interval"     validate:"gt=0"`
	MaxPollInterval time.Duration `yaml:"max_poll_interval" json:"max_poll_interval" validate:"gtefield=PollInterval"`
	Timeout         time.Duration `yaml:"timeout"           json:"timeout"           validate:"gte=0"`
}

// PrepassConfig controls the file-relevance pre-pass.
type PrepassConfig struct {
	Enabled  bool   `yaml:"enabled"            json:"enabled"`
	MinFiles int    `yaml:"min_files"          json:"min_files"          validate:"gte=0"`
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"    json:"model,omitempty"`
}

// NotificationTarget is one place results are announced.
type NotificationTarget struct {
	Channel string `yaml:"channel" json:"channel" validate:"required,oneof=telegram"`
	Target  string `yaml:"target"  json:"target"  validate:"required"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level      string `yaml:"level"        json:"level"        validate:"omitempty,oneof=trace debug info warn error"`
	Format     string `yaml:"format"       json:"format"       validate:"omitempty,oneof=console json"`
	File       string `yaml:"file"         json:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"  json:"max_size_mb"  validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups"  json:"max_backups"  validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days" validate:"gte=0"`
}

// Config is the orchestrator configuration loaded from noxaudit.yml.
type Config struct {
	Repos          []RepoConfig         `yaml:"repos"           json:"repos"           validate:"unique=Name,dive"`
	Schedule       map[string]string    `yaml:"schedule"        json:"schedule"        validate:"dive,keys,oneof=monday tuesday wednesday thursday friday saturday sunday,endkeys,focusexpr"`
	Provider       string               `yaml:"provider"        json:"provider"        validate:"required"`
	Model          string               `yaml:"model"           json:"model,omitempty"`
	Decisions      DecisionsConfig      `yaml:"decisions"       json:"decisions"`
	ReportsDir     string               `yaml:"reports_dir"     json:"reports_dir"     validate:"required"`
	RunsDir        string               `yaml:"runs_dir"        json:"runs_dir"        validate:"required"`
	LedgerPath     string               `yaml:"ledger_path"     json:"ledger_path"     validate:"required"`
	CostLedgerPath string               `yaml:"cost_ledger"     json:"cost_ledger"`
	Batch          BatchConfig          `yaml:"batch"           json:"batch"`
	Prepass        PrepassConfig        `yaml:"prepass"         json:"prepass"`
	Notifications  []NotificationTarget `yaml:"notifications"   json:"notifications"   validate:"dive"`
	Logging        LoggingConfig        `yaml:"logging"         json:"logging"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Schedule: map[string]string{
			"monday":    "security",
			"tuesday":   "patterns",
			"wednesday": "docs",
			"thursday":  "testing",
			"friday":    "hygiene",
			"saturday":  "dependencies",
			"sunday":    ScheduleOff,
		},
		Provider: "anthropic",
		Decisions: DecisionsConfig{
			Path:       ".noxaudit/decisions.jsonl",
			ExpiryDays: 90,
		},
		ReportsDir:     ".noxaudit/reports",
		RunsDir:        ".noxaudit/runs",
		LedgerPath:     DefaultLedgerPath,
		CostLedgerPath: ".noxaudit/costs.db",
		Batch: BatchConfig{
			PollInterval:    30 * time.Second,
			MaxPollInterval: 5 * time.Minute,
			Timeout:         2 * time.Hour,
		},
		Prepass: PrepassConfig{MinFiles: 40},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Repo looks up a configured repository by name.
func (c Config) Repo(name string) (RepoConfig, bool) {
	for _, r := range c.Repos {
		if r.Name == name {
			return r, true
		}
	}
	return RepoConfig{}, false
}

// ProviderForRepo returns the repo's provider override, or the global one.
func (c Config) ProviderForRepo(name string) string {
	if r, ok := c.Repo(name); ok && r.Provider != "" {
		return r.Provider
	}
	return c.Provider
}

// GetTodayFocus returns the focus expression scheduled for now's weekday.
// Unscheduled days are off.
func (c Config) GetTodayFocus(now time.Time) string {
	day := strings.ToLower(now.Weekday().String())
	if f, ok := c.Schedule[day]; ok && f != "" {
		return f
	}
	return ScheduleOff
}
