package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/noxaudit/noxaudit/internal/domain"
	"github.com/noxaudit/noxaudit/internal/domain/focus"
)

// DefaultPath is the configuration file read when no --config flag is given.
const DefaultPath = "noxaudit.yml"

// YAMLLoader implements domain.ConfigLoader by reading a noxaudit.yml file.
type YAMLLoader struct {
	validate *validator.Validate
}

// New creates a YAMLLoader.
func New() *YAMLLoader {
	v := validator.New()
	_ = v.RegisterValidation("focusexpr", func(fl validator.FieldLevel) bool {
		expr := strings.TrimSpace(fl.Field().String())
		return expr == domain.ScheduleOff || focus.Valid(expr)
	})
	return &YAMLLoader{validate: v}
}

// Load reads the configuration at path. A missing file yields DefaultConfig.
// Explicit values are decoded over the defaults, so unset keys keep them.
func (l *YAMLLoader) Load(path string) (domain.Config, error) {
	cfg := domain.DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return domain.Config{}, domain.NewConfigurationError("load_config", path, err)
	}

	defaults := cfg.Schedule
	cfg.Schedule = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, domain.NewConfigurationError("load_config", path, fmt.Errorf("parsing yaml: %w", err))
	}
	normalize(&cfg, defaults)

	if err := l.Validate(cfg); err != nil {
		return domain.Config{}, domain.NewConfigurationError("load_config", path, err)
	}
	return cfg, nil
}

// Validate checks struct tags and reports every failing field.
func (l *YAMLLoader) Validate(cfg domain.Config) error {
	err := l.validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("validation error: %w", err)
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := fmt.Sprintf("%s: rule '%s'", strings.TrimPrefix(e.Namespace(), "Config."), e.Tag())
		if e.Param() != "" {
			msg += fmt.Sprintf(" (expected: %s)", e.Param())
		}
		if v := e.Value(); v != nil && v != "" {
			msg += fmt.Sprintf(", actual: '%v'", v)
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
}

func normalize(cfg *domain.Config, defaultSchedule map[string]string) {
	schedule := make(map[string]string, len(defaultSchedule))
	for day, expr := range cfg.Schedule {
		schedule[strings.ToLower(strings.TrimSpace(day))] = strings.TrimSpace(expr)
	}
	for day, expr := range defaultSchedule {
		if _, ok := schedule[day]; !ok {
			schedule[day] = expr
		}
	}
	cfg.Schedule = schedule
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	for i := range cfg.Repos {
		cfg.Repos[i].Provider = strings.ToLower(strings.TrimSpace(cfg.Repos[i].Provider))
	}
}
