package application

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noxaudit/noxaudit/internal/domain"
)

// PrepassService trims a file set to the files a cheap synchronous
// classification call marks relevant. Any failure keeps every file.
type PrepassService struct {
	cfg       domain.PrepassConfig
	providers domain.ProviderResolver
	prompt    func(focusNames []string) string
	log       zerolog.Logger
}

func NewPrepassService(
	cfg domain.PrepassConfig,
	providers domain.ProviderResolver,
	prompt func(focusNames []string) string,
	log zerolog.Logger,
) *PrepassService {
	return &PrepassService{
		cfg:       cfg,
		providers: providers,
		prompt:    prompt,
		log:       log.With().Str("component", "prepass").Logger(),
	}
}

// Filter returns the files worth sending to the main audit. The audit
// provider is reused unless the pre-pass names its own.
func (p *PrepassService) Filter(
	ctx context.Context,
	repo string,
	auditProvider domain.Provider,
	files []domain.FileContent,
	focusNames []string,
) []domain.FileContent {
	if !p.cfg.Enabled || len(files) == 0 || len(files) < p.cfg.MinFiles {
		return files
	}
	log := p.log.With().Str("repo", repo).Logger()

	provider := auditProvider
	if p.cfg.Provider != "" {
		resolved, err := p.providers.Resolve(p.cfg.Provider, p.cfg.Model)
		if err != nil {
			log.Warn().Err(err).Msg("pre-pass provider unavailable, keeping all files")
			return files
		}
		provider = resolved
	}
	classifier, ok := provider.(domain.Classifier)
	if !ok {
		log.Warn().Str("provider", provider.Name()).Msg("provider cannot classify files, keeping all files")
		return files
	}

	result, err := p.Classify(ctx, classifier, files, focusNames)
	if err != nil {
		log.Warn().Err(err).Msg("pre-pass failed, keeping all files")
		return files
	}
	kept := result.Retain(files)
	log.Info().Int("original", result.OriginalCount).Int("retained", len(kept)).Msg("pre-pass complete")
	return kept
}

// Classify runs one classification call and tallies the verdicts.
func (p *PrepassService) Classify(
	ctx context.Context,
	classifier domain.Classifier,
	files []domain.FileContent,
	focusNames []string,
) (domain.PrepassResult, error) {
	classified, err := classifier.Classify(ctx, files, p.prompt(focusNames))
	if err != nil {
		return domain.PrepassResult{}, err
	}
	retained := 0
	for _, c := range classified {
		if c.Relevant {
			retained++
		}
	}
	return domain.PrepassResult{
		Classified:    classified,
		OriginalCount: len(files),
		RetainedCount: retained,
	}, nil
}
