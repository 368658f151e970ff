package application

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/noxaudit/noxaudit/internal/domain"
	"github.com/noxaudit/noxaudit/internal/domain/metrics"
)

// ScorecardWriter renders a scorecard in one output format.
type ScorecardWriter interface {
	Write(w io.Writer, sc metrics.Scorecard) error
}

// ScorecardService builds comparative metrics from the run-record corpus.
type ScorecardService struct {
	loader domain.RunLoader
	log    zerolog.Logger
}

func NewScorecardService(loader domain.RunLoader, log zerolog.Logger) *ScorecardService {
	return &ScorecardService{loader: loader, log: log.With().Str("component", "scorecard").Logger()}
}

// Build loads every run record under dir. Malformed files are logged and
// skipped; dry-run placeholders are excluded.
func (s *ScorecardService) Build(dir string) (metrics.Scorecard, error) {
	records, skipped, err := s.loader.LoadAll(dir)
	if err != nil {
		return metrics.Scorecard{}, fmt.Errorf("loading run records: %w", err)
	}
	for _, e := range skipped {
		s.log.Warn().Err(e).Msg("skipping run record")
	}
	sc := metrics.Build(records)
	s.log.Info().
		Int("files", len(records)+len(skipped)).
		Int("runs", sc.RunCount).
		Int("dry_runs", len(records)-sc.RunCount).
		Msg("run records loaded")
	return sc, nil
}

// Export builds the scorecard for dir and writes it with w.
func (s *ScorecardService) Export(dir string, out io.Writer, w ScorecardWriter) (metrics.Scorecard, error) {
	sc, err := s.Build(dir)
	if err != nil {
		return sc, err
	}
	if err := w.Write(out, sc); err != nil {
		return sc, fmt.Errorf("writing scorecard: %w", err)
	}
	return sc, nil
}
