package application

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/noxaudit/noxaudit/internal/domain"
)

var findingIDPattern = regexp.MustCompile(`^[0-9a-f]{12}$`)

// DecisionInput is a ruling as entered by a human.
type DecisionInput struct {
	FindingID string
	File      string
	Type      string
	Reason    string
	By        string
}

// DecisionService records and lists human decisions on findings.
type DecisionService struct {
	store domain.DecisionStore
	path  string
	now   func() time.Time
}

func NewDecisionService(store domain.DecisionStore, path string) *DecisionService {
	return &DecisionService{store: store, path: path, now: time.Now}
}

// WithClock replaces the service clock.
func (s *DecisionService) WithClock(now func() time.Time) *DecisionService {
	s.now = now
	return s
}

// Decide validates in and appends it to the ledger.
func (s *DecisionService) Decide(in DecisionInput) (domain.Decision, error) {
	id := strings.ToLower(strings.TrimSpace(in.FindingID))
	if !findingIDPattern.MatchString(id) {
		return domain.Decision{}, domain.NewValidationError("decide", in.FindingID,
			fmt.Errorf("finding id must be 12 hex characters"))
	}
	dt, err := domain.ParseDecisionType(strings.ToLower(in.Type))
	if err != nil {
		return domain.Decision{}, domain.NewValidationError("decide", in.FindingID, err)
	}

	d := domain.Decision{
		FindingID: id,
		File:      strings.TrimSpace(in.File),
		Type:      dt,
		Reason:    in.Reason,
		By:        in.By,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Append(s.path, d); err != nil {
		return domain.Decision{}, fmt.Errorf("recording decision: %w", err)
	}
	return d, nil
}

// List returns every recorded decision in ledger order.
func (s *DecisionService) List() ([]domain.Decision, error) {
	return s.store.Load(s.path)
}
