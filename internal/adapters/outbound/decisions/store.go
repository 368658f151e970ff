package decisions

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/noxaudit/noxaudit/internal/domain"
)

// Store implements domain.DecisionStore over a JSON Lines file, one decision
// per line, appended and never rewritten.
type Store struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Store {
	return &Store{log: log.With().Str("component", "decisions").Logger()}
}

// Load reads every decision at path. A missing file holds no decisions.
// Malformed lines are skipped with a warning.
func (s *Store) Load(path string) ([]domain.Decision, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []domain.Decision
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var d domain.Decision
		if err := json.Unmarshal(line, &d); err != nil {
			s.log.Warn().Str("path", path).Int("line", lineNo).Err(err).Msg("skipping malformed decision")
			continue
		}
		if d.FindingID == "" {
			s.log.Warn().Str("path", path).Int("line", lineNo).Msg("skipping decision without finding_id")
			continue
		}
		out = append(out, d)
	}
	if err := sc.Err(); err != nil {
		return out, domain.NewMalformedInputError("load_decisions", path, err)
	}
	return out, nil
}

// Append adds one decision to the end of the ledger.
func (s *Store) Append(path string, d domain.Decision) error {
	if d.FindingID == "" {
		return domain.NewValidationError("append_decision", path, fmt.Errorf("finding_id is required"))
	}
	if _, err := domain.ParseDecisionType(string(d.Type)); err != nil {
		return domain.NewValidationError("append_decision", d.FindingID, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	line, err := json.Marshal(d)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
