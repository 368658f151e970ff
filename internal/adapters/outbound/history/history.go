package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noxaudit/noxaudit/internal/domain"
)

// FileHistory implements domain.RunRecorder and domain.RunLoader as one JSON
// file per run under <dir>/<repo>/.
type FileHistory struct {
	validate *validator.Validate
}

func New() *FileHistory {
	return &FileHistory{validate: validator.New()}
}

// Record stores rec with the next run number of its
// (provider, model, repo, focus) group.
func (h *FileHistory) Record(dir string, rec domain.RunRecord) (domain.RunRecord, error) {
	if err := h.validate.Struct(rec); err != nil {
		return domain.RunRecord{}, domain.NewValidationError("record_run", rec.Repo, err)
	}

	repoDir := filepath.Join(dir, safeName(rec.Repo))
	existing, _, err := h.LoadAll(repoDir)
	if err != nil {
		return domain.RunRecord{}, err
	}
	next := 1
	for _, r := range existing {
		if r.Provider == rec.Provider && r.Model == rec.Model && r.Focus == rec.Focus && r.RunNumber >= next {
			next = r.RunNumber + 1
		}
	}
	rec.RunNumber = next

	if err := os.MkdirAll(repoDir, 0755); err != nil {
		return domain.RunRecord{}, err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return domain.RunRecord{}, err
	}

	name := fmt.Sprintf("%s-%s-%s-run%d.json", safeName(rec.Provider), safeName(rec.Model), safeName(rec.Focus), rec.RunNumber)
	fp := filepath.Join(repoDir, name)
	f, err := os.OpenFile(fp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("creating run record: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return domain.RunRecord{}, err
	}
	if err := f.Close(); err != nil {
		return domain.RunRecord{}, err
	}
	rec.Source = fp
	return rec, nil
}

// LoadAll reads every *.json run record below dir. Unreadable, undecodable or
// invalid files are returned in skipped. A missing dir holds no records.
func (h *FileHistory) LoadAll(dir string) ([]domain.RunRecord, []error, error) {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}

	var records []domain.RunRecord
	var skipped []error
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			skipped = append(skipped, domain.NewMalformedInputError("load_run", path, err))
			return nil
		}
		var rec domain.RunRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			skipped = append(skipped, domain.NewMalformedInputError("load_run", path, err))
			return nil
		}
		if err := h.validate.Struct(rec); err != nil {
			skipped = append(skipped, domain.NewMalformedInputError("load_run", path, err))
			return nil
		}
		rec.Source = path
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if ka, kb := groupKey(a), groupKey(b); ka != kb {
			return ka < kb
		}
		return a.RunNumber < b.RunNumber
	})
	return records, skipped, nil
}

func groupKey(r domain.RunRecord) string {
	return r.Provider + "/" + r.Model + "/" + r.Repo + "/" + r.Focus
}

var unsafeChars = strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")

func safeName(s string) string {
	return unsafeChars.Replace(s)
}
