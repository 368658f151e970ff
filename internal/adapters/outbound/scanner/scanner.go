package scanner

import (
	"bytes"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/IGLOU-EU/go-wildcard/v2"

	"github.com/noxaudit/noxaudit/internal/domain"
)

// MaxFileSize skips large generated or vendored files.
const MaxFileSize = 50_000

var skipDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	".git":         true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	"dist":         true,
	"build":        true,
	".noxaudit":    true,
}

// FileScanner implements domain.FileGatherer by walking the filesystem.
type FileScanner struct{}

func New() *FileScanner {
	return &FileScanner{}
}

// Gather returns the files under repoPath matching any of patterns, sorted
// by relative path. A pattern without a slash matches the base name; one
// with a slash matches the slash-separated relative path. Exclude entries
// containing "*" or "?" are wildcards over the relative path; plain entries
// exclude any path containing them.
func (s *FileScanner) Gather(repoPath string, patterns, exclude []string) ([]domain.FileContent, error) {
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(absPath); err != nil {
		return nil, err
	}

	var files []domain.FileContent
	err = filepath.WalkDir(absPath, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if p != absPath && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, _ := filepath.Rel(absPath, p)
		rel = filepath.ToSlash(rel)
		if excluded(rel, exclude) || !matchesAny(rel, patterns) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > MaxFileSize {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil || isBinary(data) {
			return nil // unreadable files are skipped, not fatal
		}
		files = append(files, domain.FileContent{Path: rel, Content: string(data)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func matchesAny(rel string, patterns []string) bool {
	base := path.Base(rel)
	for _, pat := range patterns {
		target := base
		if strings.Contains(pat, "/") {
			target = rel
		}
		// path.Match keeps "." literal, which "*.go" style patterns rely on.
		if ok, _ := path.Match(pat, target); ok {
			return true
		}
	}
	return false
}

func excluded(rel string, exclude []string) bool {
	for _, ex := range exclude {
		ex = strings.TrimSuffix(strings.TrimSpace(ex), "/")
		if ex == "" {
			continue
		}
		if strings.ContainsAny(ex, "*?") {
			if wildcard.Match(ex, rel) {
				return true
			}
			continue
		}
		if strings.Contains(rel, ex) {
			return true
		}
	}
	return false
}

func isBinary(data []byte) bool {
	head := data
	if len(head) > 8000 {
		head = head[:8000]
	}
	return bytes.IndexByte(head, 0) >= 0
}
