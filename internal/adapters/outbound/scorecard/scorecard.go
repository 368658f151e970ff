// Package scorecard renders metrics.Scorecard as markdown, JSON or Parquet.
package scorecard

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/noxaudit/noxaudit/internal/domain"
	"github.com/noxaudit/noxaudit/internal/domain/metrics"
)

// Writer serialises a scorecard.
type Writer interface {
	Write(w io.Writer, sc metrics.Scorecard) error
}

// Formats lists the supported file formats.
var Formats = []string{"markdown", "json", "parquet"}

// ForFormat returns the writer for a format name.
func ForFormat(format string) (Writer, error) {
	switch strings.ToLower(format) {
	case "", "markdown", "md":
		return Markdown{}, nil
	case "json":
		return JSON{}, nil
	case "parquet":
		return Parquet{}, nil
	}
	return nil, domain.NewValidationError("scorecard_format", format,
		fmt.Errorf("unknown format (available: %s)", strings.Join(Formats, ", ")))
}

func modelOrder(sc metrics.Scorecard) []metrics.ModelSummary {
	models := append([]metrics.ModelSummary(nil), sc.Models...)
	sort.SliceStable(models, func(i, j int) bool {
		if models[i].Provider != models[j].Provider {
			return models[i].Provider < models[j].Provider
		}
		return models[i].Model < models[j].Model
	})
	return models
}
