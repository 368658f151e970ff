// Package focus holds the registry of audit focus areas and resolves focus
// expressions such as "security+testing" into a single audit lens.
package focus

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/fatih/camelcase"
	"github.com/noxaudit/noxaudit/internal/domain"
)

// Area is a built-in focus area.
type Area struct {
	name        string
	description string
	patterns    []string
	prompt      string
}

func (a Area) Name() string        { return a.name }
func (a Area) Description() string { return a.description }
func (a Area) Patterns() []string  { return append([]string(nil), a.patterns...) }
func (a Area) Prompt() string      { return a.prompt }

// order fixes the canonical sequence used for listings and combined names.
var order = []string{"security", "docs", "patterns", "testing", "hygiene", "dependencies", "performance"}

var registry = map[string]Area{
	"security":     securityArea,
	"docs":         docsArea,
	"patterns":     patternsArea,
	"testing":      testingArea,
	"hygiene":      hygieneArea,
	"dependencies": dependenciesArea,
	"performance":  performanceArea,
}

// presets expand to several areas.
var presets = map[string][]string{
	"does_it_work": {"security", "testing"},
	"all":          order,
}

// Names lists the registered areas in canonical order.
func Names() []string {
	return append([]string(nil), order...)
}

// Get returns a single registered area.
func Get(name string) (domain.FocusArea, bool) {
	a, ok := registry[Normalize(name)]
	if !ok {
		return nil, false
	}
	return a, true
}

// All returns every registered area in canonical order.
func All() []domain.FocusArea {
	areas := make([]domain.FocusArea, 0, len(order))
	for _, n := range order {
		areas = append(areas, registry[n])
	}
	return areas
}

// Normalize folds a focus name to snake case, so that "DoesItWork",
// "does-it-work" and "does_it_work" are the same name.
func Normalize(name string) string {
	words := make([]string, 0, 4)
	for _, w := range camelcase.Split(strings.TrimSpace(name)) {
		if strings.IndexFunc(w, isWordRune) == -1 {
			continue
		}
		words = append(words, strings.ToLower(w))
	}
	return strings.Join(words, "_")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Resolve expands a focus expression into canonical area names. Areas may be
// separated by "," or "+", and presets expand in place. The result is
// deduplicated and ordered canonically.
func Resolve(expr string) ([]string, error) {
	parts := strings.FieldsFunc(expr, func(r rune) bool { return r == ',' || r == '+' })
	if len(parts) == 0 {
		return nil, domain.NewValidationError("resolve_focus", expr, fmt.Errorf("empty focus expression"))
	}

	seen := make(map[string]bool)
	for _, p := range parts {
		name := Normalize(p)
		if members, ok := presets[name]; ok {
			for _, m := range members {
				seen[m] = true
			}
			continue
		}
		if _, ok := registry[name]; !ok {
			return nil, domain.NewValidationError("resolve_focus", strings.TrimSpace(p),
				fmt.Errorf("unknown focus area (available: %s)", strings.Join(available(), ", ")))
		}
		seen[name] = true
	}

	names := make([]string, 0, len(seen))
	for _, n := range order {
		if seen[n] {
			names = append(names, n)
		}
	}
	return names, nil
}

func available() []string {
	names := Names()
	for p := range presets {
		names = append(names, p)
	}
	sort.Strings(names[len(order):])
	return names
}

// Valid reports whether expr resolves.
func Valid(expr string) bool {
	_, err := Resolve(expr)
	return err == nil
}

// Build resolves expr into one focus area. A single area is returned as is;
// several are merged into a composite whose prompt asks the model to tag
// each finding with its focus.
func Build(expr string) (domain.FocusArea, []string, error) {
	names, err := Resolve(expr)
	if err != nil {
		return nil, nil, err
	}
	if len(names) == 1 {
		return registry[names[0]], names, nil
	}
	return combine(names), names, nil
}

// DefaultFocus is the focus backfilled into findings that carry none. It is
// empty for combined runs, where the model tags each finding itself.
func DefaultFocus(names []string) string {
	if len(names) == 1 {
		return names[0]
	}
	return ""
}

func combine(names []string) Area {
	var (
		patterns []string
		seen     = make(map[string]bool)
		descs    []string
		prompt   strings.Builder
	)
	fmt.Fprintf(&prompt, "You are auditing this codebase for several focus areas at once: %s.\n", strings.Join(names, ", "))
	prompt.WriteString("Every finding MUST carry a \"focus\" field naming exactly one of these areas.\n")
	for _, n := range names {
		a := registry[n]
		descs = append(descs, a.description)
		for _, p := range a.patterns {
			if !seen[p] {
				seen[p] = true
				patterns = append(patterns, p)
			}
		}
		fmt.Fprintf(&prompt, "\n## Focus: %s\n\n%s\n", n, a.prompt)
	}
	return Area{
		name:        strings.Join(names, "+"),
		description: strings.Join(descs, "; "),
		patterns:    patterns,
		prompt:      prompt.String(),
	}
}
