package domain

import "time"

// FilterFindings partitions findings into those still worth reporting and a
// count of those suppressed by a live decision. Expired decisions are skipped.
// The input slices are not modified and the returned slice keeps input order.
func FilterFindings(findings []Finding, decisions []Decision, repoPath string, expiryDays int, now time.Time) ([]Finding, int) {
	live := make([]Decision, 0, len(decisions))
	for _, d := range decisions {
		if !d.Expired(now, expiryDays) {
			live = append(live, d)
		}
	}

	newFindings := make([]Finding, 0, len(findings))
	resolved := 0
	for _, f := range findings {
		if coveredByAny(f, live, repoPath) {
			resolved++
			continue
		}
		newFindings = append(newFindings, f)
	}
	return newFindings, resolved
}

func coveredByAny(f Finding, decisions []Decision, repoPath string) bool {
	for _, d := range decisions {
		if d.Covers(f, repoPath) {
			return true
		}
	}
	return false
}
