// internal/aggregate/merge.go
package aggregate

import (
	"sort"

	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/gitstats"
)

// mergeCounts returns the additive keyed union of two count maps; a key
// missing on either side counts as zero.
func mergeCounts(dst, src map[string]int) map[string]int {
	if dst == nil {
		dst = make(map[string]int, len(src))
	}
	for k, v := range src {
		dst[k] += v
	}
	return dst
}

// unionSorted returns the deduplicated, sorted union of two name sets.
func unionSorted(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst)+len(src))
	for _, s := range dst {
		seen[s] = struct{}{}
	}
	for _, s := range src {
		seen[s] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// mergeGit folds src into dst: totals add, per-repository records group by
// name with summed counters and unioned branch sets. Repository order stays
// sorted by name so repeated folds produce identical aggregates.
func mergeGit(dst *gitstats.Activity, src gitstats.Activity) {
	dst.TotalCommits += src.TotalCommits
	dst.TotalLinesAdded += src.TotalLinesAdded
	dst.TotalLinesDeleted += src.TotalLinesDeleted
	dst.TotalFilesChanged += src.TotalFilesChanged

	byName := make(map[string]int, len(dst.Repositories))
	for i, repo := range dst.Repositories {
		byName[repo.Name] = i
	}

	for _, repo := range src.Repositories {
		if i, ok := byName[repo.Name]; ok {
			existing := &dst.Repositories[i]
			existing.Commits += repo.Commits
			existing.LinesAdded += repo.LinesAdded
			existing.LinesDeleted += repo.LinesDeleted
			existing.FilesChanged += repo.FilesChanged
			existing.Branches = unionSorted(existing.Branches, repo.Branches)
			continue
		}
		added := repo
		added.Branches = unionSorted(nil, repo.Branches)
		dst.Repositories = append(dst.Repositories, added)
		byName[added.Name] = len(dst.Repositories) - 1
	}

	sort.Slice(dst.Repositories, func(i, j int) bool {
		return dst.Repositories[i].Name < dst.Repositories[j].Name
	})
}
