// Package rank orders scored entries and bounds the digest size.
package rank

import (
	"sort"

	"github.com/JakeFAU/research-digest/internal/digest"
)

// Rank sorts by descending score, keeping input order among equal scores,
// and truncates to limit. A non-positive limit yields an empty slice.
func Rank(entries []digest.Entry, limit int) []digest.Entry {
	if limit <= 0 {
		return []digest.Entry{}
	}
	out := make([]digest.Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
