package catalog

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	sfuzzy "github.com/sahilm/fuzzy"

	"github.com/mmcdole/groundlink/internal/domain"
)

// Match is a filtered catalog entry with match metadata for highlighting
type Match struct {
	Index          int // Index in the snapshot
	Item           domain.MediaItem
	MatchedIndexes []int // Character positions that matched
	Score          int   // Higher is better
}

// nameIndex implements sahilm/fuzzy.Source over precomputed lowercase names
type nameIndex []string

func (n nameIndex) String(i int) string { return n[i] }
func (n nameIndex) Len() int            { return len(n) }

func lowerNames(items []domain.MediaItem) nameIndex {
	names := make(nameIndex, len(items))
	for i, item := range items {
		names[i] = strings.ToLower(item.Name)
	}
	return names
}

// Filter returns the snapshot items whose name fuzzy-matches query, best match
// first. An empty query returns every item in snapshot order.
func Filter(snap domain.CatalogSnapshot, query string) []Match {
	query = strings.TrimSpace(query)
	if query == "" {
		all := make([]Match, len(snap.Items))
		for i, item := range snap.Items {
			all[i] = Match{Index: i, Item: item}
		}
		return all
	}

	matches := sfuzzy.FindFrom(strings.ToLower(query), lowerNames(snap.Items))
	results := make([]Match, len(matches))
	for i, m := range matches {
		results[i] = Match{
			Index:          m.Index,
			Item:           snap.Items[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	return results
}

// Lookup resolves names typed by a user to catalog items. An exact ID or name
// wins; otherwise the closest fuzzy name is taken. Names that match nothing
// are returned in missing.
func Lookup(snap domain.CatalogSnapshot, names ...string) (found []domain.MediaItem, missing []string) {
	lowered := lowerNames(snap.Items)
	seen := make(map[string]bool)

	for _, name := range names {
		idx := exactIndex(snap.Items, lowered, name)
		if idx < 0 {
			ranks := fuzzy.RankFindNormalizedFold(name, lowered)
			if len(ranks) > 0 {
				sort.Sort(ranks)
				idx = ranks[0].OriginalIndex
			}
		}
		if idx < 0 {
			missing = append(missing, name)
			continue
		}
		item := snap.Items[idx]
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		found = append(found, item)
	}
	return found, missing
}

func exactIndex(items []domain.MediaItem, lowered nameIndex, name string) int {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, item := range items {
		if item.ID == name || lowered[i] == key {
			return i
		}
	}
	return -1
}
