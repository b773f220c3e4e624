package app

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/bft-labs/ambient/internal/domain"
)

// FilterStats counts the items removed by each filter step.
type FilterStats struct {
	TooOld     int
	Prohibited int
	Duplicate  int
	Truncated  int
}

// Total returns the number of items removed.
func (s FilterStats) Total() int {
	return s.TooOld + s.Prohibited + s.Duplicate + s.Truncated
}

// ApplyPolicy runs the buffer policy over fetched items and returns a new
// slice. The input slice is never modified. Steps run in a fixed order:
// age, tag stripping, prohibited words, sort, de-duplication, truncation.
func ApplyPolicy(policy domain.BufferPolicy, items []domain.Item, now time.Time) ([]domain.Item, FilterStats) {
	var stats FilterStats
	out := make([]domain.Item, 0, len(items))

	fold := cases.Fold()
	prohibited := make([]string, 0, len(policy.ProhibitedWords))
	for _, w := range policy.ProhibitedWords {
		if w = strings.TrimSpace(w); w != "" {
			prohibited = append(prohibited, fold.String(w))
		}
	}

	for _, it := range items {
		if tooOld(policy, it, now) {
			stats.TooOld++
			continue
		}

		it = stripTags(policy, it)

		if containsProhibited(fold, prohibited, it) {
			stats.Prohibited++
			continue
		}

		out = append(out, it)
	}

	switch policy.Order {
	case domain.OrderNewestFirst:
		sort.SliceStable(out, func(i, j int) bool { return out[i].SortKey.After(out[j].SortKey) })
	case domain.OrderOldestFirst:
		sort.SliceStable(out, func(i, j int) bool { return out[i].SortKey.Before(out[j].SortKey) })
	}

	if policy.Dedupe {
		seen := make(map[string]struct{}, len(out))
		kept := out[:0]
		for _, it := range out {
			if it.ID != "" {
				if _, dup := seen[it.ID]; dup {
					stats.Duplicate++
					continue
				}
				seen[it.ID] = struct{}{}
			}
			kept = append(kept, it)
		}
		out = kept
	}

	if policy.MaxItems > 0 && len(out) > policy.MaxItems {
		stats.Truncated = len(out) - policy.MaxItems
		out = out[:policy.MaxItems]
	}

	return out, stats
}

func tooOld(policy domain.BufferPolicy, it domain.Item, now time.Time) bool {
	if !policy.IgnoreOldItems || policy.IgnoreOlderThan <= 0 || it.SortKey.IsZero() {
		return false
	}
	return now.Sub(it.SortKey) > policy.IgnoreOlderThan
}

func stripTags(policy domain.BufferPolicy, it domain.Item) domain.Item {
	if policy.RemoveStartTags.Title() {
		it.Title = trimStartTags(it.Title, policy.StartTags)
	}
	if policy.RemoveStartTags.Description() {
		it.Description = trimStartTags(it.Description, policy.StartTags)
	}
	if policy.RemoveEndTags.Title() {
		it.Title = trimEndTags(it.Title, policy.EndTags)
	}
	if policy.RemoveEndTags.Description() {
		it.Description = trimEndTags(it.Description, policy.EndTags)
	}
	return it
}

func trimStartTags(s string, tags []string) string {
	for _, tag := range tags {
		if tag != "" && strings.HasPrefix(s, tag) {
			s = strings.TrimSpace(s[len(tag):])
		}
	}
	return s
}

func trimEndTags(s string, tags []string) string {
	for _, tag := range tags {
		if tag != "" && strings.HasSuffix(s, tag) {
			s = strings.TrimSpace(s[:len(s)-len(tag)])
		}
	}
	return s
}

func containsProhibited(fold cases.Caser, words []string, it domain.Item) bool {
	if len(words) == 0 {
		return false
	}
	title := fold.String(it.Title)
	desc := fold.String(it.Description)
	for _, w := range words {
		if strings.Contains(title, w) || strings.Contains(desc, w) {
			return true
		}
	}
	return false
}
