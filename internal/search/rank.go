package search

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/runger/palette/internal/extension"
)

// Ranking defaults.
const (
	DefaultThreshold = 0.4
	DefaultDistance  = 100
)

// typePriority orders result types; unknown types sort last.
var typePriority = map[string]int{
	extension.TypeTab:      0,
	extension.TypeHistory:  1,
	extension.TypeBookmark: 2,
	extension.TypeCommand:  3,
	extension.TypeTopSite:  4,
}

const otherTypePriority = 5

// TypePriority returns the rank bucket of a result type.
func TypePriority(resultType string) int {
	if p, ok := typePriority[resultType]; ok {
		return p
	}
	return otherTypePriority
}

// field is one searchable key of a result and its weight.
type field struct {
	value  func(extension.SearchResult) string
	weight float64
}

var rankedFields = []field{
	{value: func(r extension.SearchResult) string { return r.Title }, weight: 2},
	{value: func(r extension.SearchResult) string { return r.Description }, weight: 1},
	{value: func(r extension.SearchResult) string { return r.Type }, weight: 2},
}

// Ranker scores results against a pattern. Scores run from 0 (exact match
// at the start of a field) to 1; anything above Threshold is no match.
type Ranker struct {
	Threshold float64
	Distance  int
}

// NewRanker returns a ranker with the default threshold and distance.
func NewRanker() *Ranker {
	return &Ranker{Threshold: DefaultThreshold, Distance: DefaultDistance}
}

type scored struct {
	result   extension.SearchResult
	score    float64
	priority int
}

// Rank drops results that match pattern in no field and stable-sorts the
// rest by type priority, then score.
func (rk *Ranker) Rank(results []extension.SearchResult, pattern string) []extension.SearchResult {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return results
	}

	var total float64
	for _, f := range rankedFields {
		total += f.weight
	}

	matched := make([]scored, 0, len(results))
	for _, r := range results {
		score, ok := rk.scoreResult(r, pattern, total)
		if !ok {
			continue
		}
		matched = append(matched, scored{result: r, score: score, priority: TypePriority(r.Type)})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].priority != matched[j].priority {
			return matched[i].priority < matched[j].priority
		}
		return matched[i].score < matched[j].score
	})

	out := make([]extension.SearchResult, len(matched))
	for i, m := range matched {
		out[i] = m.result
	}
	return out
}

// scoreResult combines per-field scores as a weighted product, so a result
// matching several fields scores lower (better) than one matching a single
// field equally well.
func (rk *Ranker) scoreResult(r extension.SearchResult, pattern string, totalWeight float64) (float64, bool) {
	combined := 1.0
	matchedAny := false
	for _, f := range rankedFields {
		s, ok := rk.Score(f.value(r), pattern)
		if !ok {
			continue
		}
		matchedAny = true
		combined *= math.Pow(math.Max(s, math.SmallestNonzeroFloat64), f.weight/totalWeight)
	}
	return combined, matchedAny
}

// Score rates how well pattern (already lower-cased) matches text. The
// best of three strategies wins: exact substring, bounded edit distance over
// a sliding window, and whole-field subsequence. Substring and window
// matches are penalised by how far from the start they occur.
func (rk *Ranker) Score(text, pattern string) (float64, bool) {
	text = strings.ToLower(text)
	if text == "" || pattern == "" {
		return 1, false
	}

	best := 1.0
	if i := strings.Index(text, pattern); i >= 0 {
		best = rk.locationPenalty(utf8.RuneCountInString(text[:i]))
	}
	if best > 0 {
		best = math.Min(best, rk.windowScore([]rune(text), pattern))
	}
	if best > 0 {
		if rank := fuzzy.RankMatchFold(pattern, text); rank >= 0 {
			n := float64(utf8.RuneCountInString(pattern))
			best = math.Min(best, float64(rank)/(n+float64(rank)))
		}
	}

	return best, best <= rk.Threshold
}

func (rk *Ranker) locationPenalty(offset int) float64 {
	if rk.Distance <= 0 {
		if offset == 0 {
			return 0
		}
		return 1
	}
	return float64(offset) / float64(rk.Distance)
}

// windowScore slides a window about the pattern's length over text and
// returns the lowest errors/len(pattern) + location penalty. Windows
// starting beyond the point where the location penalty alone exceeds the
// threshold are skipped.
func (rk *Ranker) windowScore(text []rune, pattern string) float64 {
	p := []rune(pattern)
	n := len(p)
	best := 1.0

	maxStart := len(text) - 1
	if rk.Distance > 0 {
		if limit := int(rk.Threshold * float64(rk.Distance)); limit < maxStart {
			maxStart = limit
		}
	} else {
		maxStart = 0
	}

	for start := 0; start <= maxStart; start++ {
		penalty := rk.locationPenalty(start)
		if penalty >= best {
			break
		}
		for w := n - 1; w <= n+1; w++ {
			if w <= 0 || start+w > len(text) {
				continue
			}
			errs := levenshtein.ComputeDistance(pattern, string(text[start:start+w]))
			if s := float64(errs)/float64(n) + penalty; s < best {
				best = s
			}
		}
	}
	return best
}
