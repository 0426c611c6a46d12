// Package fuzzy ranks short texts, such as past search queries, against a
// typed filter with some tolerance for typos.
package fuzzy

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// LevenshteinDistance is the edit distance between two normalized strings.
func LevenshteinDistance(s1, s2 string) int {
	r1 := []rune(normalize(s1))
	r2 := []rune(normalize(s2))
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(r2)]
}

// threshold grows with the filter so longer words tolerate more typos.
func threshold(query string) int {
	n := utf8.RuneCountInString(query)
	switch {
	case n <= 3:
		return 1
	case n >= 8:
		return 3
	default:
		return 2
	}
}

// Score rates text against query; zero means no match.
func Score(query, text string) float64 {
	q := normalize(query)
	t := normalize(text)
	if q == "" {
		return 1
	}
	if t == "" {
		return 0
	}

	score := 0.0
	if strings.Contains(t, q) {
		score += 100
		if containsWord(t, q) {
			score += 50
		}
		return score
	}

	limit := threshold(q)
	for _, word := range strings.Fields(t) {
		if strings.HasPrefix(word, q) {
			score += 40
			continue
		}
		if d := LevenshteinDistance(q, word); d <= limit {
			score += 50 - float64(d)*15
		}
	}
	return score
}

// Match reports whether text matches query at all.
func Match(query, text string) bool {
	return Score(query, text) > 0
}

// Rank returns the indexes of texts that match query, best first. Ties keep
// their input order.
func Rank(query string, texts []string) []int {
	type hit struct {
		idx   int
		score float64
	}
	var hits []hit
	for i, t := range texts {
		if s := Score(query, t); s > 0 {
			hits = append(hits, hit{i, s})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.idx
	}
	return out
}

// normalize lowercases, strips diacritics and collapses whitespace.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(strings.ToLower(s)) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func containsWord(text, word string) bool {
	for _, w := range strings.Fields(text) {
		if w == word {
			return true
		}
	}
	return false
}
