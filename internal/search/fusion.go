// Package search ranks vector store hits: it fuses lexical overlap with semantic
// similarity and groups fragment hits into per-document results.
package search

import (
	"sort"
	"strings"
	"unicode"

	"github.com/hyperjump/docuflow/internal/models"
)

// Fusion weights. These are fixed; callers needing another weighting must write their own Fuse.
const (
	KeywordWeight  = 0.3
	SemanticWeight = 0.7
)

// UnknownSource is the group key for hits without a source file.
const UnknownSource = "unknown"

// Tokenize returns the distinct lowercase word tokens of s. A word token is a
// maximal run of letters, digits and underscores.
func Tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(s), isNotWordRune) {
		tokens[w] = struct{}{}
	}
	return tokens
}

func isNotWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}

// KeywordScore is the fraction of distinct query tokens that also occur in text.
// A query with no tokens scores 0.
func KeywordScore(query, text string) float64 {
	q := Tokenize(query)
	if len(q) == 0 {
		return 0
	}
	t := Tokenize(text)
	overlap := 0
	for tok := range q {
		if _, ok := t[tok]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(q))
}

// SemanticSimilarity maps an index distance to (0, 1]: distance 0 is 1, larger is smaller.
func SemanticSimilarity(distance float64) float64 {
	return 1 / (1 + distance)
}

// Fuse combines a keyword score and a semantic similarity.
func Fuse(keywordScore, semanticSimilarity float64) float64 {
	return KeywordWeight*keywordScore + SemanticWeight*semanticSimilarity
}

// Rerank scores every hit against query and sorts by combined score, highest
// first. Equal scores keep their input order.
func Rerank(query string, hits []models.SearchHit) []models.RankedHit {
	ranked := make([]models.RankedHit, len(hits))
	for i, h := range hits {
		kw := KeywordScore(query, h.Text)
		sem := SemanticSimilarity(h.Score)
		ranked[i] = models.RankedHit{
			SearchHit:     h,
			KeywordScore:  kw,
			SemanticScore: sem,
			CombinedScore: Fuse(kw, sem),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CombinedScore > ranked[j].CombinedScore
	})
	return ranked
}

// GroupAndCap groups ranked hits by source file, keeps the best maxPerDoc hits of
// each group, and orders groups by their best kept score, highest first. Groups
// with equal best scores keep the order in which they first appear.
func GroupAndCap(ranked []models.RankedHit, maxPerDoc int) []models.DocumentGroup {
	if maxPerDoc <= 0 || len(ranked) == 0 {
		return []models.DocumentGroup{}
	}
	var order []string
	bySource := make(map[string][]models.RankedHit)
	for _, h := range ranked {
		key := h.SourceFile
		if key == "" {
			key = UnknownSource
		}
		if _, seen := bySource[key]; !seen {
			order = append(order, key)
		}
		bySource[key] = append(bySource[key], h)
	}

	groups := make([]models.DocumentGroup, 0, len(order))
	for _, key := range order {
		hits := bySource[key]
		sort.SliceStable(hits, func(i, j int) bool {
			return hits[i].CombinedScore > hits[j].CombinedScore
		})
		if len(hits) > maxPerDoc {
			hits = hits[:maxPerDoc]
		}
		best := hits[0].CombinedScore
		for _, h := range hits[1:] {
			if h.CombinedScore > best {
				best = h.CombinedScore
			}
		}
		groups = append(groups, models.DocumentGroup{SourceFile: key, BestScore: best, Chunks: hits})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].BestScore > groups[j].BestScore
	})
	return groups
}
