// Package nlp reduces text to analyzed terms using Bleve's English analyzer.
package nlp

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
)

var indexMapping = bleve.NewIndexMapping()

// Terms returns the stemmed, stop-word-free terms of text in order of appearance.
// Duplicates are kept.
func Terms(text string) []string {
	if text == "" {
		return nil
	}
	stream, err := indexMapping.AnalyzeText(en.AnalyzerName, []byte(text))
	if err != nil {
		return nil
	}
	terms := make([]string, 0, len(stream))
	for _, tok := range stream {
		terms = append(terms, string(tok.Term))
	}
	return terms
}

// Stem returns the analyzed form of a single word, or "" when the word is a stop word.
func Stem(word string) string {
	terms := Terms(word)
	if len(terms) == 0 {
		return ""
	}
	return terms[0]
}

// TermSet returns the distinct terms of text.
func TermSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Terms(text) {
		set[t] = struct{}{}
	}
	return set
}
