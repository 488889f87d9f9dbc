// Package classify assigns a label to evidence text from an ordered keyword table.
package classify

import (
	"strings"

	"github.com/hyperjump/docuflow/internal/config"
	"github.com/hyperjump/docuflow/internal/errs"
	"github.com/hyperjump/docuflow/internal/models"
	"github.com/hyperjump/docuflow/internal/nlp"
)

// Classifier labels text.
type Classifier interface {
	Classify(text string) models.Classification
}

type rule struct {
	keyword    string
	stem       string
	label      string
	confidence float64
}

// KeywordClassifier returns the label of the first rule whose keyword occurs in the
// text, either as a substring or as a stemmed term. Text matching no rule gets the fallback.
type KeywordClassifier struct {
	rules    []rule
	fallback models.Classification
}

// New builds a KeywordClassifier from cfg. Rules without a keyword or label are rejected.
func New(cfg config.ClassifierConfig) (*KeywordClassifier, error) {
	c := &KeywordClassifier{
		fallback: models.Classification{Label: cfg.Fallback.Label, Confidence: cfg.Fallback.Confidence},
	}
	if c.fallback.Label == "" {
		return nil, errs.Config("classifier fallback label is empty")
	}
	for i, l := range cfg.Labels {
		kw := strings.ToLower(strings.TrimSpace(l.Keyword))
		if kw == "" || l.Label == "" {
			return nil, errs.Config("classifier label %d: keyword and label are required", i)
		}
		if l.Confidence < 0 || l.Confidence > 1 {
			return nil, errs.Config("classifier label %q: confidence %v outside [0, 1]", l.Label, l.Confidence)
		}
		c.rules = append(c.rules, rule{keyword: kw, stem: nlp.Stem(kw), label: l.Label, confidence: l.Confidence})
	}
	return c, nil
}

// Classify implements Classifier.
func (c *KeywordClassifier) Classify(text string) models.Classification {
	lower := strings.ToLower(text)
	var terms map[string]struct{}
	for _, r := range c.rules {
		if strings.Contains(lower, r.keyword) {
			return models.Classification{Label: r.label, Confidence: r.confidence}
		}
		if r.stem == "" {
			continue
		}
		if terms == nil {
			terms = nlp.TermSet(text)
		}
		if _, ok := terms[r.stem]; ok {
			return models.Classification{Label: r.label, Confidence: r.confidence}
		}
	}
	return c.fallback
}
