package classify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/docuflow/internal/config"
	"github.com/hyperjump/docuflow/internal/errs"
	"github.com/hyperjump/docuflow/internal/models"
)

func defaultClassifier(t *testing.T) *KeywordClassifier {
	t.Helper()
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	c, err := New(cfg.Classifier)
	require.NoError(t, err)
	return c
}

func TestClassify_Defaults(t *testing.T) {
	c := defaultClassifier(t)
	tests := []struct {
		text string
		want models.Classification
	}{
		{"URGENT: server down", models.Classification{Label: "urgent", Confidence: 0.92}},
		{"invoice payment overdue", models.Classification{Label: "payment_request", Confidence: 0.87}},
		{"urgent payment", models.Classification{Label: "urgent", Confidence: 0.92}},
		{"quarterly newsletter", models.Classification{Label: "general", Confidence: 0.55}},
		{"", models.Classification{Label: "general", Confidence: 0.55}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Classify(tt.text), tt.text)
	}
}

func TestClassify_StemmedMatch(t *testing.T) {
	c, err := New(config.ClassifierConfig{
		Labels:   []config.LabelRule{{Keyword: "invoicing", Label: "billing", Confidence: 0.8}},
		Fallback: config.LabelRule{Label: "general", Confidence: 0.5},
	})
	require.NoError(t, err)
	assert.Equal(t, "billing", c.Classify("two invoices attached").Label)
}

func TestNew_RejectsBadRules(t *testing.T) {
	_, err := New(config.ClassifierConfig{})
	assert.True(t, errors.Is(err, errs.ErrConfig))

	_, err = New(config.ClassifierConfig{
		Labels:   []config.LabelRule{{Keyword: "x", Label: "y", Confidence: 1.5}},
		Fallback: config.LabelRule{Label: "general"},
	})
	assert.True(t, errors.Is(err, errs.ErrConfig))

	_, err = New(config.ClassifierConfig{
		Labels:   []config.LabelRule{{Label: "y"}},
		Fallback: config.LabelRule{Label: "general"},
	})
	assert.True(t, errors.Is(err, errs.ErrConfig))
}
