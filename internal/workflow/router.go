package workflow

import (
	"maps"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/docuflow/internal/models"
)

// Router picks a routing decision by first-match over an immutable rule set.
type Router struct {
	rules        []compiledRule
	defaultRoute models.RouteDecision
	logger       *zap.Logger
}

type compiledRule struct {
	name           string
	classification *string
	keywords       []string
	route          models.RouteDecision
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterLogger sets a logger for routing decisions.
func WithRouterLogger(l *zap.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// NewRouter compiles rs. rs is not retained.
func NewRouter(rs *RuleSet, opts ...RouterOption) *Router {
	r := &Router{logger: zap.NewNop()}
	if rs != nil {
		r.defaultRoute = maps.Clone(rs.DefaultRoute)
		for _, rule := range rs.Routes {
			cr := compiledRule{name: rule.Name, route: maps.Clone(rule.Route)}
			if rule.When.Classification != nil {
				c := *rule.When.Classification
				cr.classification = &c
			}
			if rule.When.KeywordContains != nil {
				cr.keywords = make([]string, len(rule.When.KeywordContains))
				for i, kw := range rule.When.KeywordContains {
					cr.keywords[i] = strings.ToLower(kw)
				}
			}
			r.rules = append(r.rules, cr)
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route returns the route of the first rule whose conditions all hold for
// classification and text, or the default route. An empty decision means no route.
func (r *Router) Route(classification, text string) models.RouteDecision {
	lower := strings.ToLower(text)
	for _, rule := range r.rules {
		if rule.matches(classification, lower) {
			r.logger.Debug("rule matched",
				zap.String("rule", rule.name), zap.String("classification", classification))
			return maps.Clone(rule.route)
		}
	}
	return maps.Clone(r.defaultRoute)
}

func (c *compiledRule) matches(classification, lowerText string) bool {
	if c.classification != nil && *c.classification != classification {
		return false
	}
	if c.keywords != nil {
		for _, kw := range c.keywords {
			if strings.Contains(lowerText, kw) {
				return true
			}
		}
		return false
	}
	return true
}
