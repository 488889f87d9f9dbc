// Package workflow turns a classification into a routing decision and executes it.
package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/docuflow/internal/errs"
	"github.com/hyperjump/docuflow/internal/models"
)

// Conditions are the checks a rule makes. Absent conditions always hold.
type Conditions struct {
	// Classification must equal the classification exactly.
	Classification *string `yaml:"classification" toml:"classification"`
	// KeywordContains holds when any keyword is a case-insensitive substring of the text.
	KeywordContains []string `yaml:"keyword_contains" toml:"keyword_contains"`
}

// Rule routes to Route when every present condition holds.
type Rule struct {
	Name  string               `yaml:"name" toml:"name"`
	When  Conditions           `yaml:"when" toml:"when"`
	Route models.RouteDecision `yaml:"route" toml:"route"`
}

// RuleSet is an ordered rule list with a fallback decision.
type RuleSet struct {
	Routes       []Rule               `yaml:"routes" toml:"routes"`
	DefaultRoute models.RouteDecision `yaml:"default_route" toml:"default_route"`
}

// LoadRules parses the rule source at path. Files ending in .toml are parsed as
// TOML, everything else as YAML. Any malformed source is a config error.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Config("read rules %s: %v", path, err)
	}
	return ParseRules(data, strings.EqualFold(filepath.Ext(path), ".toml"))
}

// ParseRules parses a YAML (or TOML when isTOML) rule source and validates it.
func ParseRules(data []byte, isTOML bool) (*RuleSet, error) {
	var rs RuleSet
	var err error
	if isTOML {
		err = toml.Unmarshal(data, &rs)
	} else {
		err = yaml.Unmarshal(data, &rs)
	}
	if err != nil {
		return nil, errs.Config("parse rules: %v", err)
	}
	if err := rs.validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

func (rs *RuleSet) validate() error {
	for i, r := range rs.Routes {
		name := r.Name
		if name == "" {
			name = "#" + strconv.Itoa(i)
		}
		if r.Route.Empty() {
			return errs.Config("rule %s: route is empty", name)
		}
		if err := checkAction(r.Route); err != nil {
			return errs.Config("rule %s: %v", name, err)
		}
		for _, kw := range r.When.KeywordContains {
			if strings.TrimSpace(kw) == "" {
				return errs.Config("rule %s: blank keyword", name)
			}
		}
	}
	if err := checkAction(rs.DefaultRoute); err != nil {
		return errs.Config("default_route: %v", err)
	}
	return nil
}

func checkAction(d models.RouteDecision) error {
	v, ok := d["action"]
	if !ok {
		return nil
	}
	if s, isString := v.(string); !isString || s == "" {
		return fmt.Errorf("action must be a non-empty string, got %v", v)
	}
	return nil
}
