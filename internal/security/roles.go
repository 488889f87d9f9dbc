// Package security maps caller roles to capabilities and enforces them.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/docuflow/internal/errs"
)

// Capability is an action a role may be granted.
type Capability string

// Capabilities known to docuflow.
const (
	ViewSearchResults Capability = "view_search_results"
	ExecuteWorkflow   Capability = "execute_workflow"
	OverrideRoute     Capability = "override_route"
	ViewAuditLogs     Capability = "view_audit_logs"
	ManageRules       Capability = "manage_rules"
	IngestDocuments   Capability = "ingest_documents"
)

// Built-in roles.
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
	RoleManager  = "manager"
	RoleAdmin    = "admin"
)

var knownCapabilities = map[Capability]bool{
	ViewSearchResults: true,
	ExecuteWorkflow:   true,
	OverrideRoute:     true,
	ViewAuditLogs:     true,
	ManageRules:       true,
	IngestDocuments:   true,
}

// Mapping assigns a capability set to each role.
type Mapping map[string]map[Capability]bool

// DefaultMapping returns the built-in role mapping.
func DefaultMapping() Mapping {
	return mappingFrom(map[string][]Capability{
		RoleViewer:   {ViewSearchResults},
		RoleOperator: {ViewSearchResults, ExecuteWorkflow},
		RoleManager:  {ViewSearchResults, ExecuteWorkflow, OverrideRoute, ViewAuditLogs, IngestDocuments},
		RoleAdmin:    {ViewSearchResults, ExecuteWorkflow, OverrideRoute, ViewAuditLogs, ManageRules, IngestDocuments},
	})
}

func mappingFrom(roles map[string][]Capability) Mapping {
	m := make(Mapping, len(roles))
	for role, caps := range roles {
		set := make(map[Capability]bool, len(caps))
		for _, c := range caps {
			set[c] = true
		}
		m[role] = set
	}
	return m
}

// Roles returns the role names in sorted order.
func (m Mapping) Roles() []string {
	names := make([]string, 0, len(m))
	for r := range m {
		names = append(names, r)
	}
	sort.Strings(names)
	return names
}

type roleFile struct {
	Roles map[string][]string `yaml:"roles" toml:"roles"`
}

// LoadRoles reads a role mapping of the form {roles: {<role>: [<capability>, ...]}}.
// Files ending in .toml are parsed as TOML, everything else as YAML. A malformed
// source, an empty mapping or an unknown capability is a config error.
func LoadRoles(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Config("read role mapping %s: %v", path, err)
	}
	var rf roleFile
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &rf)
	} else {
		err = yaml.Unmarshal(data, &rf)
	}
	if err != nil {
		return nil, errs.Config("parse role mapping %s: %v", path, err)
	}
	if len(rf.Roles) == 0 {
		return nil, errs.Config("role mapping %s defines no roles", path)
	}
	roles := make(map[string][]Capability, len(rf.Roles))
	for role, caps := range rf.Roles {
		for _, c := range caps {
			if !knownCapabilities[Capability(c)] {
				return nil, errs.Config("role %q: unknown capability %q", role, c)
			}
			roles[role] = append(roles[role], Capability(c))
		}
		if _, ok := roles[role]; !ok {
			roles[role] = nil
		}
	}
	return mappingFrom(roles), nil
}

// LoadRolesOrDefault loads path, or returns DefaultMapping when path is empty.
func LoadRolesOrDefault(path string) (Mapping, error) {
	if path == "" {
		return DefaultMapping(), nil
	}
	m, err := LoadRoles(path)
	if err != nil {
		return nil, fmt.Errorf("security: %w", err)
	}
	return m, nil
}
