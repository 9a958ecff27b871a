// Package policy implements the default "tag/role predicate" collaborator:
// a YAML-declared interest policy deciding which relations are worth
// tracking and which of their members are worth waiting for. It produces
// plain bools; wiring those into relations.Hooks is the caller's job, so
// this package has no dependency on internal/relations.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wegman-software/osm-relation-assembler/internal/stringmatcher"
)

// TagRule pairs a tag key with a matcher applied to that key's value.
type TagRule struct {
	Key   string             `yaml:"key"`
	Match stringmatcher.Spec `yaml:"match"`
}

// Config is the on-disk shape of an interest policy.
type Config struct {
	// RequireAnyTag: a relation must carry at least one of these tag keys
	// to be considered at all. Empty means no requirement.
	RequireAnyTag []string `yaml:"require_any_tag,omitempty"`
	// Include: a relation matches if any rule's key is present and its
	// value satisfies the rule's matcher. Empty means everything is
	// included (subject to Exclude).
	Include []TagRule `yaml:"include,omitempty"`
	// Exclude is applied after Include: any matching rule disqualifies
	// the relation.
	Exclude []TagRule `yaml:"exclude,omitempty"`
	// IncludeRoles, if non-empty, restricts tracked members to those
	// whose role is in the list.
	IncludeRoles []string `yaml:"include_roles,omitempty"`
	// ExcludeRoles disqualifies members by role, applied after IncludeRoles.
	ExcludeRoles []string `yaml:"exclude_roles,omitempty"`
}

// LoadConfig reads and parses a policy file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("policy: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// DefaultConfig returns a policy that keeps every relation and every
// member, equivalent to running with no interest filtering at all.
func DefaultConfig() *Config {
	return &Config{}
}
