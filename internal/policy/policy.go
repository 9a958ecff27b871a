package policy

import (
	"fmt"

	"github.com/wegman-software/osm-relation-assembler/internal/stringmatcher"
)

type compiledRule struct {
	key     string
	matcher stringmatcher.Matcher
}

// Policy is a compiled Config, ready to evaluate tags and roles.
type Policy struct {
	requireAnyTag   []string
	include         []compiledRule
	exclude         []compiledRule
	includeRoles    stringmatcher.Matcher
	excludeRoles    stringmatcher.Matcher
	hasIncludeRoles bool
	hasExcludeRoles bool
}

// NewPolicy compiles cfg's matcher specs. A nil cfg behaves like
// DefaultConfig(): everything is kept.
func NewPolicy(cfg *Config) (*Policy, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	p := &Policy{requireAnyTag: cfg.RequireAnyTag}

	compile := func(rules []TagRule) ([]compiledRule, error) {
		out := make([]compiledRule, 0, len(rules))
		for _, r := range rules {
			m, err := r.Match.Build()
			if err != nil {
				return nil, fmt.Errorf("policy: rule for key %q: %w", r.Key, err)
			}
			out = append(out, compiledRule{key: r.Key, matcher: m})
		}
		return out, nil
	}

	var err error
	if p.include, err = compile(cfg.Include); err != nil {
		return nil, err
	}
	if p.exclude, err = compile(cfg.Exclude); err != nil {
		return nil, err
	}
	if len(cfg.IncludeRoles) > 0 {
		p.includeRoles = stringmatcher.List(cfg.IncludeRoles)
		p.hasIncludeRoles = true
	}
	if len(cfg.ExcludeRoles) > 0 {
		p.excludeRoles = stringmatcher.List(cfg.ExcludeRoles)
		p.hasExcludeRoles = true
	}
	return p, nil
}

// KeepRelation reports whether a relation carrying tags is of interest.
func (p *Policy) KeepRelation(tags map[string]string) bool {
	if len(p.requireAnyTag) > 0 {
		found := false
		for _, k := range p.requireAnyTag {
			if _, ok := tags[k]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(p.include) > 0 {
		matched := false
		for _, rule := range p.include {
			if v, ok := tags[rule.key]; ok && rule.matcher.Match(v) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, rule := range p.exclude {
		if v, ok := tags[rule.key]; ok && rule.matcher.Match(v) {
			return false
		}
	}

	return true
}

// KeepMember reports whether a member with the given role is of interest
// to an already-kept relation.
func (p *Policy) KeepMember(role string) bool {
	if p.hasIncludeRoles && !p.includeRoles.Match(role) {
		return false
	}
	if p.hasExcludeRoles && p.excludeRoles.Match(role) {
		return false
	}
	return true
}
