package stringmatcher

import (
	"fmt"
	"regexp"
)

// Spec is the YAML-decodable form of a Matcher: exactly one of its fields
// should be set. It exists so internal/policy can embed matcher rules
// directly in its config structs without exposing the kind tag.
type Spec struct {
	Equal     string   `yaml:"equal,omitempty"`
	Prefix    string   `yaml:"prefix,omitempty"`
	Substring string   `yaml:"substring,omitempty"`
	Regex     string   `yaml:"regex,omitempty"`
	List      []string `yaml:"list,omitempty"`
}

// Build compiles the Spec into a Matcher. An empty Spec builds AlwaysTrue,
// matching the convention that an absent rule imposes no restriction.
func (s Spec) Build() (Matcher, error) {
	switch {
	case s.Equal != "":
		return Equal(s.Equal), nil
	case s.Prefix != "":
		return Prefix(s.Prefix), nil
	case s.Substring != "":
		return Substring(s.Substring), nil
	case s.Regex != "":
		re, err := regexp.Compile(s.Regex)
		if err != nil {
			return Matcher{}, fmt.Errorf("stringmatcher: invalid regex %q: %w", s.Regex, err)
		}
		return Regex(re), nil
	case len(s.List) > 0:
		return List(s.List), nil
	default:
		return AlwaysTrue(), nil
	}
}
