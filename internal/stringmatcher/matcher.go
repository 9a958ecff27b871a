// Package stringmatcher implements the small set of string-matching
// strategies used to decide whether a tag key or value is of interest:
// exact equality, prefix, substring, regular expression, or membership in
// a fixed list.
package stringmatcher

import (
	"fmt"
	"regexp"
	"strings"
)

// kind tags which matching strategy a Matcher holds.
type kind uint8

const (
	kindAlwaysFalse kind = iota
	kindAlwaysTrue
	kindEqual
	kindPrefix
	kindSubstring
	kindRegex
	kindList
)

// Matcher is a sum type over the supported matching strategies. The zero
// value is always_false, mirroring the default-constructed behavior of
// the type this is modeled on.
type Matcher struct {
	kind kind
	str  string
	strs []string
	re   *regexp.Regexp
}

// AlwaysFalse returns a Matcher that never matches.
func AlwaysFalse() Matcher { return Matcher{kind: kindAlwaysFalse} }

// AlwaysTrue returns a Matcher that always matches.
func AlwaysTrue() Matcher { return Matcher{kind: kindAlwaysTrue} }

// Bool returns AlwaysTrue() if result is true, AlwaysFalse() otherwise.
func Bool(result bool) Matcher {
	if result {
		return AlwaysTrue()
	}
	return AlwaysFalse()
}

// Equal returns a Matcher that matches only the exact string s.
func Equal(s string) Matcher { return Matcher{kind: kindEqual, str: s} }

// Prefix returns a Matcher that matches any string starting with s.
func Prefix(s string) Matcher { return Matcher{kind: kindPrefix, str: s} }

// Substring returns a Matcher that matches any string containing s.
func Substring(s string) Matcher { return Matcher{kind: kindSubstring, str: s} }

// Regex returns a Matcher that matches any string the expression finds
// somewhere in the input (unanchored, like regexp.MatchString).
func Regex(re *regexp.Regexp) Matcher { return Matcher{kind: kindRegex, re: re} }

// List returns a Matcher that matches any string equal to one of strs.
func List(strs []string) Matcher {
	return Matcher{kind: kindList, strs: append([]string(nil), strs...)}
}

// Match reports whether s satisfies the matcher.
func (m Matcher) Match(s string) bool {
	switch m.kind {
	case kindAlwaysFalse:
		return false
	case kindAlwaysTrue:
		return true
	case kindEqual:
		return s == m.str
	case kindPrefix:
		return strings.HasPrefix(s, m.str)
	case kindSubstring:
		return strings.Contains(s, m.str)
	case kindRegex:
		return m.re != nil && m.re.MatchString(s)
	case kindList:
		for _, c := range m.strs {
			if s == c {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// String renders the matcher for logging and debugging.
func (m Matcher) String() string {
	switch m.kind {
	case kindAlwaysFalse:
		return "always_false"
	case kindAlwaysTrue:
		return "always_true"
	case kindEqual:
		return fmt.Sprintf("equal[%s]", m.str)
	case kindPrefix:
		return fmt.Sprintf("prefix[%s]", m.str)
	case kindSubstring:
		return fmt.Sprintf("substring[%s]", m.str)
	case kindRegex:
		if m.re == nil {
			return "regex[]"
		}
		return fmt.Sprintf("regex[%s]", m.re.String())
	case kindList:
		return fmt.Sprintf("list%v", m.strs)
	default:
		return "unknown"
	}
}
