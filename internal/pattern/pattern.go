package pattern

import (
	"fmt"
	"regexp"
	"strconv"
)

// Rule matches a single badge-count shape in a log line. The first
// capture group must contain the numeric count.
type Rule struct {
	name string
	re   *regexp.Regexp
}

// NewRule compiles a rule from a regular expression. The expression
// must contain at least one capture group for the count.
func NewRule(name, expr string) (Rule, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Rule{}, fmt.Errorf("failed to compile pattern %q: %w", name, err)
	}
	if re.NumSubexp() < 1 {
		return Rule{}, fmt.Errorf("pattern %q has no capture group for the count", name)
	}
	return Rule{name: name, re: re}, nil
}

// extract applies the rule to a line. A match whose captured token is
// not a parseable non-negative integer is treated as no match, so the
// caller falls through to the next rule.
func (r Rule) extract(line string) (int, bool) {
	m := r.re.FindStringSubmatch(line)
	if m == nil || len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Set is an ordered collection of rules, tried first match wins.
type Set struct {
	rules []Rule
}

// Known badge-count shapes seen in the Teams log. The format is not
// stable across client versions, hence the ordered fallbacks.
var defaultRules = []Rule{
	{name: "missed_activity", re: regexp.MustCompile(`(?i)"missedActivityCount"\s*:\s*(\d+)`)},
	{name: "badge_count", re: regexp.MustCompile(`(?i)"badgeCount"\s*:\s*(\d+)`)},
	{name: "badge_text", re: regexp.MustCompile(`(?i)badge count[^0-9]*(\d+)`)},
}

// NewSet builds a rule set from user-supplied expressions followed by
// the built-in rules. User rules take priority.
func NewSet(patterns []string) (*Set, error) {
	rules := make([]Rule, 0, len(patterns)+len(defaultRules))
	for i, expr := range patterns {
		r, err := NewRule(fmt.Sprintf("custom_%d", i), expr)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	rules = append(rules, defaultRules...)
	return &Set{rules: rules}, nil
}

// Extract returns the badge count from the first rule that matches the
// line with a parseable number, or false if no rule matches.
func (s *Set) Extract(line string) (int, bool) {
	for _, r := range s.rules {
		if n, ok := r.extract(line); ok {
			return n, true
		}
	}
	return 0, false
}

// Len returns the number of rules in the set
func (s *Set) Len() int {
	return len(s.rules)
}
