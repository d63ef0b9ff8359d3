package tally

import (
	"fmt"
	"regexp"
)

// Rewrite renames counters whose name matches From. To may reference
// submatches of From as $1 or ${name}.
type Rewrite struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Rewriter maps a counter name to the name it is reported under.
type Rewriter func(string) string

type renameRule struct {
	from *regexp.Regexp
	to   string
}

func (r renameRule) apply(name string) (string, bool) {
	if !r.from.MatchString(name) {
		return name, false
	}
	return r.from.ReplaceAllString(name, r.to), true
}

// NewRewriter compiles rename rules. The first rule whose pattern matches a
// name decides its reported name. A rule that would rename a counter to the
// empty string leaves it as it was.
func NewRewriter(rules []Rewrite) (Rewriter, error) {
	if len(rules) == 0 {
		return func(name string) string { return name }, nil
	}

	compiled := make([]renameRule, len(rules))
	for i, rule := range rules {
		from, err := regexp.Compile(rule.From)
		if err != nil {
			return nil, fmt.Errorf("rename rule %d (%q): %w: %w", i+1, rule.From, ErrInvalidPattern, err)
		}
		compiled[i] = renameRule{from: from, to: rule.To}
	}

	return func(name string) string {
		for _, rule := range compiled {
			renamed, ok := rule.apply(name)
			if !ok {
				continue
			}
			if renamed == "" {
				return name
			}
			return renamed
		}
		return name
	}, nil
}
