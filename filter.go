package tally

import (
	"fmt"
	"regexp"
)

// Filterer is a function that returns true if a counter name should be reported.
type Filterer func(string) bool

// NewFilterer compiles include and exclude patterns into a Filterer function.
// A name passes if it matches any include and no exclude. When includes is
// empty, all names pass (subject to excludes). Internal names never pass.
func NewFilterer(includes, excludes []string) (Filterer, error) {
	reIncludes := make([]*regexp.Regexp, 0, len(includes))
	reExcludes := make([]*regexp.Regexp, 0, len(excludes))

	// compile patterns
	for _, pattern := range includes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling include %q: %w: %w", pattern, ErrInvalidPattern, err)
		}
		reIncludes = append(reIncludes, re)
	}

	for _, pattern := range excludes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling exclude %q: %w: %w", pattern, ErrInvalidPattern, err)
		}
		reExcludes = append(reExcludes, re)
	}

	return func(name string) bool {
		if IsInternal(name) {
			return false
		}

		// check excludes
		for _, re := range reExcludes {
			if re.MatchString(name) {
				return false
			}
		}

		// no includes (but excludes did not match)
		if len(reIncludes) == 0 {
			return true
		}

		// check includes
		for _, re := range reIncludes {
			if re.MatchString(name) {
				return true
			}
		}

		// no includes passed
		return false
	}, nil
}
