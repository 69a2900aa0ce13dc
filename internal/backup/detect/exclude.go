package detect

import (
	"path"
	"strings"

	"github.com/Shevanio/snapback/internal/core/domain"
)

// ExclusionSet holds the ordered glob patterns supplied at backup time.
//
// Patterns are matched against the slash-separated relative path and against
// each of its segments, so "*.log" excludes log files anywhere in the tree
// and "node_modules" excludes the directory wherever it appears. Patterns
// are not persisted with the snapshot; an incremental must re-supply the
// same set or manifests and archives will diverge.
type ExclusionSet struct {
	patterns []string
}

// NewExclusionSet validates the pattern syntax up front so a malformed
// pattern fails the run instead of silently matching nothing.
func NewExclusionSet(patterns []string) (*ExclusionSet, error) {
	for _, p := range patterns {
		if _, err := path.Match(p, "probe"); err != nil {
			return nil, domain.ErrInvalidArgument.WithDetails("exclusion pattern " + p).WithCause(err)
		}
	}
	return &ExclusionSet{patterns: patterns}, nil
}

// Empty reports whether no patterns are configured.
func (e *ExclusionSet) Empty() bool {
	return len(e.patterns) == 0
}

// Match reports whether the relative path matches any exclusion pattern.
func (e *ExclusionSet) Match(rel string) bool {
	if len(e.patterns) == 0 {
		return false
	}
	segments := strings.Split(rel, "/")
	for _, p := range e.patterns {
		if ok, _ := path.Match(p, rel); ok {
			return true
		}
		for _, seg := range segments {
			if ok, _ := path.Match(p, seg); ok {
				return true
			}
		}
	}
	return false
}
