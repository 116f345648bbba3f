package policy

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Table is an immutable, validated set of policies.
type Table struct {
	policies []*Policy
	fallback *Policy
}

// NewTable validates the policies and builds a table. def may be nil.
func NewTable(policies []*Policy, def *Policy) (*Table, error) {
	for i, p := range policies {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("policy %d: %w", i, err)
		}
	}
	return &Table{policies: policies, fallback: def}, nil
}

// Len returns the number of non-default policies.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.policies)
}

// HasDefault reports whether the table carries a default policy.
func (t *Table) HasDefault() bool {
	return t != nil && t.fallback != nil
}

// Lookup returns the policy that best matches label: an exact label first,
// then the longest prefix/suffix match, then the first matching glob, then
// the default policy.
func (t *Table) Lookup(label string) (*Policy, error) {
	if t == nil {
		return nil, fmt.Errorf("%w for label %q", ErrNoPolicy, label)
	}

	for _, p := range t.policies {
		if p.Label != "" && p.Label == label {
			return p, nil
		}
	}

	var best *Policy
	bestScore := -1
	for _, p := range t.policies {
		if p.Label != "" || p.LabelGlob != "" {
			continue
		}
		if score := p.affixScore(label); score > bestScore {
			best, bestScore = p, score
		}
	}
	if best != nil {
		return best, nil
	}

	for _, p := range t.policies {
		if p.LabelGlob == "" {
			continue
		}
		if ok, _ := doublestar.Match(p.LabelGlob, label); ok {
			return p, nil
		}
	}

	if t.fallback != nil {
		return t.fallback, nil
	}
	return nil, fmt.Errorf("%w for label %q", ErrNoPolicy, label)
}
