package policy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	ErrNoPolicy             = errors.New("no matching policy")
	ErrNonexistentAttribute = errors.New("nonexistent attribute")
	ErrInvalidValue         = errors.New("invalid attribute value")
	ErrInvalidPolicy        = errors.New("invalid policy")
)

// Selector keys. They are not attributes.
const (
	KeyLabel       = "label"
	KeyLabelPrefix = "label_prefix"
	KeyLabelSuffix = "label_suffix"
	KeyLabelGlob   = "label_glob"
)

// Policy is one entry of a policy table.
type Policy struct {
	Label       string
	LabelPrefix string
	LabelSuffix string
	LabelGlob   string

	attrs map[string]string
}

// New creates a policy from its selectors and attributes.
func New(sel Policy, attrs map[string]string) *Policy {
	p := sel
	p.attrs = make(map[string]string, len(attrs))
	for k, v := range attrs {
		p.attrs[k] = v
	}
	return &p
}

// Attribute returns the named attribute or ErrNonexistentAttribute.
func (p *Policy) Attribute(name string) (Value, error) {
	raw, ok := p.attrs[name]
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrNonexistentAttribute, name)
	}
	return Value{name: name, raw: raw}, nil
}

// Attributes returns a copy of all attributes.
func (p *Policy) Attributes() map[string]string {
	out := make(map[string]string, len(p.attrs))
	for k, v := range p.attrs {
		out[k] = v
	}
	return out
}

func (p *Policy) validate() error {
	switch {
	case p.Label != "":
		if p.LabelPrefix != "" || p.LabelSuffix != "" || p.LabelGlob != "" {
			return fmt.Errorf("%w: label cannot be combined with other selectors", ErrInvalidPolicy)
		}
	case p.LabelGlob != "":
		if p.LabelPrefix != "" || p.LabelSuffix != "" {
			return fmt.Errorf("%w: label_glob cannot be combined with prefix/suffix", ErrInvalidPolicy)
		}
		if !doublestar.ValidatePattern(p.LabelGlob) {
			return fmt.Errorf("%w: bad label_glob %q", ErrInvalidPolicy, p.LabelGlob)
		}
	case p.LabelPrefix == "" && p.LabelSuffix == "":
		return fmt.Errorf("%w: no label selector", ErrInvalidPolicy)
	}
	return nil
}

// affixScore returns the matched prefix+suffix length, or -1.
func (p *Policy) affixScore(label string) int {
	if p.LabelPrefix == "" && p.LabelSuffix == "" {
		return -1
	}
	if len(p.LabelPrefix)+len(p.LabelSuffix) > len(label) {
		return -1
	}
	if !strings.HasPrefix(label, p.LabelPrefix) || !strings.HasSuffix(label, p.LabelSuffix) {
		return -1
	}
	return len(p.LabelPrefix) + len(p.LabelSuffix)
}

// Value is a raw attribute value.
type Value struct {
	name string
	raw  string
}

// String returns the raw value.
func (v Value) String() string { return v.raw }

// HasValue reports whether the value equals s.
func (v Value) HasValue(s string) bool { return v.raw == s }

// Uint parses the value as an unsigned decimal integer.
func (v Value) Uint() (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(v.raw), 10, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an unsigned integer", ErrInvalidValue, v.name, v.raw)
	}
	return uint(n), nil
}
