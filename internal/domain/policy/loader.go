package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Format is a policy file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported policy file extension %q", filepath.Ext(path))
	}
}

type document struct {
	Policy        []map[string]any `yaml:"policy" toml:"policy"`
	DefaultPolicy map[string]any   `yaml:"default_policy" toml:"default_policy"`
}

// LoadFile reads and parses a policy file.
func LoadFile(path string) (*Table, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	table, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// Parse decodes a policy document.
func Parse(data []byte, format Format) (*Table, error) {
	var doc document
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown policy format %q", format)
	}

	policies := make([]*Policy, 0, len(doc.Policy))
	for i, entry := range doc.Policy {
		p, err := fromEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("policy %d: %w", i, err)
		}
		policies = append(policies, p)
	}

	var def *Policy
	if doc.DefaultPolicy != nil {
		attrs, err := attributes(doc.DefaultPolicy)
		if err != nil {
			return nil, fmt.Errorf("default_policy: %w", err)
		}
		def = New(Policy{}, attrs)
	}

	return NewTable(policies, def)
}

func fromEntry(entry map[string]any) (*Policy, error) {
	var sel Policy
	rest := make(map[string]any, len(entry))
	for k, v := range entry {
		var dst *string
		switch k {
		case KeyLabel:
			dst = &sel.Label
		case KeyLabelPrefix:
			dst = &sel.LabelPrefix
		case KeyLabelSuffix:
			dst = &sel.LabelSuffix
		case KeyLabelGlob:
			dst = &sel.LabelGlob
		default:
			rest[k] = v
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidPolicy, k)
		}
		*dst = s
	}

	attrs, err := attributes(rest)
	if err != nil {
		return nil, err
	}
	return New(sel, attrs), nil
}

// attributes flattens scalar values to strings.
func attributes(in map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(in))
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		s, err := scalar(in[k])
		if err != nil {
			return nil, fmt.Errorf("%w: attribute %q: %v", ErrInvalidPolicy, k, err)
		}
		out[k] = s
	}
	return out, nil
}

func scalar(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
