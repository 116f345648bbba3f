// Package policy maps session labels to attribute sets.
//
// A policy file lists policies, each selected by one of:
//   - label: exact match
//   - label_prefix and/or label_suffix: the longest combined match wins
//   - label_glob: doublestar pattern, first match wins
//
// and an optional default_policy used when nothing else matches. Every other
// key of a policy entry is an attribute.
//
// Example (YAML):
//
//	policy:
//	  - label: console
//	    uart: 0
//	    detect_size: "yes"
//	  - label_prefix: "logger ->"
//	    uart: 1
//	    access: exclusive
//	default_policy:
//	  uart: 0
//
// The same structure is accepted as TOML ([[policy]] tables).
package policy
