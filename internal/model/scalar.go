package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// HexInt is an integer that accepts both plain decimal and "0x" hex
// notation in YAML. DID addresses, routine identifiers, and DTC codes
// are conventionally authored in hex.
type HexInt uint32

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *HexInt) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseHexInt(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*h = HexInt(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler. Values round-trip as hex
// because that is how the authoring format writes them.
func (h HexInt) MarshalYAML() (any, error) {
	return fmt.Sprintf("%#06x", uint32(h)), nil
}

func (h HexInt) String() string {
	return fmt.Sprintf("%#06x", uint32(h))
}

func parseHexInt(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value %q", s)
	}
	return uint32(v), nil
}

// NameSet is a reference set that is either the special scalar "any" /
// "none", a single name, or a list of names. Access patterns use it for
// session, security, and authentication requirements.
type NameSet struct {
	// Special holds "any" or "none" when the set is the special scalar.
	Special string
	// Names holds the explicit entries otherwise.
	Names []string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *NameSet) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "any" || node.Value == "none" {
			s.Special = node.Value
			return nil
		}
		s.Names = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		s.Names = names
		return nil
	default:
		return fmt.Errorf("line %d: expected name, list of names, or any/none", node.Line)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (s NameSet) MarshalYAML() (any, error) {
	if s.Special != "" {
		return s.Special, nil
	}
	return s.Names, nil
}

// IsAny reports whether the set is the unrestricted "any" value.
func (s NameSet) IsAny() bool { return s.Special == "any" }

// IsNone reports whether the set is the empty "none" value.
func (s NameSet) IsNone() bool { return s.Special == "none" }

// SortedHexKeys returns the keys of a HexInt-keyed map in ascending
// order. Validators and transformers iterate maps through this helper so
// issue ordering and generated service ordering are reproducible.
func SortedHexKeys[V any](m map[HexInt]V) []HexInt {
	keys := make([]HexInt, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// SortedKeys returns the keys of a string-keyed map in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
