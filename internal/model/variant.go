package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// InheritMode is the variant inheritance policy.
type InheritMode string

const (
	// InheritNone requires the override fragment to be self-sufficient.
	InheritNone InheritMode = "none"
	// InheritOverride replaces same-keyed subtrees wholesale.
	InheritOverride InheritMode = "override"
	// InheritMerge performs a deep key-wise union.
	InheritMerge InheritMode = "merge"
)

// ArrayMerge is the strategy for merging array leaves under InheritMerge.
type ArrayMerge string

const (
	ArrayReplace ArrayMerge = "replace"
	ArrayAppend  ArrayMerge = "append"
	ArrayPrepend ArrayMerge = "prepend"
)

// Variants is the document's variant section. DetectionOrder is a total
// order over variant names; Fallback names the variant selected when no
// predicate matches.
type Variants struct {
	DetectionOrder []string               `yaml:"detection_order,omitempty"`
	Fallback       string                 `yaml:"fallback,omitempty"`
	AllowDelete    bool                   `yaml:"allow_delete,omitempty"`
	Definitions    map[string]*VariantDef `yaml:"definitions,omitempty"`
}

// VariantDef is one named variant: a detection predicate, a probe
// context to assume during detection, and an override fragment applied
// to the base chain named by Extends.
type VariantDef struct {
	Description string         `yaml:"description,omitempty"`
	Extends     string         `yaml:"extends,omitempty"`
	Mode        InheritMode    `yaml:"mode,omitempty"`
	ArrayMerge  ArrayMerge     `yaml:"array_merge,omitempty"`
	Detect      *Predicate     `yaml:"detect,omitempty"`
	Probe       *ProbeState    `yaml:"probe,omitempty"`
	Overrides   map[string]any `yaml:"overrides,omitempty"`
}

// ProbeState is the session/security/authentication state to assume
// while evaluating detection predicates.
type ProbeState struct {
	Session        string `yaml:"session,omitempty"`
	Security       string `yaml:"security,omitempty"`
	Authentication string `yaml:"authentication,omitempty"`
}

// Predicate is the closed detection expression tree. Exactly one field
// is set per node; Kind reports which.
type Predicate struct {
	All []*Predicate `yaml:"all,omitempty"`
	Any []*Predicate `yaml:"any,omitempty"`
	Not *Predicate   `yaml:"not,omitempty"`

	Equals           *ValueMatch   `yaml:"equals,omitempty"`
	Prefix           *ValueMatch   `yaml:"prefix,omitempty"`
	Bitmask          *BitmaskMatch `yaml:"bitmask,omitempty"`
	Regex            *RegexMatch   `yaml:"regex,omitempty"`
	SessionAvailable string        `yaml:"session_available,omitempty"`
	ServiceProbe     *ServiceProbe `yaml:"service_probe,omitempty"`
	IdentRef         string        `yaml:"ident_ref,omitempty"`
}

// PredicateKind tags the variant of a Predicate node.
type PredicateKind int

const (
	PredInvalid PredicateKind = iota
	PredAll
	PredAny
	PredNot
	PredEquals
	PredPrefix
	PredBitmask
	PredRegex
	PredSessionAvailable
	PredServiceProbe
	PredIdentRef
)

// Kind returns the single variant this node carries, or PredInvalid if
// zero or more than one field is set.
func (p *Predicate) Kind() PredicateKind {
	kind := PredInvalid
	set := func(k PredicateKind) {
		if kind != PredInvalid {
			kind = PredInvalid
			return
		}
		kind = k
	}
	if len(p.All) > 0 {
		set(PredAll)
	}
	if len(p.Any) > 0 {
		set(PredAny)
	}
	if p.Not != nil {
		set(PredNot)
	}
	if p.Equals != nil {
		set(PredEquals)
	}
	if p.Prefix != nil {
		set(PredPrefix)
	}
	if p.Bitmask != nil {
		set(PredBitmask)
	}
	if p.Regex != nil {
		set(PredRegex)
	}
	if p.SessionAvailable != "" {
		set(PredSessionAvailable)
	}
	if p.ServiceProbe != nil {
		set(PredServiceProbe)
	}
	if p.IdentRef != "" {
		set(PredIdentRef)
	}
	return kind
}

// ValueMatch compares the value read from a DID against an expected
// string (full equality or prefix, depending on the predicate).
type ValueMatch struct {
	DID   HexInt `yaml:"did"`
	Value string `yaml:"value"`
}

// BitmaskMatch masks the value read from a DID and compares the result.
type BitmaskMatch struct {
	DID   HexInt `yaml:"did"`
	Mask  HexInt `yaml:"mask"`
	Value HexInt `yaml:"value"`
}

// RegexMatch applies a regular expression to the value read from a DID.
type RegexMatch struct {
	DID     HexInt `yaml:"did"`
	Pattern string `yaml:"pattern"`
}

// ServiceProbe sends a named service and matches one of its declared
// response parameters.
type ServiceProbe struct {
	Service       string `yaml:"service"`
	ParamID       string `yaml:"param_id,omitempty"`
	ParamPath     string `yaml:"param_path,omitempty"`
	ExpectedValue string `yaml:"expected_value"`
}

// Identification declares reusable identification checks referenced by
// ident_ref predicate leaves.
type Identification struct {
	ExpectedIdents map[string]*ServiceProbe `yaml:"expected_idents,omitempty"`
}

// UnmarshalYAML enforces the single-variant invariant at decode time so
// later stages can rely on Kind being meaningful.
func (p *Predicate) UnmarshalYAML(node *yaml.Node) error {
	type raw Predicate
	var r raw
	if err := node.Decode(&r); err != nil {
		return err
	}
	*p = Predicate(r)
	if p.Kind() == PredInvalid {
		return fmt.Errorf("line %d: predicate must set exactly one of all/any/not/equals/prefix/bitmask/regex/session_available/service_probe/ident_ref", node.Line)
	}
	return nil
}
