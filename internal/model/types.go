package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// BaseType is the closed set of primitive wire types.
type BaseType string

const (
	BaseU8     BaseType = "u8"
	BaseU16    BaseType = "u16"
	BaseU32    BaseType = "u32"
	BaseU64    BaseType = "u64"
	BaseI8     BaseType = "i8"
	BaseI16    BaseType = "i16"
	BaseI32    BaseType = "i32"
	BaseI64    BaseType = "i64"
	BaseF32    BaseType = "f32"
	BaseF64    BaseType = "f64"
	BaseASCII  BaseType = "ascii"
	BaseUTF8   BaseType = "utf8"
	BaseBytes  BaseType = "bytes"
	BaseBool   BaseType = "bool"
	BaseStruct BaseType = "struct"
)

// BuiltinTypes are the base type names usable directly as type
// references without a types entry.
var BuiltinTypes = map[string]BaseType{
	"u8": BaseU8, "u16": BaseU16, "u32": BaseU32, "u64": BaseU64,
	"i8": BaseI8, "i16": BaseI16, "i32": BaseI32, "i64": BaseI64,
	"f32": BaseF32, "f64": BaseF64,
	"ascii": BaseASCII, "utf8": BaseUTF8, "bytes": BaseBytes, "bool": BaseBool,
}

// BitWidth returns the default bit width of a base type, or 0 for
// variable-length kinds.
func (b BaseType) BitWidth() int {
	switch b {
	case BaseU8, BaseI8, BaseBool:
		return 8
	case BaseU16, BaseI16:
		return 16
	case BaseU32, BaseI32, BaseF32:
		return 32
	case BaseU64, BaseI64, BaseF64:
		return 64
	default:
		return 0
	}
}

// IsInteger reports whether the base type is a fixed-width integer.
func (b BaseType) IsInteger() bool {
	switch b {
	case BaseU8, BaseU16, BaseU32, BaseU64, BaseI8, BaseI16, BaseI32, BaseI64, BaseBool:
		return true
	}
	return false
}

// IsVariableLength reports whether the base type carries its own length.
func (b BaseType) IsVariableLength() bool {
	switch b {
	case BaseASCII, BaseUTF8, BaseBytes:
		return true
	}
	return false
}

// Endianness is the byte order of a multi-byte atomic type.
type Endianness string

const (
	BigEndian    Endianness = "big"
	LittleEndian Endianness = "little"
)

// Termination is the policy ending a variable-length string/byte value.
type Termination string

const (
	TermZero        Termination = "zero"
	TermEndOfPDU    Termination = "end_of_pdu"
	TermLengthField Termination = "length_field"
	TermNone        Termination = "none"
)

// LinearConversion is the declarative linear scaling block.
// physical = (internal - offset) * scale / divisor + shift.
type LinearConversion struct {
	Scale   float64 `yaml:"scale,omitempty"`
	Offset  float64 `yaml:"offset,omitempty"`
	Divisor float64 `yaml:"divisor,omitempty"`
	Shift   float64 `yaml:"shift,omitempty"`
	Unit    string  `yaml:"unit,omitempty"`

	InternalConstraints []float64 `yaml:"internal_constraints,omitempty"`
	PhysicalConstraints []float64 `yaml:"physical_constraints,omitempty"`
}

// TextTableEntry maps one value or inclusive range to a label.
type TextTableEntry struct {
	Value *HexInt  `yaml:"value,omitempty"`
	Range []HexInt `yaml:"range,omitempty"`
	Text  string   `yaml:"text"`
}

// StructField is one positioned member of a struct type.
type StructField struct {
	Name        string  `yaml:"name"`
	Type        TypeRef `yaml:"type"`
	Description string  `yaml:"description,omitempty"`
	BitPosition *int    `yaml:"bit_position,omitempty"`
	BitLength   *int    `yaml:"bit_length,omitempty"`
}

// TypeDefinition is the tagged union over atomic, enum, text-table, and
// struct type kinds. The tag is derived: a struct base means struct,
// an enum map means enum, an entries list means text-table, everything
// else is atomic.
type TypeDefinition struct {
	Base        BaseType   `yaml:"base"`
	Endian      Endianness `yaml:"endian,omitempty"`
	Description string     `yaml:"description,omitempty"`
	Unit        string     `yaml:"unit,omitempty"`

	// Atomic scaling (shorthand for a conversion block).
	Scale  *float64 `yaml:"scale,omitempty"`
	Offset *float64 `yaml:"offset,omitempty"`

	// Full linear conversion specification.
	Conversion *LinearConversion `yaml:"conversion,omitempty"`

	// Enum mapping (integer bases only).
	Enum map[HexInt]string `yaml:"enum,omitempty"`

	// Text table entries with optional ranges.
	Entries     []TextTableEntry `yaml:"entries,omitempty"`
	DefaultText string           `yaml:"default_text,omitempty"`

	// Length constraints for string/byte kinds.
	Length      *int        `yaml:"length,omitempty"`
	MinLength   *int        `yaml:"min_length,omitempty"`
	MaxLength   *int        `yaml:"max_length,omitempty"`
	Termination Termination `yaml:"termination,omitempty"`
	Pattern     string      `yaml:"pattern,omitempty"`

	// Sub-byte layout.
	BitLength   *int `yaml:"bit_length,omitempty"`
	BitPosition *int `yaml:"bit_position,omitempty"`

	// Struct members.
	Fields []StructField `yaml:"fields,omitempty"`
	Size   *int          `yaml:"size,omitempty"`
}

// Kind classifies a type definition into the converter's dispatch tag.
type TypeKind int

const (
	KindAtomic TypeKind = iota
	KindEnum
	KindTextTable
	KindStruct
)

func (k TypeKind) String() string {
	switch k {
	case KindAtomic:
		return "atomic"
	case KindEnum:
		return "enum"
	case KindTextTable:
		return "text-table"
	case KindStruct:
		return "struct"
	}
	return "unknown"
}

// Kind returns the dispatch tag for this definition.
func (t *TypeDefinition) Kind() TypeKind {
	switch {
	case t.Base == BaseStruct:
		return KindStruct
	case len(t.Enum) > 0:
		return KindEnum
	case len(t.Entries) > 0:
		return KindTextTable
	default:
		return KindAtomic
	}
}

// TypeRef is either a reference to a named (or builtin) type or an
// inline TypeDefinition.
type TypeRef struct {
	Name   string
	Inline *TypeDefinition
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *TypeRef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		r.Name = node.Value
		return nil
	case yaml.MappingNode:
		def := &TypeDefinition{}
		if err := node.Decode(def); err != nil {
			return err
		}
		r.Inline = def
		return nil
	default:
		return fmt.Errorf("line %d: type must be a name or an inline definition", node.Line)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (r TypeRef) MarshalYAML() (any, error) {
	if r.Inline != nil {
		return r.Inline, nil
	}
	return r.Name, nil
}

// IsZero reports whether the reference is unset.
func (r TypeRef) IsZero() bool { return r.Name == "" && r.Inline == nil }
