package ir

// DataType is the wire-level base data type of a coded value.
type DataType int

const (
	DataInt32 DataType = iota
	DataUint32
	DataFloat32
	DataASCIIString
	DataUTF8String
	DataUnicode2String
	DataByteField
	DataFloat64
)

func (d DataType) String() string {
	switch d {
	case DataInt32:
		return "A_INT32"
	case DataUint32:
		return "A_UINT32"
	case DataFloat32:
		return "A_FLOAT32"
	case DataASCIIString:
		return "A_ASCIISTRING"
	case DataUTF8String:
		return "A_UTF8STRING"
	case DataUnicode2String:
		return "A_UNICODE2STRING"
	case DataByteField:
		return "A_BYTEFIELD"
	case DataFloat64:
		return "A_FLOAT64"
	}
	return "A_UNKNOWN"
}

// CodedTypeName classifies how a value's extent is determined on the
// wire.
type CodedTypeName int

const (
	LeadingLengthInfoType CodedTypeName = iota
	MinMaxLengthType
	ParamLengthInfoType
	StandardLengthType
)

// Termination is the wire policy ending a MinMaxLengthType value.
type Termination string

const (
	TermNone     Termination = ""
	TermZero     Termination = "ZERO"
	TermEndOfPDU Termination = "END-OF-PDU"
)

// CodedType is the wire-level bit layout of a value: width, byte
// order, bit position, and length/termination for variable extents.
type CodedType struct {
	Name         CodedTypeName `json:"name"`
	BaseDataType DataType      `json:"base_data_type"`

	BitLength   int  `json:"bit_length,omitempty"`
	BitPosition int  `json:"bit_position,omitempty"`
	BigEndian   bool `json:"big_endian"`

	// MinMaxLengthType extents.
	MinLength   int         `json:"min_length,omitempty"`
	MaxLength   int         `json:"max_length,omitempty"`
	Termination Termination `json:"termination,omitempty"`

	// ParamLengthInfoType: the parameter supplying the length.
	LengthKeyRef string `json:"length_key_ref,omitempty"`
}

// CompuCategory classifies the internal-to-physical mapping.
type CompuCategory int

const (
	CompuIdentical CompuCategory = iota
	CompuLinear
	CompuTextTable
)

func (c CompuCategory) String() string {
	switch c {
	case CompuIdentical:
		return "IDENTICAL"
	case CompuLinear:
		return "LINEAR"
	case CompuTextTable:
		return "TEXTTABLE"
	}
	return "UNKNOWN"
}

// CompuScale is one scale of a computation method: the rational
// coefficients for LINEAR, or one value/range-to-label pair for
// TEXTTABLE (limits are inclusive).
type CompuScale struct {
	LowerLimit *float64 `json:"lower_limit,omitempty"`
	UpperLimit *float64 `json:"upper_limit,omitempty"`

	// Linear coefficients. physical = (internal-Offset)*Scale/Divisor + Shift.
	Scale   float64 `json:"scale,omitempty"`
	Offset  float64 `json:"offset,omitempty"`
	Divisor float64 `json:"divisor,omitempty"`
	Shift   float64 `json:"shift,omitempty"`

	// Text table entry.
	InternalLow  uint32 `json:"internal_low,omitempty"`
	InternalHigh uint32 `json:"internal_high,omitempty"`
	Text         string `json:"text,omitempty"`
}

// CompuMethod is the internal-to-physical conversion of a DOP.
type CompuMethod struct {
	Category CompuCategory `json:"category"`
	Scales   []CompuScale  `json:"scales,omitempty"`

	// DefaultText labels values no TEXTTABLE scale matches.
	DefaultText string `json:"default_text,omitempty"`

	// Declared validity bounds for LINEAR conversions.
	InternalMin *float64 `json:"internal_min,omitempty"`
	InternalMax *float64 `json:"internal_max,omitempty"`
	PhysicalMin *float64 `json:"physical_min,omitempty"`
	PhysicalMax *float64 `json:"physical_max,omitempty"`
}

// Convert applies a LINEAR method to an internal value. Identity
// methods return the input unchanged.
func (m *CompuMethod) Convert(internal float64) float64 {
	if m == nil || m.Category != CompuLinear || len(m.Scales) == 0 {
		return internal
	}
	s := m.Scales[0]
	divisor := s.Divisor
	if divisor == 0 {
		divisor = 1
	}
	return (internal-s.Offset)*s.Scale/divisor + s.Shift
}

// Lookup resolves a TEXTTABLE method for an internal value, falling
// back to the default text.
func (m *CompuMethod) Lookup(internal uint32) string {
	for _, s := range m.Scales {
		if internal >= s.InternalLow && internal <= s.InternalHigh {
			return s.Text
		}
	}
	return m.DefaultText
}

// DOP is a Data Object Property: a coded type paired with an optional
// computation method and unit. Deduplication is by structural identity
// (see Key), never by name.
type DOP struct {
	Name string `json:"name"`

	CodedType    CodedType    `json:"coded_type"`
	CompuMethod  *CompuMethod `json:"compu_method,omitempty"`
	PhysicalType DataType     `json:"physical_type"`
	Unit         string       `json:"unit,omitempty"`

	// StructFields is set for composite DOPs; such DOPs carry no
	// computation method of their own.
	StructFields []Param `json:"struct_fields,omitempty"`
}
