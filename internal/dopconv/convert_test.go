package dopconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensovd/mddc/internal/ir"
	"github.com/opensovd/mddc/internal/model"
)

func intPtr(v int) *int                   { return &v }
func f64Ptr(v float64) *float64           { return &v }
func hexPtr(v model.HexInt) *model.HexInt { return &v }

func testConverter(types map[string]*model.TypeDefinition) *Converter {
	return New(&model.Document{Types: types})
}

func TestConvertAtomicIdentity(t *testing.T) {
	c := testConverter(nil)

	dop, err := c.DOP("EngineCount", model.TypeRef{Name: "u16"}, Options{Path: "dids.0x1234.type"})
	require.NoError(t, err)

	assert.Equal(t, ir.StandardLengthType, dop.CodedType.Name)
	assert.Equal(t, ir.DataUint32, dop.CodedType.BaseDataType)
	assert.Equal(t, 16, dop.CodedType.BitLength)
	assert.True(t, dop.CodedType.BigEndian)
	require.NotNil(t, dop.CompuMethod)
	assert.Equal(t, ir.CompuIdentical, dop.CompuMethod.Category)
}

func TestConvertLinear(t *testing.T) {
	c := testConverter(map[string]*model.TypeDefinition{
		"coolant_temp": {
			Base:   "u8",
			Scale:  f64Ptr(0.25),
			Offset: f64Ptr(0),
			Unit:   "degC",
		},
	})

	dop, err := c.DOP("CoolantTemp", model.TypeRef{Name: "coolant_temp"}, Options{})
	require.NoError(t, err)

	require.NotNil(t, dop.CompuMethod)
	assert.Equal(t, ir.CompuLinear, dop.CompuMethod.Category)
	assert.Equal(t, "degC", dop.Unit)
	assert.Equal(t, ir.DataFloat64, dop.PhysicalType)

	// physical = (internal - offset) * scale / divisor
	assert.InDelta(t, 25.0, dop.CompuMethod.Convert(100), 1e-9)
}

func TestConvertLinearConversionBlock(t *testing.T) {
	c := testConverter(map[string]*model.TypeDefinition{
		"rpm": {
			Base:   "u16",
			Endian: model.BigEndian,
			Conversion: &model.LinearConversion{
				Scale:               1,
				Divisor:             4,
				Unit:                "rpm",
				InternalConstraints: []float64{0, 65535},
			},
		},
	})

	dop, err := c.DOP("EngineSpeed", model.TypeRef{Name: "rpm"}, Options{})
	require.NoError(t, err)

	require.NotNil(t, dop.CompuMethod)
	assert.InDelta(t, 2000.0, dop.CompuMethod.Convert(8000), 1e-9)
	require.NotNil(t, dop.CompuMethod.InternalMax)
	assert.Equal(t, 65535.0, *dop.CompuMethod.InternalMax)
	assert.Equal(t, "rpm", dop.Unit)
}

func TestConvertMissingEndianness(t *testing.T) {
	c := testConverter(map[string]*model.TypeDefinition{
		"wide": {Base: "u32"},
	})

	_, err := c.DOP("Wide", model.TypeRef{Name: "wide"}, Options{Path: "types.wide"})
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CodeMissingEndianness, cerr.Code)
	assert.Equal(t, "types.wide", cerr.Path)
}

func TestConvertFixedLengthString(t *testing.T) {
	c := testConverter(map[string]*model.TypeDefinition{
		"vin": {Base: "ascii", Length: intPtr(17)},
	})

	dop, err := c.DOP("VIN", model.TypeRef{Name: "vin"}, Options{})
	require.NoError(t, err)

	assert.Equal(t, ir.StandardLengthType, dop.CodedType.Name)
	assert.Equal(t, ir.DataASCIIString, dop.CodedType.BaseDataType)
	assert.Equal(t, 17*8, dop.CodedType.BitLength)
}

func TestConvertEndOfPDUBytes(t *testing.T) {
	c := testConverter(map[string]*model.TypeDefinition{
		"dump": {
			Base:        "bytes",
			MinLength:   intPtr(0),
			MaxLength:   intPtr(4095),
			Termination: model.TermEndOfPDU,
		},
	})

	dop, err := c.DOP("Dump", model.TypeRef{Name: "dump"}, Options{})
	require.NoError(t, err)

	assert.Equal(t, ir.MinMaxLengthType, dop.CodedType.Name)
	assert.Equal(t, ir.TermEndOfPDU, dop.CodedType.Termination)
	assert.Equal(t, 4095, dop.CodedType.MaxLength)
}

func TestConvertLengthFieldUnresolvable(t *testing.T) {
	c := testConverter(map[string]*model.TypeDefinition{
		"blob": {
			Base:        "bytes",
			MinLength:   intPtr(1),
			MaxLength:   intPtr(255),
			Termination: model.TermLengthField,
		},
	})

	_, err := c.DOP("Blob", model.TypeRef{Name: "blob"}, Options{Path: "types.blob"})
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CodeLengthFieldUnres, cerr.Code)

	// Resolvable once the surrounding parameter list names a length key.
	dop, err := c.DOP("Blob", model.TypeRef{Name: "blob"}, Options{LengthKeyRef: "BlobLength"})
	require.NoError(t, err)
	assert.Equal(t, ir.ParamLengthInfoType, dop.CodedType.Name)
	assert.Equal(t, "BlobLength", dop.CodedType.LengthKeyRef)
}

func TestConvertEnum(t *testing.T) {
	c := testConverter(map[string]*model.TypeDefinition{
		"gear": {
			Base: "u8",
			Enum: map[model.HexInt]string{
				0x00: "Park",
				0x01: "Reverse",
				0x02: "Neutral",
			},
			DefaultText: "Unknown",
		},
	})

	dop, err := c.DOP("Gear", model.TypeRef{Name: "gear"}, Options{})
	require.NoError(t, err)

	require.NotNil(t, dop.CompuMethod)
	assert.Equal(t, ir.CompuTextTable, dop.CompuMethod.Category)
	require.Len(t, dop.CompuMethod.Scales, 3)
	assert.Equal(t, "Park", dop.CompuMethod.Scales[0].Text)
	assert.Equal(t, "Neutral", dop.CompuMethod.Lookup(2))
	assert.Equal(t, "Unknown", dop.CompuMethod.Lookup(9))
}

func TestConvertTextTableRanges(t *testing.T) {
	c := testConverter(map[string]*model.TypeDefinition{
		"status": {
			Base: "u8",
			Entries: []model.TextTableEntry{
				{Value: hexPtr(0x00), Text: "ok"},
				{Range: []model.HexInt{0x10, 0x1F}, Text: "degraded"},
			},
			DefaultText: "fault",
		},
	})

	dop, err := c.DOP("Status", model.TypeRef{Name: "status"}, Options{})
	require.NoError(t, err)

	assert.Equal(t, "degraded", dop.CompuMethod.Lookup(0x15))
	assert.Equal(t, "fault", dop.CompuMethod.Lookup(0x30))
}

func TestConvertStruct(t *testing.T) {
	c := testConverter(map[string]*model.TypeDefinition{
		"pair": {
			Base: "struct",
			Fields: []model.StructField{
				{Name: "id", Type: model.TypeRef{Name: "u8"}},
				{Name: "count", Type: model.TypeRef{Inline: &model.TypeDefinition{
					Base: "u16", Endian: model.BigEndian,
				}}},
			},
		},
	})

	dop, err := c.DOP("Pair", model.TypeRef{Name: "pair"}, Options{})
	require.NoError(t, err)

	require.Len(t, dop.StructFields, 2)
	assert.Equal(t, 0, dop.StructFields[0].BytePosition)
	assert.Equal(t, 1, dop.StructFields[1].BytePosition)
	assert.Nil(t, dop.CompuMethod)
}

func TestStructuralKeyIgnoresName(t *testing.T) {
	c := testConverter(nil)

	ref := model.TypeRef{Inline: &model.TypeDefinition{
		Base: "u8", Scale: f64Ptr(0.5), Unit: "km/h",
	}}

	a, err := c.DOP("SpeedA", ref, Options{})
	require.NoError(t, err)
	b, err := c.DOP("SpeedB", ref, Options{})
	require.NoError(t, err)

	assert.Equal(t, a.MustStructuralKey(), b.MustStructuralKey())
}

func TestStructuralKeyDiffersOnUnit(t *testing.T) {
	c := testConverter(nil)

	a, err := c.DOP("A", model.TypeRef{Inline: &model.TypeDefinition{Base: "u8", Unit: "s"}}, Options{})
	require.NoError(t, err)
	b, err := c.DOP("B", model.TypeRef{Inline: &model.TypeDefinition{Base: "u8", Unit: "ms"}}, Options{})
	require.NoError(t, err)

	assert.NotEqual(t, a.MustStructuralKey(), b.MustStructuralKey())
}

func TestUnknownTypeReference(t *testing.T) {
	c := testConverter(nil)

	_, err := c.DOP("X", model.TypeRef{Name: "nope"}, Options{Path: "dids.0x0100.type"})
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CodeUnknownType, cerr.Code)
}
