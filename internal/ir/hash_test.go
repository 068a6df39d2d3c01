package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func speedDOP(name, unit string) *DOP {
	return &DOP{
		Name: name,
		CodedType: CodedType{
			Name:         StandardLengthType,
			BaseDataType: DataUint32,
			BitLength:    16,
			BigEndian:    true,
		},
		CompuMethod: &CompuMethod{
			Category: CompuLinear,
			Scales:   []CompuScale{{Scale: 0.25}},
		},
		PhysicalType: DataFloat64,
		Unit:         unit,
	}
}

func TestStructuralKeyIgnoresName(t *testing.T) {
	a, err := speedDOP("VehicleSpeed", "km/h").StructuralKey()
	require.NoError(t, err)
	b, err := speedDOP("WheelSpeed", "km/h").StructuralKey()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStructuralKeyDiffersOnUnit(t *testing.T) {
	a, err := speedDOP("VehicleSpeed", "km/h").StructuralKey()
	require.NoError(t, err)
	b, err := speedDOP("VehicleSpeed", "mph").StructuralKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestStructuralKeyDiffersOnCodedLength(t *testing.T) {
	a := speedDOP("X", "km/h")
	b := speedDOP("X", "km/h")
	b.CodedType.BitLength = 32

	ka, err := a.StructuralKey()
	require.NoError(t, err)
	kb, err := b.StructuralKey()
	require.NoError(t, err)
	assert.NotEqual(t, ka, kb)
}

func TestStructuralKeyStable(t *testing.T) {
	d := speedDOP("VehicleSpeed", "km/h")
	first, err := d.StructuralKey()
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := d.StructuralKey()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Len(t, first, 64)
}

func TestStructuralKeyCoversStructFields(t *testing.T) {
	composite := func(fieldDOP *DOP) *DOP {
		return &DOP{
			Name: "Record",
			CodedType: CodedType{
				Name:         StandardLengthType,
				BaseDataType: DataByteField,
				BitLength:    32,
			},
			PhysicalType: DataByteField,
			StructFields: []Param{{
				Name:         "field",
				Type:         ParamValue,
				BytePosition: 0,
				DOP:          fieldDOP,
			}},
		}
	}

	a, err := composite(speedDOP("A", "km/h")).StructuralKey()
	require.NoError(t, err)
	b, err := composite(speedDOP("B", "km/h")).StructuralKey()
	require.NoError(t, err)
	// Field DOP names do not participate in identity.
	assert.Equal(t, a, b)

	c, err := composite(speedDOP("A", "mph")).StructuralKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
