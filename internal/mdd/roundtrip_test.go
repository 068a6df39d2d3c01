package mdd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensovd/mddc/internal/ir"
)

func fixtureDatabase() *ir.Database {
	db := ir.NewDatabase("GatewayECU", "1.0.0")
	db.VariantName = "sport"
	db.Author = "diag-team"

	db.Sessions["default"] = 0x01
	db.Sessions["extended"] = 0x03
	db.SecurityLevels["unlock"] = 0x05

	speedDOP := &ir.DOP{
		Name: "VehicleSpeed",
		CodedType: ir.CodedType{
			Name:         ir.StandardLengthType,
			BaseDataType: ir.DataUint32,
			BitLength:    16,
			BigEndian:    true,
		},
		CompuMethod: &ir.CompuMethod{
			Category: ir.CompuLinear,
			Scales:   []ir.CompuScale{{Scale: 0.25, Divisor: 1}},
		},
		PhysicalType: ir.DataFloat64,
		Unit:         "km/h",
	}
	db.AddDOP(speedDOP)

	subfn := uint8(0x01)
	db.AddService(&ir.DiagService{
		Name:        "VehicleSpeed_Read",
		ServiceID:   0x22,
		Subfunction: &subfn,
		Request: &ir.Request{
			Name: "VehicleSpeed_Read_RQ",
			Params: []ir.Param{
				{Name: "SID", Semantic: "SERVICE-ID", Type: ir.ParamCodedConst, CodedValue: 0x22, BitLength: 8},
				{Name: "DID", Semantic: "ID", BytePosition: 1, Type: ir.ParamCodedConst, CodedValue: 0xF40D, BitLength: 16},
			},
		},
		PositiveResponse: &ir.Response{
			Name: "VehicleSpeed_Read_PR",
			Params: []ir.Param{
				{Name: "SID", Semantic: "SERVICE-ID", Type: ir.ParamCodedConst, CodedValue: 0x62, BitLength: 8},
				{Name: "DATA", Semantic: "DATA", BytePosition: 3, Type: ir.ParamValue, DOP: speedDOP},
			},
		},
		RequiredSessions: []string{"default", "extended"},
		Addressing:       ir.AddrPhysical,
		Comparams:        map[string]string{"timeout_ms": "500"},
	})
	db.DIDReadServices[0xF40D] = "VehicleSpeed_Read"

	db.RoutineServices[0x0203] = []string{"VehicleSpeed_Read"}

	db.DTCs = []ir.DTC{{
		Code:     0x123456,
		Name:     "CircuitOpen",
		Severity: 0x40,
		Snapshots: []ir.SnapshotRecord{{
			RecordNumber: 1,
			Items:        []ir.SnapshotItem{{DID: 0xF40D, Name: "VehicleSpeed", ByteSize: 2}},
			TotalSize:    2,
		}},
		ExtendedData: []ir.ExtendedDataRecord{{
			RecordNumber: 1,
			Name:         "OccurrenceCounter",
			DOP:          speedDOP,
			ByteSize:     2,
		}},
	}}

	db.Variants = []ir.Variant{
		{Name: "GatewayECU", IsBase: true},
		{Name: "sport", MatchingParameters: []ir.MatchingParameter{{
			ExpectedValue:         "SPORT",
			DiagServiceRef:        "VehicleSpeed_Read",
			OutParamRef:           "DATA",
			UsePhysicalAddressing: true,
		}}},
	}

	db.Comparams = map[string]ir.ComparamValue{
		"timeout_ms": {Value: "500", Level: "protocol"},
	}
	return db
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	db := fixtureDatabase()

	blob, err := Encode(db)
	require.NoError(t, err)

	got, err := Decode(blob)
	require.NoError(t, err)

	assert.Equal(t, "GatewayECU", got.EcuName)
	assert.Equal(t, "sport", got.VariantName)
	assert.Equal(t, db.Sessions, got.Sessions)
	assert.Equal(t, db.SecurityLevels, got.SecurityLevels)
	assert.Equal(t, db.DIDReadServices, got.DIDReadServices)
	assert.Equal(t, db.RoutineServices, got.RoutineServices)
	assert.Equal(t, db.Comparams, got.Comparams)

	svc := got.Services["VehicleSpeed_Read"]
	require.NotNil(t, svc)
	assert.Equal(t, uint8(0x22), svc.ServiceID)
	require.NotNil(t, svc.Subfunction)
	assert.Equal(t, uint8(0x01), *svc.Subfunction)
	require.Len(t, svc.Request.Params, 2)
	assert.Equal(t, uint32(0xF40D), svc.Request.Params[1].CodedValue)
	assert.Equal(t, []string{"default", "extended"}, svc.RequiredSessions)
	assert.Equal(t, "500", svc.Comparams["timeout_ms"])

	dop := svc.PositiveResponse.Params[1].DOP
	require.NotNil(t, dop)
	assert.Equal(t, "km/h", dop.Unit)
	assert.InDelta(t, 25.0, dop.CompuMethod.Convert(100), 1e-9)

	require.Len(t, got.DTCs, 1)
	assert.Equal(t, uint8(0x40), got.DTCs[0].Severity)
	require.Len(t, got.Variants, 2)
	assert.True(t, got.Variants[0].IsBase)
}

func TestDecodedDOPsShareIdentity(t *testing.T) {
	db := fixtureDatabase()

	blob, err := Encode(db)
	require.NoError(t, err)
	got, err := Decode(blob)
	require.NoError(t, err)

	svc := got.Services["VehicleSpeed_Read"]
	require.NotNil(t, svc)
	respDOP := svc.PositiveResponse.Params[1].DOP
	extDOP := got.DTCs[0].ExtendedData[0].DOP

	// Same structural key means same stored table means same pointer.
	assert.Same(t, respDOP, extDOP)
	assert.Same(t, respDOP, got.DOPs["VehicleSpeed"])
}

func TestStructurallyEqualDOPsCollapse(t *testing.T) {
	db := ir.NewDatabase("ECU", "1")
	shape := ir.CodedType{
		Name:         ir.StandardLengthType,
		BaseDataType: ir.DataUint32,
		BitLength:    8,
		BigEndian:    true,
	}
	db.AddDOP(&ir.DOP{Name: "OilLevel", CodedType: shape, PhysicalType: ir.DataUint32, Unit: "percent"})
	db.AddDOP(&ir.DOP{Name: "FuelLevel", CodedType: shape, PhysicalType: ir.DataUint32, Unit: "percent"})

	blob, err := Encode(db)
	require.NoError(t, err)
	got, err := Decode(blob)
	require.NoError(t, err)

	// Two names, one layout: the artifact stores a single DOP table.
	assert.Len(t, got.DOPs, 1)
}

func TestEncodeDeterministic(t *testing.T) {
	a, err := Encode(fixtureDatabase())
	require.NoError(t, err)
	b, err := Encode(fixtureDatabase())
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	require.Error(t, err)
}
