package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensovd/mddc/internal/ir"
	"github.com/opensovd/mddc/internal/model"
)

func boolPtr(v bool) *bool { return &v }
func intPtr(v int) *int    { return &v }

func minimalDoc() *model.Document {
	return &model.Document{
		Meta: model.Meta{Revision: "1.0.0"},
		Ecu:  model.Ecu{ID: "gw", Name: "GatewayECU"},
		Sessions: map[string]model.Session{
			"default":  {ID: 0x01},
			"extended": {ID: 0x03},
		},
		AccessPatterns: map[string]model.AccessPattern{
			"public": {
				Sessions:       model.NameSet{Special: "any"},
				Security:       model.NameSet{Special: "none"},
				Authentication: model.NameSet{Special: "none"},
			},
		},
		DIDs: map[model.HexInt]*model.DID{
			0xF190: {
				Name:   "VIN",
				Type:   model.TypeRef{Inline: &model.TypeDefinition{Base: "ascii", Length: intPtr(17)}},
				Access: "public",
			},
		},
	}
}

func TestBuildMinimalDocument(t *testing.T) {
	db, skipped, err := New(minimalDoc(), Options{}).Build()
	require.NoError(t, err)
	assert.Empty(t, skipped)

	assert.Equal(t, "GatewayECU", db.EcuName)
	assert.Equal(t, "1.0.0", db.Revision)
	assert.Equal(t, uint32(0x01), db.Sessions["default"])

	svcName, ok := db.DIDReadServices[0xF190]
	require.True(t, ok)
	assert.Equal(t, "VIN_Read", svcName)

	svc := db.Services[svcName]
	require.NotNil(t, svc)
	assert.Equal(t, uint8(0x22), svc.ServiceID)

	// Request: [0x22][DID16]. Response: [0x62][DID16][DATA at byte 3].
	require.Len(t, svc.Request.Params, 2)
	assert.Equal(t, uint32(0x22), svc.Request.Params[0].CodedValue)
	assert.Equal(t, uint32(0xF190), svc.Request.Params[1].CodedValue)
	assert.Equal(t, 16, svc.Request.Params[1].BitLength)

	require.Len(t, svc.PositiveResponse.Params, 3)
	assert.Equal(t, uint32(0x62), svc.PositiveResponse.Params[0].CodedValue)
	data := svc.PositiveResponse.Params[2]
	assert.Equal(t, 3, data.BytePosition)
	assert.Equal(t, ir.ParamValue, data.Type)
	require.NotNil(t, data.DOP)
	assert.Equal(t, 17*8, data.DOP.CodedType.BitLength)

	// Not writable by default: no write service.
	_, hasWrite := db.DIDWriteServices[0xF190]
	assert.False(t, hasWrite)
}

func TestBuildWriteService(t *testing.T) {
	doc := minimalDoc()
	doc.DIDs[0xF190].Writable = boolPtr(true)
	doc.DIDs[0xF190].WriteConditions = []model.WriteCondition{
		{Session: "extended", Security: "unlock"},
	}

	db, _, err := New(doc, Options{}).Build()
	require.NoError(t, err)

	svcName := db.DIDWriteServices[0xF190]
	svc := db.Services[svcName]
	require.NotNil(t, svc)
	assert.Equal(t, uint8(0x2E), svc.ServiceID)

	// Request carries the payload, response only echoes the DID.
	require.Len(t, svc.Request.Params, 3)
	require.Len(t, svc.PositiveResponse.Params, 2)
	assert.Equal(t, uint32(0x6E), svc.PositiveResponse.Params[0].CodedValue)

	assert.Contains(t, svc.RequiredSessions, "extended")
	assert.Contains(t, svc.RequiredSecurity, "unlock")
}

func TestBuildRoutineServices(t *testing.T) {
	doc := minimalDoc()
	doc.Routines = map[model.HexInt]*model.Routine{
		0x0203: {
			Name:       "EraseMemory",
			Operations: []model.RoutineOperation{model.RoutineStart, model.RoutineResult},
			Parameters: &model.RoutineParameters{
				StartRequest: []model.RoutineParam{
					{Name: "MemoryArea", Type: model.TypeRef{Name: "u8"}},
				},
				ResultResponse: []model.RoutineParam{
					{Name: "EraseStatus", Type: model.TypeRef{Name: "u8"}},
				},
			},
		},
	}

	db, skipped, err := New(doc, Options{}).Build()
	require.NoError(t, err)
	assert.Empty(t, skipped)

	names := db.RoutineServices[0x0203]
	require.Len(t, names, 2)

	start := db.Services["EraseMemory_Start"]
	require.NotNil(t, start)
	assert.Equal(t, uint8(0x31), start.ServiceID)
	require.NotNil(t, start.Subfunction)
	assert.Equal(t, uint8(0x01), *start.Subfunction)

	// Request: [0x31][subfn][RID16][MemoryArea at byte 4].
	require.Len(t, start.Request.Params, 4)
	assert.Equal(t, uint32(0x0203), start.Request.Params[2].CodedValue)
	assert.Equal(t, 4, start.Request.Params[3].BytePosition)

	result := db.Services["EraseMemory_Result"]
	require.NotNil(t, result)
	require.NotNil(t, result.Subfunction)
	assert.Equal(t, uint8(0x03), *result.Subfunction)
	require.Len(t, result.PositiveResponse.Params, 4)
}

func TestBuildStandardServices(t *testing.T) {
	doc := minimalDoc()
	doc.Security = map[string]model.SecurityLevel{
		"unlock": {Level: 0x05, SeedSize: 4, KeySize: 4},
	}
	doc.Services = &model.Services{
		EcuReset: &model.ServiceConfig{
			Subfunctions: map[string]model.HexInt{"hardReset": 0x01, "softReset": 0x03},
		},
	}

	db, _, err := New(doc, Options{}).Build()
	require.NoError(t, err)

	// One session control service per declared session.
	dsc := db.Services["DiagnosticSessionControl_extended"]
	require.NotNil(t, dsc)
	assert.Equal(t, uint8(0x10), dsc.ServiceID)
	require.NotNil(t, dsc.Subfunction)
	assert.Equal(t, uint8(0x03), *dsc.Subfunction)

	// Seed/key pair per security level; key subfunction is level+1.
	seed := db.Services["SecurityAccess_unlock_RequestSeed"]
	require.NotNil(t, seed)
	assert.Equal(t, uint8(0x05), *seed.Subfunction)
	key := db.Services["SecurityAccess_unlock_SendKey"]
	require.NotNil(t, key)
	assert.Equal(t, uint8(0x06), *key.Subfunction)

	assert.NotNil(t, db.Services["EcuReset_hardReset"])
	assert.NotNil(t, db.Services["EcuReset_softReset"])
	assert.Nil(t, db.Services["EcuReset_keyOffOnReset"])
}

func TestEcuResetAbsentByDefault(t *testing.T) {
	db, _, err := New(minimalDoc(), Options{}).Build()
	require.NoError(t, err)
	assert.Nil(t, db.Services["EcuReset_hardReset"])
}

func TestBuildDTCs(t *testing.T) {
	doc := minimalDoc()
	doc.DTCs = map[model.HexInt]*model.DTC{
		0x123456: {
			Name:     "CircuitOpen",
			Severity: 3,
			Snapshots: []model.DTCSnapshot{
				{RecordNumber: 1, DIDs: []model.HexInt{0xF190}},
			},
		},
	}

	db, skipped, err := New(doc, Options{}).Build()
	require.NoError(t, err)
	assert.Empty(t, skipped)

	require.Len(t, db.DTCs, 1)
	dtc := db.DTCs[0]
	assert.Equal(t, uint32(0x123456), dtc.Code)
	assert.Equal(t, uint8(0x40), dtc.Severity)

	require.Len(t, dtc.Snapshots, 1)
	require.Len(t, dtc.Snapshots[0].Items, 1)
	assert.Equal(t, uint32(0xF190), dtc.Snapshots[0].Items[0].DID)
	assert.Equal(t, 17, dtc.Snapshots[0].Items[0].ByteSize)
	assert.Equal(t, 17, dtc.Snapshots[0].TotalSize)
}

func TestDTCConfigDefaults(t *testing.T) {
	doc := minimalDoc()
	doc.DTCConfig = &model.DTCConfig{
		Snapshots: map[string]model.DTCSnapshot{
			"standard": {RecordNumber: 1, DIDs: []model.HexInt{0xF190}},
		},
	}
	doc.DTCs = map[model.HexInt]*model.DTC{
		0x001122: {Name: "NoOwnRecords", Severity: 1},
	}

	db, _, err := New(doc, Options{}).Build()
	require.NoError(t, err)

	require.Len(t, db.DTCs, 1)
	require.Len(t, db.DTCs[0].Snapshots, 1)
	assert.Equal(t, uint8(1), db.DTCs[0].Snapshots[0].RecordNumber)
}

func TestSeverityOutOfRange(t *testing.T) {
	doc := minimalDoc()
	doc.DTCs = map[model.HexInt]*model.DTC{
		0x000001: {Name: "Bad", Severity: 9},
	}

	db, skipped, err := New(doc, Options{}).Build()
	require.NoError(t, err)
	assert.Empty(t, db.DTCs)
	require.Len(t, skipped, 1)
	assert.Equal(t, "dtc", skipped[0].Kind)
}

func TestComparamChain(t *testing.T) {
	doc := minimalDoc()
	doc.Comparams = &model.Comparams{
		Definitions: map[string]model.ComparamDef{
			"timeout_ms":  {Required: true},
			"retry_count": {Default: "3"},
		},
		Global:   map[string]string{"timeout_ms": "1000"},
		Protocol: map[string]string{"timeout_ms": "500"},
		Ecu:      map[string]string{},
	}
	doc.DIDs[0xF190].Comparams = map[string]string{"timeout_ms": "100"}

	db, _, err := New(doc, Options{}).Build()
	require.NoError(t, err)

	// Globally the protocol level wins over global.
	assert.Equal(t, "500", db.Comparams["timeout_ms"].Value)
	assert.Equal(t, "protocol", db.Comparams["timeout_ms"].Level)
	// Optional parameter falls back to its default.
	assert.Equal(t, "3", db.Comparams["retry_count"].Value)

	// The DID's entry-level override wins for its own services.
	svc := db.Services["VIN_Read"]
	require.NotNil(t, svc)
	assert.Equal(t, "100", svc.Comparams["timeout_ms"])
}

func TestRequiredComparamMissingIsFatal(t *testing.T) {
	doc := minimalDoc()
	doc.Comparams = &model.Comparams{
		Definitions: map[string]model.ComparamDef{
			"can_id": {Required: true},
		},
	}

	_, _, err := New(doc, Options{}).Build()
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, CodeRequiredComparam, terr.Code)
}

func TestSkipAndReportPolicy(t *testing.T) {
	doc := minimalDoc()
	doc.DIDs[0xF1A0] = &model.DID{
		Name: "Broken",
		// u32 with no endianness cannot be lowered.
		Type: model.TypeRef{Inline: &model.TypeDefinition{Base: "u32"}},
	}

	db, skipped, err := New(doc, Options{}).Build()
	require.NoError(t, err)

	require.Len(t, skipped, 1)
	assert.Equal(t, "Broken", skipped[0].Name)
	assert.NotEmpty(t, skipped[0].Reason())
	// The healthy sibling still compiles.
	assert.Contains(t, db.Services, "VIN_Read")
}

func TestAbortOnFirstPolicy(t *testing.T) {
	doc := minimalDoc()
	doc.DIDs[0xF1A0] = &model.DID{
		Name: "Broken",
		Type: model.TypeRef{Inline: &model.TypeDefinition{Base: "u32"}},
	}

	_, _, err := New(doc, Options{Policy: AbortOnFirst}).Build()
	require.Error(t, err)
}

func TestVariantMatchingTable(t *testing.T) {
	doc := minimalDoc()
	variants := &model.Variants{
		Definitions: map[string]*model.VariantDef{
			"sport": {
				Extends: "",
				Detect: &model.Predicate{
					Equals: &model.ValueMatch{DID: 0xF190, Value: "WVWZZZ"},
				},
			},
		},
	}

	db, _, err := New(doc, Options{VariantName: "sport", Variants: variants}).Build()
	require.NoError(t, err)

	require.Len(t, db.Variants, 2)
	assert.True(t, db.Variants[0].IsBase)
	assert.Equal(t, "GatewayECU", db.Variants[0].Name)

	sport := db.Variants[1]
	assert.Equal(t, "sport", sport.Name)
	require.Len(t, sport.MatchingParameters, 1)
	mp := sport.MatchingParameters[0]
	assert.Equal(t, "WVWZZZ", mp.ExpectedValue)
	assert.Equal(t, "VIN_Read", mp.DiagServiceRef)
	assert.Equal(t, "DATA", mp.OutParamRef)
}

func TestDOPStructuralSharing(t *testing.T) {
	doc := minimalDoc()
	shared := &model.TypeDefinition{Base: "u8", Unit: "percent"}
	doc.Types = map[string]*model.TypeDefinition{"pct": shared}
	doc.DIDs[0x0101] = &model.DID{Name: "OilLevel", Type: model.TypeRef{Name: "pct"}}
	doc.DIDs[0x0102] = &model.DID{Name: "FuelLevel", Type: model.TypeRef{Name: "pct"}}

	db, _, err := New(doc, Options{}).Build()
	require.NoError(t, err)

	oil := db.DOPs["OilLevel"]
	fuel := db.DOPs["FuelLevel"]
	require.NotNil(t, oil)
	require.NotNil(t, fuel)
	assert.Equal(t, oil.MustStructuralKey(), fuel.MustStructuralKey())
}
