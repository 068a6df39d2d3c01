package audience

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensovd/mddc/internal/model"
)

func fixtureDoc() *model.Document {
	return &model.Document{
		Types: map[string]*model.TypeDefinition{
			"vin_type":    {Base: "ascii", Length: intPtr(17)},
			"dealer_type": {Base: "u8"},
		},
		AccessPatterns: map[string]model.AccessPattern{
			"public": {},
			"dealer": {},
		},
		DIDs: map[model.HexInt]*model.DID{
			0xF190: {Name: "VIN", Type: model.TypeRef{Name: "vin_type"}, Access: "public"},
			0xF1A0: {
				Name:     "DealerCode",
				Type:     model.TypeRef{Name: "dealer_type"},
				Access:   "dealer",
				Audience: []string{"dealer", "development"},
			},
		},
		Routines: map[model.HexInt]*model.Routine{
			0x0200: {
				Name:       "EraseMemory",
				Operations: []model.RoutineOperation{model.RoutineStart},
				Audience:   []string{"development"},
			},
		},
		DTCs: map[model.HexInt]*model.DTC{
			0x123456: {
				Name:     "CircuitOpen",
				Severity: 2,
				Snapshots: []model.DTCSnapshot{
					{RecordNumber: 1, DIDs: []model.HexInt{0xF190, 0xF1A0}},
					{RecordNumber: 2, DIDs: []model.HexInt{0xF1A0}},
				},
			},
		},
	}
}

func intPtr(v int) *int { return &v }

func TestFilterRemovesExcluded(t *testing.T) {
	doc := fixtureDoc()

	out, summary := Filter(doc, "aftermarket")

	assert.Contains(t, out.DIDs, model.HexInt(0xF190))
	assert.NotContains(t, out.DIDs, model.HexInt(0xF1A0))
	assert.Empty(t, out.Routines)
	assert.Equal(t, 1, summary.DIDs)
	assert.Equal(t, 1, summary.Routines)
}

func TestFilterPrunesSnapshotRefs(t *testing.T) {
	doc := fixtureDoc()

	out, summary := Filter(doc, "aftermarket")

	dtc := out.DTCs[0x123456]
	require.NotNil(t, dtc)
	// Record 1 keeps its surviving reference, record 2 pointed only at
	// a removed DID and disappears.
	require.Len(t, dtc.Snapshots, 1)
	assert.Equal(t, model.HexInt(1), dtc.Snapshots[0].RecordNumber)
	assert.Equal(t, []model.HexInt{0xF190}, dtc.Snapshots[0].DIDs)
	assert.Equal(t, 2, summary.SnapshotRefs)
	assert.Equal(t, 1, summary.SnapshotRecords)
}

func TestFilterPrunesOrphans(t *testing.T) {
	doc := fixtureDoc()

	out, summary := Filter(doc, "aftermarket")

	assert.Contains(t, out.Types, "vin_type")
	assert.NotContains(t, out.Types, "dealer_type")
	assert.Contains(t, out.AccessPatterns, "public")
	assert.NotContains(t, out.AccessPatterns, "dealer")
	assert.Equal(t, 1, summary.Types)
	assert.Equal(t, 1, summary.AccessPatterns)
}

func TestFilterKeepsTaggedAudience(t *testing.T) {
	doc := fixtureDoc()

	out, summary := Filter(doc, "dealer")

	assert.Contains(t, out.DIDs, model.HexInt(0xF1A0))
	assert.Equal(t, 0, summary.DIDs)
	// The development-only routine still goes away.
	assert.Empty(t, out.Routines)
}

func TestFilterIdempotent(t *testing.T) {
	doc := fixtureDoc()

	once, first := Filter(doc, "aftermarket")
	twice, second := Filter(once, "aftermarket")

	assert.Positive(t, first.Total())
	assert.Zero(t, second.Total())
	assert.Equal(t, once.DIDs, twice.DIDs)
	assert.Equal(t, once.Types, twice.Types)
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	doc := fixtureDoc()

	_, _ = Filter(doc, "aftermarket")

	assert.Contains(t, doc.DIDs, model.HexInt(0xF1A0))
	assert.Len(t, doc.DTCs[0x123456].Snapshots, 2)
	assert.Contains(t, doc.Types, "dealer_type")
}

func TestFilterEmptyTagKeepsEverything(t *testing.T) {
	doc := fixtureDoc()

	out, summary := Filter(doc, "")

	assert.Zero(t, summary.Total())
	assert.Equal(t, doc, out)
}

func TestFilterServiceBlocks(t *testing.T) {
	doc := fixtureDoc()
	doc.Services = &model.Services{
		EcuReset: &model.ServiceConfig{Audience: []string{"development"}},
		Custom: map[string]*model.CustomService{
			"readActiveDiagnosticSession": {ServiceID: 0x22, Audience: []string{"dealer"}},
		},
	}

	out, summary := Filter(doc, "aftermarket")

	require.NotNil(t, out.Services)
	assert.Nil(t, out.Services.EcuReset)
	assert.Empty(t, out.Services.Custom)
	assert.Equal(t, 2, summary.Services)
}
