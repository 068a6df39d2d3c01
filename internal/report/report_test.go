package report

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensovd/mddc/internal/transform"
	"github.com/opensovd/mddc/internal/validate"
)

func TestNewAssignsRunID(t *testing.T) {
	a := New("ecu.yaml")
	b := New("ecu.yaml")

	assert.NotEmpty(t, a.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, "ecu.yaml", a.Input)
	assert.False(t, a.StartedAt.IsZero())
}

func TestAddIssuesCountsSeverities(t *testing.T) {
	result := &validate.Result{Issues: []validate.Issue{
		{Severity: validate.SeverityError, Code: "E100", Message: "broken ref"},
		{Severity: validate.SeverityWarning, Code: "W001", Message: "unused type"},
		{Severity: validate.SeverityWarning, Code: "W001", Message: "unused pattern"},
	}}

	rep := New("doc.yaml")
	rep.AddIssues(result)

	assert.Equal(t, 1, rep.Errors)
	assert.Equal(t, 2, rep.Warnings)
	require.Len(t, rep.Issues, 3)
	assert.Equal(t, "E100", rep.Issues[0].Code)
	assert.False(t, rep.Succeeded())
}

func TestAddVariantFailureCounts(t *testing.T) {
	rep := New("doc.yaml")
	rep.AddVariant(VariantResult{Name: "sport", Outcome: OutcomeCompiled, Services: 4})
	assert.True(t, rep.Succeeded())

	rep.AddVariant(VariantResult{Name: "turbo", Outcome: OutcomeFailed, Reason: "cycle"})
	assert.Equal(t, 1, rep.Errors)
	assert.False(t, rep.Succeeded())
}

func TestSkippedEntriesConversion(t *testing.T) {
	entries := SkippedEntries([]transform.Skipped{
		{Kind: "did", Name: "VIN", Path: "dids.0xF190", Err: errors.New("bad type")},
	})

	require.Len(t, entries, 1)
	assert.Equal(t, "did", entries[0].Kind)
	assert.Equal(t, "bad type", entries[0].Reason)

	assert.Nil(t, SkippedEntries(nil))
}
