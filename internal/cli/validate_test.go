package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCleanDocument(t *testing.T) {
	input := writeFixture(t, fixtureYAML)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{input})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "0 error(s)")
}

func TestValidateStructuralFailure(t *testing.T) {
	// sessions is required; its absence is a shape violation.
	bad := `
schema: opensovd.cda.diagdesc/v1
meta:
  revision: "1.0.0"
ecu:
  id: gw
  name: GatewayECU
`
	input := writeFixture(t, bad)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{input})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "E001")
}

func TestValidateSemanticIssuesJSON(t *testing.T) {
	bad := `
schema: opensovd.cda.diagdesc/v1
meta:
  revision: "1.0.0"
ecu:
  id: gw
  name: GatewayECU
sessions:
  default:
    id: 0x01
dids:
  0xF190:
    name: VIN
    type:
      base: ascii
      length: 17
    access: undeclared
`
	input := writeFixture(t, bad)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{input})

	err := cmd.Execute()
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status) // report emitted; failure is the exit code

	data, merr := json.Marshal(resp.Data)
	require.NoError(t, merr)
	var rep struct {
		Errors int `json:"errors"`
		Issues []struct {
			Severity string `json:"severity"`
			Code     string `json:"code"`
		} `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Positive(t, rep.Errors)
	require.NotEmpty(t, rep.Issues)
	assert.Equal(t, "error", rep.Issues[0].Severity)
}

func TestValidateMissingFile(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"/nonexistent/doc.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
