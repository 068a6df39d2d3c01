package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureYAML = `
schema: opensovd.cda.diagdesc/v1
meta:
  revision: "1.0.0"
ecu:
  id: gw
  name: GatewayECU
sessions:
  default:
    id: 0x01
access_patterns:
  public:
    sessions: any
    security: none
    authentication: none
  dealer:
    sessions: any
    security: none
    authentication: none
dids:
  0xF190:
    name: VIN
    type:
      base: ascii
      length: 17
    access: public
  0xF187:
    name: SparePartNumber
    type:
      base: ascii
      length: 10
    access: public
variants:
  detection_order: [sport]
  fallback: sport
  definitions:
    sport:
      detect:
        equals:
          did: 0xF187
          value: "SPORT-0001"
      mode: merge
      overrides:
        dids:
          0xF190:
            access: dealer
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCompileBaseDocument(t *testing.T) {
	input := writeFixture(t, fixtureYAML)
	out := filepath.Join(filepath.Dir(input), "gateway.mdd")

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{input, "-o", out})

	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "✓ base document")
	assert.Contains(t, buf.String(), out)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(20))
}

func TestCompileJSONReport(t *testing.T) {
	input := writeFixture(t, fixtureYAML)
	out := filepath.Join(filepath.Dir(input), "gateway.mdd")

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{input, "-o", out, "--compression", "zstd"})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var rep struct {
		RunID    string `json:"run_id"`
		Revision string `json:"revision"`
		Errors   int    `json:"errors"`
		Variants []struct {
			Outcome  string `json:"outcome"`
			Services int    `json:"services"`
		} `json:"variants"`
	}
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, "1.0.0", rep.Revision)
	assert.Zero(t, rep.Errors)
	require.Len(t, rep.Variants, 1)
	assert.Equal(t, "compiled", rep.Variants[0].Outcome)
	// Two DID read services plus DiagnosticSessionControl_default.
	assert.Equal(t, 3, rep.Variants[0].Services)
}

func TestCompileAllVariants(t *testing.T) {
	input := writeFixture(t, fixtureYAML)
	outDir := t.TempDir()

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{input, "--all-variants", "-o", outDir})

	require.NoError(t, cmd.Execute())

	for _, name := range []string{"GatewayECU.mdd", "GatewayECU.sport.mdd"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}
	assert.Contains(t, buf.String(), "variant sport")
}

func TestCompileSingleVariant(t *testing.T) {
	input := writeFixture(t, fixtureYAML)
	out := filepath.Join(filepath.Dir(input), "sport.mdd")

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{input, "--variant", "sport", "-o", out})

	require.NoError(t, cmd.Execute())

	_, err := os.Stat(out)
	assert.NoError(t, err)
}

func TestCompileUnknownVariant(t *testing.T) {
	input := writeFixture(t, fixtureYAML)

	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{input, "--variant", "turbo"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestCompileMissingFile(t *testing.T) {
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"/nonexistent/doc.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileBadCompression(t *testing.T) {
	input := writeFixture(t, fixtureYAML)

	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{input, "--compression", "brotli"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileSemanticFailure(t *testing.T) {
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
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{input})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "undeclared")
}

func TestCompileAudienceFilter(t *testing.T) {
	doc := `
schema: opensovd.cda.diagdesc/v1
meta:
  revision: "1.0.0"
ecu:
  id: gw
  name: GatewayECU
sessions:
  default:
    id: 0x01
access_patterns:
  public:
    sessions: any
    security: none
    authentication: none
dids:
  0xF190:
    name: VIN
    type:
      base: ascii
      length: 17
    access: public
  0xF187:
    name: InternalCounter
    type:
      base: u16
      endian: big
    access: public
    audience: [development]
`
	input := writeFixture(t, doc)
	out := filepath.Join(filepath.Dir(input), "filtered.mdd")

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{input, "--audience", "aftermarket", "-o", out})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `audience "aftermarket" removed 1 item(s)`)
}
