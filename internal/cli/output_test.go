package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitErrorCode(t *testing.T) {
	err := NewExitError(ExitCommandError, "bad flag")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "inner", errors.New("cause")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))

	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestFormatterJSONEnvelope(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Error("E901", "cannot read", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E901", resp.Error.Code)
}

func TestVerboseLogGoesToErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	f.VerboseLog("loaded %d entries", 3)

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "loaded 3 entries")
}
