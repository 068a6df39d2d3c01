package ir

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalScalars(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"null", nil, `null`},
		{"true", true, `true`},
		{"int", 42, `42`},
		{"negative", int64(-7), `-7`},
		{"uint32", uint32(0xF190), `61840`},
		{"string", "VIN", `"VIN"`},
		{"float", 0.25, `0.25`},
		{"integral float", float64(100), `100`},
		{"empty array", []any{}, `[]`},
		{"empty object", map[string]any{}, `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MarshalCanonical(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))
		})
	}
}

func TestMarshalCanonicalRejectsNonFinite(t *testing.T) {
	nan := 0.0
	nan /= nan
	_, err := MarshalCanonical(nan)
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"x": nan})
	assert.Error(t, err)
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	// Decomposed e + combining acute collapses to U+00E9.
	decomposed := "Moteur électrique"
	composed := "Moteur électrique"

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(composed)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	got, err := MarshalCanonical("a<b>&c")
	require.NoError(t, err)
	assert.Equal(t, `"a<b>&c"`, string(got))
}

func TestMarshalCanonicalKeyOrder(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"b": 2,
		"a": 1,
		"A": 0,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"A":0,"a":1,"b":2}`, string(got))
}

func TestCanonicalDOPIdentityGolden(t *testing.T) {
	payload := map[string]any{
		"bit_length": uint32(16),
		"labels":     []any{"low", "high"},
		"name":       "VehicleSpeed",
		"offset":     float64(0),
		"scale":      0.25,
		"signed":     false,
		"unit":       "km/h",
	}

	data, err := MarshalCanonical(payload)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "dop_identity", data)
}
