package jobspec_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/volt-test/volt/internal/jobspec"
)

func TestValidator(t *testing.T) {
	t.Parallel()

	v, err := jobspec.NewValidator()
	require.NoError(t, err)

	tt := jobspec.New("valid", "").SetDuration("5s")
	tt.Scenario("s", "").Step("st").Get("https://example.com").ValidateStatus("ok", 200)
	spec, err := tt.Build()
	require.NoError(t, err)
	require.NoError(t, v.Validate(t.Context(), spec))

	var testCases = []struct {
		scenario string
		given    string
	}{
		{"no scenarios", `{"name":"x","virtual_users":1,"target":{"url":"https://example.com"},"scenarios":[]}`},
		{"zero users", `{"name":"x","virtual_users":0,"target":{"url":"https://example.com"},"scenarios":[{"name":"s","steps":[]}]}`},
		{"bad duration", `{"name":"x","virtual_users":1,"duration":"1d","target":{"url":"https://example.com"},"scenarios":[{"name":"s","steps":[]}]}`},
		{"bad method", `{"name":"x","virtual_users":1,"target":{"url":"https://example.com"},"scenarios":[{"name":"s","steps":[{"name":"a","request":{"method":"TRACE","url":"https://example.com"}}]}]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			err := v.ValidateBytes(t.Context(), []byte(tc.given))
			require.ErrorIs(t, err, jobspec.ErrInvalid)
			require.ErrorContains(t, err, "schema validation failed")
		})
	}
}
