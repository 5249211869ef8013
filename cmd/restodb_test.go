package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalerrors "github.com/adfharrison1/restodb/internal/errors"
	"github.com/adfharrison1/restodb/pkg/domain"
)

type summary struct {
	Plan        *domain.ConvergencePlan   `json:"plan"`
	Convergence *domain.ConvergenceResult `json:"convergence"`
	Audits      []domain.QueryPlanReport  `json:"audits"`
}

func invoke(t *testing.T, env map[string]string, args ...string) (int, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr, func(k string) string { return env[k] })
	return code, &stdout, &stderr
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := invoke(t, nil, "version")
	assert.Equal(t, internalerrors.ExitSuccess, code)
	assert.Contains(t, stdout.String(), "restodb version dev")
}

func TestRun_ConvergeIsIdempotent(t *testing.T) {
	t.Chdir(t.TempDir())
	store := filepath.Join(t.TempDir(), "restodb.godb")
	env := map[string]string{"MONGODB_URI": "mem://" + store}

	code, stdout, stderr := invoke(t, env, "run", "-o", "json", "--no-color")
	require.Equal(t, internalerrors.ExitSuccess, code, stderr.String())
	var first summary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &first))
	require.NotNil(t, first.Convergence)
	assert.Len(t, first.Convergence.Applied, 21)
	assert.Len(t, first.Audits, 10)
	assert.FileExists(t, store)

	code, stdout, stderr = invoke(t, env, "-o", "json")
	require.Equal(t, internalerrors.ExitSuccess, code, stderr.String())
	var second summary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &second))
	assert.Empty(t, second.Convergence.Applied)
	assert.Empty(t, second.Convergence.Failures)

	code, stdout, _ = invoke(t, env, "plan", "-o", "json")
	require.Equal(t, internalerrors.ExitSuccess, code)
	var plan summary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &plan))
	require.NotNil(t, plan.Plan)
	assert.True(t, plan.Plan.Empty())
}

func TestRun_PlanDoesNotWrite(t *testing.T) {
	t.Chdir(t.TempDir())
	store := filepath.Join(t.TempDir(), "restodb.godb")
	env := map[string]string{"MONGODB_URI": "mem://" + store}

	for i := 0; i < 2; i++ {
		code, stdout, _ := invoke(t, env, "plan", "-o", "json")
		require.Equal(t, internalerrors.ExitSuccess, code)
		var out summary
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
		assert.Len(t, out.Plan.Actions, 21)
	}
}

func TestRun_Audit(t *testing.T) {
	t.Chdir(t.TempDir())
	env := map[string]string{"MONGODB_URI": "mem://"}

	code, stdout, _ := invoke(t, env, "audit", "usuario_por_email", "promocion_por_codigo", "-o", "json")
	require.Equal(t, internalerrors.ExitSuccess, code)
	var out summary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	require.Len(t, out.Audits, 2)
	assert.Equal(t, "usuario_por_email", out.Audits[0].Query)
	// nothing was converged, so the hinted index is missing
	assert.True(t, out.Audits[0].Degraded())

	code, _, stderr := invoke(t, env, "audit", "nope")
	assert.Equal(t, internalerrors.ExitInput, code)
	assert.Contains(t, stderr.String(), "Unknown query: nope")
}

func TestRun_Schema(t *testing.T) {
	t.Chdir(t.TempDir())

	code, stdout, _ := invoke(t, nil, "schema", "--no-color")
	require.Equal(t, internalerrors.ExitSuccess, code)
	assert.Contains(t, stdout.String(), "name: ordenes_restaurante_estado")

	schema := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(schema, stdout.Bytes(), 0o644))
	code, _, _ = invoke(t, nil, "schema", "--schema", schema)
	assert.Equal(t, internalerrors.ExitSuccess, code)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
collections:
  - name: ordenes
    indexes:
      - name: a
        keys: [{field: x, kind: 1}]
      - name: a
        keys: [{field: y, kind: 1}]
`), 0o644))
	code, _, stderr := invoke(t, nil, "schema", "--schema", bad, "--no-color")
	assert.Equal(t, internalerrors.ExitSchema, code)
	assert.Contains(t, stderr.String(), "Invalid schema declaration")
}

func TestRun_StrictAPIRejectsTextIndexesOnMongo(t *testing.T) {
	t.Chdir(t.TempDir())
	code, _, stderr := invoke(t, map[string]string{"MONGODB_URI": "mongodb://localhost:1"}, "schema", "--strict-api", "--no-color")
	assert.Equal(t, internalerrors.ExitSchema, code)
	assert.Contains(t, stderr.String(), "menu_text_search")
}

func TestRun_Errors(t *testing.T) {
	t.Chdir(t.TempDir())
	tests := []struct {
		name string
		env  map[string]string
		args []string
		code int
	}{
		{"unknown flag", nil, []string{"--colour"}, internalerrors.ExitInput},
		{"unknown command", map[string]string{"MONGODB_URI": "mem://"}, []string{"migrate"}, internalerrors.ExitInput},
		{"bad config", map[string]string{"RESTODB_WORKERS": "many"}, []string{"plan"}, internalerrors.ExitSchema},
		{"invalid setting", nil, []string{"plan", "--workers", "0"}, internalerrors.ExitSchema},
		{"help", nil, []string{"--help"}, internalerrors.ExitSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := invoke(t, tt.env, tt.args...)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestRun_StoreUnavailable(t *testing.T) {
	t.Chdir(t.TempDir())
	env := map[string]string{"MONGODB_URI": "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=50"}
	code, _, stderr := invoke(t, env, "plan", "--retries", "1", "--backoff", "1ms", "--timeout", "200ms", "--no-color")
	assert.Equal(t, internalerrors.ExitUnavailable, code)
	assert.NotEmpty(t, stderr.String())
}
