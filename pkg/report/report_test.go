package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/adfharrison1/restodb/pkg/domain"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noColor(t *testing.T) {
	t.Helper()
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = original })
}

func sampleSummary() Summary {
	idx := domain.IndexSpec{Name: "email_unique", Unique: true, Keys: []domain.IndexKey{{Field: "email", Kind: domain.Ascending}}}
	result := domain.NewConvergenceResult()
	result.Applied = append(result.Applied,
		domain.Action{Kind: domain.ActionCreateCollection, Collection: "usuarios", Reason: "missing"},
		domain.Action{Kind: domain.ActionCreateIndex, Collection: "usuarios", IndexName: idx.Name, Index: &idx, Reason: "missing"},
	)
	result.Failures = append(result.Failures, domain.Failure{
		Action: domain.Action{Kind: domain.ActionCreateIndex, Collection: "resenas", IndexName: "unique_usuario_restaurante"},
		Reason: "E11000 duplicate key error",
	})
	result.Skipped = append(result.Skipped, domain.Action{Kind: domain.ActionCreateIndex, Collection: "ordenes", IndexName: "ordenes_usuario", Reason: "cancelled"})
	result.Duration = 1500 * time.Millisecond

	hinted := domain.PlanStats{IndexUsed: domain.NoIndex, Error: "hint provided does not correspond to an existing index"}
	return Summary{
		Database: "restaurantes_db",
		Result:   result,
		Audits: []domain.QueryPlanReport{
			{Query: "usuario_por_email", Shape: "usuarios{email}", Hint: "email_unique", IndexUsed: "email_unique",
				DocsExamined: 1, DocsReturned: 1, Selectivity: 1, PlannerChoice: true,
				Free: domain.PlanStats{IndexUsed: "email_unique"}},
			{Query: "promocion_por_codigo", Shape: "promociones{codigo}", Hint: "missing", IndexUsed: domain.NoIndex,
				Free: domain.PlanStats{IndexUsed: domain.NoIndex}, Hinted: &hinted},
			{Query: "categoria_por_nombre", Shape: "categorias{nombre}", IndexUsed: domain.NoIndex,
				DocsExamined: 400, DocsReturned: 1, Ineffective: true, Free: domain.PlanStats{IndexUsed: domain.NoIndex}},
		},
	}
}

func TestWriteText(t *testing.T) {
	noColor(t)
	var buf bytes.Buffer
	WriteText(&buf, sampleSummary())
	out := buf.String()

	for _, want := range []string{
		"Convergence\n===========",
		"✓ create-collection usuarios (missing)",
		"✓ create-index usuarios.email_unique{email:1} unique (missing)",
		"✗ create-index resenas.unique_usuario_restaurante: E11000 duplicate key error",
		"⚠ skipped create-index ordenes.ordenes_usuario (cancelled)",
		"Total: 2 applied, 1 failed, 1 skipped in 1.5s",
		"✓ usuario_por_email usuarios{email} index=email_unique examined=1 returned=1",
		"⚠ promocion_por_codigo promociones{codigo} index=none",
		"hinted: hint provided does not correspond to an existing index",
		"categoria_por_nombre categorias{nombre} index=none examined=400 returned=1 keys=0 0ms selectivity=0.000 ineffective",
	} {
		assert.Contains(t, out, want)
	}
}

func TestWriteText_Plan(t *testing.T) {
	noColor(t)
	var buf bytes.Buffer
	WriteText(&buf, Summary{Plan: &domain.ConvergencePlan{
		Unmanaged: []domain.UnmanagedIndex{{Collection: "ordenes", Index: domain.LiveIndexState{
			Name: "legacy", Keys: []domain.IndexKey{{Field: "total", Kind: domain.Descending}},
		}}},
	}})
	assert.Contains(t, buf.String(), "✓ store matches the declaration")
	assert.Contains(t, buf.String(), "ℹ unmanaged index ordenes.legacy total:-1")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleSummary(), FormatJSON))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "restaurantes_db", decoded["database"])
	convergence := decoded["convergence"].(map[string]interface{})
	assert.Len(t, convergence["applied"], 2)
	assert.Len(t, convergence["failures"], 1)
	assert.Len(t, decoded["audits"], 3)
	assert.NotContains(t, decoded, "plan")
}

func TestWrite_UnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, Summary{}, "xml"))
}
