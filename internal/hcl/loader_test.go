package hcl

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/sweepgridgo/internal/caseconfig"
	"github.com/specialistvlad/sweepgridgo/internal/identity"
)

const nacaSweep = `
sweep "naca_airfoil" {
  template  = "template/nacaAirfoil.yaml"
  directory = "static/case"
  output    = "static/nacaAirfoil.json"
  layout    = "columns"
  vars      = { velocity = 340.29 }

  axis "theta" { values = linspace(-pi() / 2, pi() / 2, 5) }
  axis "mach"  { values = [0.3, 0.6] }

  set {
    path  = ["foam", "system", "controlDict", "endTime"]
    value = 1e-5
  }
  override {
    path  = ["foam", "0", "U", "internalField"]
    value = "uniform (${var.velocity * cos(param.theta)} ${var.velocity * sin(param.theta)} 0)"
  }
  override {
    path  = ["foam", "system", "setFieldsDict", "regions", 0, "box"]
    value = [0, 0, param.mach]
  }

  stage "mesh"  { command = ["blockMesh"] }
  stage "solve" {
    command = ["rhoSimpleFoam", "-case", "."]
    env     = { OMP_NUM_THREADS = "1" }
  }

  extract {
    file    = "postProcessing/forces/0/forceCoeffs.dat"
    columns = ["time", "Cm", "Cd", "Cl", "Cl(f)", "Cl(r)"]
  }
}
`

func TestParse_FullDefinition(t *testing.T) {
	// --- Act ---
	sw, eval, err := NewLoader().Parse(context.Background(), []byte(nacaSweep), "naca.hcl")

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "naca_airfoil", sw.Name)
	assert.Equal(t, "columns", sw.Layout)
	assert.Equal(t, []string{"theta", "mach"}, sw.AxisNames())
	require.Len(t, sw.Axes[0].Values, 5)
	assert.InDelta(t, -math.Pi/2, sw.Axes[0].Values[0], 1e-15)
	assert.Equal(t, 0.0, sw.Axes[0].Values[2])
	assert.InDelta(t, math.Pi/2, sw.Axes[0].Values[4], 1e-15)

	require.Len(t, sw.Settings, 1)
	assert.Equal(t, "foam/system/controlDict/endTime", sw.Settings[0].Path.String())
	assert.Equal(t, 1e-5, sw.Settings[0].Value)

	assert.Equal(t, []string{"foam/0/U/internalField", "foam/system/setFieldsDict/regions[0]/box"},
		pathStrings(sw.OverridePaths()))

	require.Len(t, sw.Stages, 2)
	assert.Equal(t, []string{"rhoSimpleFoam", "-case", "."}, sw.Stages[1].Command)
	assert.Equal(t, map[string]string{"OMP_NUM_THREADS": "1"}, sw.Stages[1].Env)

	assert.Equal(t, -1, sw.Extract.Row)
	assert.False(t, sw.Extract.Series)
	assert.Equal(t, "#", sw.Extract.Comment)
	assert.Len(t, sw.Extract.Columns, 6)

	assert.Len(t, sw.Points(), 10)
	assert.NotNil(t, eval)
}

func TestEvaluator_Overrides(t *testing.T) {
	_, eval, err := NewLoader().Parse(context.Background(), []byte(nacaSweep), "naca.hcl")
	require.NoError(t, err)

	got, err := eval.Overrides(context.Background(), identity.Params{0, 0.6})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "uniform (340.29 0 0)", got[0].Value)
	if diff := cmp.Diff([]any{int64(0), int64(0), 0.6}, got[1].Value); diff != "" {
		t.Errorf("box mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluator_Scopes(t *testing.T) {
	src := `
sweep "s" {
  template  = "t.yaml"
  directory = "cases"
  axis "p" { values = [-1, 4] }
  override {
    path  = ["a"]
    value = sqrt(param.p)
  }
  override {
    path  = ["b"]
    value = case.id
  }
  stage "run" { command = ["true"] }
  extract {
    file    = "out"
    columns = ["x"]
  }
}
`
	_, eval, err := NewLoader().Parse(context.Background(), []byte(src), "s.hcl")
	require.NoError(t, err)

	got, err := eval.Overrides(context.Background(), identity.Params{4})
	require.NoError(t, err)
	assert.Equal(t, int64(2), got[0].Value)
	assert.Equal(t, "4", got[1].Value)

	_, err = eval.Overrides(context.Background(), identity.Params{-1})
	require.Error(t, err)
	assert.True(t, caseconfig.IsPointScoped(err), "evaluation failure concerns one point only")

	_, err = eval.Overrides(context.Background(), identity.Params{1, 2})
	require.Error(t, err)
	assert.False(t, caseconfig.IsPointScoped(err), "wrong arity is a sweep defect")
}

func TestParse_Errors(t *testing.T) {
	base := func(body string) string {
		return `sweep "s" {
  template  = "t.yaml"
  directory = "cases"
` + body + `
}`
	}
	stage := `stage "run" { command = ["true"] }`
	extract := `extract {
  file    = "out"
  columns = ["x"]
}`

	testCases := []struct {
		name string
		src  string
	}{
		{name: "syntax error", src: `sweep "s" {`},
		{name: "no sweep block", src: ``},
		{name: "two sweep blocks", src: base(`axis "p" { values = [1] }` + "\n" + stage + "\n" + extract) + "\n" + base(`axis "p" { values = [1] }` + "\n" + stage + "\n" + extract)},
		{name: "no axis", src: base(stage + "\n" + extract)},
		{name: "duplicate axis", src: base(`axis "p" { values = [1] }` + "\n" + `axis "p" { values = [2] }` + "\n" + stage + "\n" + extract)},
		{name: "empty axis", src: base(`axis "p" { values = [] }` + "\n" + stage + "\n" + extract)},
		{name: "non-numeric axis", src: base(`axis "p" { values = ["a"] }` + "\n" + stage + "\n" + extract)},
		{name: "no stage", src: base(`axis "p" { values = [1] }` + "\n" + extract)},
		{name: "empty command", src: base(`axis "p" { values = [1] }` + "\n" + `stage "run" { command = [] }` + "\n" + extract)},
		{name: "no extract", src: base(`axis "p" { values = [1] }` + "\n" + stage)},
		{name: "fractional path index", src: base(`axis "p" { values = [1] }` + "\n" + `override {
  path  = ["a", 1.5]
  value = 1
}` + "\n" + stage + "\n" + extract)},
		{name: "path references a parameter", src: base(`axis "p" { values = [1] }` + "\n" + `override {
  path  = ["a", param.p]
  value = 1
}` + "\n" + stage + "\n" + extract)},
		{name: "row and series together", src: base(`axis "p" { values = [1] }` + "\n" + stage + "\n" + `extract {
  file    = "out"
  columns = ["x"]
  row     = 0
  series  = true
}`)},
		{name: "vars not an object", src: base(`vars = [1]` + "\n" + `axis "p" { values = [1] }` + "\n" + stage + "\n" + extract)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := NewLoader().Parse(context.Background(), []byte(tc.src), "bad.hcl")
			require.Error(t, err)
		})
	}
}

func TestLoad_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sweep.hcl"), []byte(nacaSweep), 0o644))

	sw, _, err := NewLoader().Load(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "template", "nacaAirfoil.yaml"), sw.Template)
	assert.Equal(t, filepath.Join(dir, "static", "case"), sw.Directory)
	assert.Equal(t, filepath.Join(dir, "static", "nacaAirfoil.json"), sw.Output)
}

func TestLoad_DirectoryMustHoldOneFile(t *testing.T) {
	dir := t.TempDir()
	_, _, err := NewLoader().Load(context.Background(), dir)
	require.Error(t, err)

	_, _, err = NewLoader().Load(context.Background(), filepath.Join(dir, "missing.hcl"))
	require.Error(t, err)
}

func pathStrings(paths []caseconfig.KeyPath) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}
