package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/sweepgridgo/internal/casestore"
	"github.com/specialistvlad/sweepgridgo/internal/identity"
	"github.com/specialistvlad/sweepgridgo/internal/solver"
)

const testTemplate = `foam:
  system:
    controlDict:
      endTime: 1000
  constant:
    transportProperties:
      nu: 0.01
`

const testSweep = `
sweep "scaled" {
  template  = "template.yaml"
  directory = "cases"
  output    = "out/scaled.json"

  axis "p" { values = [1, 2, 3] }

  set {
    path  = ["foam", "system", "controlDict", "endTime"]
    value = 5
  }
  override {
    path  = ["foam", "constant", "transportProperties", "nu"]
    value = param.p / 100
  }

  stage "solve" { command = ["true"] }

  extract {
    file    = "result.dat"
    columns = ["time", "metric"]
  }
}
`

// writeFixture lays out a sweep definition and its template in a temp dir and
// returns the path of the sweep file.
func writeFixture(t *testing.T, sweepSrc string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "template.yaml"), []byte(testTemplate), 0o644))
	path := filepath.Join(dir, "sweep.hcl")
	require.NoError(t, os.WriteFile(path, []byte(sweepSrc), 0o644))
	return path
}

// callCounter counts solver invocations per location.
type callCounter struct {
	mu    sync.Mutex
	calls map[identity.Location]int
}

func newCallCounter() *callCounter {
	return &callCounter{calls: map[identity.Location]int{}}
}

func (c *callCounter) get(loc identity.Location) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[loc]
}

func (c *callCounter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

// scaledSolver writes metric = p*10 and fails for p == 3.
func scaledSolver(calls *callCounter) casestore.Solver {
	return solver.Func(func(_ context.Context, c *casestore.Case) (casestore.Outcome, error) {
		calls.mu.Lock()
		calls.calls[c.Location]++
		calls.mu.Unlock()
		p := c.Params[0]
		if p == 3 {
			return casestore.Outcome{1}, nil
		}
		data := fmt.Sprintf("# time metric\n0 %g\n", p*10)
		if err := os.WriteFile(filepath.Join(c.Dir, "result.dat"), []byte(data), 0o644); err != nil {
			return nil, err
		}
		return casestore.Outcome{0}, nil
	})
}

func TestRun_ComputesThenReuses(t *testing.T) {
	// --- Arrange ---
	sweepPath := writeFixture(t, testSweep)
	calls := newCallCounter()
	a, _ := SetupAppTest(t, &Config{SweepPath: sweepPath}, WithSolver(scaledSolver(calls)))

	// --- Act ---
	res, err := a.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []identity.Location{"1", "2"}, res.Locations())
	fields, ok := res.Get(identity.Params{2})
	require.True(t, ok)
	assert.Equal(t, 20.0, fields.Fields["metric"])
	_, ok = res.Get(identity.Params{3})
	assert.False(t, ok, "failed point must be omitted")

	casesDir := filepath.Join(filepath.Dir(sweepPath), "cases")
	_, err = os.Stat(filepath.Join(casesDir, "3"))
	assert.True(t, os.IsNotExist(err), "failed case must be rolled back")
	dirents, err := os.ReadDir(casesDir)
	require.NoError(t, err)
	var onDisk []string
	for _, e := range dirents {
		onDisk = append(onDisk, e.Name())
	}
	assert.Equal(t, []string{"1", "2"}, onDisk, "storage root holds exactly the two successful cases")

	raw, err := os.ReadFile(filepath.Join(filepath.Dir(sweepPath), "out", "scaled.json"))
	require.NoError(t, err)
	var artifact map[string]map[string]float64
	require.NoError(t, json.Unmarshal(raw, &artifact))
	want := map[string]map[string]float64{
		"1": {"time": 0, "metric": 10},
		"2": {"time": 0, "metric": 20},
	}
	if diff := cmp.Diff(want, artifact); diff != "" {
		t.Errorf("artifact mismatch (-want +got):\n%s", diff)
	}

	// The template override and setting reached the case config.
	cfg, err := os.ReadFile(filepath.Join(casesDir, "2", casestore.ConfigFile))
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "endTime: 5")
	assert.Contains(t, string(cfg), "nu: 0.02")

	// --- Act: second run ---
	res, err = a.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	s := res.Summary()
	assert.Equal(t, 2, s.Cached)
	assert.Equal(t, 0, s.Computed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, calls.get("1"), "validated case must not be re-run")
	assert.Equal(t, 2, calls.get("3"), "failed case must be retried")
}

func TestRun_ColumnsLayoutAndMetrics(t *testing.T) {
	// --- Arrange ---
	sweepPath := writeFixture(t, testSweep)
	metricsPath := filepath.Join(t.TempDir(), "sweep.prom")
	out := filepath.Join(t.TempDir(), "cols.json")
	a, _ := SetupAppTest(t, &Config{
		SweepPath:   sweepPath,
		Layout:      "columns",
		Output:      out,
		MetricsFile: metricsPath,
		Workers:     3,
	}, WithSolver(scaledSolver(newCallCounter())))

	// --- Act ---
	_, err := a.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	var cols map[string][]float64
	require.NoError(t, json.Unmarshal(raw, &cols))
	assert.Len(t, cols["p"], 2)
	assert.ElementsMatch(t, []float64{1, 2}, cols["p"])
	assert.ElementsMatch(t, []float64{10, 20}, cols["metric"])

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `sweepgrid_points_total{outcome="computed",sweep="scaled"} 2`)
	assert.Contains(t, string(prom), `sweepgrid_points_total{outcome="failed",sweep="scaled"} 1`)
}

func TestRun_SeriesExtraction(t *testing.T) {
	// --- Arrange ---
	src := `
sweep "trajectory" {
  template  = "template.yaml"
  directory = "cases"

  axis "p" { values = [1, 2] }

  stage "solve" { command = ["true"] }

  extract {
    file    = "centroid.dat"
    columns = ["time", "y"]
    series  = true
  }
}
`
	sweepPath := writeFixture(t, src)
	trajectory := solver.Func(func(_ context.Context, c *casestore.Case) (casestore.Outcome, error) {
		p := c.Params[0]
		data := fmt.Sprintf("# time y\n0 %g\n0.1 %g\n0.2 %g\n", p, p/2, p/4)
		return casestore.Outcome{0}, os.WriteFile(filepath.Join(c.Dir, "centroid.dat"), []byte(data), 0o644)
	})
	a, _ := SetupAppTest(t, &Config{SweepPath: sweepPath}, WithSolver(trajectory))

	// --- Act ---
	_, err := a.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	raw, err := os.ReadFile(filepath.Join(filepath.Dir(sweepPath), "cases", "trajectory.json"))
	require.NoError(t, err)
	var artifact map[string]map[string][]float64
	require.NoError(t, json.Unmarshal(raw, &artifact))
	want := map[string]map[string][]float64{
		"1": {"time": {0, 0.1, 0.2}, "y": {1, 0.5, 0.25}},
		"2": {"time": {0, 0.1, 0.2}, "y": {2, 1, 0.5}},
	}
	if diff := cmp.Diff(want, artifact); diff != "" {
		t.Errorf("artifact mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_ExecStages(t *testing.T) {
	// --- Arrange ---
	src := `
sweep "shell" {
  template  = "template.yaml"
  directory = "cases"

  axis "p" { values = [1, 2, 3] }

  stage "solve" {
    command = ["sh", "-c", "[ \"$SWEEP_CASE_ID\" != 3 ] || exit 1; awk -v p=\"$SWEEP_CASE_ID\" 'BEGIN { print \"# time metric\"; print 0, p * 10 }' > result.dat"]
  }

  extract {
    file    = "result.dat"
    columns = ["time", "metric"]
  }
}
`
	sweepPath := writeFixture(t, src)
	a, _ := SetupAppTest(t, &Config{SweepPath: sweepPath})

	// --- Act ---
	res, err := a.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []identity.Location{"1", "2"}, res.Locations())
	fields, ok := res.Get(identity.Params{1})
	require.True(t, ok)
	assert.Equal(t, 10.0, fields.Fields["metric"])

	// Default output path is <directory>/<name>.json.
	_, err = os.Stat(filepath.Join(filepath.Dir(sweepPath), "cases", "shell.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(sweepPath), "cases", "1", "log.solve"))
	assert.NoError(t, err, "stage log should be kept in the case directory")
}

func TestRun_InvalidOverridePathAbortsBeforeAnyCase(t *testing.T) {
	// --- Arrange ---
	src := `
sweep "bad" {
  template  = "template.yaml"
  directory = "cases"
  axis "p" { values = [1] }
  override {
    path  = ["foam", "constant", "missing"]
    value = param.p
  }
  stage "solve" { command = ["true"] }
  extract {
    file    = "result.dat"
    columns = ["metric"]
  }
}
`
	sweepPath := writeFixture(t, src)
	calls := newCallCounter()
	a, _ := SetupAppTest(t, &Config{SweepPath: sweepPath}, WithSolver(scaledSolver(calls)))

	// --- Act ---
	_, err := a.Run(context.Background())

	// --- Assert ---
	require.ErrorIs(t, err, ErrInvalidSweep)
	assert.Zero(t, calls.total())
	_, statErr := os.Stat(filepath.Join(filepath.Dir(sweepPath), "cases"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_PointScopedOverrideFailureSkipsPoint(t *testing.T) {
	// --- Arrange ---
	// sqrt of a negative value is not a finite number, so only p = -1 fails.
	src := `
sweep "partial" {
  template  = "template.yaml"
  directory = "cases"
  axis "p" { values = [-1, 1, 2] }
  override {
    path  = ["foam", "constant", "transportProperties", "nu"]
    value = sqrt(param.p)
  }
  stage "solve" { command = ["true"] }
  extract {
    file    = "result.dat"
    columns = ["time", "metric"]
  }
}
`
	sweepPath := writeFixture(t, src)
	calls := newCallCounter()
	a, _ := SetupAppTest(t, &Config{SweepPath: sweepPath}, WithSolver(scaledSolver(calls)))

	// --- Act ---
	res, err := a.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []identity.Location{"1", "2"}, res.Locations())
	assert.Equal(t, 1, res.Summary().ConfigErrors)
	assert.Zero(t, calls.get("-1"))
}

func TestStatusAndPrune(t *testing.T) {
	// --- Arrange ---
	sweepPath := writeFixture(t, testSweep)
	a, _ := SetupAppTest(t, &Config{SweepPath: sweepPath}, WithSolver(scaledSolver(newCallCounter())))
	_, err := a.Run(context.Background())
	require.NoError(t, err)

	// An interrupted run leaves a directory without a completion marker.
	casesDir := filepath.Join(filepath.Dir(sweepPath), "cases")
	require.NoError(t, os.MkdirAll(filepath.Join(casesDir, "3"), 0o755))

	// --- Act ---
	statuses, err := a.Status(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	got := map[identity.Location]casestore.State{}
	for _, s := range statuses {
		got[s.Location] = s.State
	}
	want := map[identity.Location]casestore.State{
		"1": casestore.Validated,
		"2": casestore.Validated,
		"3": casestore.Incomplete,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}

	// --- Act ---
	removed, err := a.Prune(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []identity.Location{"3"}, removed)
	_, err = os.Stat(filepath.Join(casesDir, "3"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(casesDir, "1"))
	assert.NoError(t, err)
}

func TestNewConfig(t *testing.T) {
	_, err := NewConfig(Config{})
	require.Error(t, err)

	_, err = NewConfig(Config{SweepPath: "x.hcl", LogLevel: "loud", LogFormat: "text", Workers: 1})
	require.Error(t, err)

	_, err = NewConfig(Config{SweepPath: "x.hcl", LogLevel: "info", LogFormat: "text", Workers: 0})
	require.Error(t, err)

	cfg, err := NewConfig(Config{SweepPath: "x.hcl", LogLevel: "info", LogFormat: "json", Workers: 4, Layout: "columns"})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("SWEEPGRID_WORKERS", "8")
	t.Setenv("SWEEPGRID_LOG_FORMAT", "json")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}
