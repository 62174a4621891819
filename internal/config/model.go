package config

import (
	"github.com/hashicorp/hcl/v2"

	"github.com/specialistvlad/sweepgridgo/internal/caseconfig"
	"github.com/specialistvlad/sweepgridgo/internal/identity"
)

// Sweep is the unified, format-agnostic representation of a sweep definition.
type Sweep struct {
	Name string
	// Template, Directory and Output are resolved against the directory of
	// the definition file.
	Template  string
	Directory string
	Output    string
	Layout    string

	Axes []*Axis
	// Settings apply once to the template, before any point.
	Settings []caseconfig.Override
	// Overrides are evaluated for every point.
	Overrides []*Override
	Stages    []*Stage
	Extract   *Extract
}

// Axis is one named dimension of the sweep.
type Axis struct {
	Name   string
	Values []float64
}

// Override is a per-point assignment whose value depends on the point.
type Override struct {
	Path  caseconfig.KeyPath
	Value hcl.Expression
}

// Stage is one solver command.
type Stage struct {
	Name    string
	Command []string
	Env     map[string]string
}

// Extract describes the result table of a case. With Series set every row
// is read and Row is unused.
type Extract struct {
	File    string
	Columns []string
	Row     int
	Series  bool
	Comment string
}

// AxisNames returns the axis names in declaration order.
func (s *Sweep) AxisNames() []string {
	names := make([]string, len(s.Axes))
	for i, a := range s.Axes {
		names[i] = a.Name
	}
	return names
}

// OverridePaths returns the key paths of all per-point overrides.
func (s *Sweep) OverridePaths() []caseconfig.KeyPath {
	paths := make([]caseconfig.KeyPath, len(s.Overrides))
	for i, o := range s.Overrides {
		paths[i] = o.Path
	}
	return paths
}

// Points returns the cartesian product of all axes. The first axis is the
// outermost loop, so the order matches nested loops in declaration order.
func (s *Sweep) Points() []identity.Params {
	if len(s.Axes) == 0 {
		return nil
	}
	points := []identity.Params{{}}
	for _, axis := range s.Axes {
		next := make([]identity.Params, 0, len(points)*len(axis.Values))
		for _, prefix := range points {
			for _, v := range axis.Values {
				p := make(identity.Params, len(prefix), len(prefix)+1)
				copy(p, prefix)
				next = append(next, append(p, v))
			}
		}
		points = next
	}
	return points
}
