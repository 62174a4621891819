// Package schema holds the gohcl-tagged structs of a sweep definition file.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// File represents the top-level structure of a sweep definition file.
type File struct {
	Sweeps []*Sweep `hcl:"sweep,block"`
	Body   hcl.Body `hcl:",remain"`
}

// Sweep represents a `sweep` block: one parameter sweep over one template.
type Sweep struct {
	Name      string         `hcl:"name,label"`
	Template  string         `hcl:"template"`
	Directory string         `hcl:"directory"`
	Output    string         `hcl:"output,optional"`
	Layout    string         `hcl:"layout,optional"`
	Vars      hcl.Expression `hcl:"vars,optional"`

	Axes      []*Axis       `hcl:"axis,block"`
	Settings  []*Assignment `hcl:"set,block"`
	Overrides []*Assignment `hcl:"override,block"`
	Stages    []*Stage      `hcl:"stage,block"`
	Extract   *Extract      `hcl:"extract,block"`
}

// Axis is a named dimension whose values expression yields a list of numbers.
type Axis struct {
	Name   string         `hcl:"name,label"`
	Values hcl.Expression `hcl:"values"`
}

// Assignment is used by both `set` and `override` blocks. The path must be a
// static tuple of keys and indexes; the value may reference the point in
// `override` blocks.
type Assignment struct {
	Path  hcl.Expression `hcl:"path"`
	Value hcl.Expression `hcl:"value"`
}

// Stage is one solver command, run in the case directory.
type Stage struct {
	Name    string            `hcl:"name,label"`
	Command hcl.Expression    `hcl:"command"`
	Env     map[string]string `hcl:"env,optional"`
}

// Extract names the result table of a case and its columns.
type Extract struct {
	File    string   `hcl:"file"`
	Columns []string `hcl:"columns"`
	Row     *int     `hcl:"row,optional"`
	Series  bool     `hcl:"series,optional"`
	Comment string   `hcl:"comment,optional"`
}
