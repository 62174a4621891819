package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/sweepgridgo/internal/caseconfig"
	"github.com/specialistvlad/sweepgridgo/internal/config"
	"github.com/specialistvlad/sweepgridgo/internal/ctxlog"
	"github.com/specialistvlad/sweepgridgo/internal/fsutil"
	"github.com/specialistvlad/sweepgridgo/internal/identity"
	"github.com/specialistvlad/sweepgridgo/internal/schema"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL sweep loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses the sweep definition at path. If path is a directory it must
// contain exactly one .hcl file. Relative paths inside the definition are
// resolved against the definition's directory.
func (l *Loader) Load(ctx context.Context, path string) (*config.Sweep, config.Evaluator, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path", path)

	file, err := l.resolveFile(path)
	if err != nil {
		return nil, nil, err
	}
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sweep file %s: %w", file, err)
	}
	sweep, eval, err := l.Parse(ctx, src, file)
	if err != nil {
		return nil, nil, err
	}

	baseDir := filepath.Dir(file)
	sweep.Template = resolvePath(baseDir, sweep.Template)
	sweep.Directory = resolvePath(baseDir, sweep.Directory)
	sweep.Output = resolvePath(baseDir, sweep.Output)

	logger.Debug("HCL loading complete.",
		"sweep", sweep.Name,
		"axes", len(sweep.Axes),
		"settings", len(sweep.Settings),
		"overrides", len(sweep.Overrides),
		"stages", len(sweep.Stages),
	)
	return sweep, eval, nil
}

// Parse decodes a sweep definition from src. filename is used in diagnostics
// only; paths in the result are left as written.
func (l *Loader) Parse(ctx context.Context, src []byte, filename string) (*config.Sweep, *Evaluator, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, nil, fmt.Errorf("failed to parse sweep file %s: %w", filename, diags)
	}

	staticCtx := &hcl.EvalContext{Functions: Functions()}
	var root schema.File
	if diags := gohcl.DecodeBody(hclFile.Body, staticCtx, &root); diags.HasErrors() {
		return nil, nil, fmt.Errorf("failed to decode sweep file %s: %w", filename, diags)
	}
	if len(root.Sweeps) != 1 {
		return nil, nil, fmt.Errorf("%s: expected exactly one sweep block, found %d", filename, len(root.Sweeps))
	}

	return l.translateSweep(ctx, root.Sweeps[0])
}

func (l *Loader) resolveFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("error accessing path %s: %w", path, err)
	}
	if !info.IsDir() {
		return path, nil
	}
	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return "", err
	}
	if len(files) != 1 {
		return "", fmt.Errorf("directory %s must contain exactly one .hcl file, found %d", path, len(files))
	}
	return files[0], nil
}

// translateSweep converts the HCL-specific schema into the agnostic model.
func (l *Loader) translateSweep(ctx context.Context, s *schema.Sweep) (*config.Sweep, *Evaluator, error) {
	vars, err := evalVars(s.Vars)
	if err != nil {
		return nil, nil, fmt.Errorf("sweep %q: vars: %w", s.Name, err)
	}
	loadCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": vars},
		Functions: Functions(),
	}

	out := &config.Sweep{
		Name:      s.Name,
		Template:  s.Template,
		Directory: s.Directory,
		Output:    s.Output,
		Layout:    s.Layout,
	}
	if out.Template == "" || out.Directory == "" {
		return nil, nil, fmt.Errorf("sweep %q: template and directory must not be empty", s.Name)
	}

	if len(s.Axes) == 0 {
		return nil, nil, fmt.Errorf("sweep %q: at least one axis block is required", s.Name)
	}
	seen := make(map[string]struct{})
	for _, a := range s.Axes {
		if _, dup := seen[a.Name]; dup {
			return nil, nil, fmt.Errorf("sweep %q: duplicate axis %q", s.Name, a.Name)
		}
		seen[a.Name] = struct{}{}
		axis, err := translateAxis(loadCtx, a)
		if err != nil {
			return nil, nil, fmt.Errorf("sweep %q: %w", s.Name, err)
		}
		out.Axes = append(out.Axes, axis)
	}

	for i, set := range s.Settings {
		path, err := evalPath(loadCtx, set.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("sweep %q: set block %d: %w", s.Name, i, err)
		}
		val, diags := set.Value.Value(loadCtx)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("sweep %q: set %s: %w", s.Name, path, diags)
		}
		gv, err := toGo(val)
		if err != nil {
			return nil, nil, fmt.Errorf("sweep %q: set %s: %w", s.Name, path, err)
		}
		out.Settings = append(out.Settings, caseconfig.Override{Path: path, Value: gv})
	}

	for i, o := range s.Overrides {
		path, err := evalPath(loadCtx, o.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("sweep %q: override block %d: %w", s.Name, i, err)
		}
		out.Overrides = append(out.Overrides, &config.Override{Path: path, Value: o.Value})
	}

	if len(s.Stages) == 0 {
		return nil, nil, fmt.Errorf("sweep %q: at least one stage block is required", s.Name)
	}
	for _, st := range s.Stages {
		val, diags := st.Command.Value(loadCtx)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("sweep %q: stage %q: %w", s.Name, st.Name, diags)
		}
		cmd, err := toStrings(val)
		if err != nil {
			return nil, nil, fmt.Errorf("sweep %q: stage %q: command: %w", s.Name, st.Name, err)
		}
		if len(cmd) == 0 {
			return nil, nil, fmt.Errorf("sweep %q: stage %q: command must not be empty", s.Name, st.Name)
		}
		out.Stages = append(out.Stages, &config.Stage{Name: st.Name, Command: cmd, Env: st.Env})
	}

	if s.Extract == nil {
		return nil, nil, fmt.Errorf("sweep %q: an extract block is required", s.Name)
	}
	if len(s.Extract.Columns) == 0 {
		return nil, nil, fmt.Errorf("sweep %q: extract needs at least one column", s.Name)
	}
	if s.Extract.Series && s.Extract.Row != nil {
		return nil, nil, fmt.Errorf("sweep %q: extract takes either row or series, not both", s.Name)
	}
	out.Extract = &config.Extract{
		File:    s.Extract.File,
		Columns: s.Extract.Columns,
		Row:     -1,
		Series:  s.Extract.Series,
		Comment: s.Extract.Comment,
	}
	if s.Extract.Row != nil {
		out.Extract.Row = *s.Extract.Row
	}
	if out.Extract.Comment == "" {
		out.Extract.Comment = "#"
	}

	return out, NewEvaluator(out.AxisNames(), vars, out.Overrides), nil
}

func translateAxis(ctx *hcl.EvalContext, a *schema.Axis) (*config.Axis, error) {
	val, diags := a.Values.Value(ctx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("axis %q: %w", a.Name, diags)
	}
	values, err := toNumbers(val)
	if err != nil {
		return nil, fmt.Errorf("axis %q: %w", a.Name, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("axis %q has no values", a.Name)
	}
	for _, v := range values {
		if err := (identity.Params{v}).Validate(); err != nil {
			return nil, fmt.Errorf("axis %q: %w", a.Name, err)
		}
	}
	return &config.Axis{Name: a.Name, Values: values}, nil
}

func evalVars(expr hcl.Expression) (cty.Value, error) {
	if expr == nil {
		return cty.EmptyObjectVal, nil
	}
	val, diags := expr.Value(&hcl.EvalContext{Functions: Functions()})
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	if val.IsNull() {
		return cty.EmptyObjectVal, nil
	}
	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return cty.NilVal, fmt.Errorf("must be an object, got %s", ty.FriendlyName())
	}
	return val, nil
}

func evalPath(ctx *hcl.EvalContext, expr hcl.Expression) (caseconfig.KeyPath, error) {
	val, diags := expr.Value(ctx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("path: %w", diags)
	}
	path, err := toKeyPath(val)
	if err != nil {
		return nil, fmt.Errorf("path: %w", err)
	}
	return path, nil
}

func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
