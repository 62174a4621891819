package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/sweepgridgo/internal/caseconfig"
	"github.com/specialistvlad/sweepgridgo/internal/config"
	"github.com/specialistvlad/sweepgridgo/internal/ctxlog"
	"github.com/specialistvlad/sweepgridgo/internal/identity"
)

// Evaluator is the HCL implementation of config.Evaluator. Override values
// are evaluated with these variables in scope:
//
//	param.<axis>  the point's value on that axis
//	params        the whole tuple
//	var.<name>    the sweep's vars
//	case.id       the point's location
type Evaluator struct {
	axes      []string
	vars      cty.Value
	overrides []*config.Override
}

// NewEvaluator creates an evaluator for the given overrides.
func NewEvaluator(axes []string, vars cty.Value, overrides []*config.Override) *Evaluator {
	return &Evaluator{axes: axes, vars: vars, overrides: overrides}
}

// Overrides evaluates every override for p.
func (e *Evaluator) Overrides(ctx context.Context, p identity.Params) ([]caseconfig.Override, error) {
	logger := ctxlog.FromContext(ctx)
	if len(p) != len(e.axes) {
		return nil, &caseconfig.ConfigurationError{
			Scope: caseconfig.ScopeSweep,
			Err:   fmt.Errorf("point %s has %d values, sweep has %d axes", p, len(p), len(e.axes)),
		}
	}

	evalCtx := e.evalContext(p)
	out := make([]caseconfig.Override, 0, len(e.overrides))
	for _, o := range e.overrides {
		val, diags := o.Value.Value(evalCtx)
		if diags.HasErrors() {
			return nil, &caseconfig.ConfigurationError{Scope: caseconfig.ScopePoint, Path: o.Path, Err: diags}
		}
		gv, err := toGo(val)
		if err != nil {
			return nil, &caseconfig.ConfigurationError{Scope: caseconfig.ScopePoint, Path: o.Path, Err: err}
		}
		logger.Debug("Override evaluated.", "path", o.Path.String(), "value", gv)
		out = append(out, caseconfig.Override{Path: o.Path, Value: gv})
	}
	return out, nil
}

func (e *Evaluator) evalContext(p identity.Params) *hcl.EvalContext {
	named := make(map[string]cty.Value, len(e.axes))
	tuple := make([]cty.Value, len(p))
	for i, v := range p {
		tuple[i] = cty.NumberFloatVal(v)
		named[e.axes[i]] = tuple[i]
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"param":  cty.ObjectVal(named),
			"params": cty.TupleVal(tuple),
			"var":    e.vars,
			"case": cty.ObjectVal(map[string]cty.Value{
				"id": cty.StringVal(string(identity.Of(p))),
			}),
		},
		Functions: Functions(),
	}
}
