package hcl

import (
	"fmt"
	"math"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Functions returns the function table available in sweep expressions.
func Functions() map[string]function.Function {
	return map[string]function.Function{
		"abs":    stdlib.AbsoluteFunc,
		"ceil":   stdlib.CeilFunc,
		"floor":  stdlib.FloorFunc,
		"log":    stdlib.LogFunc,
		"pow":    stdlib.PowFunc,
		"min":    stdlib.MinFunc,
		"max":    stdlib.MaxFunc,
		"range":  stdlib.RangeFunc,
		"format": stdlib.FormatFunc,
		"join":   stdlib.JoinFunc,
		"concat": stdlib.ConcatFunc,

		"linspace": LinspaceFunc,
		"pi":       PiFunc,
		"sin":      unaryMathFunc(math.Sin),
		"cos":      unaryMathFunc(math.Cos),
		"tan":      unaryMathFunc(math.Tan),
		"sqrt":     unaryMathFunc(math.Sqrt),
		"radians":  unaryMathFunc(func(deg float64) float64 { return deg * math.Pi / 180 }),
		"atan2":    Atan2Func,
	}
}

// LinspaceFunc returns num evenly spaced numbers over [start, stop], both
// endpoints included.
var LinspaceFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "start", Type: cty.Number},
		{Name: "stop", Type: cty.Number},
		{Name: "num", Type: cty.Number},
	},
	Type: function.StaticReturnType(cty.List(cty.Number)),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		start, _ := args[0].AsBigFloat().Float64()
		stop, _ := args[1].AsBigFloat().Float64()
		numF := args[2].AsBigFloat()
		if !numF.IsInt() || numF.Sign() < 0 {
			return cty.NilVal, function.NewArgErrorf(2, "num must be a non-negative whole number")
		}
		num, _ := numF.Int64()
		if num == 0 {
			return cty.ListValEmpty(cty.Number), nil
		}
		if num == 1 {
			return cty.ListVal([]cty.Value{cty.NumberFloatVal(start)}), nil
		}
		step := (stop - start) / float64(num-1)
		vals := make([]cty.Value, num)
		for i := int64(0); i < num; i++ {
			vals[i] = cty.NumberFloatVal(start + float64(i)*step)
		}
		vals[num-1] = cty.NumberFloatVal(stop)
		return cty.ListVal(vals), nil
	},
})

// PiFunc returns π.
var PiFunc = function.New(&function.Spec{
	Params: []function.Parameter{},
	Type:   function.StaticReturnType(cty.Number),
	Impl: func(_ []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.NumberFloatVal(math.Pi), nil
	},
})

// Atan2Func returns atan2(y, x) in radians.
var Atan2Func = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "y", Type: cty.Number},
		{Name: "x", Type: cty.Number},
	},
	Type: function.StaticReturnType(cty.Number),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		y, _ := args[0].AsBigFloat().Float64()
		x, _ := args[1].AsBigFloat().Float64()
		return finiteNumber(math.Atan2(y, x))
	},
})

func unaryMathFunc(f func(float64) float64) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "x", Type: cty.Number}},
		Type:   function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			x, _ := args[0].AsBigFloat().Float64()
			return finiteNumber(f(x))
		},
	})
}

// finiteNumber wraps v, rejecting NaN and infinities which cty cannot hold.
func finiteNumber(v float64) (cty.Value, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return cty.NilVal, fmt.Errorf("result is not a finite number: %v", v)
	}
	return cty.NumberFloatVal(v), nil
}
