package hcl

import (
	"fmt"
	"math/big"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/specialistvlad/sweepgridgo/internal/caseconfig"
)

// toGo converts a cty.Value into the plain Go value that caseconfig encodes
// into the case description. Whole numbers become int64 so that they render
// without a fractional part.
func toGo(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty == cty.Number:
		return numberToGo(v.AsBigFloat()), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			gv, err := toGo(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, gv)
		}
		return out, nil
	case ty.IsMapType() || ty.IsObjectType():
		out := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			gv, err := toGo(ev)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = gv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}

func numberToGo(bf *big.Float) any {
	if bf.IsInt() {
		if i, acc := bf.Int64(); acc == big.Exact {
			return i
		}
	}
	f, _ := bf.Float64()
	return f
}

// toNumbers converts a list or tuple of numbers into float64 values.
func toNumbers(v cty.Value) ([]float64, error) {
	if v.IsNull() || !v.IsWhollyKnown() {
		return nil, fmt.Errorf("expected a list of numbers, got an unknown or null value")
	}
	list, err := convert.Convert(v, cty.List(cty.Number))
	if err != nil {
		return nil, fmt.Errorf("expected a list of numbers: %w", err)
	}
	out := make([]float64, 0, list.LengthInt())
	for it := list.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		if ev.IsNull() {
			return nil, fmt.Errorf("list contains null")
		}
		f, _ := ev.AsBigFloat().Float64()
		out = append(out, f)
	}
	return out, nil
}

// toStrings converts a list or tuple into strings.
func toStrings(v cty.Value) ([]string, error) {
	if v.IsNull() || !v.IsWhollyKnown() {
		return nil, fmt.Errorf("expected a list of strings, got an unknown or null value")
	}
	list, err := convert.Convert(v, cty.List(cty.String))
	if err != nil {
		return nil, fmt.Errorf("expected a list of strings: %w", err)
	}
	out := make([]string, 0, list.LengthInt())
	for it := list.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		if ev.IsNull() {
			return nil, fmt.Errorf("list contains null")
		}
		out = append(out, ev.AsString())
	}
	return out, nil
}

// toKeyPath converts a tuple such as ["foam", "system", "regions", 0] into a
// KeyPath. Strings are mapping keys, whole numbers are sequence indexes.
func toKeyPath(v cty.Value) (caseconfig.KeyPath, error) {
	if v.IsNull() || !v.IsWhollyKnown() {
		return nil, fmt.Errorf("path must be a known tuple")
	}
	ty := v.Type()
	if !(ty.IsTupleType() || ty.IsListType()) {
		return nil, fmt.Errorf("path must be a tuple of keys and indexes, got %s", ty.FriendlyName())
	}
	var path caseconfig.KeyPath
	i := 0
	for it := v.ElementIterator(); it.Next(); i++ {
		_, ev := it.Element()
		switch {
		case ev.IsNull():
			return nil, fmt.Errorf("path element %d is null", i)
		case ev.Type() == cty.String:
			path = append(path, caseconfig.Key(ev.AsString()))
		case ev.Type() == cty.Number:
			bf := ev.AsBigFloat()
			idx, acc := bf.Int64()
			if !bf.IsInt() || acc != big.Exact || idx < 0 {
				return nil, fmt.Errorf("path element %d must be a non-negative whole number", i)
			}
			path = append(path, caseconfig.Index(int(idx)))
		default:
			return nil, fmt.Errorf("path element %d must be a string or number, got %s", i, ev.Type().FriendlyName())
		}
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("path is empty")
	}
	return path, nil
}
