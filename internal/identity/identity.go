// Package identity derives stable case locations from sweep parameter tuples.
package identity

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Separator joins the rendered values of a parameter tuple.
const Separator = ","

// Params is one point of a sweep: an ordered tuple of numeric values.
type Params []float64

// Location is the on-disk key of a case. It is a single path element.
type Location string

// ErrEmptyParams is returned when a parameter tuple has no values.
var ErrEmptyParams = errors.New("parameter tuple is empty")

// Of maps a parameter tuple to its location. Values are rendered in their
// shortest round-trip decimal form, so distinct float64 values never share a
// rendering and equal tuples always produce the same location.
func Of(p Params) Location {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = FormatValue(v)
	}
	return Location(strings.Join(parts, Separator))
}

// FormatValue renders a single parameter value the way Of does. Negative zero
// renders as "0" since it compares equal to zero.
func FormatValue(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Validate rejects tuples that cannot produce a usable location.
func (p Params) Validate() error {
	if len(p) == 0 {
		return ErrEmptyParams
	}
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("parameter %d is not a finite number: %v", i, v)
		}
	}
	return nil
}

// Equal reports whether two tuples hold the same values in the same order.
func (p Params) Equal(o Params) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// String returns the rendered tuple, identical to the location text.
func (p Params) String() string {
	return string(Of(p))
}

// String implements fmt.Stringer.
func (l Location) String() string {
	return string(l)
}

// Params parses a location back into its parameter tuple.
func (l Location) Params() (Params, error) {
	if l == "" {
		return nil, ErrEmptyParams
	}
	parts := strings.Split(string(l), Separator)
	p := make(Params, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("location %q: %w", l, err)
		}
		p[i] = v
	}
	return p, nil
}
