// Package symbolic implements the small time-expression language used to
// describe delays that are not yet known when a protocol is built: a named
// variable, a plain non-negative constant, or a variable shifted by a
// constant offset. The constraint optimizer (internal/optimize) resolves
// every variable to a concrete value; everything downstream consumes plain
// float64 seconds.
package symbolic

import (
	"fmt"
	"strconv"
)

// SymVar is either a named variable (Name != ""), a non-negative constant
// (Name == ""), or a variable shifted by a constant offset.
type SymVar struct {
	name   string
	offset float64
}

// Var returns a symbolic variable with no offset.
func Var(name string) SymVar {
	return SymVar{name: name}
}

// Const returns a non-negative numeric constant. It panics on a negative
// value: constants are only ever produced internally from literals that are
// expected to be non-negative by construction (estimates, incubation
// windows); a negative one is a programming error, not user input.
func Const(value float64) SymVar {
	if value < 0 {
		panic(fmt.Sprintf("symbolic: negative constant %g", value))
	}
	return SymVar{offset: value}
}

// IsConst reports whether s carries no free variable.
func (s SymVar) IsConst() bool {
	return s.name == ""
}

// Name returns the variable name, or "" for a constant.
func (s SymVar) Name() string {
	return s.name
}

// Offset returns the constant term (0 for a bare variable).
func (s SymVar) Offset() float64 {
	return s.offset
}

// Plus returns s shifted by a further constant offset: (name + offset) + c,
// or just offset + c for a constant.
func (s SymVar) Plus(c float64) SymVar {
	return SymVar{name: s.name, offset: s.offset + c}
}

// Resolve substitutes values for free variables and returns the concrete
// seconds value. A constant resolves to its offset regardless of values.
func (s SymVar) Resolve(values map[string]float64) (float64, error) {
	if s.IsConst() {
		return s.offset, nil
	}
	v, ok := values[s.name]
	if !ok {
		return 0, fmt.Errorf("symbolic: no assignment for variable %q", s.name)
	}
	return v + s.offset, nil
}

// MustResolve is like Resolve but panics on error; used once the optimizer
// has guaranteed every variable has an assignment.
func (s SymVar) MustResolve(values map[string]float64) float64 {
	v, err := s.Resolve(values)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the expression in "name+offset" form for logs and error
// messages.
func (s SymVar) String() string {
	if s.IsConst() {
		return strconv.FormatFloat(s.offset, 'g', -1, 64)
	}
	if s.offset == 0 {
		return s.name
	}
	return fmt.Sprintf("%s+%s", s.name, strconv.FormatFloat(s.offset, 'g', -1, 64))
}
