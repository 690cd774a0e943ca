package expr

import (
	"fmt"
	"math"

	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

// Threshold is a numeric band used as the right-hand side of comparisons.
type Threshold struct {
	Min       float64
	Max       float64
	LeftOpen  bool
	RightOpen bool
}

// Contains reports whether v falls inside the band, honouring open endpoints.
func (t *Threshold) Contains(v float64) bool {
	if t.LeftOpen {
		if v <= t.Min {
			return false
		}
	} else if v < t.Min {
		return false
	}
	if t.RightOpen {
		if v >= t.Max {
			return false
		}
	} else if v > t.Max {
		return false
	}
	return true
}

func (t *Threshold) String() string {
	left, right := "[", "]"
	if t.LeftOpen {
		left = "("
	}
	if t.RightOpen {
		right = ")"
	}
	return fmt.Sprintf("%s%g, %g%s", left, t.Min, t.Max, right)
}

// Segment is one contiguous run of true values reported by DURATION_SEGMENTS.
type Segment struct {
	Start    float64
	End      float64
	Duration float64
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func isList(v any) bool {
	_, ok := v.([]any)
	return ok
}

func truthy(v any) bool {
	switch n := v.(type) {
	case nil:
		return false
	case bool:
		return n
	case int64:
		return n != 0
	case float64:
		return n != 0
	case string:
		return n != ""
	case []any:
		return len(n) > 0
	}
	return true
}

// applyArith evaluates + - * / % with scalar/list broadcasting. Lists of
// unequal length are an error, as is division by zero on any element.
func applyArith(op string, a, b any) (any, error) {
	al, aIsList := a.([]any)
	bl, bIsList := b.([]any)

	switch {
	case aIsList && bIsList:
		if len(al) != len(bl) {
			return nil, autoclaveerrors.NewEvalError("shape mismatch for %q: %d vs %d elements", op, len(al), len(bl))
		}
		out := make([]any, len(al))
		for i := range al {
			v, err := applyArith(op, al[i], bl[i])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case aIsList:
		out := make([]any, len(al))
		for i := range al {
			v, err := applyArith(op, al[i], b)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case bIsList:
		out := make([]any, len(bl))
		for i := range bl {
			v, err := applyArith(op, a, bl[i])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	return scalarArith(op, a, b)
}

func scalarArith(op string, a, b any) (any, error) {
	ai, aIsInt := a.(int64)
	bi, bIsInt := b.(int64)

	if aIsInt && bIsInt && op != "/" {
		switch op {
		case "+":
			return ai + bi, nil
		case "-":
			return ai - bi, nil
		case "*":
			return ai * bi, nil
		case "%":
			if bi == 0 {
				return nil, autoclaveerrors.NewEvalError("modulo by zero")
			}
			return ai % bi, nil
		}
	}

	af, aOK := toFloat(a)
	bf, bOK := toFloat(b)
	if !aOK || !bOK {
		return nil, autoclaveerrors.NewEvalError("operator %q expects numeric operands, got %T and %T", op, a, b)
	}

	switch op {
	case "+":
		return af + bf, nil
	case "-":
		return af - bf, nil
	case "*":
		return af * bf, nil
	case "/":
		if bf == 0 {
			return nil, autoclaveerrors.NewEvalError("division by zero")
		}
		return af / bf, nil
	case "%":
		if bf == 0 {
			return nil, autoclaveerrors.NewEvalError("modulo by zero")
		}
		return math.Mod(af, bf), nil
	}
	return nil, autoclaveerrors.NewEvalError("unknown arithmetic operator %q", op)
}

// applyCompare evaluates == != > >= < <= elementwise; list-on-list
// comparison produces a boolean list.
func applyCompare(op string, a, b any) (any, error) {
	al, aIsList := a.([]any)
	bl, bIsList := b.([]any)

	switch {
	case aIsList && bIsList:
		if len(al) != len(bl) {
			return nil, autoclaveerrors.NewEvalError("shape mismatch for %q: %d vs %d elements", op, len(al), len(bl))
		}
		out := make([]any, len(al))
		for i := range al {
			v, err := applyCompare(op, al[i], bl[i])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case aIsList:
		out := make([]any, len(al))
		for i := range al {
			v, err := applyCompare(op, al[i], b)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case bIsList:
		out := make([]any, len(bl))
		for i := range bl {
			v, err := applyCompare(op, a, bl[i])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	return scalarCompare(op, a, b)
}

func scalarCompare(op string, a, b any) (any, error) {
	if th, ok := b.(*Threshold); ok {
		af, aOK := toFloat(a)
		if !aOK {
			return nil, autoclaveerrors.NewEvalError("cannot compare %T against threshold", a)
		}
		inside := th.Contains(af)
		if op == "!=" {
			return !inside, nil
		}
		return inside, nil
	}

	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return nil, autoclaveerrors.NewEvalError("cannot compare string with %T", b)
		}
		return compareOrdered(op, as, bs)
	}

	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if ok {
			switch op {
			case "==":
				return ab == bb, nil
			case "!=":
				return ab != bb, nil
			}
		}
	}

	af, aOK := toFloat(a)
	bf, bOK := toFloat(b)
	if !aOK || !bOK {
		if op == "==" {
			return a == b, nil
		}
		if op == "!=" {
			return a != b, nil
		}
		return nil, autoclaveerrors.NewEvalError("cannot compare %T with %T", a, b)
	}
	return compareOrdered(op, af, bf)
}

func compareOrdered[T float64 | string](op string, a, b T) (any, error) {
	switch op {
	case "==":
		return a == b, nil
	case "!=":
		return a != b, nil
	case ">":
		return a > b, nil
	case ">=":
		return a >= b, nil
	case "<":
		return a < b, nil
	case "<=":
		return a <= b, nil
	}
	return nil, autoclaveerrors.NewEvalError("unknown comparison operator %q", op)
}

// applyLogical evaluates and/or over booleans and boolean lists. Two lists
// must share shape; shape mismatch is an error, never a coercion.
func applyLogical(op string, a, b any) (any, error) {
	al, aIsList := a.([]any)
	bl, bIsList := b.([]any)

	switch {
	case aIsList && bIsList:
		if len(al) != len(bl) {
			return nil, autoclaveerrors.NewEvalError("shape mismatch for %q: %d vs %d elements", op, len(al), len(bl))
		}
		out := make([]any, len(al))
		for i := range al {
			v, err := applyLogical(op, al[i], bl[i])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case aIsList:
		out := make([]any, len(al))
		for i := range al {
			v, err := applyLogical(op, al[i], b)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case bIsList:
		out := make([]any, len(bl))
		for i := range bl {
			v, err := applyLogical(op, a, bl[i])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	ab, aOK := a.(bool)
	bb, bOK := b.(bool)
	if !aOK || !bOK {
		return nil, autoclaveerrors.NewEvalError("operator %q expects boolean operands, got %T and %T", op, a, b)
	}
	if op == "and" {
		return ab && bb, nil
	}
	return ab || bb, nil
}

func applyNot(v any) (any, error) {
	if list, ok := v.([]any); ok {
		out := make([]any, len(list))
		for i := range list {
			n, err := applyNot(list[i])
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil, autoclaveerrors.NewEvalError("not expects a boolean operand, got %T", v)
	}
	return !b, nil
}

// flatten recursively collects the scalar leaves of a possibly nested list.
func flatten(v any, out []any) []any {
	if list, ok := v.([]any); ok {
		for _, elem := range list {
			out = flatten(elem, out)
		}
		return out
	}
	return append(out, v)
}

// flattenFloats collects the numeric leaves of a possibly nested list.
func flattenFloats(v any) []float64 {
	var out []float64
	for _, leaf := range flatten(v, nil) {
		if f, ok := toFloat(leaf); ok {
			out = append(out, f)
		}
	}
	return out
}
