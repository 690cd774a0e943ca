package expr

import (
	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

// NewStandardRegistry builds a registry holding the full standard operator
// set. The engine constructs one at startup and treats it as immutable.
func NewStandardRegistry() *Registry {
	r := NewRegistry()

	mustRegister(r, "MAX", aggregateOp(func(xs []float64) float64 { return maxOf(xs) }, false))
	mustRegister(r, "MIN", aggregateOp(func(xs []float64) float64 { return minOf(xs) }, false))
	mustRegister(r, "AVG", aggregateOp(meanOf, false), "MEAN")
	mustRegister(r, "SUM", aggregateOp(sumOf, false))
	mustRegister(r, "FIRST", edgeOp(false))
	mustRegister(r, "LAST", edgeOp(true))

	mustRegister(r, "EQ", comparatorOp("=="))
	mustRegister(r, "NE", comparatorOp("!="))
	mustRegister(r, "GT", comparatorOp(">"))
	mustRegister(r, "GE", comparatorOp(">="))
	mustRegister(r, "LT", comparatorOp("<"))
	mustRegister(r, "LE", comparatorOp("<="))
	mustRegister(r, "IN_RANGE", inRangeOp)

	mustRegister(r, "ADD", arithOp("+"))
	mustRegister(r, "SUB", arithOp("-"))
	mustRegister(r, "MUL", arithOp("*"))
	mustRegister(r, "DIV", arithOp("/"))

	mustRegister(r, "AND", logicalOp("and"))
	mustRegister(r, "OR", logicalOp("or"))
	mustRegister(r, "NOT", func(call *CallArgs) (any, error) {
		return applyNot(call.Arg(0))
	})

	mustRegister(r, "ALL", condenseOp(true))
	mustRegister(r, "ANY", condenseOp(false))

	mustRegister(r, "RATE", rateOp)
	mustRegister(r, "DURATION_SEGMENTS", durationSegmentsOp)

	return r
}

func mustRegister(r *Registry, name string, fn OperatorFunc, synonyms ...string) {
	if err := r.Register(name, fn, synonyms...); err != nil {
		panic(err)
	}
}

// compareData is the shared comparator. Function-call synonyms (EQ, GE, …)
// arrive as (data, threshold) and are translated into (data, op, threshold)
// invocations of this function.
func compareData(data any, op string, threshold any) (any, error) {
	return applyCompare(op, data, threshold)
}

func comparatorOp(op string) OperatorFunc {
	return func(call *CallArgs) (any, error) {
		if len(call.Args) < 2 {
			return nil, autoclaveerrors.NewEvalError("comparator %q needs (data, threshold)", op)
		}
		return compareData(call.Arg(0), op, call.Arg(1))
	}
}

func arithOp(op string) OperatorFunc {
	return func(call *CallArgs) (any, error) {
		if len(call.Args) < 2 {
			return nil, autoclaveerrors.NewEvalError("operator %q needs two operands", op)
		}
		return applyArith(op, call.Arg(0), call.Arg(1))
	}
}

func logicalOp(op string) OperatorFunc {
	return func(call *CallArgs) (any, error) {
		if len(call.Args) < 2 {
			return nil, autoclaveerrors.NewEvalError("operator %q needs two operands", op)
		}
		return applyLogical(op, call.Arg(0), call.Arg(1))
	}
}

// aggregateOp reduces a list (or nested list) of numbers. Without an axis
// the input is flattened to a scalar result; axis=0 reduces across rows
// yielding a per-channel list; axis=1 reduces each row.
func aggregateOp(reduce func([]float64) float64, _ bool) OperatorFunc {
	return func(call *CallArgs) (any, error) {
		data := call.Arg(0)
		list, ok := data.([]any)
		if !ok {
			if f, scalar := toFloat(data); scalar {
				return f, nil
			}
			return nil, autoclaveerrors.NewEvalError("aggregate expects a list, got %T", data)
		}

		axis, hasAxis := call.Kwarg("axis")
		if !hasAxis {
			xs := flattenFloats(list)
			if len(xs) == 0 {
				return nil, autoclaveerrors.NewEvalError("aggregate over empty input")
			}
			return reduce(xs), nil
		}

		axisN, ok := toFloat(axis)
		if !ok {
			return nil, autoclaveerrors.NewEvalError("axis must be numeric, got %T", axis)
		}
		switch int(axisN) {
		case 0:
			columns, err := transpose(list)
			if err != nil {
				return nil, err
			}
			out := make([]any, len(columns))
			for i, col := range columns {
				out[i] = reduce(col)
			}
			return out, nil
		case 1:
			out := make([]any, len(list))
			for i, row := range list {
				xs := flattenFloats(row)
				if len(xs) == 0 {
					return nil, autoclaveerrors.NewEvalError("aggregate over empty row %d", i)
				}
				out[i] = reduce(xs)
			}
			return out, nil
		}
		return nil, autoclaveerrors.NewEvalError("unsupported axis %v", axis)
	}
}

func edgeOp(last bool) OperatorFunc {
	return func(call *CallArgs) (any, error) {
		list, ok := call.Arg(0).([]any)
		if !ok {
			return call.Arg(0), nil
		}
		if len(list) == 0 {
			return nil, autoclaveerrors.NewEvalError("empty input")
		}
		if last {
			return list[len(list)-1], nil
		}
		return list[0], nil
	}
}

func condenseOp(all bool) OperatorFunc {
	return func(call *CallArgs) (any, error) {
		leaves := flatten(call.Arg(0), nil)
		if all {
			for _, leaf := range leaves {
				if !truthy(leaf) {
					return false, nil
				}
			}
			return true, nil
		}
		for _, leaf := range leaves {
			if truthy(leaf) {
				return true, nil
			}
		}
		return false, nil
	}
}

// inRangeOp implements IN_RANGE(data, lower, upper, left_open?, right_open?).
func inRangeOp(call *CallArgs) (any, error) {
	if len(call.Args) < 3 {
		return nil, autoclaveerrors.NewEvalError("IN_RANGE needs (data, lower, upper)")
	}
	lower, ok := toFloat(call.Arg(1))
	if !ok {
		return nil, autoclaveerrors.NewEvalError("IN_RANGE lower bound must be numeric, got %T", call.Arg(1))
	}
	upper, ok := toFloat(call.Arg(2))
	if !ok {
		return nil, autoclaveerrors.NewEvalError("IN_RANGE upper bound must be numeric, got %T", call.Arg(2))
	}
	leftOpen, err := call.BoolKwarg("left_open", false)
	if err != nil {
		return nil, err
	}
	rightOpen, err := call.BoolKwarg("right_open", false)
	if err != nil {
		return nil, err
	}
	// Positional form: IN_RANGE(data, lo, hi, left_open, right_open).
	if len(call.Args) > 3 {
		if b, ok := call.Arg(3).(bool); ok {
			leftOpen = b
		}
	}
	if len(call.Args) > 4 {
		if b, ok := call.Arg(4).(bool); ok {
			rightOpen = b
		}
	}

	band := &Threshold{Min: lower, Max: upper, LeftOpen: leftOpen, RightOpen: rightOpen}
	return mapLeaves(call.Arg(0), func(leaf any) (any, error) {
		f, ok := toFloat(leaf)
		if !ok {
			return nil, autoclaveerrors.NewEvalError("IN_RANGE expects numeric data, got %T", leaf)
		}
		return band.Contains(f), nil
	})
}

// rateOp implements RATE(values, step=1, timestamps=null). Values may be a
// flat numeric list or a list of per-channel bundles; bundles produce
// per-channel rate bundles. Rates divide by the timestamp delta when
// timestamps are supplied, else by the step count.
func rateOp(call *CallArgs) (any, error) {
	values, ok := call.Arg(0).([]any)
	if !ok {
		return nil, autoclaveerrors.NewEvalError("RATE expects a list, got %T", call.Arg(0))
	}

	step := 1
	if len(call.Args) > 1 {
		if f, ok := toFloat(call.Arg(1)); ok {
			step = int(f)
		}
	}
	if f, err := call.FloatKwarg("step", float64(step)); err != nil {
		return nil, err
	} else {
		step = int(f)
	}
	if step < 1 {
		return nil, autoclaveerrors.NewEvalError("RATE step must be >= 1, got %d", step)
	}

	var stamps []float64
	if raw, ok := call.Kwarg("timestamps"); ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, autoclaveerrors.NewEvalError("RATE timestamps must be a list, got %T", raw)
		}
		for _, elem := range list {
			f, ok := toFloat(elem)
			if !ok {
				return nil, autoclaveerrors.NewEvalError("RATE timestamps must be numeric, got %T", elem)
			}
			stamps = append(stamps, f)
		}
		if len(stamps) != len(values) {
			return nil, autoclaveerrors.NewEvalError("RATE timestamps length %d does not match values length %d", len(stamps), len(values))
		}
	}

	if len(values) <= step {
		return []any{}, nil
	}

	out := make([]any, 0, len(values)-step)
	for i := 0; i+step < len(values); i++ {
		denom := float64(step)
		if stamps != nil {
			denom = stamps[i+step] - stamps[i]
			if denom == 0 {
				return nil, autoclaveerrors.NewEvalError("RATE interval of zero at index %d", i)
			}
		}
		rate, err := intervalRate(values[i], values[i+step], denom)
		if err != nil {
			return nil, err
		}
		out = append(out, rate)
	}
	return out, nil
}

func intervalRate(from, to any, denom float64) (any, error) {
	fromBundle, fromIsList := from.([]any)
	toBundle, toIsList := to.([]any)
	if fromIsList != toIsList {
		return nil, autoclaveerrors.NewEvalError("RATE values mix bundles and scalars")
	}
	if fromIsList {
		if len(fromBundle) != len(toBundle) {
			return nil, autoclaveerrors.NewEvalError("RATE bundle widths differ: %d vs %d", len(fromBundle), len(toBundle))
		}
		out := make([]any, len(fromBundle))
		for c := range fromBundle {
			rate, err := intervalRate(fromBundle[c], toBundle[c], denom)
			if err != nil {
				return nil, err
			}
			out[c] = rate
		}
		return out, nil
	}

	a, aOK := toFloat(from)
	b, bOK := toFloat(to)
	if !aOK || !bOK {
		return nil, autoclaveerrors.NewEvalError("RATE expects numeric values, got %T and %T", from, to)
	}
	return (b - a) / denom, nil
}

// durationSegmentsOp implements DURATION_SEGMENTS(flags, timestamps=null,
// interval=1): one Segment per contiguous run of true.
func durationSegmentsOp(call *CallArgs) (any, error) {
	flags, ok := call.Arg(0).([]any)
	if !ok {
		return nil, autoclaveerrors.NewEvalError("DURATION_SEGMENTS expects a boolean list, got %T", call.Arg(0))
	}

	interval, err := call.FloatKwarg("interval", 1)
	if err != nil {
		return nil, err
	}

	var stamps []float64
	rawStamps, hasStamps := call.Kwarg("timestamps")
	if !hasStamps && len(call.Args) > 1 {
		rawStamps = call.Arg(1)
		hasStamps = rawStamps != nil
	}
	if hasStamps && rawStamps != nil {
		list, ok := rawStamps.([]any)
		if !ok {
			return nil, autoclaveerrors.NewEvalError("DURATION_SEGMENTS timestamps must be a list, got %T", rawStamps)
		}
		for _, elem := range list {
			f, ok := toFloat(elem)
			if !ok {
				return nil, autoclaveerrors.NewEvalError("DURATION_SEGMENTS timestamps must be numeric, got %T", elem)
			}
			stamps = append(stamps, f)
		}
		if len(stamps) != len(flags) {
			return nil, autoclaveerrors.NewEvalError("DURATION_SEGMENTS timestamps length %d does not match flags length %d", len(stamps), len(flags))
		}
	}

	var segments []any
	runStart := -1
	emit := func(start, end int) {
		seg := Segment{Start: float64(start), End: float64(end), Duration: float64(end-start+1) * interval}
		if stamps != nil {
			seg.Start = stamps[start]
			seg.End = stamps[end]
			seg.Duration = seg.End - seg.Start
		}
		segments = append(segments, seg)
	}

	for i, flag := range flags {
		on := truthy(flag)
		if on && runStart < 0 {
			runStart = i
		}
		if !on && runStart >= 0 {
			emit(runStart, i-1)
			runStart = -1
		}
	}
	if runStart >= 0 {
		emit(runStart, len(flags)-1)
	}
	if segments == nil {
		segments = []any{}
	}
	return segments, nil
}

func mapLeaves(v any, fn func(any) (any, error)) (any, error) {
	if list, ok := v.([]any); ok {
		out := make([]any, len(list))
		for i, elem := range list {
			mapped, err := mapLeaves(elem, fn)
			if err != nil {
				return nil, err
			}
			out[i] = mapped
		}
		return out, nil
	}
	return fn(v)
}

func transpose(rows []any) ([][]float64, error) {
	if len(rows) == 0 {
		return nil, autoclaveerrors.NewEvalError("aggregate over empty input")
	}
	first, ok := rows[0].([]any)
	if !ok {
		// Rows are scalars; axis 0 over a flat list degenerates to columns of one.
		cols := make([][]float64, len(rows))
		for i, row := range rows {
			f, ok := toFloat(row)
			if !ok {
				return nil, autoclaveerrors.NewEvalError("aggregate expects numeric data, got %T", row)
			}
			cols[i] = []float64{f}
		}
		return cols, nil
	}

	width := len(first)
	cols := make([][]float64, width)
	for _, row := range rows {
		bundle, ok := row.([]any)
		if !ok || len(bundle) != width {
			return nil, autoclaveerrors.NewEvalError("ragged input for axis aggregation")
		}
		for c, elem := range bundle {
			f, ok := toFloat(elem)
			if !ok {
				return nil, autoclaveerrors.NewEvalError("aggregate expects numeric data, got %T", elem)
			}
			cols[c] = append(cols[c], f)
		}
	}
	return cols, nil
}

func maxOf(xs []float64) float64 {
	best := xs[0]
	for _, x := range xs[1:] {
		if x > best {
			best = x
		}
	}
	return best
}

func minOf(xs []float64) float64 {
	best := xs[0]
	for _, x := range xs[1:] {
		if x < best {
			best = x
		}
	}
	return best
}

func sumOf(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total
}

func meanOf(xs []float64) float64 {
	return sumOf(xs) / float64(len(xs))
}
