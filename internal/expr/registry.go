package expr

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

// CallArgs carries positional and keyword arguments into an operator.
type CallArgs struct {
	Args   []any
	Kwargs map[string]any
}

// Arg returns the i-th positional argument or nil.
func (c *CallArgs) Arg(i int) any {
	if i < 0 || i >= len(c.Args) {
		return nil
	}
	return c.Args[i]
}

// Kwarg returns the named keyword argument and whether it was supplied.
func (c *CallArgs) Kwarg(name string) (any, bool) {
	v, ok := c.Kwargs[name]
	return v, ok
}

// FloatKwarg returns a numeric keyword argument, falling back to def.
func (c *CallArgs) FloatKwarg(name string, def float64) (float64, error) {
	v, ok := c.Kwargs[name]
	if !ok {
		return def, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, autoclaveerrors.NewEvalError("keyword argument %q must be numeric, got %T", name, v)
	}
	return f, nil
}

// BoolKwarg returns a boolean keyword argument, falling back to def.
func (c *CallArgs) BoolKwarg(name string, def bool) (bool, error) {
	v, ok := c.Kwargs[name]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, autoclaveerrors.NewEvalError("keyword argument %q must be boolean, got %T", name, v)
	}
	return b, nil
}

// OperatorFunc is the implementation of a named operator.
type OperatorFunc func(call *CallArgs) (any, error)

// OperatorStats is a snapshot of one operator's execution counters.
type OperatorStats struct {
	Calls       int64
	Errors      int64
	AverageTime time.Duration
}

// Operator pairs an implementation with its execution counters. Counters use
// atomics so parallel runs can share one registry.
type Operator struct {
	name   string
	fn     OperatorFunc
	calls  atomic.Int64
	errs   atomic.Int64
	busyNs atomic.Int64
}

// Name returns the canonical (uppercase) operator name.
func (o *Operator) Name() string {
	return o.name
}

// Call invokes the operator and records timing and error counters.
func (o *Operator) Call(call *CallArgs) (any, error) {
	start := time.Now()
	value, err := o.fn(call)
	o.calls.Add(1)
	o.busyNs.Add(time.Since(start).Nanoseconds())
	if err != nil {
		o.errs.Add(1)
	}
	return value, err
}

// Stats returns a snapshot of the operator's counters.
func (o *Operator) Stats() OperatorStats {
	calls := o.calls.Load()
	stats := OperatorStats{Calls: calls, Errors: o.errs.Load()}
	if calls > 0 {
		stats.AverageTime = time.Duration(o.busyNs.Load() / calls)
	}
	return stats
}

// Registry maps operator names to implementations. It is populated during
// engine construction and read-only afterwards; lookups are case-insensitive.
type Registry struct {
	ops map[string]*Operator
}

// NewRegistry creates an empty operator registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]*Operator)}
}

// Register installs an operator under the given name and any synonyms.
func (r *Registry) Register(name string, fn OperatorFunc, synonyms ...string) error {
	if fn == nil {
		return fmt.Errorf("operator %s has no implementation", name)
	}
	op := &Operator{name: strings.ToUpper(name), fn: fn}
	for _, alias := range append([]string{name}, synonyms...) {
		key := strings.ToUpper(alias)
		if _, exists := r.ops[key]; exists {
			return fmt.Errorf("operator %s already registered", key)
		}
		r.ops[key] = op
	}
	return nil
}

// Lookup resolves an operator by name, case-insensitively.
func (r *Registry) Lookup(name string) (*Operator, bool) {
	op, ok := r.ops[strings.ToUpper(name)]
	return op, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns a per-operator counter snapshot keyed by canonical name.
func (r *Registry) Stats() map[string]OperatorStats {
	out := make(map[string]OperatorStats)
	for _, op := range r.ops {
		out[op.name] = op.Stats()
	}
	return out
}
