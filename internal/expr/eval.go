package expr

import (
	"math"
	"strings"

	"github.com/curelab/autoclave/internal/model"
	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

// Environment maps variable names to values. TimeSeries values yield their
// timestamp-stripped value list when accessed; the axis itself is reachable
// via the "<name>__ts" convention.
type Environment map[string]any

const timestampSuffix = "__ts"

// Evaluator walks an AST against an environment. One evaluator serves one
// run; its cache lives as long as the evaluator does.
type Evaluator struct {
	ops        *Registry
	composites map[string]struct{}
	cache      *evalCache
}

// Option adjusts evaluator construction.
type Option func(*Evaluator)

// WithCompositeComparators declares function names that count as
// comparison-bearing during result analysis, beyond the built-in set.
func WithCompositeComparators(names []string) Option {
	return func(ev *Evaluator) {
		for _, name := range names {
			ev.composites[strings.ToUpper(name)] = struct{}{}
		}
	}
}

// NewEvaluator creates an evaluator backed by the given operator registry.
func NewEvaluator(ops *Registry, opts ...Option) *Evaluator {
	ev := &Evaluator{
		ops:        ops,
		composites: make(map[string]struct{}),
		cache:      newEvalCache(),
	}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

// Evaluate executes the AST and returns the raw value.
func (ev *Evaluator) Evaluate(node *Node, env Environment) (any, error) {
	value, signal, err := ev.eval(node, env)
	if err != nil {
		return nil, err
	}
	if signal == signalReturn {
		return value, nil
	}
	if signal != signalNone {
		return nil, autoclaveerrors.NewEvalError("break or continue outside a loop")
	}
	return value, nil
}

// EvaluateAnalyzed executes the AST and attaches the result analysis used
// for compliance condensation.
func (ev *Evaluator) EvaluateAnalyzed(node *Node, env Environment) (*Result, error) {
	value, err := ev.Evaluate(node, env)
	if err != nil {
		return nil, err
	}
	return ev.analyze(node, value), nil
}

// EvaluateAnalyzedCached is EvaluateAnalyzed backed by the evaluation cache.
func (ev *Evaluator) EvaluateAnalyzedCached(node *Node, env Environment, stamp string) (*Result, error) {
	value, err := ev.EvaluateCached(node, env, stamp)
	if err != nil {
		return nil, err
	}
	return ev.analyze(node, value), nil
}

// EvaluateCached is Evaluate with a run-local cache keyed by the AST
// fingerprint, the environment key set, and the caller's context stamp.
func (ev *Evaluator) EvaluateCached(node *Node, env Environment, stamp string) (any, error) {
	key := cacheKey(node, env, stamp)
	if value, ok := ev.cache.get(key); ok {
		return value, nil
	}
	value, err := ev.Evaluate(node, env)
	if err != nil {
		return nil, err
	}
	ev.cache.put(key, value)
	return value, nil
}

type signal int

const (
	signalNone signal = iota
	signalBreak
	signalContinue
	signalReturn
)

func (ev *Evaluator) eval(node *Node, env Environment) (any, signal, error) {
	switch node.Kind {
	case NodeLiteral:
		return node.Lit, signalNone, nil

	case NodeVariable:
		return ev.resolve(node.Name, env)

	case NodeList:
		out := make([]any, len(node.Children))
		for i, child := range node.Children {
			value, _, err := ev.eval(child, env)
			if err != nil {
				return nil, signalNone, err
			}
			out[i] = value
		}
		return out, signalNone, nil

	case NodeOperator:
		return ev.evalOperator(node, env)

	case NodeCall:
		value, err := ev.evalCall(node, env)
		return value, signalNone, err

	case NodeAssign:
		value, _, err := ev.eval(node.Children[0], env)
		if err != nil {
			return nil, signalNone, err
		}
		env[node.Name] = value
		return value, signalNone, nil

	case NodeBlock:
		var last any
		for _, stmt := range node.Children {
			value, sig, err := ev.eval(stmt, env)
			if err != nil {
				return nil, signalNone, err
			}
			if sig != signalNone {
				return value, sig, nil
			}
			last = value
		}
		return last, signalNone, nil

	case NodeIf:
		cond, _, err := ev.eval(node.Children[0], env)
		if err != nil {
			return nil, signalNone, err
		}
		if truthy(cond) {
			return ev.eval(node.Children[1], env)
		}
		if len(node.Children) > 2 {
			return ev.eval(node.Children[2], env)
		}
		return nil, signalNone, nil

	case NodeWhile:
		for {
			cond, _, err := ev.eval(node.Children[0], env)
			if err != nil {
				return nil, signalNone, err
			}
			if !truthy(cond) {
				return nil, signalNone, nil
			}
			value, sig, err := ev.eval(node.Children[1], env)
			if err != nil {
				return nil, signalNone, err
			}
			if sig == signalBreak {
				return nil, signalNone, nil
			}
			if sig == signalReturn {
				return value, sig, nil
			}
		}

	case NodeFor:
		if _, _, err := ev.eval(node.Children[0], env); err != nil {
			return nil, signalNone, err
		}
		for {
			cond, _, err := ev.eval(node.Children[1], env)
			if err != nil {
				return nil, signalNone, err
			}
			if !truthy(cond) {
				return nil, signalNone, nil
			}
			value, sig, err := ev.eval(node.Children[3], env)
			if err != nil {
				return nil, signalNone, err
			}
			if sig == signalBreak {
				return nil, signalNone, nil
			}
			if sig == signalReturn {
				return value, sig, nil
			}
			if _, _, err := ev.eval(node.Children[2], env); err != nil {
				return nil, signalNone, err
			}
		}

	case NodeSwitch:
		subject, _, err := ev.eval(node.Children[0], env)
		if err != nil {
			return nil, signalNone, err
		}
		var defaultCase *Node
		for _, caseNode := range node.Children[1:] {
			match := caseNode.Children[0]
			if match == nil {
				defaultCase = caseNode
				continue
			}
			matchValue, _, err := ev.eval(match, env)
			if err != nil {
				return nil, signalNone, err
			}
			equal, err := scalarCompare("==", subject, matchValue)
			if err != nil {
				return nil, signalNone, err
			}
			if truthy(equal) {
				value, sig, err := ev.eval(caseNode.Children[1], env)
				if sig == signalBreak {
					sig = signalNone
				}
				return value, sig, err
			}
		}
		if defaultCase != nil {
			value, sig, err := ev.eval(defaultCase.Children[1], env)
			if sig == signalBreak {
				sig = signalNone
			}
			return value, sig, err
		}
		return nil, signalNone, nil

	case NodeBreak:
		return nil, signalBreak, nil
	case NodeContinue:
		return nil, signalContinue, nil
	case NodeReturn:
		if len(node.Children) > 0 {
			value, _, err := ev.eval(node.Children[0], env)
			return value, signalReturn, err
		}
		return nil, signalReturn, nil
	}

	return nil, signalNone, autoclaveerrors.NewEvalError("unknown node kind %d", int(node.Kind))
}

func (ev *Evaluator) resolve(name string, env Environment) (any, signal, error) {
	if value, ok := env[name]; ok {
		if series, isSeries := value.(*model.TimeSeries); isSeries {
			return series.Values(), signalNone, nil
		}
		return value, signalNone, nil
	}

	if base, ok := strings.CutSuffix(name, timestampSuffix); ok {
		if value, found := env[base]; found {
			if series, isSeries := value.(*model.TimeSeries); isSeries {
				stamps := series.Timestamps()
				out := make([]any, len(stamps))
				for i, s := range stamps {
					out[i] = s
				}
				return out, signalNone, nil
			}
		}
	}

	return nil, signalNone, autoclaveerrors.NewEvalError("undefined variable %q", name)
}

func (ev *Evaluator) evalOperator(node *Node, env Environment) (any, signal, error) {
	if node.Op == "not" {
		operand, _, err := ev.eval(node.Children[0], env)
		if err != nil {
			return nil, signalNone, err
		}
		value, err := applyNot(operand)
		return value, signalNone, err
	}
	if node.Op == "neg" {
		operand, _, err := ev.eval(node.Children[0], env)
		if err != nil {
			return nil, signalNone, err
		}
		value, err := applyArith("*", operand, int64(-1))
		return value, signalNone, err
	}

	left, _, err := ev.eval(node.Children[0], env)
	if err != nil {
		return nil, signalNone, err
	}
	right, _, err := ev.eval(node.Children[1], env)
	if err != nil {
		return nil, signalNone, err
	}

	var value any
	switch node.Op {
	case "and", "or":
		value, err = applyLogical(node.Op, left, right)
	case "==", "!=", ">", ">=", "<", "<=":
		value, err = applyCompare(node.Op, left, right)
	default:
		value, err = applyArith(node.Op, left, right)
	}
	return value, signalNone, err
}

func (ev *Evaluator) evalCall(node *Node, env Environment) (any, error) {
	call := &CallArgs{Args: make([]any, len(node.Children))}
	for i, child := range node.Children {
		value, _, err := ev.eval(child, env)
		if err != nil {
			return nil, err
		}
		call.Args[i] = value
	}
	if len(node.KwargNames) > 0 {
		call.Kwargs = make(map[string]any, len(node.KwargNames))
		for _, key := range node.KwargNames {
			value, _, err := ev.eval(node.Kwargs[key], env)
			if err != nil {
				return nil, err
			}
			call.Kwargs[key] = value
		}
	}

	if op, ok := ev.ops.Lookup(node.Name); ok {
		return op.Call(call)
	}
	return ev.builtin(node.Name, call)
}

// builtin handles the names that fall through the operator registry.
func (ev *Evaluator) builtin(name string, call *CallArgs) (any, error) {
	switch strings.ToLower(name) {
	case "all":
		for _, leaf := range flatten(call.Arg(0), nil) {
			if !truthy(leaf) {
				return false, nil
			}
		}
		return true, nil
	case "any":
		for _, leaf := range flatten(call.Arg(0), nil) {
			if truthy(leaf) {
				return true, nil
			}
		}
		return false, nil
	case "len":
		if list, ok := call.Arg(0).([]any); ok {
			return int64(len(list)), nil
		}
		if s, ok := call.Arg(0).(string); ok {
			return int64(len(s)), nil
		}
		return nil, autoclaveerrors.NewEvalError("len expects a list or string, got %T", call.Arg(0))
	case "abs":
		return mapLeaves(call.Arg(0), func(leaf any) (any, error) {
			if i, ok := leaf.(int64); ok {
				if i < 0 {
					return -i, nil
				}
				return i, nil
			}
			f, ok := toFloat(leaf)
			if !ok {
				return nil, autoclaveerrors.NewEvalError("abs expects numeric input, got %T", leaf)
			}
			return math.Abs(f), nil
		})
	case "threshold":
		return ev.buildThreshold(call)
	}
	return nil, autoclaveerrors.NewEvalError("unknown function %q", name)
}

func (ev *Evaluator) buildThreshold(call *CallArgs) (any, error) {
	if len(call.Args) < 2 {
		return nil, autoclaveerrors.NewEvalError("Threshold needs (min, max)")
	}
	minV, ok := toFloat(call.Arg(0))
	if !ok {
		return nil, autoclaveerrors.NewEvalError("Threshold min must be numeric, got %T", call.Arg(0))
	}
	maxV, ok := toFloat(call.Arg(1))
	if !ok {
		return nil, autoclaveerrors.NewEvalError("Threshold max must be numeric, got %T", call.Arg(1))
	}
	leftOpen, err := call.BoolKwarg("left_open", false)
	if err != nil {
		return nil, err
	}
	rightOpen, err := call.BoolKwarg("right_open", false)
	if err != nil {
		return nil, err
	}
	if len(call.Args) > 2 {
		if b, ok := call.Arg(2).(bool); ok {
			leftOpen = b
		}
	}
	if len(call.Args) > 3 {
		if b, ok := call.Arg(3).(bool); ok {
			rightOpen = b
		}
	}
	return &Threshold{Min: minV, Max: maxV, LeftOpen: leftOpen, RightOpen: rightOpen}, nil
}
