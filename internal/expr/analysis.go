package expr

import "strings"

// Result pairs an evaluated value with its structural analysis.
type Result struct {
	Value         any
	IsNumeric     bool
	IsArray       bool
	IsBoolean     bool
	HasComparison bool

	// ComplianceResult is the boolean condensation of the value: ALL over a
	// comparison-bearing list, the bool cast of a comparison-bearing scalar,
	// and nil for pure calculations.
	ComplianceResult *bool
}

// Passed reports the condensation, falling back to truthiness of the raw
// value when the result is a pure calculation.
func (r *Result) Passed() bool {
	if r.ComplianceResult != nil {
		return *r.ComplianceResult
	}
	return truthy(r.Value)
}

// comparisonCalls are the function names that always count as comparisons
// during structural inspection of the AST.
var comparisonCalls = map[string]struct{}{
	"EQ": {}, "NE": {}, "GT": {}, "GE": {}, "LT": {}, "LE": {}, "IN_RANGE": {},
}

func (ev *Evaluator) analyze(node *Node, value any) *Result {
	res := &Result{Value: value, HasComparison: ev.hasComparison(node)}

	switch value.(type) {
	case bool:
		res.IsBoolean = true
	case int64, float64:
		res.IsNumeric = true
	case []any:
		res.IsArray = true
	}

	if !res.HasComparison {
		return res
	}

	switch v := value.(type) {
	case []any:
		all := true
		for _, leaf := range flatten(v, nil) {
			if !truthy(leaf) {
				all = false
				break
			}
		}
		res.ComplianceResult = &all
	case bool:
		b := v
		res.ComplianceResult = &b
	case int64, float64:
		b := truthy(value)
		res.ComplianceResult = &b
	}
	return res
}

// DataOperand returns the data-side subtree of a condition whose root is a
// comparison: the left operand of a comparison operator, or the first
// positional argument of a comparison call. When the operator form carries
// its constant limit on the left, the right operand is the data side.
// Returns nil for conditions that are not root-level comparisons.
func (ev *Evaluator) DataOperand(node *Node) *Node {
	switch node.Kind {
	case NodeOperator:
		if _, ok := comparisonOps[node.Op]; !ok {
			return nil
		}
		left, right := node.Children[0], node.Children[1]
		if isConstant(left) && !isConstant(right) {
			return right
		}
		return left

	case NodeCall:
		name := strings.ToUpper(node.Name)
		_, known := comparisonCalls[name]
		if !known {
			_, known = ev.composites[name]
		}
		if !known || len(node.Children) == 0 {
			return nil
		}
		return node.Children[0]
	}
	return nil
}

// isConstant reports whether a subtree references no variables or calls, so
// it evaluates to the same value regardless of the environment.
func isConstant(node *Node) bool {
	constant := true
	node.Walk(func(n *Node) bool {
		if n.Kind == NodeVariable || n.Kind == NodeCall {
			constant = false
			return false
		}
		return constant
	})
	return constant
}

// hasComparison inspects the AST for comparison operator nodes or calls to
// known comparison-bearing functions, including the configured composite set.
func (ev *Evaluator) hasComparison(node *Node) bool {
	found := false
	node.Walk(func(n *Node) bool {
		if found {
			return false
		}
		switch n.Kind {
		case NodeOperator:
			if _, ok := comparisonOps[n.Op]; ok {
				found = true
				return false
			}
		case NodeCall:
			name := strings.ToUpper(n.Name)
			if _, ok := comparisonCalls[name]; ok {
				found = true
				return false
			}
			if _, ok := ev.composites[name]; ok {
				found = true
				return false
			}
		}
		return true
	})
	return found
}
