package expr

import (
	"fmt"
	"strings"
)

// NodeKind tags the variant of an AST node.
type NodeKind int

const (
	NodeLiteral NodeKind = iota
	NodeVariable
	NodeList
	NodeOperator
	NodeCall
	NodeAssign
	NodeBlock
	NodeIf
	NodeWhile
	NodeFor
	NodeSwitch
	NodeCase
	NodeBreak
	NodeContinue
	NodeReturn
)

// Node is the single AST type shared by the expression dialect and the
// block/statement grammar. Interpretation of the fields depends on Kind:
//
//   - Literal: Lit holds the value.
//   - Variable: Name holds the identifier.
//   - List: Children are the element expressions.
//   - Operator: Op is the operator text; Children are operands (one for
//     unary not/-, two otherwise).
//   - Call: Name is the function, Children the positional arguments,
//     Kwargs the keyword arguments (KwargNames preserves order).
//   - Assign: Name is the target, Children[0] the value.
//   - If: Children are condition, then-block, optional else-block.
//   - While: condition, body. For: init, condition, update, body.
//   - Switch: Children[0] is the subject, the rest are Case nodes.
//   - Case: Children[0] is the match value (nil slot for default),
//     Children[1] the body.
//   - Return: optional Children[0].
type Node struct {
	Kind       NodeKind
	Op         string
	Name       string
	Lit        any
	Children   []*Node
	KwargNames []string
	Kwargs     map[string]*Node
}

// Fingerprint renders a stable, canonical encoding of the subtree, used as
// the evaluation cache key.
func (n *Node) Fingerprint() string {
	var sb strings.Builder
	n.writeFingerprint(&sb)
	return sb.String()
}

func (n *Node) writeFingerprint(sb *strings.Builder) {
	if n == nil {
		sb.WriteString("~")
		return
	}
	switch n.Kind {
	case NodeLiteral:
		fmt.Fprintf(sb, "L(%T:%v)", n.Lit, n.Lit)
	case NodeVariable:
		sb.WriteString("V(" + n.Name + ")")
	case NodeList:
		sb.WriteString("[")
		for _, child := range n.Children {
			child.writeFingerprint(sb)
			sb.WriteString(",")
		}
		sb.WriteString("]")
	case NodeOperator:
		sb.WriteString("O(" + n.Op)
		for _, child := range n.Children {
			sb.WriteString(",")
			child.writeFingerprint(sb)
		}
		sb.WriteString(")")
	case NodeCall:
		sb.WriteString("C(" + n.Name)
		for _, child := range n.Children {
			sb.WriteString(",")
			child.writeFingerprint(sb)
		}
		for _, key := range n.KwargNames {
			sb.WriteString("," + key + "=")
			n.Kwargs[key].writeFingerprint(sb)
		}
		sb.WriteString(")")
	default:
		fmt.Fprintf(sb, "S(%d,%s,%s", int(n.Kind), n.Op, n.Name)
		for _, child := range n.Children {
			sb.WriteString(",")
			child.writeFingerprint(sb)
		}
		sb.WriteString(")")
	}
}

// Walk visits the subtree depth-first, including keyword-argument values.
func (n *Node) Walk(visit func(*Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(visit)
	}
	for _, key := range n.KwargNames {
		n.Kwargs[key].Walk(visit)
	}
}
