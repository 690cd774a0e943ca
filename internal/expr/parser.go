package expr

import (
	"fmt"
	"strconv"

	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

// Parse converts an expression or statement sequence into its AST. A source
// consisting of a single expression parses to that expression node; anything
// longer parses to a block node.
func Parse(src string) (*Node, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{src: src, tokens: tokens}
	var stmts []*Node
	for !p.at(TokenEOF) {
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		for p.at(TokenSemicolon) {
			p.advance()
		}
	}

	if len(stmts) == 0 {
		return nil, autoclaveerrors.NewParseError(src, 0, "empty expression")
	}
	if len(stmts) == 1 {
		return stmts[0], nil
	}
	return &Node{Kind: NodeBlock, Children: stmts}, nil
}

type parser struct {
	src    string
	tokens []Token
	idx    int
}

func (p *parser) peek() Token {
	return p.tokens[p.idx]
}

func (p *parser) at(kind TokenKind) bool {
	return p.tokens[p.idx].Kind == kind
}

func (p *parser) advance() Token {
	tok := p.tokens[p.idx]
	if tok.Kind != TokenEOF {
		p.idx++
	}
	return tok
}

func (p *parser) expect(kind TokenKind, what string) (Token, error) {
	if !p.at(kind) {
		tok := p.peek()
		return Token{}, autoclaveerrors.NewParseError(p.src, tok.Pos, fmt.Sprintf("expected %s, found %q", what, tok.Text))
	}
	return p.advance(), nil
}

func (p *parser) errorf(pos int, format string, args ...any) error {
	return autoclaveerrors.NewParseError(p.src, pos, fmt.Sprintf(format, args...))
}

func (p *parser) statement() (*Node, error) {
	tok := p.peek()
	if tok.Kind == TokenIdent {
		switch tok.Text {
		case "if":
			return p.ifStatement()
		case "while":
			return p.whileStatement()
		case "for":
			return p.forStatement()
		case "switch":
			return p.switchStatement()
		case "break":
			p.advance()
			return &Node{Kind: NodeBreak}, nil
		case "continue":
			p.advance()
			return &Node{Kind: NodeContinue}, nil
		case "return":
			p.advance()
			if p.at(TokenSemicolon) || p.at(TokenRBrace) || p.at(TokenEOF) {
				return &Node{Kind: NodeReturn}, nil
			}
			value, err := p.expression()
			if err != nil {
				return nil, err
			}
			return &Node{Kind: NodeReturn, Children: []*Node{value}}, nil
		}
		// Assignment: identifier '=' (but not '==').
		if p.tokens[p.idx+1].isOp("=") {
			name := p.advance().Text
			p.advance() // '='
			value, err := p.expression()
			if err != nil {
				return nil, err
			}
			return &Node{Kind: NodeAssign, Name: name, Children: []*Node{value}}, nil
		}
	}
	return p.expression()
}

func (p *parser) block() (*Node, error) {
	if _, err := p.expect(TokenLBrace, "{"); err != nil {
		return nil, err
	}
	var stmts []*Node
	for !p.at(TokenRBrace) && !p.at(TokenEOF) {
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		for p.at(TokenSemicolon) {
			p.advance()
		}
	}
	if _, err := p.expect(TokenRBrace, "}"); err != nil {
		return nil, err
	}
	return &Node{Kind: NodeBlock, Children: stmts}, nil
}

func (p *parser) parenExpr() (*Node, error) {
	if _, err := p.expect(TokenLParen, "("); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen, ")"); err != nil {
		return nil, err
	}
	return cond, nil
}

func (p *parser) ifStatement() (*Node, error) {
	p.advance() // if
	cond, err := p.parenExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.block()
	if err != nil {
		return nil, err
	}
	children := []*Node{cond, then}
	if p.peek().isIdent("else") {
		p.advance()
		var alt *Node
		if p.peek().isIdent("if") {
			alt, err = p.ifStatement()
		} else {
			alt, err = p.block()
		}
		if err != nil {
			return nil, err
		}
		children = append(children, alt)
	}
	return &Node{Kind: NodeIf, Children: children}, nil
}

func (p *parser) whileStatement() (*Node, error) {
	p.advance() // while
	cond, err := p.parenExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: NodeWhile, Children: []*Node{cond, body}}, nil
}

func (p *parser) forStatement() (*Node, error) {
	p.advance() // for
	if _, err := p.expect(TokenLParen, "("); err != nil {
		return nil, err
	}
	init, err := p.statement()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenSemicolon, ";"); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenSemicolon, ";"); err != nil {
		return nil, err
	}
	update, err := p.statement()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen, ")"); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: NodeFor, Children: []*Node{init, cond, update, body}}, nil
}

func (p *parser) switchStatement() (*Node, error) {
	p.advance() // switch
	subject, err := p.parenExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenLBrace, "{"); err != nil {
		return nil, err
	}

	children := []*Node{subject}
	for !p.at(TokenRBrace) && !p.at(TokenEOF) {
		tok := p.peek()
		var match *Node
		switch {
		case tok.isIdent("case"):
			p.advance()
			match, err = p.expression()
			if err != nil {
				return nil, err
			}
		case tok.isIdent("default"):
			p.advance()
		default:
			return nil, p.errorf(tok.Pos, "expected case or default, found %q", tok.Text)
		}
		if _, err := p.expect(TokenColon, ":"); err != nil {
			return nil, err
		}

		var stmts []*Node
		for !p.at(TokenRBrace) && !p.peek().isIdent("case") && !p.peek().isIdent("default") && !p.at(TokenEOF) {
			stmt, err := p.statement()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, stmt)
			for p.at(TokenSemicolon) {
				p.advance()
			}
		}
		body := &Node{Kind: NodeBlock, Children: stmts}
		children = append(children, &Node{Kind: NodeCase, Children: []*Node{match, body}})
	}
	if _, err := p.expect(TokenRBrace, "}"); err != nil {
		return nil, err
	}
	return &Node{Kind: NodeSwitch, Children: children}, nil
}

func (p *parser) expression() (*Node, error) {
	return p.orExpr()
}

func (p *parser) orExpr() (*Node, error) {
	left, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.peek().isOp("||") || p.peek().isIdent("or") {
		p.advance()
		right, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NodeOperator, Op: "or", Children: []*Node{left, right}}
	}
	return left, nil
}

func (p *parser) andExpr() (*Node, error) {
	left, err := p.comparison()
	if err != nil {
		return nil, err
	}
	for p.peek().isOp("&&") || p.peek().isIdent("and") {
		p.advance()
		right, err := p.comparison()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NodeOperator, Op: "and", Children: []*Node{left, right}}
	}
	return left, nil
}

var comparisonOps = map[string]struct{}{"==": {}, "!=": {}, ">": {}, ">=": {}, "<": {}, "<=": {}}

func (p *parser) comparison() (*Node, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Kind != TokenOp {
			return left, nil
		}
		if _, ok := comparisonOps[tok.Text]; !ok {
			return left, nil
		}
		p.advance()
		right, err := p.additive()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NodeOperator, Op: tok.Text, Children: []*Node{left, right}}
	}
}

func (p *parser) additive() (*Node, error) {
	left, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for p.peek().isOp("+") || p.peek().isOp("-") {
		op := p.advance().Text
		right, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NodeOperator, Op: op, Children: []*Node{left, right}}
	}
	return left, nil
}

func (p *parser) multiplicative() (*Node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.peek().isOp("*") || p.peek().isOp("/") || p.peek().isOp("%") {
		op := p.advance().Text
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NodeOperator, Op: op, Children: []*Node{left, right}}
	}
	return left, nil
}

func (p *parser) unary() (*Node, error) {
	tok := p.peek()
	if tok.isOp("!") || tok.isIdent("not") {
		p.advance()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NodeOperator, Op: "not", Children: []*Node{operand}}, nil
	}
	if tok.isOp("-") {
		p.advance()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NodeOperator, Op: "neg", Children: []*Node{operand}}, nil
	}
	return p.primary()
}

func (p *parser) primary() (*Node, error) {
	tok := p.peek()
	switch tok.Kind {
	case TokenNumber:
		p.advance()
		return numberLiteral(p.src, tok)
	case TokenString:
		p.advance()
		return &Node{Kind: NodeLiteral, Lit: tok.Text}, nil
	case TokenLParen:
		p.advance()
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		// Parenthesised comma lists come from sensor-group binding.
		if p.at(TokenComma) {
			elems := []*Node{inner}
			for p.at(TokenComma) {
				p.advance()
				next, err := p.expression()
				if err != nil {
					return nil, err
				}
				elems = append(elems, next)
			}
			if _, err := p.expect(TokenRParen, ")"); err != nil {
				return nil, err
			}
			return &Node{Kind: NodeList, Children: elems}, nil
		}
		if _, err := p.expect(TokenRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	case TokenLBracket:
		return p.listLiteral()
	case TokenIdent:
		switch tok.Text {
		case "true":
			p.advance()
			return &Node{Kind: NodeLiteral, Lit: true}, nil
		case "false":
			p.advance()
			return &Node{Kind: NodeLiteral, Lit: false}, nil
		case "null":
			p.advance()
			return &Node{Kind: NodeLiteral, Lit: nil}, nil
		}
		p.advance()
		if p.at(TokenLParen) {
			return p.call(tok.Text)
		}
		return &Node{Kind: NodeVariable, Name: tok.Text}, nil
	}
	return nil, p.errorf(tok.Pos, "unexpected token %q", tok.Text)
}

func (p *parser) listLiteral() (*Node, error) {
	p.advance() // '['
	node := &Node{Kind: NodeList}
	for !p.at(TokenRBracket) {
		elem, err := p.expression()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, elem)
		if p.at(TokenComma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(TokenRBracket, "]"); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *parser) call(name string) (*Node, error) {
	p.advance() // '('
	node := &Node{Kind: NodeCall, Name: name}

	for !p.at(TokenRParen) {
		// Keyword argument: identifier '=' value (but not '==').
		if p.at(TokenIdent) && p.tokens[p.idx+1].isOp("=") {
			key := p.advance().Text
			p.advance() // '='
			value, err := p.expression()
			if err != nil {
				return nil, err
			}
			if node.Kwargs == nil {
				node.Kwargs = make(map[string]*Node)
			}
			if _, dup := node.Kwargs[key]; dup {
				return nil, p.errorf(p.peek().Pos, "duplicate keyword argument %q", key)
			}
			node.Kwargs[key] = value
			node.KwargNames = append(node.KwargNames, key)
		} else {
			if len(node.KwargNames) > 0 {
				return nil, p.errorf(p.peek().Pos, "positional argument after keyword argument in call to %s", name)
			}
			arg, err := p.expression()
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, arg)
		}
		if p.at(TokenComma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(TokenRParen, ")"); err != nil {
		return nil, err
	}
	return node, nil
}

func numberLiteral(src string, tok Token) (*Node, error) {
	if i, err := strconv.ParseInt(tok.Text, 10, 64); err == nil {
		return &Node{Kind: NodeLiteral, Lit: i}, nil
	}
	f, err := strconv.ParseFloat(tok.Text, 64)
	if err != nil {
		return nil, autoclaveerrors.NewParseError(src, tok.Pos, "invalid number "+tok.Text)
	}
	return &Node{Kind: NodeLiteral, Lit: f}, nil
}
