package expr

import (
	"strings"

	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

// lexer converts an expression string into a token stream.
type lexer struct {
	src string
	pos int
}

var twoCharOps = []string{"==", "!=", ">=", "<=", "&&", "||"}

const singleCharOps = "+-*/%><=!"

// lex tokenizes the whole source, returning a ParseError on the first
// unrecognised byte.
func lex(src string) ([]Token, error) {
	lx := &lexer{src: src}
	var tokens []Token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			return tokens, nil
		}
	}
}

func (lx *lexer) next() (Token, error) {
	lx.skipSpace()
	if lx.pos >= len(lx.src) {
		return Token{Kind: TokenEOF, Pos: lx.pos}, nil
	}

	start := lx.pos
	ch := lx.src[lx.pos]

	switch {
	case isDigit(ch), ch == '.' && lx.pos+1 < len(lx.src) && isDigit(lx.src[lx.pos+1]):
		return lx.number(start), nil
	case ch == '"' || ch == '\'':
		return lx.quoted(start, ch)
	case isIdentStart(ch):
		return lx.ident(start), nil
	}

	for _, op := range twoCharOps {
		if strings.HasPrefix(lx.src[lx.pos:], op) {
			lx.pos += 2
			return Token{Kind: TokenOp, Text: op, Pos: start}, nil
		}
	}

	lx.pos++
	switch ch {
	case '(':
		return Token{Kind: TokenLParen, Text: "(", Pos: start}, nil
	case ')':
		return Token{Kind: TokenRParen, Text: ")", Pos: start}, nil
	case '[':
		return Token{Kind: TokenLBracket, Text: "[", Pos: start}, nil
	case ']':
		return Token{Kind: TokenRBracket, Text: "]", Pos: start}, nil
	case '{':
		return Token{Kind: TokenLBrace, Text: "{", Pos: start}, nil
	case '}':
		return Token{Kind: TokenRBrace, Text: "}", Pos: start}, nil
	case ',':
		return Token{Kind: TokenComma, Text: ",", Pos: start}, nil
	case ':':
		return Token{Kind: TokenColon, Text: ":", Pos: start}, nil
	case ';':
		return Token{Kind: TokenSemicolon, Text: ";", Pos: start}, nil
	}

	if strings.IndexByte(singleCharOps, ch) >= 0 {
		return Token{Kind: TokenOp, Text: string(ch), Pos: start}, nil
	}

	return Token{}, autoclaveerrors.NewParseError(lx.src, start, "unexpected character "+string(ch))
}

func (lx *lexer) skipSpace() {
	for lx.pos < len(lx.src) {
		switch lx.src[lx.pos] {
		case ' ', '\t', '\n', '\r':
			lx.pos++
		default:
			return
		}
	}
}

func (lx *lexer) number(start int) Token {
	seenDot := false
	for lx.pos < len(lx.src) {
		ch := lx.src[lx.pos]
		if isDigit(ch) {
			lx.pos++
			continue
		}
		if ch == '.' && !seenDot {
			seenDot = true
			lx.pos++
			continue
		}
		break
	}
	return Token{Kind: TokenNumber, Text: lx.src[start:lx.pos], Pos: start}
}

func (lx *lexer) quoted(start int, quote byte) (Token, error) {
	lx.pos++ // opening quote
	var sb strings.Builder
	for lx.pos < len(lx.src) {
		ch := lx.src[lx.pos]
		if ch == '\\' && lx.pos+1 < len(lx.src) {
			lx.pos += 2
			sb.WriteByte(lx.src[lx.pos-1])
			continue
		}
		if ch == quote {
			lx.pos++
			return Token{Kind: TokenString, Text: sb.String(), Pos: start}, nil
		}
		sb.WriteByte(ch)
		lx.pos++
	}
	return Token{}, autoclaveerrors.NewParseError(lx.src, start, "unterminated string literal")
}

func (lx *lexer) ident(start int) Token {
	for lx.pos < len(lx.src) && isIdentPart(lx.src[lx.pos]) {
		lx.pos++
	}
	return Token{Kind: TokenIdent, Text: lx.src[start:lx.pos], Pos: start}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
