package expr

// TokenKind discriminates lexical token categories.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenNumber
	TokenString
	TokenIdent
	TokenOp
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenLBrace
	TokenRBrace
	TokenComma
	TokenColon
	TokenSemicolon
)

// Token is a lexeme with its byte offset in the source expression.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}

func (t Token) isOp(text string) bool {
	return t.Kind == TokenOp && t.Text == text
}

func (t Token) isIdent(text string) bool {
	return t.Kind == TokenIdent && t.Text == text
}
