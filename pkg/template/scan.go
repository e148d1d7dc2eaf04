package template

import (
	"strings"

	"github.com/nikolalohinski/gonja/tokens"
)

var tagEnds = map[string]string{"{{": "}}", "{%": "%}", "{#": "#}"}

// prepare checks that every tag in text is closed and returns the text the
// lexer should see: line breaks inside tags become spaces, so multi-line
// expressions lex like single-line ones. Offsets are unchanged.
func prepare(text string) (string, error) {
	out := []byte(text)
	for i := 0; i < len(text)-1; {
		open := text[i : i+2]
		end, ok := tagEnds[open]
		if !ok {
			i++
			continue
		}
		start := i
		if open == "{#" {
			j := strings.Index(text[i+2:], end)
			if j < 0 {
				return "", &Error{Line: lineAt(text, start), Msg: "unclosed comment"}
			}
			i += 2 + j + 2
			continue
		}
		j, closed := closeTag(text, i+2, end)
		if !closed {
			return "", &Error{Line: lineAt(text, start), Msg: "unclosed " + open}
		}
		for k := i + 2; k < j; k++ {
			if out[k] == '\n' || out[k] == '\r' {
				out[k] = ' '
			}
		}
		i = j + 2
	}
	return string(out), nil
}

// closeTag finds the delimiter end that closes a tag opened before pos.
// Delimiters inside strings and brackets do not count. An unbalanced closing
// bracket stops the scan there and reports the tag as closed; the lexer
// reports the bracket.
func closeTag(text string, pos int, end string) (int, bool) {
	var stack []byte
	for i := pos; i < len(text); i++ {
		c := text[i]
		switch c {
		case '\'', '"':
			i++
			for i < len(text) && text[i] != c {
				if text[i] == '\\' {
					i++
				}
				i++
			}
			if i >= len(text) {
				return 0, false
			}
		case '(':
			stack = append(stack, ')')
		case '[':
			stack = append(stack, ']')
		case '{':
			stack = append(stack, '}')
		case ')', ']', '}':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
				continue
			}
			return i, true
		default:
			if len(stack) == 0 && strings.HasPrefix(text[i:], end) {
				return i, true
			}
		}
	}
	return 0, false
}

func lineAt(text string, pos int) int {
	return strings.Count(text[:pos], "\n") + 1
}

// lex runs the gonja lexer over prepared text and collects its tokens.
// Whitespace tokens are dropped and lines are recounted against the
// original text.
func lex(text, prepared string) []*tokens.Token {
	l := tokens.NewLexer(prepared)
	go l.Run()

	var toks []*tokens.Token
	for tok := range l.Tokens {
		if tok.Type == tokens.Whitespace {
			continue
		}
		if tok.Type != tokens.Error {
			tok.Line, tok.Col = tokens.ReadablePosition(tok.Pos, text)
		}
		toks = append(toks, tok)
	}
	return toks
}

// keywords lex as names but are never function calls
var keywords = map[string]bool{
	"not": true, "and": true, "or": true, "in": true, "is": true,
	"if": true, "elif": true, "else": true,
}

// checkCalls rejects calls to anything but the built-in functions. Filter
// and test names, attribute calls and statement names are left to gonja.
func checkCalls(toks []*tokens.Token) error {
	for i := 0; i+1 < len(toks); i++ {
		tok := toks[i]
		if tok.Type != tokens.Name || toks[i+1].Type != tokens.Lparen {
			continue
		}
		if keywords[tok.Val] {
			continue
		}
		if _, ok := builtins[tok.Val]; ok {
			continue
		}
		if i > 0 {
			switch toks[i-1].Type {
			case tokens.Pipe, tokens.Dot, tokens.Is, tokens.BlockBegin:
				continue
			case tokens.Not:
				if i > 1 && toks[i-2].Type == tokens.Is {
					continue
				}
			}
		}
		return &Error{Line: tok.Line, Function: tok.Val, Msg: "unknown function"}
	}
	return nil
}
