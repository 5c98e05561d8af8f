// Package template parses and renders prompt layout strings.
//
// The syntax is literal text with escapes (\n, \\, \$) and ${...} expressions:
//
//	${segment}                          rendered segment output
//	${segment.property}                 a named segment property
//	${?segment:true text:false text}    segment visibility test
//	${?segment.property:true:false}     non-empty property test
//	${role:text}                        text styled with a theme color role
//
// Conditional branches and color-wrapped text are literal: they are not parsed again.
package template

import (
	"fmt"
	"strings"

	"lumen/pkg/prompttypes"
)

// TokenKind identifies the variant of a Token.
type TokenKind uint8

// Token kinds.
const (
	TokenLiteral TokenKind = iota + 1
	TokenSegment
	TokenProperty
	TokenConditional
	TokenColor
)

func (k TokenKind) String() string {
	switch k {
	case TokenLiteral:
		return "literal"
	case TokenSegment:
		return "segment"
	case TokenProperty:
		return "property"
	case TokenConditional:
		return "conditional"
	case TokenColor:
		return "color"
	default:
		return "unknown"
	}
}

// Token is one element of a parsed template. Fields not used by Kind are empty.
type Token struct {
	Kind TokenKind
	// Text is the literal text, or the text wrapped by a color token.
	Text     string
	Segment  string
	Property string
	// Color is the theme color role of a color token.
	Color string
	// True and False are the branches of a conditional.
	True  string
	False string
}

// ParsedTemplate is the immutable token sequence of a template string.
type ParsedTemplate struct {
	Source string
	Tokens []Token
}

// Segments returns the distinct segment names the template references, in order of appearance.
func (p *ParsedTemplate) Segments() []string {
	seen := make(map[string]bool)
	var names []string
	for _, tok := range p.Tokens {
		if tok.Segment == "" || seen[tok.Segment] {
			continue
		}
		seen[tok.Segment] = true
		names = append(names, tok.Segment)
	}
	return names
}

// Parse turns src into a token sequence. It fails with a TemplateParseError on an
// unterminated or malformed ${...} expression; the error message carries the byte offset.
func Parse(src string) (*ParsedTemplate, error) {
	p := &ParsedTemplate{Source: src}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			p.Tokens = append(p.Tokens, Token{Kind: TokenLiteral, Text: lit.String()})
			lit.Reset()
		}
	}

	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src):
			lit.WriteString(unescapeOne(src[i+1]))
			i += 2
		case c == '$' && i+1 < len(src) && src[i+1] == '{':
			end, err := closingBrace(src, i)
			if err != nil {
				return nil, err
			}
			tok, err := classify(src[i+2:end], i)
			if err != nil {
				return nil, err
			}
			flush()
			p.Tokens = append(p.Tokens, tok)
			i = end + 1
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	return p, nil
}

// closingBrace returns the index of the brace closing the expression opened at start.
// Nested braces are counted; a backslash protects the next byte.
func closingBrace(src string, start int) (int, error) {
	depth := 1
	for j := start + 2; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j, nil
			}
		}
	}
	return 0, parseError(src, start, "unterminated ${")
}

func classify(body string, offset int) (Token, error) {
	if body == "" {
		return Token{}, parseErrorAt(offset, "empty expression")
	}

	if body[0] == '?' {
		cond, rest, _ := cutTopLevel(body[1:], ':')
		seg, prop, err := reference(cond, offset)
		if err != nil {
			return Token{}, err
		}
		trueText, falseText, _ := cutTopLevel(rest, ':')
		return Token{
			Kind:     TokenConditional,
			Segment:  seg,
			Property: prop,
			True:     unescape(trueText),
			False:    unescape(falseText),
		}, nil
	}

	if head, text, found := cutTopLevel(body, ':'); found && !strings.Contains(head, ".") {
		if !validName(head) {
			return Token{}, parseErrorAt(offset, fmt.Sprintf("invalid color name %q", head))
		}
		return Token{Kind: TokenColor, Color: head, Text: unescape(text)}, nil
	}

	seg, prop, err := reference(body, offset)
	if err != nil {
		return Token{}, err
	}
	if prop != "" {
		return Token{Kind: TokenProperty, Segment: seg, Property: prop}, nil
	}
	return Token{Kind: TokenSegment, Segment: seg}, nil
}

// reference splits "segment" or "segment.property".
func reference(ref string, offset int) (string, string, error) {
	seg, prop, hasProp := strings.Cut(ref, ".")
	if !validName(seg) {
		return "", "", parseErrorAt(offset, fmt.Sprintf("invalid segment name %q", seg))
	}
	if hasProp && !validName(prop) {
		return "", "", parseErrorAt(offset, fmt.Sprintf("invalid property name %q", prop))
	}
	return seg, prop, nil
}

// cutTopLevel splits s at the first sep outside nested braces and escapes.
func cutTopLevel(s string, sep byte) (string, string, bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				return s[:i], s[i+1:], true
			}
		}
	}
	return s, "", false
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// unescape resolves escapes inside branch and color text.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			b.WriteString(unescapeOne(s[i+1]))
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// unescapeOne returns the text for a backslash followed by c. Unknown escapes are kept.
func unescapeOne(c byte) string {
	switch c {
	case 'n':
		return "\n"
	case '\\', '$', ':', '{', '}':
		return string([]byte{c})
	default:
		return `\` + string([]byte{c})
	}
}

func parseError(src string, offset int, msg string) error {
	return parseErrorAt(offset, fmt.Sprintf("%s in %q", msg, src))
}

func parseErrorAt(offset int, msg string) error {
	return prompttypes.NewError(prompttypes.KindTemplateParseError, "parse", "",
		fmt.Errorf("offset %d: %s", offset, msg))
}
