package language

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const punctuators = "!$():=@[]{}|"

var (
	intPattern   = regexp.MustCompile(`^-?[0-9]+$`)
	floatPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)
	namePattern  = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)
)

// Tokenize splits text into tokens in a single pass. Line numbers are 1-based
// and columns are 1-based byte offsets within the line. A leading byte order
// mark is skipped. Block strings are not supported.
func Tokenize(text string) ([]Token, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	var tokens []Token
	for i, line := range splitLines(text) {
		lineTokens, err := tokenizeLine(i+1, line)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, lineTokens...)
	}
	return tokens, nil
}

// splitLines splits on \r\n, \r and \n, keeping empty lines so that line
// numbers stay aligned with the source.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// tokenizeLine isolates string literals and comments first, then splits the
// remaining spans on separators and punctuators.
func tokenizeLine(lineNumber int, line string) ([]Token, error) {
	var tokens []Token
	inString := false
	start := 0
	end := len(line)

scan:
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '"' && inString:
			if escaped(line, start+1, i) {
				continue
			}
			value, err := unescape(line[start+1:i], Location{Line: lineNumber, Column: start + 1})
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{
				Kind:     TokenString,
				Value:    value,
				Location: Location{Line: lineNumber, Column: start + 1},
			})
			start = i + 1
			inString = false
		case line[i] == '"':
			if strings.HasPrefix(line[i:], `"""`) {
				return nil, syntaxErrorf(Location{Line: lineNumber, Column: i + 1}, "block strings are not supported")
			}
			spanTokens, err := tokenizeSpan(lineNumber, start+1, line[start:i])
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, spanTokens...)
			start = i
			inString = true
		case line[i] == '#' && !inString:
			end = i
			break scan
		}
	}

	if inString {
		return nil, syntaxErrorf(Location{Line: lineNumber, Column: start + 1}, "unterminated string literal on line %d, starting at column %d", lineNumber, start+1)
	}

	spanTokens, err := tokenizeSpan(lineNumber, start+1, line[start:end])
	if err != nil {
		return nil, err
	}
	return append(tokens, spanTokens...), nil
}

// escaped reports whether the quote at index i is preceded by an odd number of
// backslashes inside the string body that starts at from.
func escaped(line string, from, i int) bool {
	n := 0
	for j := i - 1; j >= from && line[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

func tokenizeSpan(lineNumber, column int, span string) ([]Token, error) {
	var tokens []Token
	start := 0
	flush := func(to int) error {
		if to > start {
			tok, err := classify(Location{Line: lineNumber, Column: column + start}, span[start:to])
			if err != nil {
				return err
			}
			tokens = append(tokens, tok)
		}
		return nil
	}

	for i := 0; i < len(span); i++ {
		c := span[i]
		switch {
		case strings.IndexByte(punctuators, c) >= 0:
			if err := flush(i); err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{Kind: TokenPunctuator, Value: string(c), Location: Location{Line: lineNumber, Column: column + i}})
			start = i + 1
		case strings.HasPrefix(span[i:], "..."):
			if err := flush(i); err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{Kind: TokenPunctuator, Value: "...", Location: Location{Line: lineNumber, Column: column + i}})
			i += 2
			start = i + 1
		case c == ' ' || c == '\t' || c == ',':
			if err := flush(i); err != nil {
				return nil, err
			}
			start = i + 1
		}
	}
	if err := flush(len(span)); err != nil {
		return nil, err
	}
	return tokens, nil
}

func classify(loc Location, lexeme string) (Token, error) {
	if intPattern.MatchString(lexeme) {
		if v, err := strconv.ParseInt(lexeme, 10, 64); err == nil {
			return Token{Kind: TokenInt, Value: lexeme, Location: loc, Int: v}, nil
		}
	}
	if floatPattern.MatchString(lexeme) {
		if v, err := strconv.ParseFloat(lexeme, 64); err == nil {
			return Token{Kind: TokenFloat, Value: lexeme, Location: loc, Float: v}, nil
		}
	}
	if namePattern.MatchString(lexeme) {
		return Token{Kind: TokenName, Value: lexeme, Location: loc}, nil
	}
	return Token{}, syntaxErrorf(loc, "unexpected characters %q", lexeme)
}

func unescape(raw string, loc Location) (string, error) {
	if !strings.ContainsRune(raw, '\\') {
		return raw, nil
	}
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(raw) {
			return "", syntaxErrorf(loc, "invalid escape sequence at end of string")
		}
		i++
		switch raw[i] {
		case '"', '\\', '/':
			b.WriteByte(raw[i])
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'u':
			if i+5 > len(raw) {
				return "", syntaxErrorf(loc, "invalid unicode escape")
			}
			code, err := strconv.ParseUint(raw[i+1:i+5], 16, 32)
			if err != nil {
				return "", syntaxErrorf(loc, "invalid unicode escape \\u%s", raw[i+1:i+5])
			}
			var buf [utf8.UTFMax]byte
			n := utf8.EncodeRune(buf[:], rune(code))
			b.Write(buf[:n])
			i += 4
		default:
			return "", syntaxErrorf(loc, "invalid escape sequence \\%c", raw[i])
		}
	}
	return b.String(), nil
}
