package fields

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/go-logfmt/logfmt"
)

var (
	intLiteral   = regexp.MustCompile(`^-?\d+$`)
	floatLiteral = regexp.MustCompile(`^-?(\d+\.\d+([eE][-+]?\d+)?|\d+[eE][-+]?\d+)$`)
)

// StrictToken is a key=value token read from a logfmt line.
// Quoted reports whether the value was written as a double-quoted string, in which case it's never coerced.
type StrictToken struct {
	Key    string
	Raw    string
	Quoted bool
}

// TypedValue resolves the token's value.
// Unquoted integer literals become int64, unquoted decimal literals become float64, and everything else stays a string.
// Boolean literals are not coerced.
func (t StrictToken) TypedValue() any {
	if t.Quoted {
		return t.Raw
	}
	if intLiteral.MatchString(t.Raw) {
		if i, err := strconv.ParseInt(t.Raw, 10, 64); err == nil {
			return i
		}
	}
	if intLiteral.MatchString(t.Raw) || floatLiteral.MatchString(t.Raw) {
		if f, err := strconv.ParseFloat(t.Raw, 64); err == nil {
			return f
		}
	}
	return t.Raw
}

// Tokenize splits text into whitespace separated segments and decodes each one as a logfmt key/value pair.
// Segments that don't decode are skipped rather than failing the whole line, as are keys without a value.
// An unterminated quote ends its segment at the next whitespace so the rest of the line can still be read.
func Tokenize(text string) []StrictToken {
	var tokens []StrictToken
	for _, seg := range segments(text) {
		tok, ok := decodeSegment(seg)
		if !ok {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// ParseStrict parses text as a logfmt line into typed values.
// When a key occurs more than once, the last occurrence wins.
func ParseStrict(text string) map[string]any {
	parsed := map[string]any{}
	for _, tok := range Tokenize(text) {
		parsed[tok.Key] = tok.TypedValue()
	}
	return parsed
}

func decodeSegment(seg string) (StrictToken, bool) {
	var (
		tok   StrictToken
		found bool
		dec   = logfmt.NewDecoder(strings.NewReader(seg))
	)
	for dec.ScanRecord() {
		for dec.ScanKeyval() {
			if found {
				return StrictToken{}, false
			}
			found = true
			if dec.Value() == nil {
				continue
			}
			tok = StrictToken{
				Key: string(dec.Key()),
				Raw: string(dec.Value()),
			}
		}
	}
	if dec.Err() != nil || tok.Key == "" {
		return StrictToken{}, false
	}
	eq := strings.IndexByte(seg, '=')
	tok.Quoted = eq >= 0 && eq+1 < len(seg) && seg[eq+1] == '"'
	return tok, true
}

func segments(text string) []string {
	var segs []string
	for i := 0; i < len(text); {
		if isSpace(text[i]) {
			i++
			continue
		}
		end, ok := segmentEnd(text, i)
		if !ok {
			end = nextSpace(text, i)
		}
		segs = append(segs, text[i:end])
		i = end
	}
	return segs
}

// segmentEnd finds the first whitespace outside of double quotes.
// It returns false if a quote is left open.
func segmentEnd(text string, i int) (int, bool) {
	quoted := false
	for ; i < len(text); i++ {
		c := text[i]
		switch {
		case quoted && c == '\\':
			i++
		case c == '"':
			quoted = !quoted
		case !quoted && isSpace(c):
			return i, true
		}
	}
	return len(text), !quoted
}

func nextSpace(text string, i int) int {
	for ; i < len(text); i++ {
		if isSpace(text[i]) {
			return i
		}
	}
	return len(text)
}

func isSpace(c byte) bool {
	return c <= ' '
}
