package fields

import (
	"errors"
	"fmt"
	"regexp"
)

// DefaultPattern matches an identifier, an equals sign, and then either a quoted run or a run of bare value characters.
// Quoted runs end at the first matching quote and never cross a line break.
// Groups 3/4 mark the opening and closing double quote, and groups 5/6 the single quote.
const DefaultPattern = `([a-zA-Z_]\w*)=((")[^"\n]*(")|(')[^'\n]*(')|[\w.@$%/+-]*)`

const (
	keyGroup   = 1
	valueGroup = 2
	quoteGroup = 3
)

var (
	ErrInvalidPattern = errors.New("invalid extraction pattern")
)

// Pattern is a compiled extraction pattern.
// Group 1 captures the key and group 2 the raw value.
// Any further groups are quote markers, read in (open, close) pairs.
// Every pair is considered, not only groups 3/4: the first pair whose opening group took part in a match supplies the markers stripped from the value.
// A Pattern is immutable and safe for concurrent use.
type Pattern struct {
	re     *regexp.Regexp
	groups int
}

// Compile compiles expr as an extraction pattern.
// It fails with ErrInvalidPattern if expr is not a valid expression or doesn't expose at least a key and value group.
func Compile(expr string) (*Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	n := re.NumSubexp()
	if n < valueGroup {
		return nil, fmt.Errorf("%w: expected at least %d capture groups (key and value), found %d", ErrInvalidPattern, valueGroup, n)
	}
	return &Pattern{re: re, groups: n}, nil
}

// MustCompile is like Compile, but panics on error.
func MustCompile(expr string) *Pattern {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pattern) String() string {
	return p.re.String()
}
