package fields

import "iter"

// Match is a single pattern match broken out by the role of each group.
// OpenQuote and CloseQuote are empty unless a quote marker pair participated in the match.
type Match struct {
	Key        string
	RawValue   string
	OpenQuote  string
	CloseQuote string
}

// Value returns RawValue with exactly len(OpenQuote) leading and len(CloseQuote) trailing bytes stripped.
func (m Match) Value() string {
	from := len(m.OpenQuote)
	to := len(m.RawValue) - len(m.CloseQuote)
	if from >= to {
		return ""
	}
	return m.RawValue[from:to]
}

// FieldPair is an extracted key and its de-quoted value.
type FieldPair struct {
	Key   string
	Value string
}

// Matches returns all non-overlapping matches of the pattern in text, left to right.
// Matches with an empty or absent key are skipped.
func (p *Pattern) Matches(text string) iter.Seq[Match] {
	return func(yield func(Match) bool) {
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			m := p.match(text, loc)
			if m.Key == "" {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

// Scan extracts every FieldPair in text.
// Duplicate keys are all produced, in the order they appear.
func (p *Pattern) Scan(text string) iter.Seq[FieldPair] {
	return func(yield func(FieldPair) bool) {
		for m := range p.Matches(text) {
			if !yield(FieldPair{Key: m.Key, Value: m.Value()}) {
				return
			}
		}
	}
}

func (p *Pattern) match(text string, loc []int) Match {
	m := Match{
		Key:      group(text, loc, keyGroup),
		RawValue: group(text, loc, valueGroup),
	}
	for g := quoteGroup; g <= p.groups; g += 2 {
		open, ok := lookup(text, loc, g)
		if !ok {
			continue
		}
		m.OpenQuote = open
		if g+1 <= p.groups {
			m.CloseQuote = group(text, loc, g+1)
		}
		break
	}
	return m
}

func lookup(text string, loc []int, g int) (string, bool) {
	if 2*g+1 >= len(loc) || loc[2*g] < 0 {
		return "", false
	}
	return text[loc[2*g]:loc[2*g+1]], true
}

func group(text string, loc []int, g int) string {
	s, _ := lookup(text, loc, g)
	return s
}

// Pairs adapts a FieldPair sequence for Merge.
func Pairs(seq iter.Seq[FieldPair]) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for fp := range seq {
			if !yield(fp.Key, fp.Value) {
				return
			}
		}
	}
}
