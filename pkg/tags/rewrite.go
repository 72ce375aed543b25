// Package tags provides routing tag rewriting.
package tags

import "strings"

const separator = "."

// Rewriter strips and prepends dot separated tag prefixes.
// An empty prefix is treated as unset.
type Rewriter struct {
	RemovePrefix string
	AddPrefix    string
}

// Rewrite applies the removal rule, and then the addition rule, to tag.
//
// A tag equal to RemovePrefix becomes empty, and a tag starting with RemovePrefix followed by a dot loses both.
// If AddPrefix is set it's joined to a non-empty tag with a dot, or replaces an empty one.
func (r Rewriter) Rewrite(tag string) string {
	if r.RemovePrefix != "" {
		if tag == r.RemovePrefix {
			tag = ""
		} else if strings.HasPrefix(tag, r.RemovePrefix+separator) {
			tag = tag[len(r.RemovePrefix)+len(separator):]
		}
	}
	if r.AddPrefix != "" {
		if tag == "" {
			return r.AddPrefix
		}
		return r.AddPrefix + separator + tag
	}
	return tag
}

// IsNoop reports whether Rewrite always returns its input.
func (r Rewriter) IsNoop() bool {
	return r.RemovePrefix == "" && r.AddPrefix == ""
}

// Rewrite is shorthand for Rewriter{RemovePrefix: removePrefix, AddPrefix: addPrefix}.Rewrite(tag).
func Rewrite(tag, removePrefix, addPrefix string) string {
	return Rewriter{RemovePrefix: removePrefix, AddPrefix: addPrefix}.Rewrite(tag)
}
