package fields

import "iter"

// Merge writes each pair into target unless target already holds the key.
// A key that's present with a nil value counts as present.
// Conflicts are skipped silently, so the first write for any key wins.
// Merge returns the number of fields written.
func Merge(target map[string]any, pairs iter.Seq2[string, any]) int {
	var written int
	for k, v := range pairs {
		if _, ok := target[k]; ok {
			continue
		}
		target[k] = v
		written++
	}
	return written
}
