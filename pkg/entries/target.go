package entries

import (
	"errors"
	"fmt"
)

var (
	ErrTargetNotMapping = errors.New("target field is not a mapping")
)

// Target resolves the mapping that extracted fields should be written to.
// An empty key resolves to the entry itself.
// Otherwise, the nested mapping at entry[key] is returned, creating an empty one if the key is absent or nil.
// If entry[key] holds anything other than a mapping, then the entry is left untouched and ErrTargetNotMapping is returned.
func (e LogEntry) Target(key string) (map[string]any, error) {
	if key == "" {
		return e, nil
	}
	switch cur := e[key].(type) {
	case nil:
		target := map[string]any{}
		e[key] = target
		return target, nil
	case map[string]any:
		return cur, nil
	case LogEntry:
		return cur, nil
	default:
		return nil, fmt.Errorf("%w: field '%s' holds %T", ErrTargetNotMapping, key, cur)
	}
}
