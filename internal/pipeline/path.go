package pipeline

import "strings"

// SplitPath breaks a dot path into its segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// GetPath resolves a dot path inside a decoded JSON document. The
// second return reports whether every segment was present.
func GetPath(doc map[string]any, path string) (any, bool) {
	segments := SplitPath(path)
	var current any = doc
	for _, seg := range segments {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// SetPath writes a value at a dot path, creating intermediate objects
// as needed. Intermediate non-object values are overwritten.
func SetPath(doc map[string]any, path string, value any) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return
	}
	current := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[seg] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}

// DeletePath removes the value at a dot path, if present.
func DeletePath(doc map[string]any, path string) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return
	}
	current := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg].(map[string]any)
		if !ok {
			return
		}
		current = next
	}
	delete(current, segments[len(segments)-1])
}
