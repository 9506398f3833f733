package compare

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// pathStep is one segment of a document path. A step addresses a map field,
// optionally followed by an array index (".items[2]" yields field "items",
// index 2).
type pathStep struct {
	field string
	index int // -1 when no index is present
}

// parsePath parses a jq-style path like ".items[2].name" into steps.
// A leading dot is optional.
func parsePath(path string) ([]pathStep, error) {
	p := strings.TrimPrefix(strings.TrimSpace(path), ".")
	if p == "" {
		return nil, fmt.Errorf("empty path")
	}

	var steps []pathStep
	for _, seg := range strings.Split(p, ".") {
		if seg == "" {
			return nil, fmt.Errorf("invalid path %q: empty segment", path)
		}
		field := seg
		index := -1
		if open := strings.Index(seg, "["); open >= 0 {
			if !strings.HasSuffix(seg, "]") {
				return nil, fmt.Errorf("invalid path %q: unterminated index in %q", path, seg)
			}
			idxStr := seg[open+1 : len(seg)-1]
			idx, err := strconv.Atoi(idxStr)
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("invalid path %q: bad array index %q", path, idxStr)
			}
			field = seg[:open]
			index = idx
		}
		steps = append(steps, pathStep{field: field, index: index})
	}
	return steps, nil
}

// getPath returns the value at the given steps, reporting whether every step
// resolved.
func getPath(v interface{}, steps []pathStep) (interface{}, bool) {
	cur := v
	for _, s := range steps {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[s.field]
		if !ok {
			return nil, false
		}
		if s.index >= 0 {
			arr, ok := cur.([]interface{})
			if !ok || s.index >= len(arr) {
				return nil, false
			}
			cur = arr[s.index]
		}
	}
	return cur, true
}

// setPath replaces the value at the given steps in place. It reports whether
// the full path resolved. Documents decode to map/slice reference types, so
// mutation through the parent container sticks.
func setPath(v interface{}, steps []pathStep, val interface{}) bool {
	if len(steps) == 0 {
		return false
	}
	cur := v
	for i, s := range steps {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return false
		}
		last := i == len(steps)-1
		child, ok := m[s.field]
		if !ok {
			return false
		}
		if s.index >= 0 {
			arr, ok := child.([]interface{})
			if !ok || s.index >= len(arr) {
				return false
			}
			if last {
				arr[s.index] = val
				return true
			}
			cur = arr[s.index]
			continue
		}
		if last {
			m[s.field] = val
			return true
		}
		cur = child
	}
	return false
}

// deletePath removes the value at the given steps from the document, in
// place. When a step without an explicit index lands on an array, the
// remaining steps fan out over every element, so ".items.id" redacts the id
// field of each item.
func deletePath(v interface{}, steps []pathStep) {
	if len(steps) == 0 {
		return
	}
	switch node := v.(type) {
	case []interface{}:
		for _, elem := range node {
			deletePath(elem, steps)
		}
	case map[string]interface{}:
		s := steps[0]
		child, ok := node[s.field]
		if !ok {
			return
		}
		if len(steps) == 1 && s.index < 0 {
			delete(node, s.field)
			return
		}
		if s.index >= 0 {
			arr, ok := child.([]interface{})
			if !ok || s.index >= len(arr) {
				return
			}
			if len(steps) == 1 {
				node[s.field] = append(arr[:s.index:s.index], arr[s.index+1:]...)
				return
			}
			deletePath(arr[s.index], steps[1:])
			return
		}
		deletePath(child, steps[1:])
	}
}

// sortArraysAtPath canonically sorts the array addressed by steps, if the
// path resolves to one.
func sortArraysAtPath(v interface{}, steps []pathStep) {
	target, ok := getPath(v, steps)
	if !ok {
		return
	}
	if arr, ok := target.([]interface{}); ok {
		sortArray(arr)
	}
}

// sortAllArrays recursively sorts every array in the document.
func sortAllArrays(v interface{}) {
	switch node := v.(type) {
	case []interface{}:
		for _, elem := range node {
			sortAllArrays(elem)
		}
		sortArray(node)
	case map[string]interface{}:
		for _, elem := range node {
			sortAllArrays(elem)
		}
	}
}

// sortArray orders elements by their canonical encoding so that two arrays
// holding the same members in different order compare equal.
func sortArray(arr []interface{}) {
	sort.SliceStable(arr, func(i, j int) bool {
		return canonicalString(arr[i]) < canonicalString(arr[j])
	})
}

// canonicalString returns the compact, key-sorted encoding of a decoded
// document. encoding/json marshals map keys in sorted order, which gives the
// canonical form directly.
func canonicalString(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
