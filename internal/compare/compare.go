package compare

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/go-cmp/cmp"
)

// Result is the outcome of one comparison. Diff is populated only on
// mismatch.
type Result struct {
	Equal bool
	Diff  string
}

// Compare decides whether a captured response matches an expected response
// definition under the given options.
//
// Both documents are decoded before comparison, which makes the check
// insensitive to key order and formatting. Normalization is applied in a
// fixed order for reproducibility: redaction, tolerance neutralization,
// array-order normalization, then the mode comparison.
func Compare(expected, actual []byte, opts Options) (Result, error) {
	var expVal, actVal interface{}
	if err := json.Unmarshal(expected, &expVal); err != nil {
		return Result{}, fmt.Errorf("expected document is not valid JSON: %w", err)
	}
	if err := json.Unmarshal(actual, &actVal); err != nil {
		return Result{}, fmt.Errorf("actual document is not valid JSON: %w", err)
	}

	for _, p := range opts.RedactPaths {
		steps, err := parsePath(p)
		if err != nil {
			return Result{}, fmt.Errorf("redact: %w", err)
		}
		deletePath(expVal, steps)
		deletePath(actVal, steps)
	}

	for p, tol := range opts.Tolerances {
		steps, err := parsePath(p)
		if err != nil {
			return Result{}, fmt.Errorf("tolerance: %w", err)
		}
		neutralizeTolerance(expVal, actVal, steps, tol)
	}

	if opts.UnorderedAll {
		sortAllArrays(expVal)
		sortAllArrays(actVal)
	} else {
		for _, p := range opts.UnorderedPaths {
			steps, err := parsePath(p)
			if err != nil {
				return Result{}, fmt.Errorf("unordered arrays: %w", err)
			}
			sortArraysAtPath(expVal, steps)
			sortArraysAtPath(actVal, steps)
		}
	}

	var equal bool
	switch opts.Mode {
	case ModePartial:
		equal = subsetMatch(expVal, actVal)
	default:
		equal = exactMatch(expVal, actVal)
	}

	res := Result{Equal: equal}
	if !equal {
		res.Diff = cmp.Diff(expVal, actVal)
	}
	return res, nil
}

// neutralizeTolerance rewrites the actual value at a tolerance path to the
// expected value when the two are within tolerance, so the subsequent
// comparison treats them as equal. Non-numeric values at a tolerance path
// are always neutralized: tolerant paths must never produce false negatives
// on optional or differently-typed fields.
func neutralizeTolerance(expDoc, actDoc interface{}, steps []pathStep, tol Tolerance) {
	ev, eok := getPath(expDoc, steps)
	av, aok := getPath(actDoc, steps)
	if !eok || !aok {
		return
	}

	ef, eIsNum := ev.(float64)
	af, aIsNum := av.(float64)
	if !eIsNum || !aIsNum {
		setPath(actDoc, steps, ev)
		return
	}

	if withinTolerance(ef, af, tol) {
		setPath(actDoc, steps, ev)
	}
}

func withinTolerance(expected, actual float64, tol Tolerance) bool {
	diff := math.Abs(expected - actual)
	if tol.Percent {
		if expected == 0 {
			return diff == 0
		}
		return diff/math.Abs(expected)*100 <= tol.Value
	}
	return diff <= tol.Value
}

// exactMatch requires structural equality. The wildcard literal in the
// expected document matches any non-null actual value.
func exactMatch(expected, actual interface{}) bool {
	if s, ok := expected.(string); ok && s == Wildcard {
		return actual != nil
	}

	switch exp := expected.(type) {
	case map[string]interface{}:
		act, ok := actual.(map[string]interface{})
		if !ok || len(exp) != len(act) {
			return false
		}
		for k, ev := range exp {
			av, ok := act[k]
			if !ok || !exactMatch(ev, av) {
				return false
			}
		}
		return true
	case []interface{}:
		act, ok := actual.([]interface{})
		if !ok || len(exp) != len(act) {
			return false
		}
		for i := range exp {
			if !exactMatch(exp[i], act[i]) {
				return false
			}
		}
		return true
	default:
		return expected == actual
	}
}

// subsetMatch requires every value present in the expected document to exist
// in the actual document with an equal value. Extra keys in the actual
// document never break the match; arrays may carry extra trailing elements.
func subsetMatch(expected, actual interface{}) bool {
	if s, ok := expected.(string); ok && s == Wildcard {
		return actual != nil
	}

	switch exp := expected.(type) {
	case map[string]interface{}:
		act, ok := actual.(map[string]interface{})
		if !ok {
			return false
		}
		for k, ev := range exp {
			av, ok := act[k]
			if !ok || !subsetMatch(ev, av) {
				return false
			}
		}
		return true
	case []interface{}:
		act, ok := actual.([]interface{})
		if !ok || len(exp) > len(act) {
			return false
		}
		for i := range exp {
			if !subsetMatch(exp[i], act[i]) {
				return false
			}
		}
		return true
	default:
		return expected == actual
	}
}

// Canonical returns the compact, key-sorted encoding of a JSON document,
// or an error when the input is not valid JSON. Exposed for reporters that
// render expected/actual values in a stable form.
func Canonical(doc []byte) (string, error) {
	var v interface{}
	if err := json.Unmarshal(doc, &v); err != nil {
		return "", err
	}
	return canonicalString(v), nil
}
