package predicate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/itchyny/gojq"

	"grpcheck/pkg/logging"
)

// PredicateResult is the outcome of evaluating one predicate.
type PredicateResult struct {
	// Predicate is the original predicate text from the definition file.
	Predicate string
	// Passed reports whether the predicate held.
	Passed bool
	// Err carries an evaluation error (bad expression, unknown verb). A
	// predicate with an error counts as failed.
	Err error
}

// GroupResult is the outcome of one assertion group against one streamed
// message. Every predicate is evaluated even after a failure so diagnostics
// show the full picture.
type GroupResult struct {
	MessageIndex int
	Results      []PredicateResult
	Passed       bool
}

// FailureDetail renders the failed predicates of the group for reporting.
func (g GroupResult) FailureDetail() string {
	var parts []string
	for _, r := range g.Results {
		if r.Passed {
			continue
		}
		if r.Err != nil {
			parts = append(parts, fmt.Sprintf("predicate %q: %v", r.Predicate, r.Err))
		} else {
			parts = append(parts, fmt.Sprintf("predicate %q evaluated to false", r.Predicate))
		}
	}
	return strings.Join(parts, "; ")
}

// InsufficientMessagesError reports that a stream delivered fewer messages
// than the definition has assertion groups.
type InsufficientMessagesError struct {
	Groups   int
	Messages int
}

func (e *InsufficientMessagesError) Error() string {
	return fmt.Sprintf("stream delivered %d message(s) but definition has %d assertion group(s)", e.Messages, e.Groups)
}

// Evaluator runs predicate groups against responses using an injected verb
// registry.
type Evaluator struct {
	registry *Registry
}

// NewEvaluator creates an evaluator backed by the given verb registry.
func NewEvaluator(registry *Registry) *Evaluator {
	return &Evaluator{registry: registry}
}

// verbPattern matches a verb invocation @name(args). Arguments must not
// contain parentheses; anything richer belongs in the jq expression itself.
var verbPattern = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)\(([^()]*)\)`)

// EvaluatePredicate evaluates one predicate against one response. Verb
// invocations are resolved first and their results spliced into the
// expression as JSON literals, then the whole expression runs through the jq
// engine. The predicate passes when every output of the expression is
// truthy.
func (e *Evaluator) EvaluatePredicate(pred string, resp Response) PredicateResult {
	result := PredicateResult{Predicate: pred}

	expr, err := e.spliceVerbs(pred, resp)
	if err != nil {
		result.Err = err
		return result
	}

	q, err := gojq.Parse(expr)
	if err != nil {
		result.Err = fmt.Errorf("invalid predicate: %w", err)
		return result
	}

	iter := q.Run(resp.Message)
	sawOutput := false
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if qerr, isErr := v.(error); isErr {
			result.Err = qerr
			return result
		}
		sawOutput = true
		if v == nil || v == false {
			return result
		}
	}

	result.Passed = sawOutput
	return result
}

// spliceVerbs resolves every @verb(args) invocation in the predicate and
// replaces it with the JSON encoding of the verb's result. The scan is
// quote-aware: an @word(...) inside a string literal is payload, not a verb.
func (e *Evaluator) spliceVerbs(pred string, resp Response) (string, error) {
	var out strings.Builder
	inQuote := false
	escaped := false
	for i := 0; i < len(pred); {
		c := pred[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inQuote:
			escaped = true
		case c == '"':
			inQuote = !inQuote
		case c == '@' && !inQuote:
			if loc := verbPattern.FindStringIndex(pred[i:]); loc != nil && loc[0] == 0 {
				encoded, err := e.resolveVerb(pred[i : i+loc[1]], resp)
				if err != nil {
					return "", err
				}
				out.WriteString(encoded)
				i += loc[1]
				continue
			}
		}
		out.WriteByte(c)
		i++
	}
	return out.String(), nil
}

// resolveVerb evaluates one matched @verb(args) invocation and returns the
// JSON encoding of its result.
func (e *Evaluator) resolveVerb(match string, resp Response) (string, error) {
	groups := verbPattern.FindStringSubmatch(match)
	name, rawArgs := groups[1], groups[2]

	fn, ok := e.registry.Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown verb @%s (registered: %s)", name, strings.Join(e.registry.Names(), ", "))
	}

	args, err := splitVerbArgs(rawArgs)
	if err != nil {
		return "", fmt.Errorf("@%s: %w", name, err)
	}

	value, err := fn(resp, args)
	if err != nil {
		return "", fmt.Errorf("@%s: %w", name, err)
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("@%s: encoding result: %w", name, err)
	}
	return string(encoded), nil
}

// splitVerbArgs splits a verb argument list on commas, respecting quoted
// strings. Quoted arguments are unquoted; bare arguments are trimmed.
func splitVerbArgs(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var args []string
	var cur strings.Builder
	inQuote := false
	escaped := false
	for _, r := range raw {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case r == ',' && !inQuote:
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote in arguments %q", raw)
	}
	args = append(args, strings.TrimSpace(cur.String()))
	return args, nil
}

// EvaluateGroup evaluates every predicate of one group against one response.
// Predicates are independent: all of them run, any failure fails the group,
// and all results are retained for diagnostics.
func (e *Evaluator) EvaluateGroup(predicates []string, messageIndex int, resp Response) GroupResult {
	group := GroupResult{MessageIndex: messageIndex, Passed: true}
	for _, pred := range predicates {
		r := e.EvaluatePredicate(pred, resp)
		if !r.Passed {
			group.Passed = false
			logging.Debug("Predicate", "message %d: predicate %q failed", messageIndex, pred)
		}
		group.Results = append(group.Results, r)
	}
	return group
}

// EvaluateStream matches assertion groups to streamed messages in arrival
// order: group N runs against message N. Fewer groups than messages is
// legal; more groups than messages returns InsufficientMessagesError.
func (e *Evaluator) EvaluateStream(groups [][]string, responses []Response) ([]GroupResult, error) {
	if len(groups) > len(responses) {
		return nil, &InsufficientMessagesError{Groups: len(groups), Messages: len(responses)}
	}

	results := make([]GroupResult, 0, len(groups))
	for i, predicates := range groups {
		results = append(results, e.EvaluateGroup(predicates, i, responses[i]))
	}
	return results, nil
}
