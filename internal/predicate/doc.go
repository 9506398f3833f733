// Package predicate evaluates assertion groups against captured RPC
// responses.
//
// A predicate is one boolean jq expression run against a single response
// message. Predicates may additionally invoke named verbs of the form
// @verb(args): each verb is a registered pure function that computes a JSON
// value from the captured response (headers, trailers, or message fields),
// and that value is spliced into the expression text before jq evaluation.
// Verbs extend the predicate vocabulary; they are not a separate execution
// path.
//
// For streamed RPCs, assertion group N is matched against streamed message N
// in arrival order. Fewer groups than messages is legal; more groups than
// messages fails with InsufficientMessagesError.
//
// The verb registry is an explicit object built at startup and injected into
// the evaluator, so tests can substitute their own registry.
package predicate
