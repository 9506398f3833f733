package predicate

import (
	"fmt"
	"sort"
)

// Response is the captured data one predicate group evaluates against: a
// single decoded response message plus the call metadata shared by all
// messages of the stream.
type Response struct {
	// Message is the decoded JSON of the response message.
	Message interface{}
	// Headers are the response headers received for the call.
	Headers map[string]string
	// Trailers are the response trailers received for the call.
	Trailers map[string]string
}

// VerbFunc is a named extension verb: a pure function computing a JSON value
// from the captured response and the literal arguments of its invocation.
type VerbFunc func(resp Response, args []string) (interface{}, error)

// Registry holds the named verbs available to predicates. It is built once
// at startup and read-only afterwards; registration is not safe for
// concurrent use with evaluation.
type Registry struct {
	verbs map[string]VerbFunc
}

// NewRegistry returns an empty verb registry.
func NewRegistry() *Registry {
	return &Registry{verbs: make(map[string]VerbFunc)}
}

// Register adds a verb under the given name. Registering a name twice is an
// error so plugin verbs cannot silently shadow builtins.
func (r *Registry) Register(name string, fn VerbFunc) error {
	if name == "" {
		return fmt.Errorf("verb name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("verb %q: function must not be nil", name)
	}
	if _, exists := r.verbs[name]; exists {
		return fmt.Errorf("verb %q is already registered", name)
	}
	r.verbs[name] = fn
	return nil
}

// Lookup returns the verb registered under name.
func (r *Registry) Lookup(name string) (VerbFunc, bool) {
	fn, ok := r.verbs[name]
	return fn, ok
}

// Names returns the registered verb names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.verbs))
	for name := range r.verbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
