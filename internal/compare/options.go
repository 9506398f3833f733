package compare

// Mode selects the matching semantics for response validation.
type Mode string

const (
	// ModeExact requires both documents to be structurally identical after
	// canonicalization. Key order and whitespace are irrelevant, array order
	// and value types are significant.
	ModeExact Mode = "exact"
	// ModePartial requires every path present in the expected document to
	// exist in the actual document with an equal value. Extra keys in the
	// actual document are ignored.
	ModePartial Mode = "partial"
)

// Wildcard is the literal expected value that matches any non-null actual
// value at the same path.
const Wildcard = "*"

// Tolerance is a per-path numeric tolerance.
type Tolerance struct {
	// Value is the tolerance magnitude: an absolute delta, or a percentage
	// of the expected value when Percent is set.
	Value float64
	// Percent interprets Value as a percentage of the expected value.
	Percent bool
}

// Options controls how an expected response is compared to a captured one.
// It is populated by the definition parser from RESPONSE section modifiers.
type Options struct {
	// Mode is exact or partial matching. Defaults to exact.
	Mode Mode
	// Tolerances maps a document path (".price", ".items[0].qty") to a
	// numeric tolerance applied at that path.
	Tolerances map[string]Tolerance
	// RedactPaths are removed from both documents before any comparison.
	RedactPaths []string
	// UnorderedPaths are array paths sorted canonically before comparison.
	UnorderedPaths []string
	// UnorderedAll sorts every array in both documents before comparison.
	UnorderedAll bool
	// WithAsserts opts in to combining a RESPONSE expectation with ASSERTS
	// groups on the same definition.
	WithAsserts bool
}

// DefaultOptions returns the options applied when a RESPONSE section carries
// no modifiers.
func DefaultOptions() Options {
	return Options{Mode: ModeExact}
}
