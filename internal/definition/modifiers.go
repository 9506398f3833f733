package definition

import (
	"strconv"
	"strings"

	"grpcheck/internal/compare"
)

// modifier is one token from a section marker line: either a bare flag
// ("partial") or a key=value pair ("tolerance[.price]=0.01").
type modifier struct {
	key      string
	value    string
	hasValue bool
}

// tokenizeModifiers splits a marker modifier string into tokens, quote-aware
// so values may contain spaces: redact=".first name,.last name".
func tokenizeModifiers(raw string) ([]modifier, error) {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	for _, r := range raw {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case (r == ' ' || r == '\t') && !inQuote:
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, strconv.ErrSyntax
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}

	mods := make([]modifier, 0, len(tokens))
	for _, tok := range tokens {
		key, value, has := strings.Cut(tok, "=")
		mods = append(mods, modifier{key: key, value: unquote(value), hasValue: has})
	}
	return mods, nil
}

// parseResponseModifiers maps RESPONSE marker modifiers onto comparison
// options.
func parseResponseModifiers(path, raw string) (compare.Options, error) {
	opts := compare.DefaultOptions()
	if strings.TrimSpace(raw) == "" {
		return opts, nil
	}

	mods, err := tokenizeModifiers(raw)
	if err != nil {
		return opts, validationErrorf(path, sectionResponse, "unterminated quote in modifiers %q", raw)
	}

	for _, m := range mods {
		switch {
		case m.key == "mode":
			switch compare.Mode(m.value) {
			case compare.ModeExact, compare.ModePartial:
				opts.Mode = compare.Mode(m.value)
			default:
				return opts, validationErrorf(path, sectionResponse, "unknown mode %q", m.value)
			}

		case m.key == "partial" && !m.hasValue:
			opts.Mode = compare.ModePartial

		case strings.HasPrefix(m.key, "tolerance[") && strings.HasSuffix(m.key, "]"):
			if err := addTolerance(&opts, m, false); err != nil {
				return opts, validationErrorf(path, sectionResponse, "%s: %v", m.key, err)
			}

		case strings.HasPrefix(m.key, "tol_percent[") && strings.HasSuffix(m.key, "]"):
			if err := addTolerance(&opts, m, true); err != nil {
				return opts, validationErrorf(path, sectionResponse, "%s: %v", m.key, err)
			}

		case m.key == "redact":
			opts.RedactPaths = append(opts.RedactPaths, splitList(m.value)...)

		case m.key == "unordered_arrays" && !m.hasValue:
			opts.UnorderedAll = true

		case m.key == "unordered_arrays_paths":
			opts.UnorderedPaths = append(opts.UnorderedPaths, splitList(m.value)...)

		case m.key == "with_asserts" && !m.hasValue:
			opts.WithAsserts = true

		default:
			return opts, validationErrorf(path, sectionResponse, "unknown modifier %q", m.key)
		}
	}
	return opts, nil
}

func addTolerance(opts *compare.Options, m modifier, percent bool) error {
	open := strings.Index(m.key, "[")
	tolPath := m.key[open+1 : len(m.key)-1]
	if tolPath == "" {
		return strconv.ErrSyntax
	}
	v, err := strconv.ParseFloat(m.value, 64)
	if err != nil || v < 0 {
		return strconv.ErrSyntax
	}
	if opts.Tolerances == nil {
		opts.Tolerances = make(map[string]compare.Tolerance)
	}
	opts.Tolerances[tolPath] = compare.Tolerance{Value: v, Percent: percent}
	return nil
}
