package predicate

import (
	"fmt"
	"net"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/itchyny/gojq"
)

// NewDefaultRegistry returns a registry with the builtin verbs:
//
//	@header(name)     response header value, or null
//	@trailer(name)    response trailer value, or null
//	@uuid(path)       true when the value at path is a valid UUID
//	@timestamp(path)  true when the value at path is an RFC 3339 timestamp
//	@url(path)        true when the value at path is an absolute URL
//	@email(path)      true when the value at path is an email address
//	@ip(path)         true when the value at path is an IPv4/IPv6 address
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	// Registration of builtins cannot collide; ignore the error returns.
	_ = r.Register("header", verbHeader)
	_ = r.Register("trailer", verbTrailer)
	_ = r.Register("uuid", validatorVerb(func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil
	}))
	_ = r.Register("timestamp", validatorVerb(func(s string) bool {
		_, err := time.Parse(time.RFC3339, s)
		return err == nil
	}))
	_ = r.Register("url", validatorVerb(func(s string) bool {
		u, err := url.ParseRequestURI(s)
		return err == nil && u.Scheme != "" && u.Host != ""
	}))
	_ = r.Register("email", validatorVerb(func(s string) bool {
		_, err := mail.ParseAddress(s)
		return err == nil
	}))
	_ = r.Register("ip", validatorVerb(func(s string) bool {
		return net.ParseIP(s) != nil
	}))
	return r
}

func verbHeader(resp Response, args []string) (interface{}, error) {
	name, err := singleArg("header", args)
	if err != nil {
		return nil, err
	}
	return metadataLookup(resp.Headers, name), nil
}

func verbTrailer(resp Response, args []string) (interface{}, error) {
	name, err := singleArg("trailer", args)
	if err != nil {
		return nil, err
	}
	return metadataLookup(resp.Trailers, name), nil
}

// metadataLookup is case-insensitive, matching gRPC metadata key semantics.
func metadataLookup(md map[string]string, name string) interface{} {
	for k, v := range md {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

// validatorVerb adapts a string validator into a verb taking a single path
// argument into the response message. A missing or non-string value fails
// validation rather than erroring, so validators compose with optional
// fields.
func validatorVerb(valid func(string) bool) VerbFunc {
	return func(resp Response, args []string) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("validator verbs take exactly one path argument, got %d", len(args))
		}
		v, err := queryValue(resp.Message, args[0])
		if err != nil {
			return nil, err
		}
		s, ok := v.(string)
		if !ok {
			return false, nil
		}
		return valid(s), nil
	}
}

func singleArg(verb string, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("@%s takes exactly one argument, got %d", verb, len(args))
	}
	return args[0], nil
}

// queryValue runs a jq expression against the message and returns its first
// output, or nil when the expression yields nothing.
func queryValue(message interface{}, expr string) (interface{}, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("verb argument %q: %w", expr, err)
	}
	iter := q.Run(message)
	v, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if qerr, isErr := v.(error); isErr {
		return nil, fmt.Errorf("verb argument %q: %w", expr, qerr)
	}
	return v, nil
}
