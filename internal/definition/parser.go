package definition

import (
	"bytes"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"grpcheck/internal/compare"
	"grpcheck/pkg/logging"
)

// Definition files are UTF-8 text split into sections by marker lines of the
// form "--- NAME [modifiers] ---". A '#' outside a quoted string starts a
// line comment; inside a quoted string it is payload (request bodies are
// JSON and may legitimately contain it).

const (
	sectionAddress  = "ADDRESS"
	sectionEndpoint = "ENDPOINT"
	sectionRequest  = "REQUEST"
	sectionResponse = "RESPONSE"
	sectionError    = "ERROR"
	sectionAsserts  = "ASSERTS"
	sectionHeaders  = "HEADERS"
	sectionTLS      = "TLS"
	sectionProto    = "PROTO"
	sectionOptions  = "OPTIONS"
)

var knownSections = map[string]bool{
	sectionAddress:  true,
	sectionEndpoint: true,
	sectionRequest:  true,
	sectionResponse: true,
	sectionError:    true,
	sectionAsserts:  true,
	sectionHeaders:  true,
	sectionTLS:      true,
	sectionProto:    true,
	sectionOptions:  true,
}

// repeatable sections may occur more than once; all others are singletons.
var repeatable = map[string]bool{
	sectionRequest: true,
	sectionAsserts: true,
}

type section struct {
	name      string
	modifiers string
	lines     []string
}

func (s *section) body() string {
	return strings.TrimSpace(strings.Join(s.lines, "\n"))
}

// Parse reads and parses one definition file.
func Parse(path string) (*TestDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	return parseContent(path, string(data))
}

func parseContent(path, content string) (*TestDefinition, error) {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	sections, err := splitSections(path, lines)
	if err != nil {
		return nil, err
	}

	def := &TestDefinition{
		Path:     path,
		Headers:  make(map[string]string),
		Proto:    ProtoConfig{Mode: ProtoReflection},
		Response: compare.DefaultOptions(),
	}

	seen := make(map[string]bool)
	for _, sec := range sections {
		if seen[sec.name] && !repeatable[sec.name] {
			return nil, validationErrorf(path, sec.name, "section may only appear once")
		}
		seen[sec.name] = true

		if err := applySection(def, sec); err != nil {
			return nil, err
		}
	}

	if def.Endpoint == "" {
		return nil, validationErrorf(path, sectionEndpoint, "required section is missing")
	}
	if def.ExpectedResponse != nil && len(def.Assertions) > 0 && !def.Response.WithAsserts {
		return nil, validationErrorf(path, sectionResponse,
			"RESPONSE and ASSERTS are mutually exclusive unless RESPONSE is marked with_asserts")
	}

	logging.Debug("Parser", "parsed %s: endpoint=%s requests=%d asserts=%d",
		path, def.Endpoint, len(def.Requests), len(def.Assertions))
	return def, nil
}

// splitSections walks the file line by line, stripping comments and grouping
// body lines under the preceding marker.
func splitSections(path string, lines []string) ([]*section, error) {
	var sections []*section
	var current *section

	for i, raw := range lines {
		line := stripComment(raw)
		trimmed := strings.TrimSpace(line)

		if name, modifiers, ok := parseMarker(trimmed); ok {
			if !knownSections[name] {
				return nil, validationErrorf(path, name, "unknown section (line %d)", i+1)
			}
			current = &section{name: name, modifiers: modifiers}
			sections = append(sections, current)
			continue
		}

		if current == nil {
			if trimmed != "" {
				return nil, validationErrorf(path, "", "content before first section marker (line %d)", i+1)
			}
			continue
		}
		current.lines = append(current.lines, line)
	}

	return sections, nil
}

// parseMarker recognizes "--- NAME [modifiers] ---" lines.
func parseMarker(line string) (name, modifiers string, ok bool) {
	if !strings.HasPrefix(line, "---") || !strings.HasSuffix(line, "---") || len(line) < 7 {
		return "", "", false
	}
	inner := strings.TrimSpace(line[3 : len(line)-3])
	if inner == "" {
		return "", "", false
	}
	name, modifiers, _ = strings.Cut(inner, " ")
	if name != strings.ToUpper(name) {
		return "", "", false
	}
	return name, strings.TrimSpace(modifiers), true
}

// stripComment truncates a line at the first '#' that sits outside a quoted
// string.
func stripComment(line string) string {
	inString := false
	escaped := false
	for i, r := range line {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && inString:
			escaped = true
		case r == '"':
			inString = !inString
		case r == '#' && !inString:
			return line[:i]
		}
	}
	return line
}

func applySection(def *TestDefinition, sec *section) error {
	path := def.Path
	switch sec.name {
	case sectionAddress:
		addr, err := singleLine(path, sec)
		if err != nil {
			return err
		}
		def.Address = addr

	case sectionEndpoint:
		ep, err := singleLine(path, sec)
		if err != nil {
			return err
		}
		def.Endpoint = ep

	case sectionRequest:
		body := sec.body()
		if body == "" {
			return validationErrorf(path, sec.name, "request body is empty")
		}
		expanded, err := expandTemplate(body)
		if err != nil {
			return validationErrorf(path, sec.name, "template expansion failed: %v", err)
		}
		doc, err := compactJSON(path, sec.name, expanded)
		if err != nil {
			return err
		}
		def.Requests = append(def.Requests, doc)

	case sectionResponse:
		opts, err := parseResponseModifiers(path, sec.modifiers)
		if err != nil {
			return err
		}
		def.Response = opts
		doc, err := compactJSON(path, sec.name, sec.body())
		if err != nil {
			return err
		}
		def.ExpectedResponse = doc

	case sectionError:
		doc, err := compactJSON(path, sec.name, sec.body())
		if err != nil {
			return err
		}
		var expErr ExpectedError
		if err := json.Unmarshal(doc, &expErr); err != nil {
			return validationErrorf(path, sec.name, "invalid error expectation: %v", err)
		}
		def.ExpectedError = &expErr

	case sectionAsserts:
		var group []string
		for _, line := range sec.lines {
			if pred := strings.TrimSpace(line); pred != "" {
				group = append(group, pred)
			}
		}
		if len(group) == 0 {
			return validationErrorf(path, sec.name, "assertion group is empty")
		}
		def.Assertions = append(def.Assertions, group)

	case sectionHeaders:
		for _, line := range sec.lines {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			name, value, ok := strings.Cut(line, ":")
			if !ok || strings.TrimSpace(name) == "" {
				return validationErrorf(path, sec.name, "malformed header line %q, want \"Name: value\"", line)
			}
			def.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}

	case sectionTLS:
		tls, err := parseTLS(path, sec)
		if err != nil {
			return err
		}
		def.TLS = tls

	case sectionProto:
		proto, err := parseProto(path, sec)
		if err != nil {
			return err
		}
		def.Proto = proto

	case sectionOptions:
		opts, err := parseOptions(path, sec)
		if err != nil {
			return err
		}
		def.Options = opts
	}
	return nil
}

func singleLine(path string, sec *section) (string, error) {
	var value string
	for _, line := range sec.lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if value != "" {
			return "", validationErrorf(path, sec.name, "expected a single value, found multiple lines")
		}
		value = trimmed
	}
	if value == "" {
		return "", validationErrorf(path, sec.name, "section is empty")
	}
	return value, nil
}

func compactJSON(path, secName, body string) (json.RawMessage, error) {
	if body == "" {
		return nil, validationErrorf(path, secName, "section is empty")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(body)); err != nil {
		return nil, validationErrorf(path, secName, "invalid JSON: %v", err)
	}
	return json.RawMessage(buf.Bytes()), nil
}

// kvLines parses "key = value" lines of the TLS, PROTO and OPTIONS sections.
func kvLines(path string, sec *section) (map[string]string, error) {
	kv := make(map[string]string)
	for _, line := range sec.lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, validationErrorf(path, sec.name, "malformed line %q, want \"key = value\"", line)
		}
		kv[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}
	return kv, nil
}

func parseTLS(path string, sec *section) (*TLSConfig, error) {
	kv, err := kvLines(path, sec)
	if err != nil {
		return nil, err
	}
	tls := &TLSConfig{}
	for key, value := range kv {
		switch key {
		case "ca_cert":
			tls.CACert = value
		case "cert":
			tls.Cert = value
		case "key":
			tls.Key = value
		case "server_name":
			tls.ServerName = value
		case "insecure_skip_verify":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, validationErrorf(path, sec.name, "insecure_skip_verify: %v", err)
			}
			tls.InsecureSkipVerify = b
		default:
			return nil, validationErrorf(path, sec.name, "unknown key %q", key)
		}
	}
	return tls, nil
}

func parseProto(path string, sec *section) (ProtoConfig, error) {
	proto := ProtoConfig{Mode: ProtoReflection}
	kv, err := kvLines(path, sec)
	if err != nil {
		return proto, err
	}
	for key, value := range kv {
		switch key {
		case "mode":
			switch ProtoMode(value) {
			case ProtoReflection, ProtoFiles, ProtoDescriptor:
				proto.Mode = ProtoMode(value)
			default:
				return proto, validationErrorf(path, sec.name, "unknown mode %q", value)
			}
		case "files":
			proto.Files = splitList(value)
		case "import_paths":
			proto.ImportPaths = splitList(value)
		case "descriptor":
			proto.Descriptor = value
		default:
			return proto, validationErrorf(path, sec.name, "unknown key %q", key)
		}
	}
	if proto.Mode == ProtoFiles && len(proto.Files) == 0 {
		return proto, validationErrorf(path, sec.name, "mode=files requires files")
	}
	if proto.Mode == ProtoDescriptor && proto.Descriptor == "" {
		return proto, validationErrorf(path, sec.name, "mode=descriptor requires descriptor")
	}
	return proto, nil
}

func parseOptions(path string, sec *section) (Options, error) {
	var opts Options
	kv, err := kvLines(path, sec)
	if err != nil {
		return opts, err
	}
	for key, value := range kv {
		switch key {
		case "timeout":
			d, err := time.ParseDuration(value)
			if err != nil || d < 0 {
				return opts, validationErrorf(path, sec.name, "invalid timeout %q", value)
			}
			opts.Timeout = d
		case "retries":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return opts, validationErrorf(path, sec.name, "invalid retries %q", value)
			}
			opts.Retries = &n
		default:
			return opts, validationErrorf(path, sec.name, "unknown key %q", key)
		}
	}
	return opts, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}
