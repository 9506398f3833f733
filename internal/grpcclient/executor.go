package grpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"grpcheck/internal/definition"
	"grpcheck/internal/retry"
	"grpcheck/pkg/logging"
)

// DefaultBinary is the external client spawned when none is configured.
const DefaultBinary = "grpcurl"

// Invocation is one fully rendered client command: argv plus the stdin
// payload carrying the request documents.
type Invocation struct {
	Binary string
	Args   []string
	Stdin  string
}

// Render returns a copy-pasteable form of the invocation for dry-run
// display and failure diagnostics.
func (inv Invocation) Render() string {
	parts := make([]string, 0, len(inv.Args)+1)
	parts = append(parts, inv.Binary)
	for _, a := range inv.Args {
		if strings.ContainsAny(a, " \t\"") {
			a = strconv.Quote(a)
		}
		parts = append(parts, a)
	}
	cmd := strings.Join(parts, " ")
	if inv.Stdin != "" {
		cmd += "\nstdin:\n" + inv.Stdin
	}
	return cmd
}

// Executor issues RPC invocations through the external client process.
type Executor struct {
	// Binary is the client executable. Defaults to DefaultBinary.
	Binary string
	// DefaultTimeout bounds an invocation when the definition carries no
	// timeout of its own. Zero means no bound.
	DefaultTimeout time.Duration
	// DryRun renders the command without spawning the process.
	DryRun bool
	// DryRunResult is returned in dry-run mode. Nil simulates a successful
	// call with an empty response message.
	DryRunResult *Result
}

// New returns an executor spawning the given client binary.
func New(binary string, defaultTimeout time.Duration) *Executor {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Executor{Binary: binary, DefaultTimeout: defaultTimeout}
}

// BuildInvocation renders the client command for a definition without
// executing anything.
func (e *Executor) BuildInvocation(def *definition.TestDefinition) Invocation {
	var args []string

	if def.TLS == nil {
		args = append(args, "-plaintext")
	} else {
		tls := def.TLS
		if tls.InsecureSkipVerify {
			args = append(args, "-insecure")
		}
		if tls.CACert != "" {
			args = append(args, "-cacert", tls.CACert)
		}
		if tls.Cert != "" {
			args = append(args, "-cert", tls.Cert)
		}
		if tls.Key != "" {
			args = append(args, "-key", tls.Key)
		}
		if tls.ServerName != "" {
			args = append(args, "-servername", tls.ServerName)
		}
	}

	switch def.Proto.Mode {
	case definition.ProtoFiles:
		for _, p := range def.Proto.ImportPaths {
			args = append(args, "-import-path", p)
		}
		for _, f := range def.Proto.Files {
			args = append(args, "-proto", f)
		}
	case definition.ProtoDescriptor:
		args = append(args, "-protoset", def.Proto.Descriptor)
	}

	// Sorted header order keeps rendered commands reproducible.
	headerNames := make([]string, 0, len(def.Headers))
	for name := range def.Headers {
		headerNames = append(headerNames, name)
	}
	sort.Strings(headerNames)
	for _, name := range headerNames {
		args = append(args, "-H", name+": "+def.Headers[name])
	}

	if timeout := e.timeoutFor(def); timeout > 0 {
		args = append(args, "-max-time", strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64))
	}

	args = append(args, "-d", "@", def.Address, def.Endpoint)

	var stdin strings.Builder
	for _, req := range def.Requests {
		stdin.Write(req)
		stdin.WriteByte('\n')
	}

	return Invocation{Binary: e.Binary, Args: args, Stdin: stdin.String()}
}

func (e *Executor) timeoutFor(def *definition.TestDefinition) time.Duration {
	if def.Options.Timeout > 0 {
		return def.Options.Timeout
	}
	return e.DefaultTimeout
}

// Execute issues one RPC invocation. The returned error covers
// infrastructure failures only (spawn failure, timeout, broken transport);
// a non-zero client exit with an application error is a valid Result whose
// RPCError field is set.
func (e *Executor) Execute(ctx context.Context, def *definition.TestDefinition) (*Result, error) {
	inv := e.BuildInvocation(def)

	if e.DryRun {
		return e.dryRunResult(inv), nil
	}

	timeout := e.timeoutFor(def)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Binary, inv.Args...)
	cmd.Stdin = strings.NewReader(inv.Stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Debug("Executor", "invoking %s %s", inv.Binary, strings.Join(inv.Args, " "))
	runErr := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		// The process was hard-killed on expiry; there is no cooperative
		// mid-call cancellation for an opaque subprocess.
		return nil, fmt.Errorf("call timed out after %v: deadline exceeded", timeout)
	}

	result := &Result{
		Invocation: inv,
		Stderr:     stderr.String(),
	}
	result.Headers, result.Trailers = parseMetadata(stderr.String())

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		result.RPCError = parseErrorPayload(stderr.String())
		if result.RPCError == nil {
			result.RPCError = parseErrorPayload(stdout.String())
		}
		if result.RPCError == nil {
			msg := strings.TrimSpace(stderr.String())
			// A dial-level failure carries no status payload. Surface it as
			// an infrastructure error so the retry classifier sees it.
			if retry.IsTransient(errors.New(msg)) {
				return nil, fmt.Errorf("%s: %s", inv.Binary, msg)
			}
			// Unparseable failure output still reaches expected-error
			// validation as an Unknown-code error.
			result.RPCError = &RPCError{Code: grpcCodeNames["Unknown"], Message: msg}
		}
		return result, nil
	}
	if runErr != nil {
		return nil, fmt.Errorf("spawning %s: %w", inv.Binary, runErr)
	}

	messages, err := parseMessages(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	result.Messages = messages
	return result, nil
}

func (e *Executor) dryRunResult(inv Invocation) *Result {
	logging.Info("Executor", "dry run:\n%s", inv.Render())
	if e.DryRunResult != nil {
		res := *e.DryRunResult
		res.Invocation = inv
		return &res
	}
	return &Result{
		Messages:   []json.RawMessage{json.RawMessage(`{}`)},
		Headers:    map[string]string{},
		Trailers:   map[string]string{},
		Invocation: inv,
	}
}
