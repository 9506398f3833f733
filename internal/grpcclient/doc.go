// Package grpcclient builds and issues RPC invocations through an external
// grpcurl-compatible command-line client.
//
// The runner deliberately carries no gRPC wire client of its own: the
// executor renders transport-security, schema-source and header flags from
// the parsed definition, feeds request payloads to the client process on
// standard input as successive compact JSON documents, and interprets the
// process output. A non-zero exit is parsed into an RPC error payload and
// handed to expected-error validation; it is never discarded.
//
// Dry-run mode renders the exact command line and stdin payload without
// spawning the process, returning a configured simulated result so the rest
// of the pipeline runs unchanged in preview mode.
package grpcclient
