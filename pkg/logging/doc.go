// Package logging provides a thin facade over log/slog shared by all
// grpcheck components.
//
// Components log through package-level functions tagged with a subsystem
// name (Parser, Executor, Orchestrator, ...) so output can be filtered by
// origin. The facade is initialized exactly once from the CLI entry point
// via InitForCLI; before initialization all log calls are dropped, which
// keeps library code usable from tests without output noise.
package logging
