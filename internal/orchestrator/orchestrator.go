package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"grpcheck/internal/compare"
	"grpcheck/internal/definition"
	"grpcheck/internal/grpcclient"
	"grpcheck/internal/predicate"
	"grpcheck/internal/retry"
	"grpcheck/pkg/logging"
)

// CallExecutor issues one RPC invocation for a parsed definition. Satisfied
// by *grpcclient.Executor; substituted in tests.
type CallExecutor interface {
	Execute(ctx context.Context, def *definition.TestDefinition) (*grpcclient.Result, error)
}

// Config is the orchestrator configuration, populated once from the CLI and
// runner config file.
type Config struct {
	// DefaultAddress is supplied to definitions without an ADDRESS section.
	DefaultAddress string
	// Concurrency bounds the worker pool. Zero means the logical CPU count.
	Concurrency int
	// FailFast stops scheduling new cases after the first failure;
	// already-running cases drain normally.
	FailFast bool
	// RetriesDisabled forces single attempts and skips the liveness probe.
	RetriesDisabled bool
	// ProbeTimeout bounds the TCP liveness probe.
	ProbeTimeout time.Duration
}

// Orchestrator sequences parse, execute and validate per test case, and
// drives batches through a bounded worker pool. It is the only
// concurrency-aware component; everything below it is stateless per
// invocation except the parsed-definition cache.
type Orchestrator struct {
	cfg       Config
	cache     *definition.Cache
	executor  CallExecutor
	retrier   *retry.Coordinator
	evaluator *predicate.Evaluator
	reporter  Reporter

	// probe is substituted in tests.
	probe func(address string, timeout time.Duration) error
}

// New wires an orchestrator. A nil reporter discards progress events.
func New(cfg Config, executor CallExecutor, retrier *retry.Coordinator, evaluator *predicate.Evaluator, reporter Reporter) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 2 * time.Second
	}
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Orchestrator{
		cfg:       cfg,
		cache:     definition.NewCache(),
		executor:  executor,
		retrier:   retrier,
		evaluator: evaluator,
		reporter:  reporter,
		probe:     tcpProbe,
	}
}

// RunOne executes a single test case end to end: probe, parse, execute with
// retry, validate by expectation priority, classify.
func (o *Orchestrator) RunOne(ctx context.Context, path string) Outcome {
	start := time.Now()
	outcome := Outcome{TestID: uuid.NewString(), Path: path}

	finish := func(status Status, detail string) Outcome {
		outcome.Status = status
		outcome.Detail = detail
		outcome.Duration = time.Since(start)
		return outcome
	}

	def, err := o.cache.Load(path)
	if err != nil {
		// Validation and IO errors are fatal to this test only.
		return finish(StatusError, err.Error())
	}

	if def.Address == "" {
		def = withAddress(def, o.cfg.DefaultAddress)
		if def.Address == "" {
			return finish(StatusError, "definition has no ADDRESS and no default address is configured")
		}
	}

	// The probe catches a dead target before any retry budget is spent on
	// it. With retries disabled the probe is skipped: a single failed
	// attempt is cheap and reports the same thing.
	if !o.cfg.RetriesDisabled {
		if err := o.probe(def.Address, o.cfg.ProbeTimeout); err != nil {
			return finish(StatusFailed, err.Error())
		}
	}

	coordinator := o.retrier
	policy := coordinator.Policy()
	if o.cfg.RetriesDisabled {
		coordinator = coordinator.WithPolicy(policy.Disabled())
	} else if def.Options.Retries != nil {
		// OPTIONS retries counts retries after the first attempt; zero
		// disables retrying for this test.
		coordinator = coordinator.WithPolicy(policy.WithMaxAttempts(*def.Options.Retries + 1))
	}

	var result *grpcclient.Result
	attempts, err := coordinator.Do(ctx, func(ctx context.Context) error {
		r, execErr := o.executor.Execute(ctx, def)
		if execErr != nil {
			return execErr
		}
		result = r
		return nil
	})
	if err != nil {
		return finish(StatusFailed, fmt.Sprintf("call failed after %d attempt(s): %v", attempts, err))
	}

	status, detail := o.validate(def, result)
	return finish(status, detail)
}

// withAddress returns a shallow copy with the address filled in, so the
// cached definition is never mutated.
func withAddress(def *definition.TestDefinition, address string) *definition.TestDefinition {
	copied := *def
	copied.Address = address
	return &copied
}

// validate branches by expectation priority:
// expectedError > assertions > expectedResponse > none.
func (o *Orchestrator) validate(def *definition.TestDefinition, result *grpcclient.Result) (Status, string) {
	switch def.Validation() {
	case definition.ValidateError:
		if result.RPCError == nil {
			return StatusFailed, "expected error but request succeeded"
		}
		ok, detail := def.ExpectedError.Matches(result.RPCError.Code, result.RPCError.Message, result.RPCError.Details)
		if !ok {
			return StatusFailed, detail
		}
		return StatusPassed, ""

	case definition.ValidateAssertions:
		if result.RPCError != nil {
			return StatusFailed, fmt.Sprintf("rpc failed unexpectedly: %v", result.RPCError)
		}
		if status, detail := o.validateAssertions(def, result); status != StatusPassed {
			return status, detail
		}
		// Opt-in combination of a RESPONSE expectation with assertions.
		if def.Response.WithAsserts && def.ExpectedResponse != nil {
			return o.validateResponse(def, result)
		}
		return StatusPassed, ""

	case definition.ValidateResponse:
		if result.RPCError != nil {
			return StatusFailed, fmt.Sprintf("expected response but rpc failed: %v", result.RPCError)
		}
		return o.validateResponse(def, result)

	default:
		if result.RPCError != nil {
			return StatusFailed, fmt.Sprintf("rpc failed: %v", result.RPCError)
		}
		return StatusPassed, ""
	}
}

func (o *Orchestrator) validateAssertions(def *definition.TestDefinition, result *grpcclient.Result) (Status, string) {
	responses := make([]predicate.Response, 0, len(result.Messages))
	for _, raw := range result.Messages {
		var msg interface{}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return StatusFailed, fmt.Sprintf("response message is not valid JSON: %v", err)
		}
		responses = append(responses, predicate.Response{
			Message:  msg,
			Headers:  result.Headers,
			Trailers: result.Trailers,
		})
	}

	groups, err := o.evaluator.EvaluateStream(def.Assertions, responses)
	if err != nil {
		return StatusFailed, err.Error()
	}

	var failures []string
	for _, g := range groups {
		if !g.Passed {
			failures = append(failures, fmt.Sprintf("message %d: %s", g.MessageIndex, g.FailureDetail()))
		}
	}
	if len(failures) > 0 {
		return StatusFailed, strings.Join(failures, "\n")
	}
	return StatusPassed, ""
}

func (o *Orchestrator) validateResponse(def *definition.TestDefinition, result *grpcclient.Result) (Status, string) {
	actual, err := actualDocument(result)
	if err != nil {
		return StatusFailed, err.Error()
	}
	res, err := compare.Compare(def.ExpectedResponse, actual, def.Response)
	if err != nil {
		return StatusFailed, err.Error()
	}
	if !res.Equal {
		return StatusFailed, "response mismatch (-expected +actual):\n" + res.Diff
	}
	return StatusPassed, ""
}

// actualDocument is the comparison target: the single response message for
// unary calls, or the JSON array of messages for streams.
func actualDocument(result *grpcclient.Result) ([]byte, error) {
	switch len(result.Messages) {
	case 0:
		return nil, fmt.Errorf("no response message captured")
	case 1:
		return result.Messages[0], nil
	default:
		return json.Marshal(result.Messages)
	}
}

// RunMany executes a batch through a bounded worker pool. Each case holds
// exactly one slot for its full lifecycle, released on every exit path.
// Outcomes preserve submission order; failures are rendered together by the
// reporter at batch end.
func (o *Orchestrator) RunMany(ctx context.Context, paths []string) *SuiteResult {
	suite := &SuiteResult{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
		Outcomes:  make([]Outcome, len(paths)),
	}
	o.reporter.RunStarted(len(paths), o.cfg.Concurrency)
	logging.Info("Orchestrator", "running %d test(s) with %d worker(s)", len(paths), o.cfg.Concurrency)

	sem := semaphore.NewWeighted(int64(o.cfg.Concurrency))
	var wg sync.WaitGroup
	var sawFailure atomic.Bool

	for i, path := range paths {
		if o.cfg.FailFast && sawFailure.Load() {
			suite.Outcomes[i] = Outcome{
				TestID: uuid.NewString(),
				Path:   path,
				Status: StatusSkipped,
				Detail: "not run: fail-fast after earlier failure",
			}
			o.reporter.CaseFinished(suite.Outcomes[i])
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			suite.Outcomes[i] = Outcome{
				TestID: uuid.NewString(),
				Path:   path,
				Status: StatusError,
				Detail: fmt.Sprintf("run canceled: %v", err),
			}
			continue
		}

		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			defer sem.Release(1)

			out := o.RunOne(ctx, path)
			suite.Outcomes[i] = out
			if out.Status == StatusFailed || out.Status == StatusError {
				sawFailure.Store(true)
			}
			o.reporter.CaseFinished(out)
		}(i, path)
	}

	wg.Wait()
	suite.EndTime = time.Now()
	for _, out := range suite.Outcomes {
		switch out.Status {
		case StatusPassed:
			suite.Passed++
		case StatusFailed:
			suite.Failed++
		case StatusError:
			suite.Errored++
		case StatusSkipped:
			suite.Skipped++
		}
	}

	o.reporter.RunFinished(suite)
	return suite
}
