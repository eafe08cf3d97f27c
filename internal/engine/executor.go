// Package engine runs geometry scripts. It builds a per-request namespace
// from a kernel, executes the script under a deadline and step budget, and
// resolves which binding is the script's output.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"golang.org/x/sync/semaphore"

	"github.com/yungbote/nfinit-engine/internal/kernel"
	"github.com/yungbote/nfinit-engine/internal/observability"
	"github.com/yungbote/nfinit-engine/internal/platform/ctxutil"
	"github.com/yungbote/nfinit-engine/internal/platform/logger"
)

const (
	scriptFilename = "script.py"
	maxPrintBytes  = 64 << 10

	DefaultTimeout       = 30 * time.Second
	DefaultMaxConcurrent = 8
)

// Recursion stays off, so a runaway call chain fails as a script error rather
// than overflowing the goroutine stack.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

type Config struct {
	// Kernel is the registry name of the geometry library.
	Kernel string
	// Timeout bounds a single execution. Zero means DefaultTimeout.
	Timeout time.Duration
	// MaxSteps bounds Starlark computation steps. Zero disables the budget.
	MaxSteps uint64
	// MaxConcurrent bounds simultaneous executions. Zero means
	// DefaultMaxConcurrent.
	MaxConcurrent int
}

// Result is a resolved script output together with the namespace it came
// from. The namespace holds the serializers the dispatcher must use.
type Result struct {
	Resolution
	Namespace *Namespace
	// Output is whatever the script printed.
	Output   string
	Steps    uint64
	Duration time.Duration
}

type Executor struct {
	cfg    Config
	log    *logger.Logger
	sem    *semaphore.Weighted
	tracer trace.Tracer
}

func NewExecutor(cfg Config, log *logger.Logger) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Executor{
		cfg:    cfg,
		log:    log.With("component", "engine", "kernel", cfg.Kernel),
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		tracer: otel.Tracer("github.com/yungbote/nfinit-engine/internal/engine"),
	}
}

// Ready reports whether the configured kernel can be imported.
func (e *Executor) Ready() error {
	_, err := kernel.Import(e.cfg.Kernel)
	return err
}

// Run executes code and resolves its output. Errors wrap
// kernel.ErrUnavailable or are a *ScriptError.
func (e *Executor) Run(ctx context.Context, code string) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Run")
	defer span.End()
	start := time.Now()

	res, err := e.run(ctx, code)
	outcome := outcomeOf(err)
	observability.Current().ObserveScript(outcome, tierLabel(res), time.Since(start))
	span.SetAttributes(attribute.String("script.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	res.Duration = time.Since(start)
	span.SetAttributes(
		attribute.String("result.name", res.Name),
		attribute.String("result.tier", res.Tier.String()),
		attribute.Int64("script.steps", int64(res.Steps)),
	)
	return res, nil
}

func (e *Executor) run(ctx context.Context, code string) (*Result, error) {
	log := e.log.With(ctxutil.LogFields(ctx)...)
	_, nsSpan := e.tracer.Start(ctx, "engine.BuildNamespace")
	ns, err := BuildNamespace(e.cfg.Kernel)
	nsSpan.End()
	if err != nil {
		log.Error("kernel unavailable", "error", err)
		return nil, err
	}

	src := PrepareScript(code)
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, &ScriptError{
			Message: "cancelled while waiting for an execution slot",
			Err:     fmt.Errorf("%w: %w", ErrLimitExceeded, err),
		}
	}
	defer e.sem.Release(1)

	execCtx, execSpan := e.tracer.Start(ctx, "engine.Execute")
	out, steps, err := e.execute(execCtx, ns, src)
	execSpan.End()
	if out != "" {
		log.Debug("script output", "output", out)
	}
	if err != nil {
		se := newScriptError(err)
		log.Info("script failed",
			"error", se.Error(),
			"line", se.Line,
			"steps", steps,
			"code", src,
		)
		if se.Backtrace != "" {
			log.Debug("script backtrace", "backtrace", se.Backtrace)
		}
		return nil, se
	}

	res, err := Resolve(ns)
	if err != nil {
		log.Info("script produced no exportable result",
			"error", err,
			"user_names", ns.UserNames(),
			"code", src,
		)
		return nil, err
	}
	log.Debug("script resolved",
		"name", res.Name,
		"tier", res.Tier.String(),
		"type", res.Shape.Type(),
		"steps", steps,
	)
	return &Result{Resolution: res, Namespace: ns, Output: out, Steps: steps}, nil
}

// execute runs src with ns as its predeclared scope and binds the resulting
// globals into ns.
func (e *Executor) execute(ctx context.Context, ns *Namespace, src string) (output string, steps uint64, err error) {
	f, prog, err := starlark.SourceProgramOptions(fileOptions, scriptFilename, src, func(name string) bool {
		_, ok := ns.Lookup(name)
		return ok
	})
	if err != nil {
		return "", 0, err
	}

	var printed strings.Builder
	thread := &starlark.Thread{
		Name: "script",
		Print: func(_ *starlark.Thread, msg string) {
			if printed.Len() < maxPrintBytes {
				printed.WriteString(msg)
				printed.WriteByte('\n')
			}
		},
	}
	overBudget := false
	if e.cfg.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(e.cfg.MaxSteps)
		thread.OnMaxSteps = func(th *starlark.Thread) {
			overBudget = true
			th.Cancel("step budget exhausted")
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	if err := runCtx.Err(); err != nil {
		return "", 0, &ScriptError{Message: "script execution was cancelled", Err: fmt.Errorf("%w: %w", ErrLimitExceeded, err)}
	}
	stop := context.AfterFunc(runCtx, func() { thread.Cancel(runCtx.Err().Error()) })
	defer stop()

	globals, err := initProgram(prog, thread, ns.predeclared())
	steps = thread.ExecutionSteps()
	output = printed.String()
	switch {
	case overBudget:
		return output, steps, &ScriptError{
			Message: fmt.Sprintf("script exceeded its budget of %d execution steps", e.cfg.MaxSteps),
			Err:     ErrLimitExceeded,
		}
	case err != nil && runCtx.Err() != nil:
		msg := fmt.Sprintf("script exceeded its %s execution timeout", e.cfg.Timeout)
		if errors.Is(runCtx.Err(), context.Canceled) {
			msg = "script execution was cancelled"
		}
		return output, steps, &ScriptError{Message: msg, Err: fmt.Errorf("%w: %w", ErrLimitExceeded, runCtx.Err())}
	case err != nil:
		return output, steps, err
	}

	for _, name := range orderGlobals(f, globals) {
		ns.Bind(name, globals[name])
	}
	return output, steps, nil
}

// initProgram runs the program, turning a panic in a builtin into an error.
func initProgram(prog *starlark.Program, thread *starlark.Thread, predeclared starlark.StringDict) (globals starlark.StringDict, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			globals, err = nil, fmt.Errorf("internal error while running script: %v", rec)
		}
	}()
	return prog.Init(thread, predeclared)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, kernel.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrNoResult):
		return "no_result"
	case errors.Is(err, ErrLimitExceeded):
		return "limit_exceeded"
	default:
		return "script_error"
	}
}

func tierLabel(res *Result) string {
	if res == nil {
		return TierNone.String()
	}
	return res.Tier.String()
}
