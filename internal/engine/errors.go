package engine

import (
	"errors"
	"fmt"
	"strings"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ErrScriptExecution classifies every failure caused by the submitted script.
var ErrScriptExecution = errors.New("script execution failed")

// ErrNoResult means the script ran but produced nothing exportable.
var ErrNoResult = errors.New("No 'result' variable found. Assign the final 3D part to a variable named 'result'.")

// ErrLimitExceeded means the script ran past its deadline or step budget.
var ErrLimitExceeded = errors.New("script exceeded its execution limits")

// ScriptError describes a failed script. errors.Is(err, ErrScriptExecution)
// holds for every ScriptError.
type ScriptError struct {
	Message string
	// Line and Column are 1-based; zero when unknown.
	Line      int
	Column    int
	Backtrace string
	Err       error
}

func (e *ScriptError) Error() string {
	if e == nil {
		return ""
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
	}
	return e.Message
}

func (e *ScriptError) Unwrap() error { return e.Err }

func (e *ScriptError) Is(target error) bool { return target == ErrScriptExecution }

// newScriptError converts anything Starlark returned into a ScriptError,
// keeping the innermost script position.
func newScriptError(err error) *ScriptError {
	var (
		se   *ScriptError
		eval *starlark.EvalError
		syn  syntax.Error
		res  resolve.ErrorList
	)
	switch {
	case errors.As(err, &se):
		return se
	case errors.As(err, &eval):
		out := &ScriptError{Message: eval.Msg, Backtrace: eval.Backtrace(), Err: err}
		for i := 0; i < len(eval.CallStack); i++ {
			pos := eval.CallStack.At(i).Pos
			if pos.Line > 0 {
				out.Line, out.Column = int(pos.Line), int(pos.Col)
				break
			}
		}
		return out
	case errors.As(err, &syn):
		return &ScriptError{Message: syn.Msg, Line: int(syn.Pos.Line), Column: int(syn.Pos.Col), Err: err}
	case errors.As(err, &res):
		msgs := make([]string, 0, len(res))
		for _, e := range res {
			msgs = append(msgs, e.Msg)
		}
		first := res[0].Pos
		return &ScriptError{Message: strings.Join(msgs, "; "), Line: int(first.Line), Column: int(first.Col), Err: err}
	}
	return &ScriptError{Message: err.Error(), Err: err}
}
