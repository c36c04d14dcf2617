package query

import (
	"context"
	"fmt"
)

// Result is the outcome of executing one DbQuery. Rows and Columns are only
// filled for SELECT statements; RowsAffected and LastInsertID only for the
// others, and only when the driver reports them.
type Result struct {
	Type         StatementType
	Columns      []string
	Rows         []map[string]any
	RowsAffected int64
	LastInsertID int64
}

// Executor runs a built statement. Implementations live in the gateway package.
type Executor interface {
	Query(ctx context.Context, q DbQuery) (*Result, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, q DbQuery) (*Result, error)

func (f ExecutorFunc) Query(ctx context.Context, q DbQuery) (*Result, error) {
	return f(ctx, q)
}

// Outcome is the single value delivered by Go.
type Outcome struct {
	Result *Result
	Err    error
}

// Go executes q in its own goroutine. The returned channel yields exactly one
// Outcome and is then closed; it is buffered so an abandoned receiver does not
// leak the goroutine.
func Go(ctx context.Context, exec Executor, q DbQuery) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		if exec == nil {
			out <- Outcome{Err: ErrNoExecutor}
			return
		}
		res, err := exec.Query(ctx, q)
		out <- Outcome{Result: res, Err: err}
	}()
	return out
}

// ExecError wraps a driver error together with the statement that caused it.
type ExecError struct {
	Query DbQuery
	Err   error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("executing %s on %s: %v", e.Query.Type, e.Query.Table, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
