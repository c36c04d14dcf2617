package query

import (
	"errors"
	"fmt"
)

// ErrCode classifies errors returned by statement construction. Prefer the Err
// variables with errors.Is over comparing codes directly.
type ErrCode string

const (
	ErrCodeUnknown            ErrCode = ""
	ErrCodeModelNotRegistered ErrCode = "ModelNotRegistered"
	ErrCodeMalformedPredicate ErrCode = "MalformedPredicate"
	ErrCodeUnconditional      ErrCode = "Unconditional"
	ErrCodeEmptyUpdate        ErrCode = "EmptyUpdate"
	ErrCodeParamMismatch      ErrCode = "ParamMismatch"
	ErrCodeUnknownColumn      ErrCode = "UnknownColumn"
	ErrCodeNoExecutor         ErrCode = "NoExecutor"
)

// Blank error values used with errors.Is:
//
//	if errors.Is(err, query.ErrMalformedPredicate) {
//		// reject input
//	}
//
// Errors returned by this package carry additional detail and compare by
// Cause first, then by Code.
var (
	ErrModelNotRegistered = Err{Code: ErrCodeModelNotRegistered, Cause: errors.New("model not registered")}
	ErrMalformedPredicate = Err{Code: ErrCodeMalformedPredicate, Cause: errors.New("malformed predicate")}
	ErrUnconditional      = Err{Code: ErrCodeUnconditional, Cause: errors.New("statement has no identity predicate")}
	ErrEmptyUpdate        = Err{Code: ErrCodeEmptyUpdate, Cause: errors.New("no columns to update")}
	ErrParamMismatch      = Err{Code: ErrCodeParamMismatch, Cause: errors.New("placeholder count does not match params")}
	ErrUnknownColumn      = Err{Code: ErrCodeUnknownColumn, Cause: errors.New("unknown column")}
	ErrNoExecutor         = Err{Code: ErrCodeNoExecutor, Cause: errors.New("no executor configured")}
)

// Err is the error type returned by this package.
type Err struct {
	Code  ErrCode
	While string
	Cause error
}

func (e Err) Error() string {
	if e == (Err{}) {
		return ""
	}
	msg := "[sqlmodel]"
	if e.Code != ErrCodeUnknown {
		msg += " " + string(e.Code)
	}
	if e.While != "" {
		msg += " while " + e.While
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is reports whether other matches either the cause or the code of e.
func (e Err) Is(other error) bool {
	if e.Cause != nil && errors.Is(e.Cause, other) {
		return true
	}
	var err Err
	return errors.As(other, &err) && err.Code == e.Code && e.Code != ErrCodeUnknown
}

func (e Err) Unwrap() error {
	return e.Cause
}

func (e Err) while(while string) Err {
	e.While = while
	return e
}

func (e Err) because(cause error) Err {
	e.Cause = cause
	return e
}

func (e Err) becausef(format string, args ...any) Err {
	e.Cause = fmt.Errorf(format, args...)
	return e
}
