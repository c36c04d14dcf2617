package sqlmodel

import (
	"github.com/nlstn/go-sqlmodel/internal/metadata"
	"github.com/nlstn/go-sqlmodel/internal/query"
)

// Err is the classified error returned by statement builders.
type Err = query.Err

// ErrCode classifies an Err.
type ErrCode = query.ErrCode

// Errors reported by builders and the store. Compare with errors.Is.
var (
	ErrModelNotRegistered = query.ErrModelNotRegistered
	ErrMalformedPredicate = query.ErrMalformedPredicate
	ErrUnconditional      = query.ErrUnconditional
	ErrEmptyUpdate        = query.ErrEmptyUpdate
	ErrParamMismatch      = query.ErrParamMismatch
	ErrUnknownColumn      = query.ErrUnknownColumn
	ErrNoExecutor         = query.ErrNoExecutor

	// ErrNotRegistered is returned by Lookup for unknown model types.
	ErrNotRegistered = metadata.ErrNotRegistered
)
