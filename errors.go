package collective

import (
	"errors"

	"github.com/ygrebnov/collective/backend"
)

const Namespace = backend.Namespace

var (
	ErrConfiguration  = errors.New(Namespace + ": invalid configuration")
	ErrArityMismatch  = errors.New(Namespace + ": number of functions does not match number of argument sets")
	ErrExecutorClosed = errors.New(Namespace + ": executor is closed")
	ErrCancelled      = errors.New(Namespace + ": batch cancelled")

	ErrSerialization    = backend.ErrSerialization
	ErrTaskPanicked     = backend.ErrPanicked
	ErrUnknownProcedure = backend.ErrUnknownProcedure
)
