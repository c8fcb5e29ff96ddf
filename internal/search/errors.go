package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/withObsrvr/productive-numbers/internal/config"
)

// Kind classifies search failures.
type Kind int

const (
	KindInternal Kind = iota
	KindConfig
	KindResultSink
	KindFinalCheckpoint
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindResultSink:
		return "result_sink"
	case KindFinalCheckpoint:
		return "final_checkpoint"
	case KindCanceled:
		return "canceled"
	default:
		return "internal"
	}
}

// Error is a classified search failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf classifies err. Unclassified errors are KindInternal, except
// configuration and cancellation errors, which are recognized by sentinel.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, config.ErrInvalid):
		return KindConfig
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindInternal
	}
}
