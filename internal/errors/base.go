package errors

import (
	"errors"
	"fmt"
)

var (
	_ error = (*wrappedError)(nil)
	_ error = (*engineError)(nil)
)

// ErrInvariant marks a broken state invariant, e.g. an unknown instrument key.
var ErrInvariant = errors.New("state invariant violated")

func New(text string) error {
	return errors.New(text)
}

func Wrap(err error, text string) error {
	if err == nil {
		return nil
	}

	if len(text) == 0 {
		return err
	}

	return &wrappedError{
		err: err,
		msg: text,
	}
}

type wrappedError struct {
	err error
	msg string
}

const sep = ", err: "

func (err wrappedError) Error() string {
	if err.err == nil {
		return err.msg
	}

	return err.msg + sep + err.err.Error()
}

func (err wrappedError) Unwrap() error {
	if err.err == nil {
		return errors.New(err.msg)
	}

	return err.err
}

// Kind classifies an engine error.
type Kind uint8

const (
	KindRecoverable Kind = iota + 1
	KindUnrecoverable
)

func (k Kind) String() string {
	switch k {
	case KindRecoverable:
		return "recoverable"
	case KindUnrecoverable:
		return "unrecoverable"
	default:
		return "unknown"
	}
}

type engineError struct {
	kind Kind
	err  error
}

func (err engineError) Error() string {
	return err.kind.String() + sep + err.err.Error()
}

func (err engineError) Unwrap() error {
	return err.err
}

// Recoverable marks err as recorded-but-continue, e.g. one failed send in a batch.
func Recoverable(err error) error {
	if err == nil {
		return nil
	}
	return &engineError{kind: KindRecoverable, err: err}
}

// Unrecoverable marks err as aborting the current processing step.
func Unrecoverable(err error) error {
	if err == nil {
		return nil
	}
	return &engineError{kind: KindUnrecoverable, err: err}
}

// KindOf returns the classification of err, 0 when unclassified.
func KindOf(err error) Kind {
	var e *engineError
	if errors.As(err, &e) {
		return e.kind
	}
	return 0
}

// IsUnrecoverable reports whether err was classified as unrecoverable.
func IsUnrecoverable(err error) bool {
	return KindOf(err) == KindUnrecoverable
}

// Invariant builds an ErrInvariant error.
func Invariant(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
