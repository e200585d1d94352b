package errors

import (
	"errors"
	"testing"
)

var errWrapped = errors.New("wrapped error")

func TestWrap(t *testing.T) {
	err := Wrap(errWrapped, "Hello, Wrapped!")
	if err.Error() != "Hello, Wrapped!, err: wrapped error" {
		t.Fatalf("error mismatch: %+v", err)
	}
}

func TestKind(t *testing.T) {
	testCases := []struct {
		desc          string
		err           error
		kind          Kind
		unrecoverable bool
	}{
		{"nil", nil, 0, false},
		{"plain", errWrapped, 0, false},
		{"recoverable", Recoverable(errWrapped), KindRecoverable, false},
		{"unrecoverable", Unrecoverable(errWrapped), KindUnrecoverable, true},
		{"wrapped unrecoverable", Wrap(Unrecoverable(errWrapped), "send"), KindUnrecoverable, true},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.kind {
				t.Fatalf("kind mismatch! should be %s but got %s", tc.kind, got)
			}
			if got := IsUnrecoverable(tc.err); got != tc.unrecoverable {
				t.Fatalf("unrecoverable mismatch! should be %v but got %v", tc.unrecoverable, got)
			}
			if tc.err != nil && !errors.Is(tc.err, errWrapped) {
				t.Fatalf("classified error should unwrap to the cause: %+v", tc.err)
			}
		})
	}
}

func TestInvariant(t *testing.T) {
	err := Invariant("unknown instrument: %s", "inst9")
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("invariant error should match ErrInvariant: %+v", err)
	}
	if err.Error() != "state invariant violated: unknown instrument: inst9" {
		t.Fatalf("error mismatch: %+v", err)
	}
}
