package errors

import (
	"errors"
	"testing"
)

var errTransport = errors.New("transport full")

func BenchmarkClassify(b *testing.B) {
	b.Run("recoverable", func(b *testing.B) {
		for b.Loop() {
			_ = Recoverable(errTransport)
		}
	})

	b.Run("unrecoverable nil", func(b *testing.B) {
		for b.Loop() {
			_ = Unrecoverable(nil)
		}
	})
}

func BenchmarkKindOf(b *testing.B) {
	err := Wrap(Unrecoverable(errTransport), "send open request")
	for b.Loop() {
		_ = IsUnrecoverable(err)
	}
}
