package store

import (
	"context"
	"testing"
)

func TestRegisterValidation(t *testing.T) {
	mustPanic := func(name string, fn func()) {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			fn()
		})
	}

	mustPanic("empty_kind", func() { Register("", func(context.Context, Config) (Store, error) { return nil, nil }) })
	mustPanic("nil_factory", func() { Register("x", nil) })

	Register("dup-kind", func(context.Context, Config) (Store, error) { return nil, nil })
	mustPanic("duplicate_kind", func() {
		Register("dup-kind", func(context.Context, Config) (Store, error) { return nil, nil })
	})
}

func TestOpenUnknownKind(t *testing.T) {
	if _, err := Open(context.Background(), Config{Kind: "nope"}); err == nil {
		t.Fatalf("expected error for unregistered kind")
	}
	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing kind")
	}
}
