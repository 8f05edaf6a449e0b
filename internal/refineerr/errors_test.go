package refineerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindStorageError, "append failed", cause)

	if !errors.Is(err, cause) {
		t.Error("expected wrapped error to unwrap to cause")
	}
	if KindOf(err) != KindStorageError {
		t.Errorf("KindOf = %v, want %v", KindOf(err), KindStorageError)
	}
}

func TestKindOfUntyped(t *testing.T) {
	if KindOf(errors.New("plain")) != KindInternal {
		t.Error("plain errors should classify as internal")
	}
}

func TestAsThroughWrapping(t *testing.T) {
	inner := New(KindTimeout, "deadline exceeded")
	outer := fmt.Errorf("request failed: %w", inner)

	got, ok := As(outer)
	if !ok {
		t.Fatal("expected to extract *Error through fmt.Errorf wrapping")
	}
	if got.Kind != KindTimeout {
		t.Errorf("Kind = %v, want %v", got.Kind, KindTimeout)
	}
}
