package library

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("handler: %w", NotFound("GetBookByID", "book 7"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound match for %v", err)
	}
	if errors.Is(err, ErrStorage) {
		t.Fatalf("did not expect ErrStorage match for %v", err)
	}
	if KindOf(err) != KindNotFound {
		t.Fatalf("KindOf = %v", KindOf(err))
	}
}

func TestStorageUnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Storage("AddBook", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable")
	}
	if !errors.Is(err, ErrStorage) {
		t.Fatal("expected ErrStorage")
	}
	if got, want := err.Error(), "AddBook: storage: connection reset"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if Storage("noop", nil) != nil {
		t.Fatal("Storage(nil) should be nil")
	}
}

func TestCodeUsesKind(t *testing.T) {
	var coder interface{ Code() string }
	if !errors.As(Permission("upload.start"), &coder) {
		t.Fatal("expected Code() implementation")
	}
	if coder.Code() != "permission_denied" {
		t.Fatalf("Code() = %q", coder.Code())
	}
}
