package xerrors

import (
	"errors"
	"testing"
)

func TestWrapAndKindOf(t *testing.T) {
	base := errors.New("tile read failed")
	wrapped := Wrap(IoError, base, "opening street tile")
	if KindOf(wrapped) != IoError {
		t.Fatalf("expected IoError, got %v", KindOf(wrapped))
	}
	if !Is(wrapped, IoError) {
		t.Fatalf("expected Is(wrapped, IoError) to be true")
	}
	if Is(wrapped, NoRoute) {
		t.Fatalf("expected Is(wrapped, NoRoute) to be false")
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if Wrap(IoError, nil, "x") != nil {
		t.Fatalf("expected nil")
	}
}

func TestKindOfUnknown(t *testing.T) {
	if KindOf(errors.New("plain")) != Unknown {
		t.Fatalf("expected Unknown for a plain error")
	}
}
