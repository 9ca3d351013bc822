package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRemoteOperationError_StatusMapping(t *testing.T) {
	err := Remote("fetch", StatusNotFound, "no such note")
	if !errors.Is(err, ErrNotFound) {
		t.Error("404 should match ErrNotFound")
	}
	if errors.Is(err, ErrConflict) {
		t.Error("404 should not match ErrConflict")
	}
	if !strings.Contains(err.Error(), "no such note") {
		t.Errorf("payload missing from %q", err.Error())
	}

	stale := Remote("update", StatusConflict, "stale")
	if !errors.Is(stale, ErrConflict) {
		t.Error("409 should match ErrConflict")
	}
	if errors.Is(stale, ErrAlreadyExists) {
		t.Error("409 on update should not match ErrAlreadyExists")
	}
	if !errors.Is(Remote("create", StatusConflict, "taken"), ErrAlreadyExists) {
		t.Error("409 on create should match ErrAlreadyExists")
	}
}

func TestWrapRemote(t *testing.T) {
	if WrapRemote("x", nil) != nil {
		t.Fatal("nil should stay nil")
	}

	base := errors.New("connection reset")
	wrapped := WrapRemote("list", base)
	var roe *RemoteOperationError
	if !errors.As(wrapped, &roe) {
		t.Fatalf("expected RemoteOperationError, got %T", wrapped)
	}
	if !errors.Is(wrapped, base) {
		t.Error("transport error should stay reachable")
	}

	already := Remote("trash", StatusInternal, "boom")
	if WrapRemote("trash", fmt.Errorf("ctx: %w", already)) == nil {
		t.Fatal("unexpected nil")
	}
	if got := WrapRemote("trash", already); got != already {
		t.Error("existing RemoteOperationError should pass through")
	}

	inv := Invariantf("missing id")
	if got := WrapRemote("create", inv); !errors.Is(got, ErrInvariant) || errors.As(got, &roe) {
		t.Error("invariant violations must not be rewrapped as remote errors")
	}
}
