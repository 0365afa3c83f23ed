package stage

import (
	"errors"
	"strings"
	"testing"
)

func TestGuard_PassesThroughResult(t *testing.T) {
	t.Parallel()

	got := Guard("fallback", func() Result[string] { return OK("live") })
	if got.IsDegraded() || got.Value != "live" {
		t.Errorf("want ok/live, got %s/%s", got.Status, got.Value)
	}

	cause := errors.New("boom")
	got = Guard("fallback", func() Result[string] { return Degraded("fb", cause) })
	if !got.IsDegraded() || !errors.Is(got.Err, cause) || got.Value != "fb" {
		t.Errorf("degraded result not passed through: %+v", got)
	}
}

func TestGuard_RecoversPanic(t *testing.T) {
	t.Parallel()

	got := Guard(42, func() Result[int] { panic("nil map write") })
	if !got.IsDegraded() {
		t.Fatalf("want degraded status, got %s", got.Status)
	}
	if got.Value != 42 {
		t.Errorf("want fallback 42, got %d", got.Value)
	}
	if got.Err == nil || !strings.Contains(got.Err.Error(), "nil map write") {
		t.Errorf("panic value should be carried in error, got %v", got.Err)
	}
}
