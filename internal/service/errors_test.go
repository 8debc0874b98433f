package service

import (
	"errors"
	"strings"
	"testing"

	"dispatch-service/internal/sheet"
)

func TestOpErrorUnwrapsToGatewaySentinel(t *testing.T) {
	err := wrapOp("mark done", sheet.TableAssignments, "Station X/Pump leak", sheet.ErrRateLimited)
	if !errors.Is(err, sheet.ErrRateLimited) {
		t.Fatalf("errors.Is(%v, ErrRateLimited) = false", err)
	}
	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Table != sheet.TableAssignments {
		t.Fatalf("expected *OpError for assignments, got %#v", err)
	}
	if !strings.Contains(err.Error(), "Station X/Pump leak") {
		t.Fatalf("message lacks key: %s", err)
	}

	again := wrapOp("outer", sheet.TableFaults, "", err)
	if again != err {
		t.Fatal("already wrapped errors must keep the innermost context")
	}
	if wrapOp("noop", sheet.TableFaults, "", nil) != nil {
		t.Fatal("nil error must stay nil")
	}
}
