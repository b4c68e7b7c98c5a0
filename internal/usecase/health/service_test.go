package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockLedger struct {
	err error
}

func (m *mockLedger) Count(_ context.Context) (int, error) { return 3, m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockLedger{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["database"] != CheckOK {
		t.Errorf("expected database %q, got %q", CheckOK, r.Checks["database"])
	}
	if r.Checks["ledger"] != CheckOK {
		t.Errorf("expected ledger %q, got %q", CheckOK, r.Checks["ledger"])
	}
}

func TestCheck_DBError(t *testing.T) {
	svc := New(&mockDBPinger{err: errors.New("conn refused")}, &mockLedger{})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["database"] != CheckError {
		t.Errorf("expected database %q, got %q", CheckError, r.Checks["database"])
	}
	if r.Checks["ledger"] != CheckOK {
		t.Errorf("expected ledger %q, got %q", CheckOK, r.Checks["ledger"])
	}
}

func TestCheck_LedgerError(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockLedger{err: errors.New("rpc timeout")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["ledger"] != CheckError {
		t.Errorf("expected ledger %q, got %q", CheckError, r.Checks["ledger"])
	}
}

func TestCheck_AllFailing(t *testing.T) {
	svc := New(&mockDBPinger{err: errors.New("down")}, &mockLedger{err: errors.New("down")})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
}

func TestCheck_NilLedger(t *testing.T) {
	svc := New(&mockDBPinger{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["ledger"]; ok {
		t.Error("ledger check should be absent")
	}
}
