package access

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kailas-cloud/ipregistry/internal/domain"
	domaccess "github.com/kailas-cloud/ipregistry/internal/domain/access"
	domip "github.com/kailas-cloud/ipregistry/internal/domain/ip"
)

// --- Mocks ---

type mockRepo struct {
	grants  map[string]map[int]domaccess.Grant
	saveErr error
	listErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{grants: map[string]map[int]domaccess.Grant{}}
}

func (m *mockRepo) Save(_ context.Context, g *domaccess.Grant) (bool, error) {
	if m.saveErr != nil {
		return false, m.saveErr
	}
	byIndex, ok := m.grants[g.UserAddress()]
	if !ok {
		byIndex = map[int]domaccess.Grant{}
		m.grants[g.UserAddress()] = byIndex
	}
	if _, ok := byIndex[g.IPIndex()]; ok {
		return false, nil
	}
	byIndex[g.IPIndex()] = *g
	return true, nil
}

func (m *mockRepo) ListByUser(_ context.Context, user string) ([]domaccess.Grant, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	byIndex := m.grants[domaccess.NormalizeAddress(user)]
	out := make([]domaccess.Grant, 0, len(byIndex))
	for i := range 16 {
		if g, ok := byIndex[i]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

type mockLedger struct {
	count    int
	countErr error
	failing  map[int]error
}

func (m *mockLedger) Count(_ context.Context) (int, error) { return m.count, m.countErr }

func (m *mockLedger) Get(_ context.Context, index int) (domip.Record, error) {
	if err := m.failing[index]; err != nil {
		return domip.Record{}, err
	}
	return domip.Reconstruct(index, domip.Params{
		Name:        fmt.Sprintf("ip-%d", index),
		Description: fmt.Sprintf("description %d", index),
	}), nil
}

const user = "0x52908400098527886E0F7030069857D2E4169EE7"

func newService(repo *mockRepo, ledger *mockLedger) *Service {
	svc := New(repo, ledger, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

// --- GrantAccess ---

func TestGrantAccess_Idempotent(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockLedger{count: 3})

	created, err := svc.GrantAccess(context.Background(), user, 1, "0xtx")
	if err != nil || !created {
		t.Fatalf("first grant = %v, %v", created, err)
	}
	created, err = svc.GrantAccess(context.Background(), user, 1, "0xother")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("second grant must report existing access")
	}

	g := repo.grants[domaccess.NormalizeAddress(user)][1]
	if g.TxHash() != "0xtx" {
		t.Errorf("original grant overwritten: %q", g.TxHash())
	}
	if !g.CreatedAt().Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected createdAt %v", g.CreatedAt())
	}
}

func TestGrantAccess_Validation(t *testing.T) {
	svc := newService(newMockRepo(), &mockLedger{count: 3})
	ctx := context.Background()

	if _, err := svc.GrantAccess(ctx, "nope", 0, "0xtx"); !errors.Is(err, domain.ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}
	if _, err := svc.GrantAccess(ctx, user, -1, "0xtx"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for negative index, got %v", err)
	}
	if _, err := svc.GrantAccess(ctx, user, 0, " "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for blank tx, got %v", err)
	}
	if _, err := svc.GrantAccess(ctx, user, 3, "0xtx"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound past the ledger end, got %v", err)
	}
}

func TestGrantAccess_StorageErrors(t *testing.T) {
	repo := newMockRepo()
	repo.saveErr = errors.New("connection refused")
	svc := newService(repo, &mockLedger{count: 3})

	if _, err := svc.GrantAccess(context.Background(), user, 0, "0xtx"); err == nil {
		t.Fatal("expected save error")
	}

	svc = newService(newMockRepo(), &mockLedger{countErr: errors.New("rpc down")})
	if _, err := svc.GrantAccess(context.Background(), user, 0, "0xtx"); err == nil {
		t.Fatal("expected ledger error")
	}
}

// --- LicensedIPs ---

func TestLicensedIPs(t *testing.T) {
	repo := newMockRepo()
	ledger := &mockLedger{count: 5, failing: map[int]error{2: errors.New("revert")}}
	svc := newService(repo, ledger)
	for _, i := range []int{4, 0, 2} {
		if _, err := svc.GrantAccess(context.Background(), user, i, "0xtx"); err != nil {
			t.Fatalf("grant %d: %v", i, err)
		}
	}

	got, err := svc.LicensedIPs(context.Background(), user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 licensed IPs (one unreadable), got %d", len(got))
	}
	if got[0].Record.Index() != 0 || got[1].Record.Index() != 4 {
		t.Errorf("unexpected order %d, %d", got[0].Record.Index(), got[1].Record.Index())
	}
	if got[1].Record.Name() != "ip-4" {
		t.Errorf("unexpected record %q", got[1].Record.Name())
	}
}

func TestLicensedIPs_Errors(t *testing.T) {
	svc := newService(newMockRepo(), &mockLedger{count: 1})
	ctx := context.Background()

	if _, err := svc.LicensedIPs(ctx, "0xzz"); !errors.Is(err, domain.ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}
	if _, err := svc.LicensedIPs(ctx, user); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	repo := newMockRepo()
	repo.listErr = errors.New("timeout")
	svc = newService(repo, &mockLedger{count: 1})
	if _, err := svc.LicensedIPs(ctx, user); err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected storage error, got %v", err)
	}
}

func TestLicensedIPs_AllUnreadable(t *testing.T) {
	repo := newMockRepo()
	ledger := &mockLedger{count: 2, failing: map[int]error{1: errors.New("revert")}}
	svc := newService(repo, ledger)
	if _, err := svc.GrantAccess(context.Background(), user, 1, "0xtx"); err != nil {
		t.Fatal(err)
	}

	got, err := svc.LicensedIPs(context.Background(), user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty list, got %d", len(got))
	}
}
