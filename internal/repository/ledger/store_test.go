package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/kailas-cloud/ipregistry/internal/db"
	"github.com/kailas-cloud/ipregistry/internal/domain"
	domip "github.com/kailas-cloud/ipregistry/internal/domain/ip"
	iprepo "github.com/kailas-cloud/ipregistry/internal/repository/ip"
	"github.com/kailas-cloud/ipregistry/internal/usecase/dedup"
)

// mockStore emulates the counter and JSON documents, including "$.description" reads.
type mockStore struct {
	kv    map[string][]byte
	docs  map[string][]byte
	getFn func(ctx context.Context, key string) ([]byte, error)
	// appendFn intercepts JSONAppend when it reports handled.
	appendFn func(ctx context.Context, counterKey string, expected int64) (handled, ok bool, err error)
}

func newMockStore() *mockStore {
	return &mockStore{kv: map[string][]byte{}, docs: map[string][]byte{}}
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	v, ok := m.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

// JSONAppend mirrors the compare-and-append script: nothing is written unless the
// counter matches and the write succeeds.
func (m *mockStore) JSONAppend(ctx context.Context, counterKey string, expected int64, docKey string, data []byte) (bool, error) {
	if m.appendFn != nil {
		if handled, ok, err := m.appendFn(ctx, counterKey, expected); handled {
			return ok, err
		}
	}
	n, _ := strconv.ParseInt(string(m.kv[counterKey]), 10, 64)
	if n != expected {
		return false, nil
	}
	m.docs[docKey] = data
	m.kv[counterKey] = []byte(strconv.FormatInt(n+1, 10))
	return true, nil
}

func (m *mockStore) JSONGet(_ context.Context, key string, paths ...string) ([]byte, error) {
	d, ok := m.docs[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	if len(paths) == 1 && strings.HasPrefix(paths[0], "$.") {
		var obj map[string]any
		if err := json.Unmarshal(d, &obj); err != nil {
			return nil, err
		}
		return json.Marshal([]any{obj[strings.TrimPrefix(paths[0], "$.")]})
	}
	return d, nil
}

func newRecord(t *testing.T, description string) domip.Record {
	t.Helper()
	rec, err := domip.New(domip.Params{
		Name:               "Record",
		Description:        description,
		Owner:              domip.Owner{Name: "Ada", Email: "ada@example.com", PhysicalAddress: "1 Main St"},
		OwnerAddress:       "0x52908400098527886E0F7030069857D2E4169EE7",
		IPType:             "patent",
		DateOfCreation:     "2024-01-01",
		DateOfRegistration: "2024-01-02",
		License:            []string{"commercial"},
		LicenseIncentive:   []float64{2},
	})
	if err != nil {
		t.Fatalf("build record: %v", err)
	}
	return rec
}

func TestStore_EmptyCount(t *testing.T) {
	l := NewStore(newMockStore(), "ipreg:")
	n, err := l.Count(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected 0, nil; got %d, %v", n, err)
	}
}

func TestStore_AppendAssignsSequentialIndices(t *testing.T) {
	ms := newMockStore()
	l := NewStore(ms, "ipreg:")
	ctx := context.Background()

	for i, desc := range []string{"first", "second", "third"} {
		rec := newRecord(t, desc)
		idx, hash, err := l.Append(ctx, &rec)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if idx != i {
			t.Errorf("append %d got index %d", i, idx)
		}
		if !strings.HasPrefix(hash, "0x") || len(hash) != 66 {
			t.Errorf("unexpected tx hash %q", hash)
		}
	}

	n, _ := l.Count(ctx)
	if n != 3 {
		t.Fatalf("expected count 3, got %d", n)
	}
	if _, ok := ms.docs["ipreg:ledger:2"]; !ok {
		t.Errorf("expected key ipreg:ledger:2, got %v", ms.docs)
	}

	desc, err := l.Description(ctx, 1)
	if err != nil || desc != "second" {
		t.Errorf("Description(1) = %q, %v", desc, err)
	}

	rec, err := l.Get(ctx, 2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Index() != 2 || rec.Description() != "third" {
		t.Errorf("unexpected record %+v", rec.Params())
	}
}

func TestStore_MissingRecord(t *testing.T) {
	l := NewStore(newMockStore(), "ipreg:")
	if _, err := l.Get(context.Background(), 0); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if _, err := l.Description(context.Background(), 0); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Description: expected ErrNotFound, got %v", err)
	}
}

func TestStore_CountError(t *testing.T) {
	ms := newMockStore()
	ms.getFn = func(context.Context, string) ([]byte, error) { return nil, errors.New("timeout") }
	if _, err := NewStore(ms, "ipreg:").Count(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestStore_FailedAppendLeavesNoGap(t *testing.T) {
	ms := newMockStore()
	failures := 1
	ms.appendFn = func(context.Context, string, int64) (bool, bool, error) {
		if failures > 0 {
			failures--
			return true, false, errors.New("JSON.SET: connection reset")
		}
		return false, false, nil
	}
	l := NewStore(ms, "ipreg:")
	ctx := context.Background()

	rec := newRecord(t, "A method for brewing coffee using pressure")
	if _, _, err := l.Append(ctx, &rec); err == nil {
		t.Fatal("expected append error")
	}
	if n, _ := l.Count(ctx); n != 0 {
		t.Fatalf("failed append must not publish an index, count = %d", n)
	}

	gate, err := dedup.New(0.9, nil)
	if err != nil {
		t.Fatal(err)
	}
	for range 3 {
		if _, err := gate.Check(ctx, "A recipe for baking bread", dedup.Indexed(l)); err != nil {
			t.Fatalf("check after failed append: %v", err)
		}
	}

	idx, _, err := l.Append(ctx, &rec)
	if err != nil || idx != 0 {
		t.Fatalf("retry got %d, %v", idx, err)
	}
	if _, err := gate.Check(ctx, "A recipe for baking bread", dedup.Indexed(l)); err != nil {
		t.Fatalf("check after retry: %v", err)
	}
}

func TestStore_AppendRetriesWhenCounterMoves(t *testing.T) {
	ms := newMockStore()
	l := NewStore(ms, "ipreg:")
	ctx := context.Background()

	// Another writer takes index 0 between our count read and our append.
	raced := false
	ms.appendFn = func(_ context.Context, counterKey string, _ int64) (bool, bool, error) {
		if raced {
			return false, false, nil
		}
		raced = true
		other := newRecord(t, "other writer")
		placed := other.WithIndex(0)
		data, _ := iprepo.Encode(&placed)
		ms.docs["ipreg:ledger:0"] = data
		ms.kv[counterKey] = []byte("1")
		return true, false, nil
	}

	rec := newRecord(t, "mine")
	idx, _, err := l.Append(ctx, &rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != 1 {
		t.Errorf("expected index 1, got %d", idx)
	}
	if d, _ := l.Description(ctx, 0); d != "other writer" {
		t.Errorf("index 0 overwritten: %q", d)
	}
	if n, _ := l.Count(ctx); n != 2 {
		t.Errorf("expected count 2, got %d", n)
	}
}

func TestStore_AppendGivesUpUnderContention(t *testing.T) {
	ms := newMockStore()
	ms.appendFn = func(context.Context, string, int64) (bool, bool, error) { return true, false, nil }
	l := NewStore(ms, "ipreg:")

	rec := newRecord(t, "mine")
	if _, _, err := l.Append(context.Background(), &rec); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
}
