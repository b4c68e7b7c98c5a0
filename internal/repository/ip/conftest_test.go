package ip

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/kailas-cloud/ipregistry/internal/db"
	domip "github.com/kailas-cloud/ipregistry/internal/domain/ip"
)

// mockStore implements the consumer interface for tests with an in-memory map.
type mockStore struct {
	docs map[string][]byte

	jsonSetNXFn func(ctx context.Context, key string, data []byte) (bool, error)
	jsonGetFn   func(ctx context.Context, key string) ([]byte, error)
	scanFn      func(ctx context.Context, pattern string) ([]string, error)
	mgetCalls   int
}

func newMockStore() *mockStore {
	return &mockStore{docs: map[string][]byte{}}
}

func (m *mockStore) JSONSet(_ context.Context, key, _ string, data []byte) error {
	m.docs[key] = data
	return nil
}

func (m *mockStore) JSONSetNX(ctx context.Context, key string, data []byte) (bool, error) {
	if m.jsonSetNXFn != nil {
		return m.jsonSetNXFn(ctx, key, data)
	}
	if _, ok := m.docs[key]; ok {
		return false, nil
	}
	m.docs[key] = data
	return true, nil
}

func (m *mockStore) JSONGet(ctx context.Context, key string, _ ...string) ([]byte, error) {
	if m.jsonGetFn != nil {
		return m.jsonGetFn(ctx, key)
	}
	d, ok := m.docs[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return d, nil
}

func (m *mockStore) JSONMGet(_ context.Context, keys []string, _ string) ([][]byte, error) {
	m.mgetCalls++
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.docs[k]
	}
	return out, nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.docs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys) // lexical, so "10" sorts before "2"
	return keys, nil
}

func testRecord(t *testing.T, index int, description string) domip.Record {
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
		LicenseIncentive:   []float64{1.5},
		Tags:               []string{"tag"},
	})
	if err != nil {
		t.Fatalf("build record: %v", err)
	}
	return rec.WithIndex(index)
}
