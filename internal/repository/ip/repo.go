package ip

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/ipregistry/internal/db"
	"github.com/kailas-cloud/ipregistry/internal/domain"
	domip "github.com/kailas-cloud/ipregistry/internal/domain/ip"
)

const mgetChunk = 100

// store is the consumer interface for IP metadata (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONSetNX(ctx context.Context, key string, data []byte) (bool, error)
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	JSONMGet(ctx context.Context, keys []string, path string) ([][]byte, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo stores registration metadata keyed by ledger index.
type Repo struct {
	store  store
	prefix string
}

// New creates an IP metadata repository. Keys are {prefix}ip:{index}.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix + "ip:"}
}

// Create stores a record. A record already stored at the same index is an ErrAlreadyExists.
func (r *Repo) Create(ctx context.Context, rec *domip.Record) error {
	if rec.Index() < 0 {
		return fmt.Errorf("record has no index: %w", domain.ErrInvalidInput)
	}
	data, err := Encode(rec)
	if err != nil {
		return err
	}

	key := r.key(rec.Index())
	created, err := r.store.JSONSetNX(ctx, key, data)
	if err != nil {
		return fmt.Errorf("json.set %s: %w", key, err)
	}
	if !created {
		return fmt.Errorf("record %d: %w", rec.Index(), domain.ErrAlreadyExists)
	}
	return nil
}

// Get returns the record at index.
func (r *Repo) Get(ctx context.Context, index int) (domip.Record, error) {
	key := r.key(index)
	raw, err := r.store.JSONGet(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domip.Record{}, fmt.Errorf("record %d: %w", index, domain.ErrNotFound)
		}
		return domip.Record{}, fmt.Errorf("json.get %s: %w", key, err)
	}
	return Decode(raw)
}

// List returns every stored record ordered by index.
func (r *Repo) List(ctx context.Context) ([]domip.Record, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}

	type indexedKey struct {
		index int
		key   string
	}
	items := make([]indexedKey, 0, len(keys))
	for _, k := range keys {
		idx, err := strconv.Atoi(strings.TrimPrefix(k, r.prefix))
		if err != nil {
			continue
		}
		items = append(items, indexedKey{index: idx, key: k})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].index < items[j].index })

	out := make([]domip.Record, 0, len(items))
	for start := 0; start < len(items); start += mgetChunk {
		end := min(start+mgetChunk, len(items))
		chunk := make([]string, 0, end-start)
		for _, it := range items[start:end] {
			chunk = append(chunk, it.key)
		}

		docs, err := r.store.JSONMGet(ctx, chunk, ".")
		if err != nil {
			return nil, fmt.Errorf("json.mget records: %w", err)
		}
		for i, raw := range docs {
			if raw == nil {
				continue // deleted between SCAN and MGET
			}
			rec, err := Decode(raw)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", chunk[i], err)
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// UpdateOwner replaces the owner of a stored record and returns the updated record.
func (r *Repo) UpdateOwner(ctx context.Context, index int, owner domip.Owner, address string) (domip.Record, error) {
	rec, err := r.Get(ctx, index)
	if err != nil {
		return domip.Record{}, err
	}
	updated := rec.WithOwner(owner, address)

	data, err := Encode(&updated)
	if err != nil {
		return domip.Record{}, err
	}
	key := r.key(index)
	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return domip.Record{}, fmt.Errorf("json.set %s: %w", key, err)
	}
	return updated, nil
}

func (r *Repo) key(index int) string {
	return r.prefix + strconv.Itoa(index)
}
