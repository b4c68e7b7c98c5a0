// Package ledger implements the ledger on top of the document store, for local runs
// and deployments without a chain.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/kailas-cloud/ipregistry/internal/db"
	"github.com/kailas-cloud/ipregistry/internal/domain"
	domip "github.com/kailas-cloud/ipregistry/internal/domain/ip"
	"github.com/kailas-cloud/ipregistry/internal/metrics"
	iprepo "github.com/kailas-cloud/ipregistry/internal/repository/ip"
)

const driver = "store"

// maxAppendAttempts bounds retries when concurrent writers keep advancing the counter.
const maxAppendAttempts = 16

// store is the consumer interface for the store ledger (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	JSONAppend(ctx context.Context, counterKey string, expected int64, docKey string, data []byte) (bool, error)
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
}

// Store is an append-only ledger: a counter plus one JSON document per index.
// The counter only advances together with its document, so every index below Count is readable.
type Store struct {
	store      store
	prefix     string
	counterKey string
}

// NewStore creates a store-backed ledger. Keys are {prefix}ledger:{index} and {prefix}ledger:count.
func NewStore(s store, prefix string) *Store {
	return &Store{store: s, prefix: prefix + "ledger:", counterKey: prefix + "ledger:count"}
}

// Count returns the number of appended records.
func (l *Store) Count(ctx context.Context) (n int, err error) {
	defer observe("count", time.Now(), &err)
	return l.count(ctx)
}

func (l *Store) count(ctx context.Context) (int, error) {
	raw, err := l.store.Get(ctx, l.counterKey)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get %s: %w", l.counterKey, err)
	}
	v, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", l.counterKey, err)
	}
	return v, nil
}

// Get returns the record at index.
func (l *Store) Get(ctx context.Context, index int) (rec domip.Record, err error) {
	defer observe("get", time.Now(), &err)

	raw, err := l.store.JSONGet(ctx, l.key(index))
	if err != nil {
		return domip.Record{}, l.readErr(index, err)
	}
	return iprepo.Decode(raw)
}

// Description returns only the description of the record at index.
func (l *Store) Description(ctx context.Context, index int) (desc string, err error) {
	defer observe("description", time.Now(), &err)

	raw, err := l.store.JSONGet(ctx, l.key(index), "$.description")
	if err != nil {
		return "", l.readErr(index, err)
	}
	var vals []string
	if err := json.Unmarshal(raw, &vals); err != nil {
		return "", fmt.Errorf("unmarshal description %d: %w", index, err)
	}
	if len(vals) == 0 {
		return "", fmt.Errorf("record %d has no description: %w", index, domain.ErrNotFound)
	}
	return vals[0], nil
}

// Append writes the record at the next index and publishes it in one step. The
// returned hash is the Keccak-256 of the stored document.
func (l *Store) Append(ctx context.Context, rec *domip.Record) (index int, txHash string, err error) {
	defer observe("append", time.Now(), &err)

	for range maxAppendAttempts {
		index, err = l.count(ctx)
		if err != nil {
			return 0, "", fmt.Errorf("reserve ledger index: %w", err)
		}

		placed := rec.WithIndex(index)
		data, err := iprepo.Encode(&placed)
		if err != nil {
			return 0, "", err
		}
		written, err := l.store.JSONAppend(ctx, l.counterKey, int64(index), l.key(index), data)
		if err != nil {
			return 0, "", fmt.Errorf("write ledger record %d: %w", index, err)
		}
		if written {
			return index, crypto.Keccak256Hash(data).Hex(), nil
		}
	}
	return 0, "", fmt.Errorf("append ledger record: index still contended after %d attempts", maxAppendAttempts)
}

func (l *Store) key(index int) string {
	return l.prefix + strconv.Itoa(index)
}

func (l *Store) readErr(index int, err error) error {
	if errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("ledger record %d: %w", index, domain.ErrNotFound)
	}
	return fmt.Errorf("read ledger record %d: %w", index, err)
}

func observe(method string, start time.Time, errp *error) {
	status := "ok"
	if *errp != nil {
		status = "error"
	}
	metrics.LedgerRequestsTotal.WithLabelValues(driver, method, status).Inc()
	metrics.LedgerRequestDuration.WithLabelValues(driver, method).Observe(time.Since(start).Seconds())
}
