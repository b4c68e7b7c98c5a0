package ipregistry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/ipregistry/internal/db"
	dbRedis "github.com/kailas-cloud/ipregistry/internal/db/redis"
	"github.com/kailas-cloud/ipregistry/internal/domain"
	ledgerrepo "github.com/kailas-cloud/ipregistry/internal/repository/ledger"
	healthuc "github.com/kailas-cloud/ipregistry/internal/usecase/health"
)

const defaultReadinessTimeout = 10 * time.Second

// StoreLedger reads a registry's store-backed ledger. It implements Corpus.
type StoreLedger struct {
	store  db.Store
	ledger *ledgerrepo.Store
	health healthUseCase
}

// OpenStoreLedger connects to the Redis instance behind a registry using the
// "store" ledger driver. keyPrefix must match the registry's storage.key_prefix.
// The provided context is used for the initial readiness check.
func OpenStoreLedger(ctx context.Context, addr, password, keyPrefix string) (*StoreLedger, error) {
	if addr == "" {
		return nil, errors.New("ipregistry: database address required")
	}
	if keyPrefix == "" {
		keyPrefix = domain.DefaultKeyPrefix
	}

	s, err := dbRedis.NewStore(dbRedis.Config{Addrs: []string{addr}, Password: password})
	if err != nil {
		return nil, fmt.Errorf("ipregistry: create redis store: %w", err)
	}
	if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		s.Close()
		return nil, fmt.Errorf("ipregistry: database not ready: %w", err)
	}
	return wireStoreLedger(s, keyPrefix), nil
}

func wireStoreLedger(s db.Store, keyPrefix string) *StoreLedger {
	l := ledgerrepo.NewStore(s, keyPrefix)
	return &StoreLedger{store: s, ledger: l, health: healthuc.New(s, l)}
}

// Count returns the number of ledger records.
func (l *StoreLedger) Count(ctx context.Context) (int, error) {
	n, err := l.ledger.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("ipregistry: count: %w", err)
	}
	return n, nil
}

// Description returns the description of the record at index.
func (l *StoreLedger) Description(ctx context.Context, index int) (string, error) {
	d, err := l.ledger.Description(ctx, index)
	if err != nil {
		return "", fmt.Errorf("ipregistry: description %d: %w", index, err)
	}
	return d, nil
}

// Health checks the database and the ledger counter.
func (l *StoreLedger) Health(ctx context.Context) HealthStatus {
	return healthFromReport(l.health.Check(ctx))
}

// Close releases the connection.
func (l *StoreLedger) Close() {
	if l.store != nil {
		l.store.Close()
	}
}
