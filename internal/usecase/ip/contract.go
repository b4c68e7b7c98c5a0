package ip

import (
	"context"

	domip "github.com/kailas-cloud/ipregistry/internal/domain/ip"
)

// Repository stores off-ledger registration metadata.
type Repository interface {
	Create(ctx context.Context, rec *domip.Record) error
	Get(ctx context.Context, index int) (domip.Record, error)
	List(ctx context.Context) ([]domip.Record, error)
	UpdateOwner(ctx context.Context, index int, owner domip.Owner, address string) (domip.Record, error)
}

// Ledger reads the append-only record ledger.
type Ledger interface {
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, index int) (domip.Record, error)
}

// LedgerWriter appends records to the ledger. Optional.
type LedgerWriter interface {
	Append(ctx context.Context, rec *domip.Record) (index int, txHash string, err error)
}
