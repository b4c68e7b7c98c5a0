package access

import (
	"context"

	domaccess "github.com/kailas-cloud/ipregistry/internal/domain/access"
	domip "github.com/kailas-cloud/ipregistry/internal/domain/ip"
)

// Repository persists access grants.
type Repository interface {
	Save(ctx context.Context, g *domaccess.Grant) (bool, error)
	ListByUser(ctx context.Context, userAddress string) ([]domaccess.Grant, error)
}

// Ledger resolves granted IPs.
type Ledger interface {
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, index int) (domip.Record, error)
}
