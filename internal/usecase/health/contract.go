package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// LedgerCounter is the cheapest ledger read, used as a liveness probe.
type LedgerCounter interface {
	Count(ctx context.Context) (int, error)
}
