package dedup

import "context"

// Corpus exposes existing descriptions by sequential index in [0, Count).
type Corpus interface {
	Count(ctx context.Context) (int, error)
	Description(ctx context.Context, index int) (string, error)
}

// Entry is one existing description and its corpus position.
type Entry struct {
	Index int
	Text  string
}

// Cursor walks a corpus snapshot. Next returns ok=false once the snapshot is exhausted.
// Cursors handed to a parallel Gate must be safe for concurrent Next calls.
type Cursor interface {
	Next(ctx context.Context) (entry Entry, ok bool, err error)
}

// Source opens cursors over existing descriptions.
type Source interface {
	Open(ctx context.Context) (Cursor, error)
}
