package dedup

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/kailas-cloud/ipregistry/internal/domain"
)

// Indexed adapts a Corpus to a Source. Open snapshots Count, so records appended
// afterwards are not visited by that cursor.
func Indexed(c Corpus) Source {
	return indexedSource{corpus: c}
}

type indexedSource struct {
	corpus Corpus
}

func (s indexedSource) Open(ctx context.Context) (Cursor, error) {
	n, err := s.corpus.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	if n < 0 {
		return nil, fmt.Errorf("negative record count %d", n)
	}
	return &indexedCursor{corpus: s.corpus, n: int64(n)}, nil
}

type indexedCursor struct {
	corpus Corpus
	n      int64
	next   atomic.Int64
}

// Next claims the next index atomically, so concurrent callers never read the same record.
func (c *indexedCursor) Next(ctx context.Context) (Entry, bool, error) {
	i := c.next.Add(1) - 1
	if i >= c.n {
		return Entry{}, false, nil
	}
	text, err := c.corpus.Description(ctx, int(i))
	if err != nil {
		return Entry{}, false, fmt.Errorf("read record %d: %w", i, err)
	}
	return Entry{Index: int(i), Text: text}, true, nil
}

// SliceCorpus is an in-memory Corpus.
type SliceCorpus []string

// Count returns the number of descriptions.
func (s SliceCorpus) Count(_ context.Context) (int, error) { return len(s), nil }

// Description returns the description at index.
func (s SliceCorpus) Description(_ context.Context, index int) (string, error) {
	if index < 0 || index >= len(s) {
		return "", fmt.Errorf("record %d: %w", index, domain.ErrNotFound)
	}
	return s[index], nil
}
