// Package ip implements IP registration and ledger lookups.
package ip

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ipregistry/internal/domain"
	domip "github.com/kailas-cloud/ipregistry/internal/domain/ip"
	"github.com/kailas-cloud/ipregistry/internal/usecase/dedup"
)

const defaultScanParallelism = 4

// Service handles registration, duplicate checks and ledger queries.
type Service struct {
	repo        Repository
	ledger      Ledger
	writer      LedgerWriter
	corpus      dedup.Corpus
	gate        *dedup.Gate
	parallelism int
	logger      *zap.Logger
}

// New creates an IP service. corpus is the description source for the duplicate gate,
// usually the ledger behind a cache.
func New(repo Repository, ledger Ledger, corpus dedup.Corpus, gate *dedup.Gate, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        repo,
		ledger:      ledger,
		corpus:      corpus,
		gate:        gate,
		parallelism: defaultScanParallelism,
		logger:      logger,
	}
}

// WithWriter enables on-ledger registration.
func (s *Service) WithWriter(w LedgerWriter) *Service {
	s.writer = w
	return s
}

// WithScanParallelism bounds concurrent ledger reads of keyword and owner scans.
func (s *Service) WithScanParallelism(n int) *Service {
	if n > 0 {
		s.parallelism = n
	}
	return s
}

// RegisterOptions tunes a registration.
type RegisterOptions struct {
	// LedgerIndex is set when the client already wrote the record on-ledger. That
	// record is excluded from the duplicate scan and its index is reused.
	LedgerIndex *int
}

// Registration is the outcome of a successful registration.
type Registration struct {
	Record  domip.Record
	TxHash  string
	Verdict dedup.Verdict
}

// Register validates a record, rejects near-duplicates and stores its metadata.
func (s *Service) Register(ctx context.Context, p domip.Params, opts RegisterOptions) (Registration, error) {
	rec, err := domip.New(p)
	if err != nil {
		return Registration{}, err
	}

	var checkOpts []dedup.CheckOption
	if opts.LedgerIndex != nil {
		if err := s.validateIndex(ctx, *opts.LedgerIndex); err != nil {
			return Registration{}, err
		}
		checkOpts = append(checkOpts, dedup.WithExclude(*opts.LedgerIndex))
	}

	verdict, err := s.gate.Check(ctx, rec.Description(), dedup.Indexed(s.corpus), checkOpts...)
	if err != nil {
		return Registration{Verdict: verdict}, fmt.Errorf("duplicate check: %w", err)
	}

	var (
		index    int
		txHash   string
		appended bool
	)
	switch {
	case opts.LedgerIndex != nil:
		index = *opts.LedgerIndex
	case s.writer != nil:
		index, txHash, err = s.writer.Append(ctx, &rec)
		if err != nil {
			return Registration{Verdict: verdict}, fmt.Errorf("append to ledger: %w", err)
		}
		appended = true
	default:
		index, err = s.ledger.Count(ctx)
		if err != nil {
			return Registration{Verdict: verdict}, fmt.Errorf("count ledger records: %w", err)
		}
	}

	placed := rec.WithIndex(index)
	if err := s.repo.Create(ctx, &placed); err != nil {
		if appended {
			s.logger.Error("Ledger record committed but metadata not saved",
				zap.Int("index", index),
				zap.String("tx", txHash),
				zap.Error(err),
			)
			return Registration{Verdict: verdict}, &UnsavedRegistrationError{Index: index, TxHash: txHash, Err: err}
		}
		return Registration{Verdict: verdict}, fmt.Errorf("save record: %w", err)
	}

	s.logger.Info("IP registered",
		zap.Int("index", index),
		zap.String("tx", txHash),
		zap.Int("scanned", verdict.Scanned),
		zap.Float64("best_score", verdict.BestScore),
	)
	return Registration{Record: placed, TxHash: txHash, Verdict: verdict}, nil
}

// CheckDuplicate runs the duplicate gate without registering.
// A zero threshold uses the gate default.
func (s *Service) CheckDuplicate(ctx context.Context, description string, threshold float64) (dedup.Verdict, error) {
	var opts []dedup.CheckOption
	if threshold != 0 {
		opts = append(opts, dedup.WithThreshold(threshold))
	}
	v, err := s.gate.Check(ctx, description, dedup.Indexed(s.corpus), opts...)
	if err != nil {
		return v, fmt.Errorf("duplicate check: %w", err)
	}
	return v, nil
}

// ListAll returns all stored registration metadata.
func (s *Service) ListAll(ctx context.Context) ([]domip.Record, error) {
	recs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return recs, nil
}

// GetByIndex returns a ledger record. rawID must be a decimal index below the ledger count.
func (s *Service) GetByIndex(ctx context.Context, rawID string) (domip.Record, error) {
	index, err := strconv.Atoi(strings.TrimSpace(rawID))
	if err != nil {
		return domip.Record{}, fmt.Errorf("invalid id %q: %w", rawID, domain.ErrInvalidInput)
	}
	if err := s.validateIndex(ctx, index); err != nil {
		return domip.Record{}, err
	}

	rec, err := s.ledger.Get(ctx, index)
	if err != nil {
		return domip.Record{}, fmt.Errorf("get ledger record: %w", err)
	}
	return rec, nil
}

// SearchByKeyword returns ledger records whose description contains keyword, ignoring case.
func (s *Service) SearchByKeyword(ctx context.Context, keyword string) ([]domip.Record, error) {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	if needle == "" {
		return nil, fmt.Errorf("keyword is required: %w", domain.ErrInvalidInput)
	}
	return s.scanLedger(ctx, func(r *domip.Record) bool {
		return strings.Contains(strings.ToLower(r.Description()), needle)
	})
}

// ListByOwner returns ledger records owned by address. No match is ErrNotFound.
func (s *Service) ListByOwner(ctx context.Context, address string) ([]domip.Record, error) {
	if err := domip.ValidateAddress(address); err != nil {
		return nil, err
	}
	recs, err := s.scanLedger(ctx, func(r *domip.Record) bool {
		return domip.SameAddress(r.OwnerAddress(), address)
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no records for owner %s: %w", address, domain.ErrNotFound)
	}
	return recs, nil
}

// TransferOwnership assigns a stored record to a new owner.
func (s *Service) TransferOwnership(
	ctx context.Context, index int, newOwnerAddress string, owner domip.Owner,
) (domip.Record, error) {
	if err := domip.ValidateAddress(newOwnerAddress); err != nil {
		return domip.Record{}, err
	}
	if err := domip.ValidateNewOwner(owner); err != nil {
		return domip.Record{}, err
	}

	rec, err := s.repo.UpdateOwner(ctx, index, owner, newOwnerAddress)
	if err != nil {
		return domip.Record{}, fmt.Errorf("transfer record %d: %w", index, err)
	}
	s.logger.Info("Ownership transferred", zap.Int("index", index), zap.String("owner", newOwnerAddress))
	return rec, nil
}

func (s *Service) validateIndex(ctx context.Context, index int) error {
	count, err := s.ledger.Count(ctx)
	if err != nil {
		return fmt.Errorf("count ledger records: %w", err)
	}
	if index < 0 || index >= count {
		return fmt.Errorf("id %d outside [0, %d): %w", index, count, domain.ErrInvalidInput)
	}
	return nil
}

// scanLedger reads every ledger record with bounded concurrency and keeps those
// matching keep, in index order.
func (s *Service) scanLedger(ctx context.Context, keep func(*domip.Record) bool) ([]domip.Record, error) {
	count, err := s.ledger.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count ledger records: %w", err)
	}

	matched := make([]*domip.Record, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i := range count {
		g.Go(func() error {
			rec, err := s.ledger.Get(gctx, i)
			if err != nil {
				return fmt.Errorf("read ledger record %d: %w", i, err)
			}
			if keep(&rec) {
				matched[i] = &rec
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domip.Record, 0)
	for _, r := range matched {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}
