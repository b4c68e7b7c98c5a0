package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ipregistry/internal/domain"
	"github.com/kailas-cloud/ipregistry/internal/domain/similarity"
	"github.com/kailas-cloud/ipregistry/internal/metrics"
)

// Verdict summarizes a completed scan.
type Verdict struct {
	Scanned   int     // records compared against the candidate
	BestIndex int     // -1 when nothing was scored above zero
	BestScore float64 // highest score observed
}

// Gate rejects descriptions that are near-duplicates of existing records.
// A Gate holds no per-check state and is safe for concurrent use.
type Gate struct {
	threshold float64
	workers   int
	logger    *zap.Logger
}

// Option configures a Gate at construction.
type Option func(*Gate)

// WithParallelism scores up to n records concurrently. With n > 1 the first duplicate
// found by any worker is reported, which is not necessarily the lowest index.
func WithParallelism(n int) Option {
	return func(g *Gate) {
		if n > 1 {
			g.workers = n
		}
	}
}

// New creates a Gate. threshold must lie in (0, 1].
func New(threshold float64, logger *zap.Logger, opts ...Option) (*Gate, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{threshold: threshold, workers: 1, logger: logger}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// Threshold returns the default threshold.
func (g *Gate) Threshold() float64 { return g.threshold }

// CheckOption tunes a single Check call.
type CheckOption func(*checkConfig)

type checkConfig struct {
	threshold float64
	exclude   int
}

// WithThreshold overrides the gate threshold for one check.
func WithThreshold(t float64) CheckOption {
	return func(c *checkConfig) { c.threshold = t }
}

// WithExclude skips the record at index, for callers that wrote the candidate to the
// ledger before validating it.
func WithExclude(index int) CheckOption {
	return func(c *checkConfig) { c.exclude = index }
}

// Check compares text against every record of src and returns a *domain.DuplicateError
// for the first score strictly above the threshold. Corpus read failures are reported
// as domain.ErrCorpusUnavailable and never as acceptance.
func (g *Gate) Check(ctx context.Context, text string, src Source, opts ...CheckOption) (Verdict, error) {
	cfg := checkConfig{threshold: g.threshold, exclude: -1}
	for _, o := range opts {
		o(&cfg)
	}

	start := time.Now()
	v, err := g.check(ctx, text, src, cfg)
	g.observe(ctx, start, v, err)
	return v, err
}

func (g *Gate) check(ctx context.Context, text string, src Source, cfg checkConfig) (Verdict, error) {
	v := Verdict{BestIndex: -1}

	if err := validateText(text); err != nil {
		return v, err
	}
	if err := validateThreshold(cfg.threshold); err != nil {
		return v, err
	}

	cur, err := src.Open(ctx)
	if err != nil {
		return v, corpusError(ctx, err)
	}

	if g.workers > 1 {
		return g.scanParallel(ctx, text, cur, cfg)
	}
	return g.scan(ctx, text, cur, cfg)
}

func (g *Gate) scan(ctx context.Context, text string, cur Cursor, cfg checkConfig) (Verdict, error) {
	v := Verdict{BestIndex: -1}
	for {
		if err := ctx.Err(); err != nil {
			return v, fmt.Errorf("duplicate check abandoned after %d records: %w", v.Scanned, err)
		}

		e, ok, err := cur.Next(ctx)
		if err != nil {
			return v, corpusError(ctx, err)
		}
		if !ok {
			return v, nil
		}
		if e.Index == cfg.exclude {
			continue
		}

		score := g.score(text, e)
		v.record(e.Index, score)
		if score > cfg.threshold {
			return v, domain.NewDuplicate(e.Index, score)
		}
	}
}

func (g *Gate) scanParallel(ctx context.Context, text string, cur Cursor, cfg checkConfig) (Verdict, error) {
	var (
		mu sync.Mutex
		v  = Verdict{BestIndex: -1}
	)

	eg, egCtx := errgroup.WithContext(ctx)
	for range g.workers {
		eg.Go(func() error {
			for {
				if err := egCtx.Err(); err != nil {
					return err
				}

				e, ok, err := cur.Next(egCtx)
				if err != nil {
					return corpusError(egCtx, err)
				}
				if !ok {
					return nil
				}
				if e.Index == cfg.exclude {
					continue
				}

				score := g.score(text, e)
				mu.Lock()
				v.record(e.Index, score)
				mu.Unlock()
				if score > cfg.threshold {
					return domain.NewDuplicate(e.Index, score)
				}
			}
		})
	}

	err := eg.Wait()
	if err != nil && !errors.Is(err, domain.ErrDuplicateFound) && ctx.Err() != nil {
		err = fmt.Errorf("duplicate check abandoned after %d records: %w", v.Scanned, ctx.Err())
	}
	return v, err
}

func (g *Gate) score(text string, e Entry) float64 {
	score, ok := similarity.Compare(text, e.Text)
	if !ok {
		metrics.ComparisonsTotal.WithLabelValues("degenerate").Inc()
		g.logger.Debug("Degenerate comparison treated as dissimilar", zap.Int("index", e.Index))
		return 0
	}
	metrics.ComparisonsTotal.WithLabelValues("scored").Inc()
	return score
}

func (v *Verdict) record(index int, score float64) {
	v.Scanned++
	if score > v.BestScore {
		v.BestScore = score
		v.BestIndex = index
	}
}

func (g *Gate) observe(ctx context.Context, start time.Time, v Verdict, err error) {
	result := "accepted"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDuplicateFound):
		result = "duplicate"
	case errors.Is(err, domain.ErrInvalidInput):
		result = "invalid"
	case errors.Is(err, domain.ErrCorpusUnavailable):
		result = "unavailable"
	case ctx.Err() != nil:
		result = "cancelled"
	default:
		result = "error"
	}
	metrics.DuplicateChecksTotal.WithLabelValues(result).Inc()
	metrics.DuplicateCheckDuration.Observe(time.Since(start).Seconds())

	g.logger.Debug("Duplicate check completed",
		zap.String("result", result),
		zap.Int("scanned", v.Scanned),
		zap.Int("best_index", v.BestIndex),
		zap.Float64("best_score", v.BestScore),
		zap.Duration("duration", time.Since(start)),
	)
}

// corpusError classifies a read failure: an expired context stays a context error,
// anything else is an unavailable corpus.
func corpusError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("duplicate check abandoned: %w", ctxErr)
	}
	return fmt.Errorf("read corpus: %w: %w", domain.ErrCorpusUnavailable, err)
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("description is required: %w", domain.ErrInvalidInput)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("description must be valid UTF-8 text: %w", domain.ErrInvalidInput)
	}
	return nil
}

func validateThreshold(t float64) error {
	if !(t > 0 && t <= 1) {
		return fmt.Errorf("threshold must be in (0, 1], got %v: %w", t, domain.ErrInvalidInput)
	}
	return nil
}
