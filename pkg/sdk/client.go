package ipregistry

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/ipregistry/internal/domain"
	"github.com/kailas-cloud/ipregistry/internal/domain/similarity"
	"github.com/kailas-cloud/ipregistry/internal/usecase/dedup"
)

// DefaultThreshold is the similarity above which a description is a duplicate.
const DefaultThreshold = domain.DefaultSimilarityThreshold

// gateUseCase is the internal gate surface, replaceable in tests.
type gateUseCase interface {
	Check(ctx context.Context, text string, src dedup.Source, opts ...dedup.CheckOption) (dedup.Verdict, error)
	Threshold() float64
}

// Client is the ipregistry SDK entry point. It is safe for concurrent use.
type Client struct {
	gate gateUseCase
	obs  *observer
}

// New creates a Client.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{threshold: DefaultThreshold, parallelism: 1}
	for _, o := range opts {
		o.apply(cfg)
	}

	gate, err := dedup.New(cfg.threshold, nil, dedup.WithParallelism(cfg.parallelism))
	if err != nil {
		return nil, fmt.Errorf("ipregistry: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	return &Client{gate: gate, obs: obs}, nil
}

// Threshold returns the client's default threshold.
func (c *Client) Threshold() float64 { return c.gate.Threshold() }

// CheckDuplicate compares text against every record of corpus. It returns a
// *DuplicateError for the first record scoring strictly above the threshold and
// ErrCorpusUnavailable when a record cannot be read.
func (c *Client) CheckDuplicate(ctx context.Context, text string, corpus Corpus, opts ...CheckOption) (v Verdict, err error) {
	start := time.Now()
	defer func() { c.obs.observe("check_duplicate", start, v.Scanned, err) }()

	var cfg checkConfig
	for _, o := range opts {
		o(&cfg)
	}
	var gateOpts []dedup.CheckOption
	if cfg.threshold != 0 {
		gateOpts = append(gateOpts, dedup.WithThreshold(cfg.threshold))
	}
	if cfg.exclude != nil {
		gateOpts = append(gateOpts, dedup.WithExclude(*cfg.exclude))
	}

	dv, err := c.gate.Check(ctx, text, dedup.Indexed(corpus), gateOpts...)
	return verdictFromDedup(dv), err
}

// Similarity returns the TF-IDF cosine similarity of two descriptions, in [0, 1].
// Pairs with no weighted terms in common score 0, including empty texts.
func Similarity(a, b string) float64 {
	score, ok := similarity.Compare(a, b)
	if !ok {
		return 0
	}
	return score
}
