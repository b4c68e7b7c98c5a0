// Package access implements license grants and licensed IP lookups.
package access

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ipregistry/internal/domain"
	domaccess "github.com/kailas-cloud/ipregistry/internal/domain/access"
	domip "github.com/kailas-cloud/ipregistry/internal/domain/ip"
)

// Licensed pairs a grant with the ledger record it unlocks.
type Licensed struct {
	Grant  domaccess.Grant
	Record domip.Record
}

// Service handles access grants.
type Service struct {
	repo   Repository
	ledger Ledger
	now    func() time.Time
	logger *zap.Logger
}

// New creates an access service.
func New(repo Repository, ledger Ledger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, ledger: ledger, now: time.Now, logger: logger}
}

// GrantAccess records that userAddress paid for the IP at index. It returns false when
// the grant already existed.
func (s *Service) GrantAccess(ctx context.Context, userAddress string, index int, txHash string) (bool, error) {
	g, err := domaccess.New(userAddress, index, txHash, s.now())
	if err != nil {
		return false, err
	}

	count, err := s.ledger.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count ledger records: %w", err)
	}
	if index >= count {
		return false, fmt.Errorf("ip %d: %w", index, domain.ErrNotFound)
	}

	created, err := s.repo.Save(ctx, &g)
	if err != nil {
		return false, fmt.Errorf("save grant: %w", err)
	}
	if created {
		s.logger.Info("Access granted",
			zap.String("user", g.UserAddress()),
			zap.Int("index", index),
			zap.String("tx", txHash),
		)
	}
	return created, nil
}

// LicensedIPs returns the ledger records a user holds grants for. Grants whose record
// cannot be read are skipped. A user without grants is ErrNotFound.
func (s *Service) LicensedIPs(ctx context.Context, userAddress string) ([]Licensed, error) {
	if err := domip.ValidateAddress(userAddress); err != nil {
		return nil, err
	}

	grants, err := s.repo.ListByUser(ctx, userAddress)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	if len(grants) == 0 {
		return nil, fmt.Errorf("no access records for %s: %w", userAddress, domain.ErrNotFound)
	}

	out := make([]Licensed, 0, len(grants))
	for _, g := range grants {
		rec, err := s.ledger.Get(ctx, g.IPIndex())
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("read licensed ip %d: %w", g.IPIndex(), ctx.Err())
			}
			s.logger.Warn("Skipping licensed IP", zap.Int("index", g.IPIndex()), zap.Error(err))
			continue
		}
		out = append(out, Licensed{Grant: g, Record: rec})
	}
	return out, nil
}
