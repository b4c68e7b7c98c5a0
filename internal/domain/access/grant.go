// Package access defines license grants recorded after on-ledger payment.
package access

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/ipregistry/internal/domain"
	"github.com/kailas-cloud/ipregistry/internal/domain/ip"
)

// Grant records that a user paid for access to an IP.
type Grant struct {
	userAddress string
	ipIndex     int
	txHash      string
	createdAt   time.Time
}

// New validates and creates a Grant. The user address is normalized to lower case.
func New(userAddress string, ipIndex int, txHash string, createdAt time.Time) (Grant, error) {
	if err := ip.ValidateAddress(userAddress); err != nil {
		return Grant{}, err
	}
	if ipIndex < 0 {
		return Grant{}, fmt.Errorf("ip index %d must not be negative: %w", ipIndex, domain.ErrInvalidInput)
	}
	if strings.TrimSpace(txHash) == "" {
		return Grant{}, fmt.Errorf("transaction hash is required: %w", domain.ErrInvalidInput)
	}
	return Grant{
		userAddress: NormalizeAddress(userAddress),
		ipIndex:     ipIndex,
		txHash:      txHash,
		createdAt:   createdAt.UTC(),
	}, nil
}

// Reconstruct creates a Grant without validation (storage hydration).
func Reconstruct(userAddress string, ipIndex int, txHash string, createdAt time.Time) Grant {
	return Grant{userAddress: userAddress, ipIndex: ipIndex, txHash: txHash, createdAt: createdAt}
}

// NormalizeAddress returns the lookup form of an account address.
func NormalizeAddress(addr string) string { return strings.ToLower(addr) }

// UserAddress returns the grantee address in lower case.
func (g *Grant) UserAddress() string { return g.userAddress }

// IPIndex returns the ledger index of the licensed IP.
func (g *Grant) IPIndex() int { return g.ipIndex }

// TxHash returns the payment transaction hash.
func (g *Grant) TxHash() string { return g.txHash }

// CreatedAt returns when the grant was recorded.
func (g *Grant) CreatedAt() time.Time { return g.createdAt }
