package access

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	domaccess "github.com/kailas-cloud/ipregistry/internal/domain/access"
)

// store is the consumer interface for access grants (ISP).
type store interface {
	HSetNX(ctx context.Context, key, field, value string) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// grantRow is the JSON value stored per hash field.
type grantRow struct {
	TxHash    string `json:"txHash"`
	CreatedAt int64  `json:"createdAt"` // unix millis
}

// Repo stores grants as one hash per user: {prefix}access:{address} -> {ipIndex: grantRow}.
type Repo struct {
	store  store
	prefix string
}

// New creates an access grant repository.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix + "access:"}
}

// Save records a grant. It returns false when the user already had access to that IP.
func (r *Repo) Save(ctx context.Context, g *domaccess.Grant) (bool, error) {
	data, err := json.Marshal(grantRow{TxHash: g.TxHash(), CreatedAt: g.CreatedAt().UnixMilli()})
	if err != nil {
		return false, fmt.Errorf("marshal grant: %w", err)
	}
	key := r.key(g.UserAddress())
	created, err := r.store.HSetNX(ctx, key, strconv.Itoa(g.IPIndex()), string(data))
	if err != nil {
		return false, fmt.Errorf("hsetnx %s: %w", key, err)
	}
	return created, nil
}

// ListByUser returns a user's grants ordered by IP index. Address case is ignored.
func (r *Repo) ListByUser(ctx context.Context, userAddress string) ([]domaccess.Grant, error) {
	key := r.key(userAddress)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}

	out := make([]domaccess.Grant, 0, len(m))
	for field, value := range m {
		idx, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("grant field %q: %w", field, err)
		}
		var row grantRow
		if err := json.Unmarshal([]byte(value), &row); err != nil {
			return nil, fmt.Errorf("unmarshal grant %s/%s: %w", key, field, err)
		}
		out = append(out, domaccess.Reconstruct(
			domaccess.NormalizeAddress(userAddress), idx, row.TxHash, time.UnixMilli(row.CreatedAt).UTC(),
		))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IPIndex() < out[j].IPIndex() })
	return out, nil
}

func (r *Repo) key(userAddress string) string {
	return r.prefix + domaccess.NormalizeAddress(userAddress)
}
