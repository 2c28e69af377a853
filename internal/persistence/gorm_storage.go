package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/db"
	"github.com/angelmondragon/storefront-cart/pkg/db/models"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStorage persists snapshots in the cart_snapshots table.
type GormStorage struct {
	client *db.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewGormStorage(client *db.Client, ttl time.Duration) (*GormStorage, error) {
	if client == nil {
		return nil, errors.New("db client required")
	}
	return &GormStorage{client: client, ttl: ttl, now: time.Now}, nil
}

func (g *GormStorage) Load(ctx context.Context, scope, key string) ([]byte, error) {
	var row models.CartSnapshot
	err := g.client.DB().WithContext(ctx).
		Where("scope = ? AND storage_key = ?", scope, key).
		Where("(expires_at IS NULL OR expires_at > ?)", g.now().UTC()).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(row.Payload), nil
}

func (g *GormStorage) Save(ctx context.Context, scope, key string, payload []byte) error {
	now := g.now().UTC()
	row := models.CartSnapshot{
		Scope:      scope,
		StorageKey: key,
		Payload:    string(payload),
		ItemCount:  int(gjson.GetBytes(payload, "items.#").Int()),
		UpdatedAt:  now,
	}
	if g.ttl > 0 {
		expires := now.Add(g.ttl)
		row.ExpiresAt = &expires
	}
	return g.client.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "scope"}, {Name: "storage_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "item_count", "expires_at", "updated_at"}),
		}).
		Create(&row).Error
}

func (g *GormStorage) Delete(ctx context.Context, scope, key string) error {
	return g.client.DB().WithContext(ctx).
		Where("scope = ? AND storage_key = ?", scope, key).
		Delete(&models.CartSnapshot{}).Error
}

func (g *GormStorage) Ping(ctx context.Context) error {
	return g.client.Ping(ctx)
}

// PurgeExpired deletes snapshots whose TTL elapsed before now.
func (g *GormStorage) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := g.client.DB().WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now.UTC()).
		Delete(&models.CartSnapshot{})
	return res.RowsAffected, res.Error
}
