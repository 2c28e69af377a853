package models

import "time"

// CartSnapshot is one persisted cart, keyed by the device scope and the identity storage key.
type CartSnapshot struct {
	Scope      string     `gorm:"column:scope;primaryKey;size:128"`
	StorageKey string     `gorm:"column:storage_key;primaryKey;size:300"`
	Payload    string     `gorm:"column:payload;not null"`
	ItemCount  int        `gorm:"column:item_count;not null;default:0"`
	ExpiresAt  *time.Time `gorm:"column:expires_at;index"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartSnapshot) TableName() string {
	return "cart_snapshots"
}
