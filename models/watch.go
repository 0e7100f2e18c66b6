package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Watch 代表使用者對拍賣商品的關注
// 關注者不需要出價就能收到該商品的出價與結束通知。
type Watch struct {
	gorm.Model

	ID            uuid.UUID `gorm:"type:uuid;default:public.uuid_generate_v7();primaryKey;<-:false"`
	AuctionItemID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_watch_item_user,where:deleted_at IS NULL;not null;<-:create"`
	UserID        uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_watch_item_user,where:deleted_at IS NULL;not null;<-:create"`

	// 外鍵關聯
	User        *User        `gorm:"foreignKey:UserID"`
	AuctionItem *AuctionItem `gorm:"foreignKey:AuctionItemID"`
}
