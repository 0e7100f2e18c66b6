package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Bid 代表拍賣商品的出價紀錄
// 記錄每次競標的金額、競標者和競標商品。
// 出價紀錄建立後不可修改也不可刪除，是拍賣狀態的唯一真實來源。
type Bid struct {
	gorm.Model

	ID            uuid.UUID       `gorm:"type:uuid;default:public.uuid_generate_v7();primaryKey;<-:false"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null;<-:create"`
	BidderID      uuid.UUID       `gorm:"type:uuid;not null;<-:create"`
	AuctionItemID uuid.UUID       `gorm:"type:uuid;not null;<-:create"`

	// 外鍵關聯
	Bidder      User `gorm:"foreignKey:BidderID"`
	AuctionItem AuctionItem
}
