package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AuctionStatus 代表拍賣商品在某個時間點的狀態，
// 由拍賣時間推導而來，不會儲存在資料庫中。
type AuctionStatus string

const (
	StatusNotScheduled AuctionStatus = "NotScheduled"
	StatusScheduled    AuctionStatus = "Scheduled"
	StatusOngoing      AuctionStatus = "Ongoing"
	StatusEnded        AuctionStatus = "Ended"
)

// MinimumDuration 拍賣開始到結束的最短間隔
const MinimumDuration = 5 * time.Minute

// AuctionItem 代表拍賣系統中的卡牌商品
// 包含商品資訊、起標價、最低加價幅度、拍賣時間等資訊。
// 目前最高出價是從出價紀錄推導的，不會另外儲存，避免雙寫不一致。
type AuctionItem struct {
	gorm.Model

	ID            uuid.UUID       `gorm:"type:uuid;default:public.uuid_generate_v7();primaryKey;<-:false"`
	SellerID      uuid.UUID       `gorm:"type:uuid;not null;<-:create"`
	Title         string          `gorm:"type:varchar(255);not null"`
	Description   string          `gorm:"type:text;not null"`
	StartingPrice decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Spread        decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	StartTime     *time.Time      `gorm:"type:timestamp with time zone"`
	EndTime       *time.Time      `gorm:"type:timestamp with time zone"`

	// 結束通知的去重標記，由背景掃描工作更新
	EndingSoonNotifiedAt *time.Time `gorm:"type:timestamp with time zone"`
	FinalizedAt          *time.Time `gorm:"type:timestamp with time zone"`

	// 外鍵關聯
	Seller     User  `gorm:"foreignKey:SellerID"`
	BidRecords []Bid `gorm:"foreignKey:AuctionItemID"`
}

// StatusAt 以單一時間快照推導拍賣狀態。
// 同一個請求內的所有判斷都必須使用同一個 now，避免比較時間不一致。
func (item *AuctionItem) StatusAt(now time.Time) AuctionStatus {
	if item.StartTime == nil || item.EndTime == nil {
		return StatusNotScheduled
	}
	if now.Before(*item.StartTime) {
		return StatusScheduled
	}
	if now.After(*item.EndTime) {
		return StatusEnded
	}
	return StatusOngoing
}
