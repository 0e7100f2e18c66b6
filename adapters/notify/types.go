package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event 通知事件的種類
type Event string

const (
	// EventOutbidded 原本的最高出價者被超越
	EventOutbidded Event = "Outbidded"
	// EventReceivedBid 賣家的商品收到新出價
	EventReceivedBid Event = "ReceivedBid"
	// EventWatchingReceivedBid 關注中的商品收到新出價
	EventWatchingReceivedBid Event = "WatchingReceivedBid"
	// EventEndingSoon 商品即將結束拍賣
	EventEndingSoon Event = "EndingSoon"
	// EventWon 得標
	EventWon Event = "Won"
	// EventLost 未得標
	EventLost Event = "Lost"
	// EventOwningEnded 賣家的商品結束拍賣
	EventOwningEnded Event = "OwningEnded"
)

// Notification 一則待遞送的通知，包含收件者與拍賣上下文
type Notification struct {
	Event         Event            `json:"event"`
	Recipient     uuid.UUID        `json:"recipient"`
	AuctionItemID uuid.UUID        `json:"auctionItemId"`
	Title         string           `json:"title"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	OccurredAt    time.Time        `json:"occurredAt"`
}
