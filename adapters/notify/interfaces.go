//go:generate mockgen -package=notify -destination=mock.go -source=interfaces.go

package notify

import (
	"context"

	"github.com/google/uuid"

	"cardbid/models"
)

// Delivery 定義了外部遞送服務的介面。
// 遞送失敗只會記錄日誌，永遠不會影響出價結果。
type Delivery interface {
	Deliver(ctx context.Context, notification Notification) error
}

// WatcherSource 查詢關注指定商品的使用者
type WatcherSource interface {
	WatchersOf(ctx context.Context, auctionID uuid.UUID) ([]uuid.UUID, error)
}

// IDispatcher 定義了通知分派器的操作介面
type IDispatcher interface {
	// Start 啟動分派器，開始處理佇列中的通知。
	// 應在呼叫其他方法前先呼叫此方法。
	Start()
	// Close 停止分派器並等待佇列清空
	Close()
	// BidAccepted 將一筆成功的出價分類為通知事件後排入佇列
	BidAccepted(item *models.AuctionItem, bid *models.Bid, previousTop *models.Bid)
	// EndingSoon 商品即將結束時通知賣家、最高出價者與關注者
	EndingSoon(item *models.AuctionItem, topBid *models.Bid)
	// AuctionEnded 商品結束時通知得標者、其他出價者與賣家
	AuctionEnded(item *models.AuctionItem, topBid *models.Bid, losers []uuid.UUID)
}
