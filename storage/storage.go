//go:generate mockgen -package=storage -destination=mock.go -source=storage.go

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cardbid/models"
)

var (
	// ErrNotFound 查詢的資料不存在
	ErrNotFound = errors.New("record not found")
	// ErrStaleTopBid 寫入出價時發現最高出價已經被其他寫入者更新，
	// 新出價不再滿足最低可接受金額
	ErrStaleTopBid = errors.New("top bid changed during insert")
)

// ListFilter 列出拍賣商品時的篩選條件
type ListFilter struct {
	ExcludeEnded bool
	Limit        int
	Now          time.Time
}

// Store 定義了持久層的操作介面。
// 出價相關的方法必須滿足每個商品單一寫入者的原子性要求：
// InsertBid 會以提交當下的狀態重新驗證最低出價規則，而不是呼叫者讀取時的狀態。
type Store interface {
	CreateAuctionItem(ctx context.Context, item *models.AuctionItem) error
	GetAuctionItem(ctx context.Context, id uuid.UUID) (*models.AuctionItem, error)
	UpdateAuctionItem(ctx context.Context, item *models.AuctionItem) error
	DeleteAuctionItem(ctx context.Context, id uuid.UUID) error
	ListAuctionItems(ctx context.Context, filter ListFilter) ([]models.AuctionItem, error)

	// GetTopBid 回傳最近一次被接受的出價，沒有任何出價時回傳 nil。
	// 在出價許可規則下，最近一筆出價永遠是金額最高的一筆。
	GetTopBid(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error)
	// ListBids 回傳商品的所有出價紀錄，由新到舊排序
	ListBids(ctx context.Context, auctionID uuid.UUID) ([]models.Bid, error)
	CountBids(ctx context.Context, auctionID uuid.UUID) (int64, error)
	// InsertBid 寫入一筆出價，時間戳記由伺服器指定。
	// 寫入時會重新檢查最低出價規則，不滿足時回傳 ErrStaleTopBid 且不寫入任何資料。
	InsertBid(ctx context.Context, auctionID, bidderID uuid.UUID, amount decimal.Decimal, now time.Time) (*models.Bid, error)
	// DistinctBidders 回傳曾對商品出價的所有使用者
	DistinctBidders(ctx context.Context, auctionID uuid.UUID) ([]uuid.UUID, error)

	// EnsureUser 依身份提供者的 subject 取得使用者，不存在時建立
	EnsureUser(ctx context.Context, subject, username string) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)

	AddWatch(ctx context.Context, auctionID, userID uuid.UUID) error
	RemoveWatch(ctx context.Context, auctionID, userID uuid.UUID) error
	WatchersOf(ctx context.Context, auctionID uuid.UUID) ([]uuid.UUID, error)

	// 背景掃描工作使用，兩組查詢都以通知去重欄位過濾
	ListEndingSoon(ctx context.Context, now time.Time, lead time.Duration) ([]models.AuctionItem, error)
	MarkEndingSoonNotified(ctx context.Context, id uuid.UUID, at time.Time) error
	ListJustEnded(ctx context.Context, now time.Time) ([]models.AuctionItem, error)
	MarkFinalized(ctx context.Context, id uuid.UUID, at time.Time) error
}
