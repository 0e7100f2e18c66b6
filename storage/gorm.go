package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cardbid/models"
)

// GormStore 是 Store 的 PostgreSQL 實作。
// 出價寫入透過交易搭配商品列的 row lock，確保同一商品的寫入彼此序列化。
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateAuctionItem(ctx context.Context, item *models.AuctionItem) error {
	const op = "GormStore.CreateAuctionItem"
	if result := s.db.WithContext(ctx).Create(item); result.Error != nil {
		return fmt.Errorf("[%s] Fail to create auction item, err=%w", op, result.Error)
	}
	return nil
}

func (s *GormStore) GetAuctionItem(ctx context.Context, id uuid.UUID) (*models.AuctionItem, error) {
	const op = "GormStore.GetAuctionItem"
	item := models.AuctionItem{ID: id}
	if result := s.db.WithContext(ctx).Preload("Seller").First(&item); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("[%s] Fail to find auction item, err=%w", op, result.Error)
	}
	return &item, nil
}

func (s *GormStore) UpdateAuctionItem(ctx context.Context, item *models.AuctionItem) error {
	const op = "GormStore.UpdateAuctionItem"
	if result := s.db.WithContext(ctx).Save(item); result.Error != nil {
		return fmt.Errorf("[%s] Fail to update auction item, err=%w", op, result.Error)
	}
	return nil
}

func (s *GormStore) DeleteAuctionItem(ctx context.Context, id uuid.UUID) error {
	const op = "GormStore.DeleteAuctionItem"
	result := s.db.WithContext(ctx).Delete(&models.AuctionItem{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("[%s] Fail to delete auction item, err=%w", op, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListAuctionItems(ctx context.Context, filter ListFilter) ([]models.AuctionItem, error) {
	const op = "GormStore.ListAuctionItems"
	query := s.db.WithContext(ctx).Model(&models.AuctionItem{})
	if filter.ExcludeEnded {
		query = query.Where("end_time IS NULL OR end_time > ?", filter.Now)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	query = query.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "end_time"}, Desc: false},
		{Column: clause.Column{Name: "id"}, Desc: false},
	}})
	var items []models.AuctionItem
	if result := query.Find(&items); result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to list auction items, err=%w", op, result.Error)
	}
	return items, nil
}

func (s *GormStore) GetTopBid(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error) {
	const op = "GormStore.GetTopBid"
	bid, err := latestBid(s.db.WithContext(ctx), auctionID, false)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to find top bid, err=%w", op, err)
	}
	return bid, nil
}

func (s *GormStore) ListBids(ctx context.Context, auctionID uuid.UUID) ([]models.Bid, error) {
	const op = "GormStore.ListBids"
	var bids []models.Bid
	result := s.db.WithContext(ctx).
		Preload("Bidder").
		Where("auction_item_id = ?", auctionID).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "created_at"}, Desc: true},
			{Column: clause.Column{Name: "id"}, Desc: true},
		}}).
		Find(&bids)
	if result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to list bids, err=%w", op, result.Error)
	}
	return bids, nil
}

func (s *GormStore) CountBids(ctx context.Context, auctionID uuid.UUID) (int64, error) {
	const op = "GormStore.CountBids"
	var count int64
	result := s.db.WithContext(ctx).Model(&models.Bid{}).Where("auction_item_id = ?", auctionID).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("[%s] Fail to count bids, err=%w", op, result.Error)
	}
	return count, nil
}

func (s *GormStore) InsertBid(ctx context.Context, auctionID, bidderID uuid.UUID, amount decimal.Decimal, now time.Time) (*models.Bid, error) {
	const op = "GormStore.InsertBid"
	bid := models.Bid{
		AuctionItemID: auctionID,
		BidderID:      bidderID,
		Amount:        amount,
	}
	bid.CreatedAt = now
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 鎖定商品列，讓同一商品的出價寫入彼此序列化
		item := models.AuctionItem{ID: auctionID}
		if result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&item); result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("fail to lock auction item, err=%w", result.Error)
		}
		// 以提交當下的狀態重新驗證最低出價規則
		top, err := latestBid(tx, auctionID, true)
		if err != nil {
			return fmt.Errorf("fail to find top bid, err=%w", err)
		}
		minAcceptable := item.StartingPrice
		if top != nil {
			minAcceptable = top.Amount
		}
		minAcceptable = minAcceptable.Add(item.Spread)
		if amount.LessThan(minAcceptable) {
			return ErrStaleTopBid
		}
		if result := tx.Create(&bid); result.Error != nil {
			return fmt.Errorf("fail to create bid, err=%w", result.Error)
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStaleTopBid) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to insert bid, err=%w", op, err)
	}
	return &bid, nil
}

func (s *GormStore) DistinctBidders(ctx context.Context, auctionID uuid.UUID) ([]uuid.UUID, error) {
	const op = "GormStore.DistinctBidders"
	var bidders []uuid.UUID
	result := s.db.WithContext(ctx).Model(&models.Bid{}).
		Distinct("bidder_id").
		Where("auction_item_id = ?", auctionID).
		Pluck("bidder_id", &bidders)
	if result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to list bidders, err=%w", op, result.Error)
	}
	return bidders, nil
}

func (s *GormStore) EnsureUser(ctx context.Context, subject, username string) (*models.User, error) {
	const op = "GormStore.EnsureUser"
	user := models.User{}
	result := s.db.WithContext(ctx).
		Where(&models.User{Subject: subject}).
		Attrs(models.User{Username: username}).
		FirstOrCreate(&user)
	if result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to ensure user, err=%w", op, result.Error)
	}
	return &user, nil
}

func (s *GormStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "GormStore.GetUser"
	user := models.User{ID: id}
	if result := s.db.WithContext(ctx).First(&user); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("[%s] Fail to find user, err=%w", op, result.Error)
	}
	return &user, nil
}

func (s *GormStore) AddWatch(ctx context.Context, auctionID, userID uuid.UUID) error {
	const op = "GormStore.AddWatch"
	watch := models.Watch{}
	result := s.db.WithContext(ctx).
		Where(&models.Watch{AuctionItemID: auctionID, UserID: userID}).
		FirstOrCreate(&watch)
	if result.Error != nil {
		return fmt.Errorf("[%s] Fail to add watch, err=%w", op, result.Error)
	}
	return nil
}

func (s *GormStore) RemoveWatch(ctx context.Context, auctionID, userID uuid.UUID) error {
	const op = "GormStore.RemoveWatch"
	result := s.db.WithContext(ctx).
		Where("auction_item_id = ? AND user_id = ?", auctionID, userID).
		Delete(&models.Watch{})
	if result.Error != nil {
		return fmt.Errorf("[%s] Fail to remove watch, err=%w", op, result.Error)
	}
	return nil
}

func (s *GormStore) WatchersOf(ctx context.Context, auctionID uuid.UUID) ([]uuid.UUID, error) {
	const op = "GormStore.WatchersOf"
	var watchers []uuid.UUID
	result := s.db.WithContext(ctx).Model(&models.Watch{}).
		Where("auction_item_id = ?", auctionID).
		Pluck("user_id", &watchers)
	if result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to list watchers, err=%w", op, result.Error)
	}
	return watchers, nil
}

func (s *GormStore) ListEndingSoon(ctx context.Context, now time.Time, lead time.Duration) ([]models.AuctionItem, error) {
	const op = "GormStore.ListEndingSoon"
	var items []models.AuctionItem
	result := s.db.WithContext(ctx).
		Where("end_time > ? AND end_time <= ? AND ending_soon_notified_at IS NULL", now, now.Add(lead)).
		Find(&items)
	if result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to list ending auctions, err=%w", op, result.Error)
	}
	return items, nil
}

func (s *GormStore) MarkEndingSoonNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	const op = "GormStore.MarkEndingSoonNotified"
	result := s.db.WithContext(ctx).Model(&models.AuctionItem{}).
		Where("id = ?", id).
		Update("ending_soon_notified_at", at)
	if result.Error != nil {
		return fmt.Errorf("[%s] Fail to mark auction item, err=%w", op, result.Error)
	}
	return nil
}

func (s *GormStore) ListJustEnded(ctx context.Context, now time.Time) ([]models.AuctionItem, error) {
	const op = "GormStore.ListJustEnded"
	var items []models.AuctionItem
	result := s.db.WithContext(ctx).
		Where("end_time IS NOT NULL AND end_time <= ? AND finalized_at IS NULL", now).
		Find(&items)
	if result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to list ended auctions, err=%w", op, result.Error)
	}
	return items, nil
}

func (s *GormStore) MarkFinalized(ctx context.Context, id uuid.UUID, at time.Time) error {
	const op = "GormStore.MarkFinalized"
	result := s.db.WithContext(ctx).Model(&models.AuctionItem{}).
		Where("id = ?", id).
		Update("finalized_at", at)
	if result.Error != nil {
		return fmt.Errorf("[%s] Fail to mark auction item, err=%w", op, result.Error)
	}
	return nil
}

// latestBid 取得最近一筆出價，forUpdate 為真時同時鎖定該列
func latestBid(db *gorm.DB, auctionID uuid.UUID, forUpdate bool) (*models.Bid, error) {
	query := db.Where("auction_item_id = ?", auctionID).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "created_at"}, Desc: true},
			{Column: clause.Column{Name: "id"}, Desc: true},
		}})
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var bid models.Bid
	if result := query.First(&bid); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &bid, nil
}
