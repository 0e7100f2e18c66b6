//go:generate mockgen -package=bidding -destination=mock.go -source=service.go

package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cardbid/models"
	"cardbid/storage"
)

// Waker 在出價成功後喚醒等待該商品狀態改變的長輪詢請求
type Waker interface {
	Notify(auctionID uuid.UUID)
}

// Dispatcher 將成功的出價分類為通知事件，
// 發送是非同步的，不能拖慢或回滾出價流程。
type Dispatcher interface {
	BidAccepted(item *models.AuctionItem, bid *models.Bid, previousTop *models.Bid)
}

// Service 負責出價許可：所有必須對同一商品原子成立的業務規則都集中在這裡。
// 同一商品的出價透過 keyedMutex 序列化，不同商品完全平行。
type Service struct {
	store      storage.Store
	waker      Waker
	dispatcher Dispatcher
	locks      *keyedMutex
}

func NewService(store storage.Store, waker Waker, dispatcher Dispatcher) *Service {
	return &Service{
		store:      store,
		waker:      waker,
		dispatcher: dispatcher,
		locks:      newKeyedMutex(),
	}
}

// PlaceBid 驗證並寫入一筆出價。
// 規則依固定順序檢查：存在 → 狀態 → 自我出價 → 已是最高出價者 → 金額；
// 一個請求同時違反多條規則時，只會看到最先檢查到的拒絕。
// 成功時剛好寫入一筆紀錄，任何拒絕都不寫入資料。
func (s *Service) PlaceBid(ctx context.Context, auctionID, bidderID uuid.UUID, amount decimal.Decimal, now time.Time) (*models.Bid, error) {
	const op = "Service.PlaceBid"
	// 檢查出價金額格式：正數且最多兩位小數
	if !amount.IsPositive() || amount.Exponent() < -2 {
		return nil, &Rejection{Reason: RejectionInvalidAmount}
	}

	// 同一商品的檢查加寫入必須在同一個互斥區間內完成，
	// 否則兩個同時出價的請求可能都通過檢查
	unlock := s.locks.lock(auctionID)
	defer unlock()

	item, err := s.store.GetAuctionItem(ctx, auctionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &Rejection{Reason: RejectionNotFound}
	}
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to load auction item, err=%w", op, err)
	}

	// 以單一時間快照推導狀態
	switch item.StatusAt(now) {
	case models.StatusNotScheduled, models.StatusScheduled:
		return nil, &Rejection{Reason: RejectionNotStarted}
	case models.StatusEnded:
		return nil, &Rejection{Reason: RejectionEnded}
	}

	// 賣家不能對自己的商品出價
	if item.SellerID == bidderID {
		return nil, &Rejection{Reason: RejectionSelfBid}
	}

	top, err := s.store.GetTopBid(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to load top bid, err=%w", op, err)
	}
	// 目前的最高出價者在被其他人超越前不能再出價
	if top != nil && top.BidderID == bidderID {
		return nil, &Rejection{Reason: RejectionAlreadyLeading}
	}

	minAcceptable := item.StartingPrice
	if top != nil {
		minAcceptable = top.Amount
	}
	minAcceptable = minAcceptable.Add(item.Spread)
	if amount.LessThan(minAcceptable) {
		return nil, &Rejection{Reason: RejectionBidTooLow, MinAcceptable: minAcceptable}
	}

	bid, err := s.store.InsertBid(ctx, auctionID, bidderID, amount, now)
	if errors.Is(err, storage.ErrStaleTopBid) {
		// 其他節點在本節點檢查後搶先完成出價，重新讀取最新的最低可接受金額
		if fresh, topErr := s.store.GetTopBid(ctx, auctionID); topErr == nil && fresh != nil {
			minAcceptable = fresh.Amount.Add(item.Spread)
		}
		return nil, &Rejection{Reason: RejectionBidTooLow, MinAcceptable: minAcceptable}
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &Rejection{Reason: RejectionNotFound}
	}
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to insert bid, err=%w", op, err)
	}

	// 只有在寫入成功後才喚醒等待者與發送通知
	s.waker.Notify(auctionID)
	s.dispatcher.BidAccepted(item, bid, top)
	return bid, nil
}
