package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cardbid/models"
)

type CreateAuctionRequest struct {
	Title         string           `json:"title" binding:"required"`
	Description   *string          `json:"description"`
	StartingPrice *decimal.Decimal `json:"startingPrice"`
	Spread        decimal.Decimal  `json:"spread"`
	StartTime     *time.Time       `json:"startTime"`
	EndTime       *time.Time       `json:"endTime"`
}

type UpdateAuctionRequest struct {
	Title         *string          `json:"title"`
	Description   *string          `json:"description"`
	StartingPrice *decimal.Decimal `json:"startingPrice"`
	Spread        *decimal.Decimal `json:"spread"`
	StartTime     *time.Time       `json:"startTime"`
	EndTime       *time.Time       `json:"endTime"`
}

type PlaceBidRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

type BidView struct {
	Id     uuid.UUID       `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Bidder string          `json:"bidder"`
	Time   time.Time       `json:"time"`
}

// AuctionSnapshot 拍賣商品在某個時間點的完整狀態，
// 長輪詢回應與一般讀取共用同一個格式。
type AuctionSnapshot struct {
	Id            uuid.UUID            `json:"id"`
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	StartingPrice decimal.Decimal      `json:"startingPrice"`
	Spread        decimal.Decimal      `json:"spread"`
	StartTime     *time.Time           `json:"startTime"`
	EndTime       *time.Time           `json:"endTime"`
	Status        models.AuctionStatus `json:"status"`
	NumBids       int                  `json:"numBids"`
	TopBid        *BidView             `json:"topBid,omitempty"`
	BidRecords    []BidView            `json:"bidRecords"`
}

type ErrorResponse struct {
	Code          string           `json:"code,omitempty"`
	Message       *string          `json:"message,omitempty"`
	MinAcceptable *decimal.Decimal `json:"minAcceptable,omitempty"`
}

// snapshot 讀取拍賣商品的目前狀態。
// 回傳的第二個值是目前最高出價的識別碼，沒有出價時為nil。
func (impl *ServerImpl) snapshot(ctx context.Context, itemID uuid.UUID, now time.Time) (*AuctionSnapshot, *uuid.UUID, error) {
	item, err := impl.store.GetAuctionItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	bids, err := impl.store.ListBids(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	// 出價紀錄由新到舊排序，帳本的第一筆就是目前最高出價
	bidRecords := make([]BidView, len(bids))
	for i, bid := range bids {
		bidRecords[i] = BidView{
			Id:     bid.ID,
			Amount: bid.Amount,
			Bidder: bid.Bidder.Username,
			Time:   bid.CreatedAt,
		}
	}
	snap := &AuctionSnapshot{
		Id:            item.ID,
		Title:         item.Title,
		Description:   item.Description,
		StartingPrice: item.StartingPrice,
		Spread:        item.Spread,
		StartTime:     item.StartTime,
		EndTime:       item.EndTime,
		Status:        item.StatusAt(now),
		NumBids:       len(bidRecords),
		BidRecords:    bidRecords,
	}
	var topBidID *uuid.UUID
	if len(bidRecords) > 0 {
		snap.TopBid = &bidRecords[0]
		topBidID = &bidRecords[0].Id
	}
	return snap, topBidID, nil
}
