package bidding_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"cardbid/models"
	"cardbid/storage"
)

// recordingWaker 記錄每次喚醒的商品
type recordingWaker struct {
	mu       sync.Mutex
	notified []uuid.UUID
}

func (w *recordingWaker) Notify(auctionID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notified = append(w.notified, auctionID)
}

func (w *recordingWaker) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.notified)
}

// recordingDispatcher 記錄每次被接受的出價
type recordingDispatcher struct {
	mu       sync.Mutex
	accepted []acceptedBid
}

type acceptedBid struct {
	item        models.AuctionItem
	bid         models.Bid
	previousTop *models.Bid
}

func (d *recordingDispatcher) BidAccepted(item *models.AuctionItem, bid *models.Bid, previousTop *models.Bid) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accepted = append(d.accepted, acceptedBid{item: *item, bid: *bid, previousTop: previousTop})
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.accepted)
}

// newUser 建立測試用的使用者
func newUser(t *testing.T, store storage.Store, subject string) *models.User {
	t.Helper()
	user, err := store.EnsureUser(context.Background(), subject, subject)
	require.NoError(t, err)
	return user
}

// newOngoingItem 建立一個進行中的拍賣商品
func newOngoingItem(t *testing.T, store storage.Store, sellerID uuid.UUID, startingPrice, spread int64) *models.AuctionItem {
	t.Helper()
	now := time.Now()
	startTime := now.Add(-time.Hour)
	endTime := now.Add(time.Hour)
	item := &models.AuctionItem{
		SellerID:      sellerID,
		Title:         "Charizard 1st Edition",
		StartingPrice: decimal.NewFromInt(startingPrice),
		Spread:        decimal.NewFromInt(spread),
		StartTime:     &startTime,
		EndTime:       &endTime,
	}
	require.NoError(t, store.CreateAuctionItem(context.Background(), item))
	return item
}
