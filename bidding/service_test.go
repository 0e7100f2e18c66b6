package bidding_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardbid/bidding"
	"cardbid/storage"
)

func TestPlaceBid(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	waker := &recordingWaker{}
	dispatcher := &recordingDispatcher{}
	service := bidding.NewService(store, waker, dispatcher)

	seller := newUser(t, store, "seller")
	alice := newUser(t, store, "alice")
	bob := newUser(t, store, "bob")
	// 起標價10、最低加價幅度2
	item := newOngoingItem(t, store, seller.ID, 10, 2)
	now := time.Now()

	// 還沒有人出價時，最低可接受金額是起標價加上加價幅度
	_, err := service.PlaceBid(ctx, item.ID, alice.ID, decimal.NewFromInt(11), now)
	rejection, ok := bidding.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, bidding.RejectionBidTooLow, rejection.Reason)
	assert.True(t, decimal.NewFromInt(12).Equal(rejection.MinAcceptable))

	// 剛好等於最低可接受金額的出價會被接受
	bid, err := service.PlaceBid(ctx, item.ID, alice.ID, decimal.NewFromInt(12), now)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(12).Equal(bid.Amount))
	assert.Equal(t, alice.ID, bid.BidderID)

	// 接受後最低可接受金額上移
	_, err = service.PlaceBid(ctx, item.ID, bob.ID, decimal.NewFromInt(13), now)
	rejection, ok = bidding.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, bidding.RejectionBidTooLow, rejection.Reason)
	assert.True(t, decimal.NewFromInt(14).Equal(rejection.MinAcceptable))

	// 超過最低可接受金額的出價會被接受
	_, err = service.PlaceBid(ctx, item.ID, bob.ID, decimal.NewFromInt(15), now)
	require.NoError(t, err)

	// 拒絕不會寫入任何資料，帳本上只有被接受的兩筆
	count, err := store.CountBids(ctx, item.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	// 每筆被接受的出價都剛好喚醒與通知一次
	assert.Equal(t, 2, waker.count())
	assert.Equal(t, 2, dispatcher.count())
}

func TestPlaceBidRejections(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	service := bidding.NewService(store, &recordingWaker{}, &recordingDispatcher{})

	seller := newUser(t, store, "seller")
	alice := newUser(t, store, "alice")
	bob := newUser(t, store, "bob")
	item := newOngoingItem(t, store, seller.ID, 10, 2)
	now := time.Now()

	expectRejection := func(err error, reason bidding.RejectionReason) {
		t.Helper()
		rejection, ok := bidding.AsRejection(err)
		require.True(t, ok, "expected a rejection, got %v", err)
		assert.Equal(t, reason, rejection.Reason)
	}

	// 金額必須是正數且最多兩位小數
	_, err := service.PlaceBid(ctx, item.ID, alice.ID, decimal.Zero, now)
	expectRejection(err, bidding.RejectionInvalidAmount)
	_, err = service.PlaceBid(ctx, item.ID, alice.ID, decimal.NewFromInt(-1), now)
	expectRejection(err, bidding.RejectionInvalidAmount)
	_, err = service.PlaceBid(ctx, item.ID, alice.ID, decimal.RequireFromString("12.345"), now)
	expectRejection(err, bidding.RejectionInvalidAmount)

	// 不存在的商品
	missing := newOngoingItem(t, store, seller.ID, 10, 2)
	require.NoError(t, store.DeleteAuctionItem(ctx, missing.ID))
	_, err = service.PlaceBid(ctx, missing.ID, alice.ID, decimal.NewFromInt(12), now)
	expectRejection(err, bidding.RejectionNotFound)

	// 尚未開始的拍賣
	scheduled := newOngoingItem(t, store, seller.ID, 10, 2)
	_, err = service.PlaceBid(ctx, scheduled.ID, alice.ID, decimal.NewFromInt(12), scheduled.StartTime.Add(-time.Minute))
	expectRejection(err, bidding.RejectionNotStarted)

	// 已結束的拍賣
	_, err = service.PlaceBid(ctx, item.ID, alice.ID, decimal.NewFromInt(12), item.EndTime.Add(time.Minute))
	expectRejection(err, bidding.RejectionEnded)

	// 賣家不能對自己的商品出價
	_, err = service.PlaceBid(ctx, item.ID, seller.ID, decimal.NewFromInt(12), now)
	expectRejection(err, bidding.RejectionSelfBid)

	// 最高出價者在被超越前不能再出價，即使金額更高
	_, err = service.PlaceBid(ctx, item.ID, alice.ID, decimal.NewFromInt(12), now)
	require.NoError(t, err)
	_, err = service.PlaceBid(ctx, item.ID, alice.ID, decimal.NewFromInt(20), now)
	expectRejection(err, bidding.RejectionAlreadyLeading)

	// 被超越後就可以再次出價
	_, err = service.PlaceBid(ctx, item.ID, bob.ID, decimal.NewFromInt(14), now)
	require.NoError(t, err)
	_, err = service.PlaceBid(ctx, item.ID, alice.ID, decimal.NewFromInt(16), now)
	require.NoError(t, err)
}

func TestPlaceBidRejectionPrecedence(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	service := bidding.NewService(store, &recordingWaker{}, &recordingDispatcher{})

	seller := newUser(t, store, "seller")
	item := newOngoingItem(t, store, seller.ID, 10, 2)

	// 同時違反多條規則時只回報最先檢查到的：
	// 賣家在已結束的拍賣上出了過低的價格，看到的是結束而不是自我出價或金額過低
	_, err := service.PlaceBid(ctx, item.ID, seller.ID, decimal.NewFromInt(1), item.EndTime.Add(time.Minute))
	rejection, ok := bidding.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, bidding.RejectionEnded, rejection.Reason)
}

func TestPlaceBidConcurrent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	waker := &recordingWaker{}
	dispatcher := &recordingDispatcher{}
	service := bidding.NewService(store, waker, dispatcher)

	seller := newUser(t, store, "seller")
	item := newOngoingItem(t, store, seller.ID, 10, 2)
	now := time.Now()

	// 多個出價者同時以同一金額出價，剛好只有一筆會被接受
	const bidders = 16
	var wg sync.WaitGroup
	results := make([]error, bidders)
	for i := 0; i < bidders; i++ {
		bidder := newUser(t, store, "bidder-"+string(rune('a'+i)))
		wg.Add(1)
		go func(i int, bidderID uuid.UUID) {
			defer wg.Done()
			_, results[i] = service.PlaceBid(ctx, item.ID, bidderID, decimal.NewFromInt(12), now)
		}(i, bidder.ID)
	}
	wg.Wait()

	accepted := 0
	for _, err := range results {
		if err == nil {
			accepted++
			continue
		}
		rejection, ok := bidding.AsRejection(err)
		require.True(t, ok, "unexpected error: %v", err)
		assert.Equal(t, bidding.RejectionBidTooLow, rejection.Reason)
		// 落敗者看到的最低可接受金額反映已被接受的那筆
		assert.True(t, decimal.NewFromInt(14).Equal(rejection.MinAcceptable))
	}
	assert.Equal(t, 1, accepted)

	count, err := store.CountBids(ctx, item.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, 1, waker.count())
	assert.Equal(t, 1, dispatcher.count())
}

func TestPlaceBidNotifiesAfterInsert(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	waker := &recordingWaker{}
	dispatcher := &recordingDispatcher{}
	service := bidding.NewService(store, waker, dispatcher)

	seller := newUser(t, store, "seller")
	alice := newUser(t, store, "alice")
	bob := newUser(t, store, "bob")
	item := newOngoingItem(t, store, seller.ID, 10, 2)
	now := time.Now()

	_, err := service.PlaceBid(ctx, item.ID, alice.ID, decimal.NewFromInt(12), now)
	require.NoError(t, err)
	_, err = service.PlaceBid(ctx, item.ID, bob.ID, decimal.NewFromInt(14), now)
	require.NoError(t, err)

	// 第二筆出價的通知帶有被超越的前一筆
	require.Equal(t, 2, dispatcher.count())
	assert.Nil(t, dispatcher.accepted[0].previousTop)
	require.NotNil(t, dispatcher.accepted[1].previousTop)
	assert.Equal(t, alice.ID, dispatcher.accepted[1].previousTop.BidderID)
}
