package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardbid/models"
	"cardbid/storage"
)

func TestMemoryStoreAuctionItem(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	seller, err := store.EnsureUser(ctx, "seller", "seller")
	require.NoError(t, err)

	// 建立商品時會分配識別碼
	item := &models.AuctionItem{
		SellerID:      seller.ID,
		Title:         "Blue-Eyes White Dragon",
		StartingPrice: decimal.NewFromInt(10),
		Spread:        decimal.NewFromInt(2),
	}
	require.NoError(t, store.CreateAuctionItem(ctx, item))
	assert.NotEqual(t, uuid.Nil, item.ID)

	// 讀取會帶出賣家資訊
	loaded, err := store.GetAuctionItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Title, loaded.Title)
	assert.Equal(t, seller.Username, loaded.Seller.Username)

	// 更新
	loaded.Title = "Dark Magician"
	require.NoError(t, store.UpdateAuctionItem(ctx, loaded))
	reloaded, err := store.GetAuctionItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dark Magician", reloaded.Title)

	// 刪除後就讀不到了
	require.NoError(t, store.DeleteAuctionItem(ctx, item.ID))
	_, err = store.GetAuctionItem(ctx, item.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.DeleteAuctionItem(ctx, item.ID), storage.ErrNotFound)
}

func TestMemoryStoreListAuctionItems(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	now := time.Now()

	newItem := func(endOffset time.Duration) *models.AuctionItem {
		startTime := now.Add(endOffset - time.Hour)
		endTime := now.Add(endOffset)
		item := &models.AuctionItem{
			Title:         "card",
			StartingPrice: decimal.NewFromInt(10),
			Spread:        decimal.NewFromInt(1),
			StartTime:     &startTime,
			EndTime:       &endTime,
		}
		require.NoError(t, store.CreateAuctionItem(ctx, item))
		return item
	}
	ended := newItem(-time.Hour)
	endingSooner := newItem(time.Hour)
	endingLater := newItem(2 * time.Hour)

	// 預設列出全部，依結束時間由近到遠
	items, err := store.ListAuctionItems(ctx, storage.ListFilter{Now: now})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, ended.ID, items[0].ID)
	assert.Equal(t, endingSooner.ID, items[1].ID)
	assert.Equal(t, endingLater.ID, items[2].ID)

	// 過濾已結束的商品
	items, err = store.ListAuctionItems(ctx, storage.ListFilter{ExcludeEnded: true, Now: now})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, endingSooner.ID, items[0].ID)

	// 限制筆數
	items, err = store.ListAuctionItems(ctx, storage.ListFilter{Limit: 1, Now: now})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestMemoryStoreInsertBid(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	now := time.Now()

	alice, err := store.EnsureUser(ctx, "alice", "alice")
	require.NoError(t, err)
	bob, err := store.EnsureUser(ctx, "bob", "bob")
	require.NoError(t, err)

	item := &models.AuctionItem{
		Title:         "card",
		StartingPrice: decimal.NewFromInt(10),
		Spread:        decimal.NewFromInt(2),
	}
	require.NoError(t, store.CreateAuctionItem(ctx, item))

	// 沒有任何出價時最高出價為nil
	top, err := store.GetTopBid(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, top)

	// 寫入時會以提交當下的狀態重新驗證最低出價規則
	_, err = store.InsertBid(ctx, item.ID, alice.ID, decimal.NewFromInt(11), now)
	assert.ErrorIs(t, err, storage.ErrStaleTopBid)

	bid, err := store.InsertBid(ctx, item.ID, alice.ID, decimal.NewFromInt(12), now)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, bid.ID)

	// 接受後門檻上移，相同金額的第二筆會被拒絕
	_, err = store.InsertBid(ctx, item.ID, bob.ID, decimal.NewFromInt(12), now)
	assert.ErrorIs(t, err, storage.ErrStaleTopBid)
	_, err = store.InsertBid(ctx, item.ID, bob.ID, decimal.NewFromInt(14), now)
	require.NoError(t, err)

	// 最新的一筆就是最高出價
	top, err = store.GetTopBid(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, top)
	assert.Equal(t, bob.ID, top.BidderID)
	assert.Equal(t, bob.Username, top.Bidder.Username)

	// 出價紀錄由新到舊排序
	bids, err := store.ListBids(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Equal(t, bob.ID, bids[0].BidderID)
	assert.Equal(t, alice.ID, bids[1].BidderID)

	count, err := store.CountBids(ctx, item.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	bidders, err := store.DistinctBidders(ctx, item.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{alice.ID, bob.ID}, bidders)

	// 不存在的商品
	_, err = store.InsertBid(ctx, uuid.Must(uuid.NewV7()), alice.ID, decimal.NewFromInt(12), now)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMemoryStoreEnsureUser(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	// 第一次看到的subject會建立使用者
	created, err := store.EnsureUser(ctx, "auth0|alice", "alice")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)

	// 同一個subject回傳同一個使用者
	again, err := store.EnsureUser(ctx, "auth0|alice", "alice-renamed")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, "alice", again.Username)

	loaded, err := store.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Subject, loaded.Subject)
}

func TestMemoryStoreWatch(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	auctionID := uuid.Must(uuid.NewV7())
	userID := uuid.Must(uuid.NewV7())

	// 關注是冪等的
	require.NoError(t, store.AddWatch(ctx, auctionID, userID))
	require.NoError(t, store.AddWatch(ctx, auctionID, userID))
	watchers, err := store.WatchersOf(ctx, auctionID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{userID}, watchers)

	// 取消關注也是冪等的
	require.NoError(t, store.RemoveWatch(ctx, auctionID, userID))
	require.NoError(t, store.RemoveWatch(ctx, auctionID, userID))
	watchers, err = store.WatchersOf(ctx, auctionID)
	require.NoError(t, err)
	assert.Empty(t, watchers)
}

func TestMemoryStoreSweepQueries(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	now := time.Now()

	newItem := func(endOffset time.Duration) *models.AuctionItem {
		startTime := now.Add(endOffset - time.Hour)
		endTime := now.Add(endOffset)
		item := &models.AuctionItem{
			Title:         "card",
			StartingPrice: decimal.NewFromInt(10),
			Spread:        decimal.NewFromInt(1),
			StartTime:     &startTime,
			EndTime:       &endTime,
		}
		require.NoError(t, store.CreateAuctionItem(ctx, item))
		return item
	}
	endingSoon := newItem(3 * time.Minute)
	justEnded := newItem(-time.Minute)
	newItem(time.Hour) // 距離結束還久的不會出現在任何一組查詢

	// 即將結束的商品
	items, err := store.ListEndingSoon(ctx, now, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, endingSoon.ID, items[0].ID)

	// 標記後不會再出現，通知只會發送一次
	require.NoError(t, store.MarkEndingSoonNotified(ctx, endingSoon.ID, now))
	items, err = store.ListEndingSoon(ctx, now, 5*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, items)

	// 剛結束的商品
	items, err = store.ListJustEnded(ctx, now)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, justEnded.ID, items[0].ID)

	require.NoError(t, store.MarkFinalized(ctx, justEnded.ID, now))
	items, err = store.ListJustEnded(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, items)
}
