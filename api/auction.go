package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"cardbid/models"
	"cardbid/storage"
)

// Add a new auction item
// (POST /auctions)
func (impl *ServerImpl) PostAuction(c *gin.Context) {
	const op = "PostAuction"
	// 檢查使用者是否已登入
	user := principalFrom(c)
	if user == nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	var req CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: lo.ToPtr("Invalid request body")})
		return
	}
	// 處理預設值
	if req.Description == nil {
		req.Description = lo.ToPtr("")
	}
	if req.StartingPrice == nil {
		req.StartingPrice = lo.ToPtr(decimal.Zero)
	}
	// 檢查價格是否合法（非負數、最多兩位小數）
	if req.StartingPrice.IsNegative() || req.StartingPrice.Exponent() < -2 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: lo.ToPtr("Invalid starting price")})
		return
	}
	if !req.Spread.IsPositive() || req.Spread.Exponent() < -2 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: lo.ToPtr("Invalid spread")})
		return
	}
	// 檢查拍賣時間是否合法
	if err := validateSchedule(req.StartTime, req.EndTime, time.Now()); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: lo.ToPtr(err.Error())})
		return
	}
	// 處理拍賣描述
	description := impl.htmlChecker.Sanitize(*req.Description)
	// 儲存拍賣商品
	item := models.AuctionItem{
		SellerID:      user.ID,
		Title:         req.Title,
		Description:   description,
		StartingPrice: *req.StartingPrice,
		Spread:        req.Spread,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
	}
	if err := impl.store.CreateAuctionItem(c.Request.Context(), &item); err != nil {
		slog.Error("Fail to create auction item", slog.String("op", op), slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Header("Location", item.ID.String())
	c.Status(http.StatusCreated)
}

// Get auction item details, optionally holding the response until the
// state changes (long polling)
// (GET /auctions/{itemID})
func (impl *ServerImpl) GetAuction(c *gin.Context) {
	const op = "GetAuction"
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	now := time.Now()
	rawLast, hasLongPoll := c.GetQuery("longPollMaxBidId")
	// 沒有帶長輪詢參數就是一般讀取
	if !hasLongPoll {
		snap, _, err := impl.snapshot(c.Request.Context(), itemID, now)
		if errors.Is(err, storage.ErrNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		if err != nil {
			slog.Error("Fail to load auction snapshot", slog.String("op", op), slog.Any("error", err))
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, snap)
		return
	}
	// 解析呼叫者最後看到的最高出價，空值或null表示還沒看過任何出價
	var lastKnown *uuid.UUID
	if rawLast != "" && rawLast != "null" {
		id, err := uuid.Parse(rawLast)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: lo.ToPtr("Invalid longPollMaxBidId")})
			return
		}
		lastKnown = &id
	}
	// 先訂閱再讀取快照，保證不會漏掉兩者之間發生的喚醒
	ch := impl.registry.Subscribe(itemID)
	defer impl.registry.Unsubscribe(itemID, ch)
	snap, topBidID, err := impl.snapshot(c.Request.Context(), itemID, now)
	if errors.Is(err, storage.ErrNotFound) {
		// 不存在的拍賣不會有狀態變化，立即回應
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Fail to load auction snapshot", slog.String("op", op), slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
		return
	}
	// 最高出價已經改變，或拍賣已經結束不會再改變，立即回應
	if topBidChanged(topBidID, lastKnown) || snap.Status == models.StatusEnded {
		c.JSON(http.StatusOK, snap)
		return
	}
	select {
	case <-ch:
		// 被新的出價喚醒，回傳最新的快照
		fresh, _, err := impl.snapshot(c.Request.Context(), itemID, time.Now())
		if err != nil {
			slog.Error("Fail to load auction snapshot", slog.String("op", op), slog.Any("error", err))
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, fresh)
	case <-c.Request.Context().Done():
		// 呼叫者已離線，defer的反註冊會移除等待者
		return
	case <-time.After(impl.config.LongPoll.Timeout):
		// 逾時不是錯誤，但等待期間拍賣可能已跨過結束時間，
		// 重新讀取快照讓狀態反映目前的時間
		fresh, _, err := impl.snapshot(c.Request.Context(), itemID, time.Now())
		if err != nil {
			slog.Error("Fail to load auction snapshot", slog.String("op", op), slog.Any("error", err))
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, fresh)
	}
}

// Update an auction item before it starts
// (PATCH /auctions/{itemID})
func (impl *ServerImpl) PatchAuction(c *gin.Context) {
	const op = "PatchAuction"
	user := principalFrom(c)
	if user == nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	item, err := impl.store.GetAuctionItem(c.Request.Context(), itemID)
	if errors.Is(err, storage.ErrNotFound) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Fail to load auction item", slog.String("op", op), slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
		return
	}
	// 只有賣家可以修改自己的商品
	if item.SellerID != user.ID {
		c.Status(http.StatusForbidden)
		return
	}
	// 開始拍賣後商品就不可修改
	now := time.Now()
	if status := item.StatusAt(now); status == models.StatusOngoing || status == models.StatusEnded {
		c.JSON(http.StatusConflict, ErrorResponse{Message: lo.ToPtr("Auction already started")})
		return
	}
	var req UpdateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: lo.ToPtr("Invalid request body")})
		return
	}
	if req.Title != nil {
		item.Title = *req.Title
	}
	if req.Description != nil {
		item.Description = impl.htmlChecker.Sanitize(*req.Description)
	}
	if req.StartingPrice != nil {
		if req.StartingPrice.IsNegative() || req.StartingPrice.Exponent() < -2 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: lo.ToPtr("Invalid starting price")})
			return
		}
		item.StartingPrice = *req.StartingPrice
	}
	if req.Spread != nil {
		if !req.Spread.IsPositive() || req.Spread.Exponent() < -2 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: lo.ToPtr("Invalid spread")})
			return
		}
		item.Spread = *req.Spread
	}
	if req.StartTime != nil {
		item.StartTime = req.StartTime
	}
	if req.EndTime != nil {
		item.EndTime = req.EndTime
	}
	if err := validateSchedule(item.StartTime, item.EndTime, now); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: lo.ToPtr(err.Error())})
		return
	}
	if err := impl.store.UpdateAuctionItem(c.Request.Context(), item); err != nil {
		slog.Error("Fail to update auction item", slog.String("op", op), slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)
}

// Delete an auction item before it starts
// (DELETE /auctions/{itemID})
func (impl *ServerImpl) DeleteAuction(c *gin.Context) {
	const op = "DeleteAuction"
	user := principalFrom(c)
	if user == nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	item, err := impl.store.GetAuctionItem(c.Request.Context(), itemID)
	if errors.Is(err, storage.ErrNotFound) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Fail to load auction item", slog.String("op", op), slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
		return
	}
	if item.SellerID != user.ID {
		c.Status(http.StatusForbidden)
		return
	}
	// 開始拍賣後商品就不可刪除
	now := time.Now()
	if status := item.StatusAt(now); status == models.StatusOngoing || status == models.StatusEnded {
		c.JSON(http.StatusConflict, ErrorResponse{Message: lo.ToPtr("Auction already started")})
		return
	}
	if err := impl.store.DeleteAuctionItem(c.Request.Context(), itemID); err != nil {
		slog.Error("Fail to delete auction item", slog.String("op", op), slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}

// List auction items
// (GET /auctions)
func (impl *ServerImpl) GetAuctions(c *gin.Context) {
	const op = "GetAuctions"
	now := time.Now()
	filter := storage.ListFilter{
		ExcludeEnded: c.Query("excludeEnded") == "true",
		Limit:        20,
		Now:          now,
	}
	if raw, ok := c.GetQuery("size"); ok {
		if _, err := fmt.Sscanf(raw, "%d", &filter.Limit); err != nil || filter.Limit <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: lo.ToPtr("Invalid size")})
			return
		}
	}
	items, err := impl.store.ListAuctionItems(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Fail to list auction items", slog.String("op", op), slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
		return
	}
	if len(items) == 0 {
		c.Status(http.StatusNotFound)
		return
	}
	output := make([]struct {
		Id         uuid.UUID       `json:"id"`
		Title      string          `json:"title"`
		CurrentBid decimal.Decimal `json:"currentBid"`
		StartTime  *time.Time      `json:"startTime"`
		EndTime    *time.Time      `json:"endTime"`
		IsEnded    bool            `json:"isEnded"`
	}, len(items))
	for i, item := range items {
		// 目前價格記錄在出價帳本中，沒有人出價時使用起標價格
		currentBid := item.StartingPrice
		top, err := impl.store.GetTopBid(c.Request.Context(), item.ID)
		if err != nil {
			slog.Error("Fail to load top bid", slog.String("op", op), slog.Any("error", err))
		} else if top != nil {
			currentBid = top.Amount
		}
		output[i].Id = item.ID
		output[i].Title = item.Title
		output[i].CurrentBid = currentBid
		output[i].StartTime = item.StartTime
		output[i].EndTime = item.EndTime
		output[i].IsEnded = item.StatusAt(now) == models.StatusEnded
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(items),
		"items": output,
	})
}

// Watch an auction item
// (PUT /auctions/{itemID}/watch)
func (impl *ServerImpl) PutAuctionWatch(c *gin.Context) {
	const op = "PutAuctionWatch"
	user := principalFrom(c)
	if user == nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	// 檢查拍賣商品是否存在
	if _, err := impl.store.GetAuctionItem(c.Request.Context(), itemID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		slog.Error("Fail to load auction item", slog.String("op", op), slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
		return
	}
	if err := impl.store.AddWatch(c.Request.Context(), itemID, user.ID); err != nil {
		slog.Error("Fail to add watch", slog.String("op", op), slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stop watching an auction item
// (DELETE /auctions/{itemID}/watch)
func (impl *ServerImpl) DeleteAuctionWatch(c *gin.Context) {
	const op = "DeleteAuctionWatch"
	user := principalFrom(c)
	if user == nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	if err := impl.store.RemoveWatch(c.Request.Context(), itemID, user.ID); err != nil {
		slog.Error("Fail to remove watch", slog.String("op", op), slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}

// validateSchedule 檢查拍賣時間：
// 兩者皆空代表尚未排程，否則必須同時設定，
// 結束時間必須在未來且距離開始至少五分鐘。
func validateSchedule(startTime, endTime *time.Time, now time.Time) error {
	if startTime == nil && endTime == nil {
		return nil
	}
	if startTime == nil || endTime == nil {
		return errors.New("start time and end time must be set together")
	}
	if endTime.Before(startTime.Add(models.MinimumDuration)) {
		return fmt.Errorf("auction must run for at least %s", models.MinimumDuration)
	}
	if endTime.Before(now) {
		return errors.New("end time must be in the future")
	}
	return nil
}

// topBidChanged 判斷最高出價是否和呼叫者最後看到的不同
func topBidChanged(current, lastKnown *uuid.UUID) bool {
	if current == nil && lastKnown == nil {
		return false
	}
	if current == nil || lastKnown == nil {
		return true
	}
	return *current != *lastKnown
}
