package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"cardbid/adapters/longpoll"
	"cardbid/adapters/notify"
	"cardbid/bidding"
	"cardbid/models"
	"cardbid/storage"
)

// staticResolver 把憑證原文當作subject與使用者名稱，測試用
type staticResolver struct{}

func (staticResolver) Resolve(_ context.Context, rawToken string) (string, string, error) {
	return rawToken, rawToken, nil
}

func newTestServer(t *testing.T) (*ServerImpl, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemoryStore()
	registry := longpoll.NewRegistry()
	dispatcher, err := notify.NewDispatcher(notify.NewLogDelivery(slog.Default()), store)
	require.NoError(t, err)

	impl := &ServerImpl{
		store:       store,
		bids:        bidding.NewService(store, registry, dispatcher),
		registry:    registry,
		dispatcher:  dispatcher,
		identity:    staticResolver{},
		htmlChecker: bluemonday.UGCPolicy(),
		config: ServerConfig{
			LongPoll: LongPollConfig{Timeout: 200 * time.Millisecond},
		},
	}
	router := gin.New()
	RegisterHandlers(router, impl)
	return impl, router
}

// doRequest 發送一個測試請求，username為空表示未登入
func doRequest(t *testing.T, router *gin.Engine, method, path, username string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if username != "" {
		req.Header.Set("Authorization", "Bearer "+username)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

// ensureUser 直接在儲存層建立使用者
func ensureUser(t *testing.T, impl *ServerImpl, username string) *models.User {
	t.Helper()
	user, err := impl.store.EnsureUser(context.Background(), username, username)
	require.NoError(t, err)
	return user
}

// createOngoingItem 直接在儲存層建立一個進行中的商品
func createOngoingItem(t *testing.T, impl *ServerImpl, sellerID uuid.UUID) *models.AuctionItem {
	t.Helper()
	now := time.Now()
	startTime := now.Add(-time.Hour)
	endTime := now.Add(time.Hour)
	item := &models.AuctionItem{
		SellerID:      sellerID,
		Title:         "Charizard 1st Edition",
		StartingPrice: decimal.NewFromInt(10),
		Spread:        decimal.NewFromInt(2),
		StartTime:     &startTime,
		EndTime:       &endTime,
	}
	require.NoError(t, impl.store.CreateAuctionItem(context.Background(), item))
	return item
}

// createScheduledItem 直接在儲存層建立一個尚未開始的商品
func createScheduledItem(t *testing.T, impl *ServerImpl, sellerID uuid.UUID) *models.AuctionItem {
	t.Helper()
	now := time.Now()
	startTime := now.Add(time.Hour)
	endTime := now.Add(2 * time.Hour)
	item := &models.AuctionItem{
		SellerID:      sellerID,
		Title:         "Charizard 1st Edition",
		StartingPrice: decimal.NewFromInt(10),
		Spread:        decimal.NewFromInt(2),
		StartTime:     &startTime,
		EndTime:       &endTime,
	}
	require.NoError(t, impl.store.CreateAuctionItem(context.Background(), item))
	return item
}

// newDecimal 從字串建立金額
func newDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	amount, err := decimal.NewFromString(value)
	require.NoError(t, err)
	return amount
}

// decodeJSON 解析回應內容
func decodeJSON[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &out))
	return out
}
