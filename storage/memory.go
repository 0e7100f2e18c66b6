package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cardbid/models"
)

// MemoryStore 是 Store 的記憶體實作，
// 用於單元測試與沒有設定資料庫的本機環境。
// 所有操作都在同一把鎖底下執行，天然滿足提交當下重新驗證的要求。
type MemoryStore struct {
	mu        sync.RWMutex
	items     map[uuid.UUID]*models.AuctionItem
	bids      map[uuid.UUID][]models.Bid
	users     map[uuid.UUID]*models.User
	bySubject map[string]uuid.UUID
	watches   map[uuid.UUID]map[uuid.UUID]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:     make(map[uuid.UUID]*models.AuctionItem),
		bids:      make(map[uuid.UUID][]models.Bid),
		users:     make(map[uuid.UUID]*models.User),
		bySubject: make(map[string]uuid.UUID),
		watches:   make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

func (s *MemoryStore) CreateAuctionItem(_ context.Context, item *models.AuctionItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.Must(uuid.NewV7())
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	stored := *item
	s.items[item.ID] = &stored
	return nil
}

func (s *MemoryStore) GetAuctionItem(_ context.Context, id uuid.UUID) (*models.AuctionItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *item
	if seller, ok := s.users[item.SellerID]; ok {
		copied.Seller = *seller
	}
	return &copied, nil
}

func (s *MemoryStore) UpdateAuctionItem(_ context.Context, item *models.AuctionItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return ErrNotFound
	}
	stored := *item
	s.items[item.ID] = &stored
	return nil
}

func (s *MemoryStore) DeleteAuctionItem(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	delete(s.bids, id)
	delete(s.watches, id)
	return nil
}

func (s *MemoryStore) ListAuctionItems(_ context.Context, filter ListFilter) ([]models.AuctionItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.AuctionItem, 0, len(s.items))
	for _, item := range s.items {
		if filter.ExcludeEnded && item.EndTime != nil && item.EndTime.Before(filter.Now) {
			continue
		}
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i].EndTime, items[j].EndTime
		switch {
		case a == nil && b == nil:
			return items[i].ID.String() < items[j].ID.String()
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return items[i].ID.String() < items[j].ID.String()
		default:
			return a.Before(*b)
		}
	})
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (s *MemoryStore) GetTopBid(_ context.Context, auctionID uuid.UUID) (*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topBidLocked(auctionID), nil
}

func (s *MemoryStore) ListBids(_ context.Context, auctionID uuid.UUID) ([]models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.bids[auctionID]
	// 由新到舊排序
	bids := make([]models.Bid, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		bid := records[i]
		if bidder, ok := s.users[bid.BidderID]; ok {
			bid.Bidder = *bidder
		}
		bids = append(bids, bid)
	}
	return bids, nil
}

func (s *MemoryStore) CountBids(_ context.Context, auctionID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.bids[auctionID])), nil
}

func (s *MemoryStore) InsertBid(_ context.Context, auctionID, bidderID uuid.UUID, amount decimal.Decimal, now time.Time) (*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[auctionID]
	if !ok {
		return nil, ErrNotFound
	}
	// 以提交當下的狀態重新驗證最低出價規則
	minAcceptable := item.StartingPrice
	if top := s.topBidLocked(auctionID); top != nil {
		minAcceptable = top.Amount
	}
	minAcceptable = minAcceptable.Add(item.Spread)
	if amount.LessThan(minAcceptable) {
		return nil, ErrStaleTopBid
	}
	bid := models.Bid{
		ID:            uuid.Must(uuid.NewV7()),
		AuctionItemID: auctionID,
		BidderID:      bidderID,
		Amount:        amount,
	}
	bid.CreatedAt = now
	s.bids[auctionID] = append(s.bids[auctionID], bid)
	return &bid, nil
}

func (s *MemoryStore) DistinctBidders(_ context.Context, auctionID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[uuid.UUID]struct{})
	bidders := make([]uuid.UUID, 0)
	for _, bid := range s.bids[auctionID] {
		if _, ok := seen[bid.BidderID]; ok {
			continue
		}
		seen[bid.BidderID] = struct{}{}
		bidders = append(bidders, bid.BidderID)
	}
	return bidders, nil
}

func (s *MemoryStore) EnsureUser(_ context.Context, subject, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.bySubject[subject]; ok {
		copied := *s.users[id]
		return &copied, nil
	}
	user := models.User{
		ID:       uuid.Must(uuid.NewV7()),
		Subject:  subject,
		Username: username,
	}
	user.CreatedAt = time.Now()
	s.users[user.ID] = &user
	s.bySubject[subject] = user.ID
	copied := user
	return &copied, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *MemoryStore) AddWatch(_ context.Context, auctionID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watches[auctionID]; !ok {
		s.watches[auctionID] = make(map[uuid.UUID]struct{})
	}
	s.watches[auctionID][userID] = struct{}{}
	return nil
}

func (s *MemoryStore) RemoveWatch(_ context.Context, auctionID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watches[auctionID], userID)
	return nil
}

func (s *MemoryStore) WatchersOf(_ context.Context, auctionID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	watchers := make([]uuid.UUID, 0, len(s.watches[auctionID]))
	for id := range s.watches[auctionID] {
		watchers = append(watchers, id)
	}
	return watchers, nil
}

func (s *MemoryStore) ListEndingSoon(_ context.Context, now time.Time, lead time.Duration) ([]models.AuctionItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []models.AuctionItem
	deadline := now.Add(lead)
	for _, item := range s.items {
		if item.EndTime == nil || item.EndingSoonNotifiedAt != nil {
			continue
		}
		if item.EndTime.After(now) && !item.EndTime.After(deadline) {
			items = append(items, *item)
		}
	}
	return items, nil
}

func (s *MemoryStore) MarkEndingSoonNotified(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	stamped := at
	item.EndingSoonNotifiedAt = &stamped
	return nil
}

func (s *MemoryStore) ListJustEnded(_ context.Context, now time.Time) ([]models.AuctionItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []models.AuctionItem
	for _, item := range s.items {
		if item.EndTime == nil || item.FinalizedAt != nil {
			continue
		}
		if !item.EndTime.After(now) {
			items = append(items, *item)
		}
	}
	return items, nil
}

func (s *MemoryStore) MarkFinalized(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	stamped := at
	item.FinalizedAt = &stamped
	return nil
}

// topBidLocked 最近一筆出價即為最高出價，呼叫者必須持有鎖
func (s *MemoryStore) topBidLocked(auctionID uuid.UUID) *models.Bid {
	records := s.bids[auctionID]
	if len(records) == 0 {
		return nil
	}
	top := records[len(records)-1]
	if bidder, ok := s.users[top.BidderID]; ok {
		top.Bidder = *bidder
	}
	return &top
}
