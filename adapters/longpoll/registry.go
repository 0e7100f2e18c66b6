package longpoll

import (
	"sync"

	"github.com/google/uuid"
)

// Registry 以拍賣商品為鍵管理長輪詢等待者。
// 這是行程內的狀態：長輪詢是「從我上次看到之後有沒有變化」的查詢，
// 沒有等待者時的通知直接丟棄，不需要補送錯過的事件。
//
// 註冊表本身只保護商品到 Topic 的對應，
// 個別商品的等待者清單由各自的 Topic 鎖保護，
// 不同商品的訂閱與喚醒互不阻塞。
type Registry struct {
	mu     sync.RWMutex
	topics map[uuid.UUID]*Topic
}

func NewRegistry() *Registry {
	return &Registry{
		topics: make(map[uuid.UUID]*Topic),
	}
}

// Subscribe 為指定商品註冊一個等待者。
// 呼叫端取得通道後必須重新讀取一次目前狀態，
// 先訂閱再讀取可以保證不會漏掉兩者之間發生的喚醒。
func (r *Registry) Subscribe(auctionID uuid.UUID) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.topics[auctionID]
	if !ok {
		t = NewTopic()
		r.topics[auctionID] = t
	}
	return t.Subscribe()
}

// Unsubscribe 移除指定商品的一個等待者。
// 連線中斷或逾時的請求必須呼叫這裡，等待者清單才不會無限成長。
func (r *Registry) Unsubscribe(auctionID uuid.UUID, ch <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.topics[auctionID]
	if !ok {
		return
	}
	t.Unsubscribe(ch)
	if t.IsIdle() {
		delete(r.topics, auctionID)
	}
}

// Notify 喚醒並移除指定商品的所有等待者。
// 出價成功後由許可流程呼叫；沒有等待者時這是一個空操作。
func (r *Registry) Notify(auctionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.topics[auctionID]
	if !ok {
		return
	}
	t.NotifyAll()
	delete(r.topics, auctionID)
}

// WaiterCount 回傳指定商品目前的等待者數量，測試與監控用。
func (r *Registry) WaiterCount(auctionID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.topics[auctionID]
	if !ok {
		return 0
	}
	return t.Len()
}
