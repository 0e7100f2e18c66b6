package longpoll

import (
	"sync"
)

// Topic 管理單一拍賣商品的所有等待者，
// 並在狀態改變時一次喚醒全部等待者。
// 喚醒以關閉通道表示，等待者醒來後各自重新讀取最新狀態，
// 所以同一事件喚醒的所有等待者看到的是同一個新狀態。
type Topic struct {
	waiters map[<-chan struct{}]chan struct{}
	mu      sync.Mutex
}

// NewTopic creates an empty waiter list.
func NewTopic() *Topic {
	return &Topic{
		waiters: make(map[<-chan struct{}]chan struct{}),
	}
}

// Subscribe 建立一個新的等待者，回傳在下次喚醒時會被關閉的唯讀通道。
func (t *Topic) Subscribe() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan struct{})
	t.waiters[ch] = ch
	return ch
}

// Unsubscribe 從等待者清單中移除指定的通道。
// 等待者若已被喚醒移除，重複呼叫不會有任何效果，
// 因此呼叫端可以放心地在請求結束時一律反註冊。
func (t *Topic) Unsubscribe(ch <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if waitCh, exists := t.waiters[ch]; exists {
		delete(t.waiters, ch)
		close(waitCh)
	}
}

// NotifyAll 喚醒並移除所有等待者。
func (t *Topic) NotifyAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, waitCh := range t.waiters {
		close(waitCh)
	}
	clear(t.waiters)
}

// IsIdle 判斷等待者清單是否為空。
func (t *Topic) IsIdle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters) == 0
}

// Len 回傳目前的等待者數量。
func (t *Topic) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}
