package bidding

import (
	"sync"

	"github.com/google/uuid"
)

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex 提供以商品為粒度的互斥鎖。
// 不同商品的出價彼此不互相阻塞，閒置的鎖會從表中移除避免無限成長。
type keyedMutex struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[uuid.UUID]*lockEntry)}
}

// lock 鎖定指定的商品，回傳對應的解鎖函式
func (k *keyedMutex) lock(key uuid.UUID) (unlock func()) {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
