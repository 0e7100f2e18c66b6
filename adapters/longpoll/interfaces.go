//go:generate mockgen -package=longpoll -destination=mock.go -source=interfaces.go

package longpoll

import "github.com/google/uuid"

// IRegistry 定義了長輪詢註冊表的操作介面
type IRegistry interface {
	// Subscribe 為指定商品註冊一個等待者，回傳喚醒時會被關閉的通道
	Subscribe(auctionID uuid.UUID) <-chan struct{}
	// Unsubscribe 移除指定商品的一個等待者
	Unsubscribe(auctionID uuid.UUID, ch <-chan struct{})
	// Notify 喚醒並移除指定商品的所有等待者
	Notify(auctionID uuid.UUID)
}
