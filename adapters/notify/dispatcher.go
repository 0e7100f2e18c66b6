package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallnest/chanx"

	"cardbid/models"
)

type dispatcherOptions struct {
	logger          *slog.Logger
	bufferSize      int
	deliveryTimeout time.Duration
}

type DispatcherOption func(*dispatcherOptions)

// WithDispatcherLogger 設置日誌記錄器
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.logger = logger
	}
}

// WithDispatcherBufferSize 設置佇列的初始緩衝大小
func WithDispatcherBufferSize(size int) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.bufferSize = size
	}
}

// WithDispatcherDeliveryTimeout 設置單則通知的遞送逾時
func WithDispatcherDeliveryTimeout(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.deliveryTimeout = d
	}
}

type taskKind int

const (
	taskBidAccepted taskKind = iota
	taskEndingSoon
	taskAuctionEnded
)

type task struct {
	kind        taskKind
	item        models.AuctionItem
	bid         *models.Bid
	previousTop *models.Bid
	losers      []uuid.UUID
	occurredAt  time.Time
}

// Dispatcher 將拍賣狀態的變化分類為通知事件並交給遞送服務。
// 排入佇列的呼叫永遠不會阻塞出價流程：
// 佇列是無上限的，分類所需的查詢（例如關注者清單）也是在背景完成。
type Dispatcher struct {
	delivery   Delivery
	watchers   WatcherSource
	queue      *chanx.UnboundedChan[task]
	cancelFunc context.CancelFunc

	mu     sync.RWMutex   // 保護 closed 與 queue 的讀寫
	wg     sync.WaitGroup // 用於等待worker goroutine完成
	closed bool

	logger  *slog.Logger
	options dispatcherOptions
}

func NewDispatcher(delivery Delivery, watchers WatcherSource, opts ...DispatcherOption) (*Dispatcher, error) {
	if delivery == nil {
		return nil, errors.New("delivery cannot be nil")
	}
	if watchers == nil {
		return nil, errors.New("watcher source cannot be nil")
	}

	// 默認選項
	options := dispatcherOptions{
		logger:          slog.Default(),
		bufferSize:      100,
		deliveryTimeout: 5 * time.Second,
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	return &Dispatcher{
		delivery: delivery,
		watchers: watchers,
		closed:   true,
		logger:   options.logger.With(slog.String("caller", "Dispatcher")),
		options:  options,
	}, nil
}

func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.queue = chanx.NewUnboundedChan[task](ctx, d.options.bufferSize)
	d.cancelFunc = cancel
	d.closed = false
	d.logger.Info("starting notification dispatcher")

	d.wg.Add(1)
	go func(queue *chanx.UnboundedChan[task]) {
		defer d.wg.Done()
		defer d.logger.Info("dispatcher goroutine stopped")

		// 佇列的輸入端關閉且剩餘任務送完後，輸出端才會關閉
		for t := range queue.Out {
			d.process(ctx, t)
		}
	}(d.queue)
}

// Close 停止接收新的任務，並等待佇列中的通知送完才返回。
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.logger.Info("closing notification dispatcher")
	d.closed = true
	close(d.queue.In)
	cancel := d.cancelFunc
	d.mu.Unlock()

	d.wg.Wait()
	cancel()
	d.logger.Info("notification dispatcher closed")
}

// enqueue 將任務排入佇列，已關閉時直接丟棄。
// 讀鎖讓排入與關閉互斥，保證不會在輸入端關閉後才送出。
func (d *Dispatcher) enqueue(t task) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	d.queue.In <- t
}

// BidAccepted 將一筆成功的出價排入佇列。
// 必須在出價寫入成功之後呼叫，避免通知到沒有提交的出價。
func (d *Dispatcher) BidAccepted(item *models.AuctionItem, bid *models.Bid, previousTop *models.Bid) {
	d.enqueue(task{
		kind:        taskBidAccepted,
		item:        *item,
		bid:         bid,
		previousTop: previousTop,
		occurredAt:  bid.CreatedAt,
	})
}

func (d *Dispatcher) EndingSoon(item *models.AuctionItem, topBid *models.Bid) {
	d.enqueue(task{
		kind:       taskEndingSoon,
		item:       *item,
		bid:        topBid,
		occurredAt: time.Now(),
	})
}

func (d *Dispatcher) AuctionEnded(item *models.AuctionItem, topBid *models.Bid, losers []uuid.UUID) {
	d.enqueue(task{
		kind:       taskAuctionEnded,
		item:       *item,
		bid:        topBid,
		losers:     losers,
		occurredAt: time.Now(),
	})
}

func (d *Dispatcher) process(ctx context.Context, t task) {
	for _, notification := range d.expand(ctx, t) {
		deliverCtx, cancel := context.WithTimeout(ctx, d.options.deliveryTimeout)
		err := d.delivery.Deliver(deliverCtx, notification)
		cancel()
		if err != nil {
			// 遞送失敗只記錄，出價結果不受影響
			d.logger.Error("Fail to deliver notification",
				slog.String("event", string(notification.Event)),
				slog.String("recipient", notification.Recipient.String()),
				slog.String("auctionItemID", notification.AuctionItemID.String()),
				slog.Any("error", err))
		}
	}
}

// expand 將一個狀態變化展開為零或多則通知
func (d *Dispatcher) expand(ctx context.Context, t task) []Notification {
	base := Notification{
		AuctionItemID: t.item.ID,
		Title:         t.item.Title,
		OccurredAt:    t.occurredAt,
	}
	var notifications []Notification
	emit := func(event Event, recipient uuid.UUID, amount *decimal.Decimal) {
		n := base
		n.Event = event
		n.Recipient = recipient
		n.Amount = amount
		notifications = append(notifications, n)
	}

	switch t.kind {
	case taskBidAccepted:
		amount := &t.bid.Amount
		// 原本的最高出價者被超越
		if t.previousTop != nil && t.previousTop.BidderID != t.bid.BidderID {
			emit(EventOutbidded, t.previousTop.BidderID, amount)
		}
		// 賣家收到新出價
		emit(EventReceivedBid, t.item.SellerID, amount)
		// 其他關注者收到新出價
		for _, watcher := range d.watchersOf(ctx, t.item.ID) {
			if watcher == t.bid.BidderID || watcher == t.item.SellerID {
				continue
			}
			if t.previousTop != nil && watcher == t.previousTop.BidderID {
				continue
			}
			emit(EventWatchingReceivedBid, watcher, amount)
		}

	case taskEndingSoon:
		var amount *decimal.Decimal
		if t.bid != nil {
			amount = &t.bid.Amount
		}
		emit(EventEndingSoon, t.item.SellerID, amount)
		if t.bid != nil {
			emit(EventEndingSoon, t.bid.BidderID, amount)
		}
		for _, watcher := range d.watchersOf(ctx, t.item.ID) {
			if watcher == t.item.SellerID {
				continue
			}
			if t.bid != nil && watcher == t.bid.BidderID {
				continue
			}
			emit(EventEndingSoon, watcher, amount)
		}

	case taskAuctionEnded:
		var amount *decimal.Decimal
		var winner uuid.UUID
		if t.bid != nil {
			amount = &t.bid.Amount
			winner = t.bid.BidderID
			emit(EventWon, winner, amount)
		}
		for _, loser := range t.losers {
			if loser == winner {
				continue
			}
			emit(EventLost, loser, amount)
		}
		emit(EventOwningEnded, t.item.SellerID, amount)
	}
	return notifications
}

func (d *Dispatcher) watchersOf(ctx context.Context, auctionID uuid.UUID) []uuid.UUID {
	watchers, err := d.watchers.WatchersOf(ctx, auctionID)
	if err != nil {
		d.logger.Error("Fail to list watchers", slog.String("auctionItemID", auctionID.String()), slog.Any("error", err))
		return nil
	}
	return watchers
}
