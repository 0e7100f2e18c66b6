package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"cardbid/adapters/longpoll"
	"cardbid/adapters/notify"
	internalOIDC "cardbid/adapters/oidc"
	"cardbid/bidding"
	"cardbid/storage"
)

type ServerImpl struct {
	store       storage.Store
	bids        *bidding.Service
	registry    *longpoll.Registry
	dispatcher  *notify.Dispatcher
	identity    IdentityResolver
	htmlChecker *bluemonday.Policy
	wg          sync.WaitGroup
	cancelFunc  context.CancelFunc

	config ServerConfig
}

func NewServer(config ServerConfig) (*ServerImpl, error) {
	const op = "NewServer"

	// 初始化OIDC提供者
	oidcProvider, err := internalOIDC.NewProvider(config.OIDC.IssuerURL, config.OIDC.ClientID)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to initial OIDC provider, err=%w", op, err)
	}

	// 初始化持久層：沒有設定資料庫時使用記憶體儲存（僅限本機開發）
	var store storage.Store
	if config.DB.Host == "" {
		slog.Warn("No database configured, using in-memory store")
		store = storage.NewMemoryStore()
	} else {
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s", config.DB.User, config.DB.Password, config.DB.Host, config.DB.Port, config.DB.Database, config.DB.Schema)
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			TranslateError: true,
			NamingStrategy: schema.NamingStrategy{
				TablePrefix: config.DB.Schema + ".",
			},
		})
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to connect to database, err=%w", op, err)
		}
		store = storage.NewGormStore(db)
	}

	// 初始化通知遞送：沒有設定遞送服務時只寫日誌
	var delivery notify.Delivery
	if config.Delivery.Endpoint == "" {
		delivery = notify.NewLogDelivery(slog.Default())
	} else {
		delivery = notify.NewWebhookDelivery(context.Background(), config.Delivery.Endpoint, config.Delivery.TokenURL, config.Delivery.ClientID, config.Delivery.ClientSecret)
	}
	dispatcher, err := notify.NewDispatcher(delivery, store, notify.WithDispatcherLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create dispatcher, err=%w", op, err)
	}

	// 初始化長輪詢註冊表與出價服務
	registry := longpoll.NewRegistry()
	bids := bidding.NewService(store, registry, dispatcher)

	return &ServerImpl{
		store:       store,
		bids:        bids,
		registry:    registry,
		dispatcher:  dispatcher,
		identity:    &OIDCResolver{provider: oidcProvider},
		htmlChecker: bluemonday.UGCPolicy(),
		config:      config,
	}, nil
}

func (impl *ServerImpl) Start() {
	// 啟動通知分派器
	impl.dispatcher.Start()
	// 啟動一個worker定期掃描即將結束與剛結束的拍賣
	ctx, cancel := context.WithCancel(context.Background())
	impl.cancelFunc = cancel
	slog.Info("Start auction sweep worker")
	impl.wg.Add(1)
	go func() {
		logger := slog.Default().With(slog.String("caller", "AuctionSweep"))
		defer impl.wg.Done()
		defer slog.Info("Auction sweep worker stopped")
		ticker := time.NewTicker(impl.config.Sweep.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := impl.sweep(ctx, time.Now()); err != nil {
					logger.Error("Fail to sweep auctions", slog.Any("error", err))
				}
			}
		}
	}()
}

func (impl *ServerImpl) Close() {
	// 關閉worker
	if impl.cancelFunc != nil {
		impl.cancelFunc()
	}
	impl.wg.Wait()
	// 關閉通知分派器
	impl.dispatcher.Close()
}

// sweep 是時間驅動的結束通知流程：
// 出價路徑只保證帳本與狀態正確，結束相關的事件由這裡推導。
func (impl *ServerImpl) sweep(ctx context.Context, now time.Time) error {
	const op = "sweep"
	// 即將結束的拍賣
	endingSoon, err := impl.store.ListEndingSoon(ctx, now, impl.config.Sweep.EndingSoonLead)
	if err != nil {
		return fmt.Errorf("[%s] Fail to list ending auctions, err=%w", op, err)
	}
	for i := range endingSoon {
		item := endingSoon[i]
		top, err := impl.store.GetTopBid(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("[%s] Fail to load top bid, err=%w", op, err)
		}
		impl.dispatcher.EndingSoon(&item, top)
		if err := impl.store.MarkEndingSoonNotified(ctx, item.ID, now); err != nil {
			return fmt.Errorf("[%s] Fail to mark auction item, err=%w", op, err)
		}
	}
	// 剛結束的拍賣：最高出價者即為得標者
	ended, err := impl.store.ListJustEnded(ctx, now)
	if err != nil {
		return fmt.Errorf("[%s] Fail to list ended auctions, err=%w", op, err)
	}
	for i := range ended {
		item := ended[i]
		top, err := impl.store.GetTopBid(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("[%s] Fail to load top bid, err=%w", op, err)
		}
		bidders, err := impl.store.DistinctBidders(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("[%s] Fail to list bidders, err=%w", op, err)
		}
		impl.dispatcher.AuctionEnded(&item, top, bidders)
		if err := impl.store.MarkFinalized(ctx, item.ID, now); err != nil {
			return fmt.Errorf("[%s] Fail to mark auction item, err=%w", op, err)
		}
	}
	return nil
}
