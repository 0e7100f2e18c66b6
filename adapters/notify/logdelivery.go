package notify

import (
	"context"
	"log/slog"
)

// LogDelivery 將通知寫入日誌，用於沒有設定遞送服務的環境。
type LogDelivery struct {
	logger *slog.Logger
}

func NewLogDelivery(logger *slog.Logger) *LogDelivery {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDelivery{logger: logger.With(slog.String("caller", "LogDelivery"))}
}

func (l *LogDelivery) Deliver(_ context.Context, notification Notification) error {
	l.logger.Info("notification",
		slog.String("event", string(notification.Event)),
		slog.String("recipient", notification.Recipient.String()),
		slog.String("auctionItemID", notification.AuctionItemID.String()),
		slog.String("title", notification.Title))
	return nil
}
