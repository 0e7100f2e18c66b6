package bidding

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// RejectionReason 出價被拒絕的業務原因
type RejectionReason string

const (
	RejectionNotFound       RejectionReason = "NOT_FOUND"
	RejectionNotStarted     RejectionReason = "AUCTION_NOT_STARTED"
	RejectionEnded          RejectionReason = "AUCTION_ENDED"
	RejectionSelfBid        RejectionReason = "SELF_BID"
	RejectionAlreadyLeading RejectionReason = "ALREADY_LEADING"
	RejectionBidTooLow      RejectionReason = "BID_TOO_LOW"
	RejectionInvalidAmount  RejectionReason = "INVALID_AMOUNT"
)

// Rejection 代表一次出價的業務拒絕。
// 拒絕是確定的業務結果，呼叫者不應該自動重試；
// 只有金額過低時 MinAcceptable 才有值，讓出價者知道最低可接受金額。
type Rejection struct {
	Reason        RejectionReason
	MinAcceptable decimal.Decimal
}

func (r *Rejection) Error() string {
	if r.Reason == RejectionBidTooLow {
		return fmt.Sprintf("bid rejected: %s, min acceptable is %s", r.Reason, r.MinAcceptable)
	}
	return fmt.Sprintf("bid rejected: %s", r.Reason)
}

// AsRejection 判斷錯誤是否為業務拒絕
func AsRejection(err error) (*Rejection, bool) {
	var rejection *Rejection
	if errors.As(err, &rejection) {
		return rejection, true
	}
	return nil, false
}
