package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"cardbid/bidding"
)

// Place a bid on an auction item
// (POST /auctions/{itemID}/bids)
func (impl *ServerImpl) PostAuctionBid(c *gin.Context) {
	const op = "PostAuctionBid"
	// 檢查使用者是否已登入
	user := principalFrom(c)
	if user == nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	var req PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    string(bidding.RejectionInvalidAmount),
			Message: lo.ToPtr("Invalid request body"),
		})
		return
	}

	bid, err := impl.bids.PlaceBid(c.Request.Context(), itemID, user.ID, req.Amount, time.Now())
	if err != nil {
		rejection, ok := bidding.AsRejection(err)
		if !ok {
			slog.Error("Fail to place bid", slog.String("op", op), slog.Any("error", err))
			c.Status(http.StatusInternalServerError)
			return
		}
		// 業務拒絕是確定的結果，回應中帶上原因讓呼叫者不需要重試
		switch rejection.Reason {
		case bidding.RejectionNotFound:
			c.JSON(http.StatusNotFound, ErrorResponse{Code: string(rejection.Reason)})
		case bidding.RejectionInvalidAmount:
			c.JSON(http.StatusBadRequest, ErrorResponse{Code: string(rejection.Reason)})
		case bidding.RejectionBidTooLow:
			c.JSON(http.StatusConflict, ErrorResponse{
				Code:          string(rejection.Reason),
				MinAcceptable: lo.ToPtr(rejection.MinAcceptable),
			})
		default:
			c.JSON(http.StatusConflict, ErrorResponse{Code: string(rejection.Reason)})
		}
		return
	}

	slog.Info("Higher bid occurs",
		slog.String("auctionID", itemID.String()),
		slog.String("bidder", user.Username),
		slog.String("amount", bid.Amount.String()),
	)
	c.JSON(http.StatusCreated, BidView{
		Id:     bid.ID,
		Amount: bid.Amount,
		Bidder: user.Username,
		Time:   bid.CreatedAt,
	})
}
