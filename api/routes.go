package api

import "github.com/gin-gonic/gin"

// RegisterHandlers 註冊所有路由。
// 身份解析middleware掛在整個群組上，
// 未登入的請求仍可以瀏覽拍賣與使用長輪詢。
func RegisterHandlers(router gin.IRouter, impl *ServerImpl) {
	group := router.Group("/", impl.AuthMiddleware())

	group.POST("/auctions", impl.PostAuction)
	group.GET("/auctions", impl.GetAuctions)
	group.GET("/auctions/:itemID", impl.GetAuction)
	group.PATCH("/auctions/:itemID", impl.PatchAuction)
	group.DELETE("/auctions/:itemID", impl.DeleteAuction)

	group.POST("/auctions/:itemID/bids", impl.PostAuctionBid)

	group.PUT("/auctions/:itemID/watch", impl.PutAuctionWatch)
	group.DELETE("/auctions/:itemID/watch", impl.DeleteAuctionWatch)
}
