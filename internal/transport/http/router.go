package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter lays out the two boundaries: the open webhook (keyed by
// registered owner email) and the JWT-protected dashboard API.
func NewRouter(wh *WebhookHandler, bh *BookingHandler, ch *ClientHandler, mh *MessageHandler) *gin.Engine {
	r := gin.Default()

	api := r.Group("/api")
	{
		api.POST("/sms-webhook", wh.Receive)
		api.GET("/sms-webhook", wh.Status)
		api.POST("/sms-webhook/batch", wh.ReceiveBatch)

		secured := api.Group("")
		secured.Use(JWTAuth())
		{
			secured.GET("/bookings", bh.List)
			secured.POST("/bookings", bh.Create)
			secured.POST("/bookings/:id/approve", bh.Approve)
			secured.POST("/bookings/:id/reject", bh.Reject)
			secured.DELETE("/bookings/:id", bh.Delete)

			secured.GET("/clients", ch.List)
			secured.GET("/messages", mh.List)
		}
	}
	return r
}
