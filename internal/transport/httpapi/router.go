package httpapi

import (
	"github.com/Freeeeeet/paybook/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter собирает маршруты. Маршруты, принимающие коды оплаты, идут через лимитер.
func NewRouter(h *Handler, limiter ratelimit.Limiter, logger *zap.Logger) *gin.Engine {
	registerValidators()

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	r.GET("/health", h.Health)
	r.GET("/slots", h.ListSlots)

	payments := r.Group("/payments")
	payments.POST("", h.OpenPayment)
	payments.POST("/webhook", h.Webhook)
	payments.POST("/:id", RateLimit(limiter, "confirm", logger), h.ConfirmPayment)
	payments.GET("/:id", RateLimit(limiter, "status", logger), h.PaymentStatus)

	r.POST("/bookings", RateLimit(limiter, "finalize", logger), h.CreateBooking)

	return r
}
