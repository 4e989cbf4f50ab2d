package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/marketlab/marketplace/internal/service"
)

func NewRouter(logger *zap.Logger, users service.Users, orders service.Orders, payments service.Payments) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(cors.Default())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	uh := &userHandler{users: users}
	oh := &orderHandler{orders: orders}
	ph := &paymentHandler{payments: payments}

	api := router.Group("/api")
	{
		api.POST("/users", uh.register)
		api.GET("/users", uh.list)
		api.GET("/users/:id", uh.get)

		api.POST("/orders", oh.create)
		api.GET("/orders", oh.list)
		api.GET("/orders/:id", oh.get)
		api.POST("/orders/:id/items", oh.addItem)
		api.POST("/orders/:id/pay", oh.pay)
		api.POST("/orders/:id/cancel", oh.cancel)
		api.POST("/orders/:id/ship", oh.ship)
		api.POST("/orders/:id/complete", oh.complete)
		api.GET("/orders/:id/history", oh.history)

		api.POST("/payments/pay", ph.pay)
		api.GET("/payments/history/:order_id", ph.history)
		api.POST("/payments/test-concurrent", ph.testConcurrent)
	}

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
