package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-order-pipeline/internal/orders"
	"github.com/imrishuroy/go-order-pipeline/internal/queue"
	"github.com/imrishuroy/go-order-pipeline/internal/validation"
)

// OrdersConfig groups dependencies for the order routes.
type OrdersConfig struct {
	Queue queue.Queue
	Store *orders.Store
	Log   *logrus.Logger
}

// RegisterOrdersRoutes registers the order ingress and listing routes.
//
// POST /orders only acknowledges acceptance: the submission is validated,
// enqueued and answered immediately. The terminal outcome is observable
// via GET /orders or a delivered notification.
func RegisterOrdersRoutes(r *gin.Engine, cfg OrdersConfig) {
	v := validation.New()

	r.POST("/orders", func(c *gin.Context) {
		ctx := c.Request.Context()

		var sub orders.Submission
		if err := validation.BindAndValidate(c, &sub, v); err != nil {
			// BindAndValidate already wrote a 400; nothing was enqueued
			return
		}

		body, err := json.Marshal(sub)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"message": "Failed to accept order submission",
				"error":   err.Error(),
			})
			return
		}

		attrs := map[string]string{
			"order_id":       sub.OrderID,
			"priority":       string(orders.ParsePriority(sub.Priority)),
			"correlation_id": c.GetHeader("X-Request-Id"),
		}
		if err := cfg.Queue.Enqueue(ctx, string(body), attrs); err != nil {
			cfg.Log.WithField("order_id", sub.OrderID).WithError(err).Error("orders: enqueue failed")
			c.JSON(http.StatusInternalServerError, gin.H{
				"message": "Failed to accept order submission",
				"error":   err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Order submission accepted",
			"orderId": sub.OrderID,
		})
	})

	// unpaginated by design
	r.GET("/orders", func(c *gin.Context) {
		list, err := cfg.Store.Scan(c.Request.Context())
		if err != nil {
			cfg.Log.WithError(err).Error("orders: scan failed")
			c.JSON(http.StatusInternalServerError, gin.H{
				"message": "Failed to list orders",
				"error":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": list})
	})
}
