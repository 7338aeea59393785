package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-order-pipeline/internal/notify"
)

// NotificationsConfig groups dependencies for the subscription routes.
type NotificationsConfig struct {
	Registry *notify.Registry
	Log      *logrus.Logger
}

type subscribeRequest struct {
	Email       string          `json:"email"`
	Preferences map[string]bool `json:"preferences"`
}

type unsubscribeRequest struct {
	Email string `json:"email"`
}

// RegisterNotificationRoutes registers subscribe/unsubscribe/confirm.
func RegisterNotificationRoutes(r *gin.Engine, cfg NotificationsConfig) {
	r.POST("/notifications/subscribe", func(c *gin.Context) {
		var req subscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
			return
		}

		sub, err := cfg.Registry.Subscribe(c.Request.Context(), req.Email, req.Preferences)
		if err != nil {
			if errors.Is(err, notify.ErrInvalidEmail) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_email"})
				return
			}
			cfg.Log.WithField("email", req.Email).WithError(err).Error("notifications: subscribe failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "subscribe_failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":         "Subscription created, confirmation pending",
			"subscriptionArn": sub.SubscriptionARN,
			"preferences":     sub.Preferences,
		})
	})

	r.POST("/notifications/unsubscribe", func(c *gin.Context) {
		var req unsubscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
			return
		}

		err := cfg.Registry.Unsubscribe(c.Request.Context(), req.Email)
		if err != nil {
			if errors.Is(err, notify.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "subscription_not_found"})
				return
			}
			cfg.Log.WithField("email", req.Email).WithError(err).Error("notifications: unsubscribe failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "unsubscribe_failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Unsubscribed"})
	})

	r.GET("/notifications/confirm", func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_token"})
			return
		}

		sub, err := cfg.Registry.Confirm(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, notify.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "subscription_not_found"})
				return
			}
			cfg.Log.WithError(err).Error("notifications: confirm failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "confirm_failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":         "Subscription confirmed",
			"subscriptionArn": sub.SubscriptionARN,
		})
	})
}
