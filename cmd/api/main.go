package main

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-order-pipeline/config"
	"github.com/imrishuroy/go-order-pipeline/internal/awsclient"
	"github.com/imrishuroy/go-order-pipeline/internal/handlers"
	"github.com/imrishuroy/go-order-pipeline/internal/notify"
	"github.com/imrishuroy/go-order-pipeline/internal/orders"
	"github.com/imrishuroy/go-order-pipeline/internal/queue"
)

func setupRouter(ordersCfg handlers.OrdersConfig, notifCfg handlers.NotificationsConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterOrdersRoutes(r, ordersCfg)
	handlers.RegisterNotificationRoutes(r, notifCfg)

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	log := config.NewLogger(cfg.Log)

	clients, err := awsclient.New(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	q := queue.NewSQS(clients.SQS, cfg.Queue.URL, cfg.Queue.DeadLetterURL, cfg.Queue.WaitTime, cfg.Queue.VisibilityTimeout)
	store := orders.NewStore(clients.DynamoDB, cfg.Store.OrdersTable)
	registry := notify.NewRegistry(clients.DynamoDB, cfg.Store.SubscriptionsTable)

	r := setupRouter(
		handlers.OrdersConfig{Queue: q, Store: store, Log: log},
		handlers.NotificationsConfig{Registry: registry, Log: log},
	)

	// if RUN_LOCAL is set, run a local HTTP server for development.
	if cfg.HTTP.RunLocal {
		addr := ":" + cfg.HTTP.Port
		log.Infof("running local server on %s", addr)
		if err := r.Run(addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
