package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-order-pipeline/config"
	"github.com/imrishuroy/go-order-pipeline/internal/awsclient"
	"github.com/imrishuroy/go-order-pipeline/internal/consumer"
	"github.com/imrishuroy/go-order-pipeline/internal/events"
	"github.com/imrishuroy/go-order-pipeline/internal/metrics"
	"github.com/imrishuroy/go-order-pipeline/internal/notify"
	"github.com/imrishuroy/go-order-pipeline/internal/orders"
	"github.com/imrishuroy/go-order-pipeline/internal/queue"
	"github.com/imrishuroy/go-order-pipeline/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	log := config.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clients, err := awsclient.New(ctx)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewRecorder(clients.CloudWatch, cfg.Metrics.Namespace, log)
	}

	store := orders.NewStore(clients.DynamoDB, cfg.Store.OrdersTable)
	registry := notify.NewRegistry(clients.DynamoDB, cfg.Store.SubscriptionsTable)
	publisher := notify.NewPublisher(registry, &notify.LogSender{Log: log}, recorder, log)

	gateway := workflow.NewSimulatedGateway(cfg.Workflow.PaymentSuccessRate, cfg.Workflow.PaymentLatency)

	router := events.NewRouter(log)
	orchestrator := workflow.NewOrchestrator(store, gateway, publisher, router, recorder, cfg.Workflow.MaxOrderValue, log)

	router.Register(
		events.HighValueRule(cfg.Workflow.HighValueThreshold, func(ctx context.Context, ev events.Event) error {
			d := ev.Detail()
			_, err := orchestrator.Start(ctx, d.OrderID, d.Timestamp)
			return err
		}),
		events.CreatedRule(func(ctx context.Context, ev events.Event) error {
			return publisher.Publish(ctx, ev)
		}),
		events.UrgentRule(func(ctx context.Context, ev events.Event) error {
			return publisher.Publish(ctx, events.AsUrgent(ev))
		}),
		events.FailedRule(func(ctx context.Context, ev events.Event) error {
			return publisher.Publish(ctx, ev)
		}),
	)

	q := queue.NewSQS(clients.SQS, cfg.Queue.URL, cfg.Queue.DeadLetterURL, cfg.Queue.WaitTime, cfg.Queue.VisibilityTimeout)
	cons := consumer.New(q, store, router, recorder, log, consumer.Options{
		BatchSize:    cfg.Queue.BatchSize,
		MaxReceives:  cfg.Queue.MaxReceives,
		PollInterval: cfg.Worker.PollInterval,
	})

	// In Lambda mode the SQS trigger owns receive/retry/DLQ policy;
	// otherwise run the long-lived polling pool.
	if cfg.Worker.RunLambda {
		lambda.Start(cons.HandleSQSEvent)
		return
	}

	log.WithField("workers", cfg.Worker.Count).Info("worker: starting consumer pool")
	if err := cons.Run(ctx, cfg.Worker.Count); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("consumer stopped: %v", err)
	}
	log.Info("worker: shut down")
}
