// Package metrics publishes operational counters to CloudWatch. Emission
// is best-effort: a metrics failure is logged and never reaches callers.
package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-order-pipeline/internal/awsclient"
)

// Metric names emitted by the pipeline.
const (
	OrdersPersisted        = "OrdersPersisted"
	OrdersCompleted        = "OrdersCompleted"
	OrdersFailed           = "OrdersFailed"
	MessagesDeadLettered   = "MessagesDeadLettered"
	NotificationsDelivered = "NotificationsDelivered"
)

// Recorder wraps a CloudWatch client and a namespace. A nil client
// disables emission entirely, which local runs and tests rely on.
type Recorder struct {
	client    awsclient.CloudWatchAPI
	namespace string
	log       *logrus.Logger
	nowFunc   func() time.Time
}

func NewRecorder(client awsclient.CloudWatchAPI, namespace string, log *logrus.Logger) *Recorder {
	return &Recorder{
		client:    client,
		namespace: namespace,
		log:       log,
		nowFunc:   time.Now,
	}
}

// Count adds value to the named counter.
func (r *Recorder) Count(ctx context.Context, name string, value float64) {
	if r == nil || r.client == nil {
		return
	}

	now := r.nowFunc()
	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &r.namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: &name,
				Value:      &value,
				Unit:       cwtypes.StandardUnitCount,
				Timestamp:  &now,
			},
		},
	})
	if err != nil {
		r.log.WithError(err).WithField("metric", name).Warn("metrics: put metric data failed")
	}
}
