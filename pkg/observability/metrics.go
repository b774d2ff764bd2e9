package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// CloudWatchAPI is the subset of the CloudWatch client used for metric
// publication.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metrics publishes access-layer metrics to CloudWatch: per-operation
// latency and cache hit/miss counts, dimensioned by collection. Every
// recording call is explicit at the call site; failures are logged and
// swallowed because metrics must never affect the data path. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	namespace string
	client    CloudWatchAPI
	logger    *zap.Logger
}

// NewMetrics creates a metrics publisher for the given namespace.
func NewMetrics(namespace string, client CloudWatchAPI, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Metrics{
		namespace: namespace,
		client:    client,
		logger:    logger,
	}
}

// RecordOperation records the latency and outcome of one access-layer
// operation.
func (m *Metrics) RecordOperation(ctx context.Context, operation, collection string, elapsed time.Duration, opErr error) {
	if m == nil || m.client == nil {
		return
	}

	dims := []cwtypes.Dimension{
		{Name: aws.String("Operation"), Value: aws.String(operation)},
		{Name: aws.String("Collection"), Value: aws.String(collection)},
	}

	data := []cwtypes.MetricDatum{
		{
			MetricName: aws.String("OperationLatency"),
			Dimensions: dims,
			Unit:       cwtypes.StandardUnitMilliseconds,
			Value:      aws.Float64(float64(elapsed.Milliseconds())),
		},
	}
	if opErr != nil {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String("OperationErrors"),
			Dimensions: dims,
			Unit:       cwtypes.StandardUnitCount,
			Value:      aws.Float64(1),
		})
	}

	m.put(ctx, data)
}

// RecordCacheHit records one cache hit for a collection.
func (m *Metrics) RecordCacheHit(ctx context.Context, collection string) {
	m.recordCacheEvent(ctx, "CacheHits", collection)
}

// RecordCacheMiss records one cache miss for a collection.
func (m *Metrics) RecordCacheMiss(ctx context.Context, collection string) {
	m.recordCacheEvent(ctx, "CacheMisses", collection)
}

func (m *Metrics) recordCacheEvent(ctx context.Context, name, collection string) {
	if m == nil || m.client == nil {
		return
	}
	m.put(ctx, []cwtypes.MetricDatum{
		{
			MetricName: aws.String(name),
			Dimensions: []cwtypes.Dimension{
				{Name: aws.String("Collection"), Value: aws.String(collection)},
			},
			Unit:  cwtypes.StandardUnitCount,
			Value: aws.Float64(1),
		},
	})
}

func (m *Metrics) put(ctx context.Context, data []cwtypes.MetricDatum) {
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.Warn("failed to publish metrics", zap.Error(err))
	}
}
