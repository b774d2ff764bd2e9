package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/application/documents"
	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/application/ports"
	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/infrastructure/cache"
	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/infrastructure/config"
	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/infrastructure/persistence/dynamodb"
	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/infrastructure/persistence/memory"
	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/pkg/observability"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideCache creates the in-process cache from configuration. The cache
// instance is explicitly constructed and owned by the container; there is
// no package-level singleton.
func ProvideCache(cfg *config.Config, logger *zap.Logger) ports.Cache {
	return cache.NewService(cache.Config{
		Enabled:      cfg.CacheEnabled,
		DefaultTTL:   cfg.CacheDefaultTTL,
		MaxEntries:   cfg.CacheMaxEntries,
		MaxSizeBytes: cfg.CacheMaxSizeBytes,
		LogHits:      cfg.CacheLogHits,
	}, logger)
}

// ProvideStore selects the store backend once at startup.
func ProvideStore(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.Store {
	if cfg.StoreBackend == config.BackendMemory {
		logger.Info("using in-memory document store")
		return memory.NewStore()
	}
	return dynamodb.NewStore(client, cfg.DynamoDBTable, logger)
}

// ProvideMetrics creates the metrics publisher, or nil when metrics are
// disabled.
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) *observability.Metrics {
	if !cfg.EnableMetrics {
		return nil
	}
	namespace := fmt.Sprintf("SynDataGen/%s", cfg.Environment)
	return observability.NewMetrics(namespace, client, logger)
}

// ProvideTracer creates the tracer, or nil when tracing is disabled.
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	if !cfg.EnableTracing {
		return nil
	}
	return observability.NewTracer("syndatagen")
}

// ProvideDocumentService creates the cached document access layer.
func ProvideDocumentService(
	store ports.Store,
	docCache ports.Cache,
	logger *zap.Logger,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
) *documents.Service {
	return documents.NewService(store, docCache, logger, metrics, tracer)
}
