//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/application/documents"
	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/application/ports"
	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/infrastructure/config"
	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     ports.Store
	Cache     ports.Cache
	Documents *documents.Service
	Metrics   *observability.Metrics
	Tracer    *observability.Tracer
}

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideCloudWatchClient,
	ProvideCache,
	ProvideStore,
	ProvideMetrics,
	ProvideTracer,
	ProvideDocumentService,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
