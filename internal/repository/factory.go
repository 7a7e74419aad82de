package repository

import (
	"go.uber.org/fx"

	"github.com/twelvenexus/oneplan-billing/internal/logger"
	"github.com/twelvenexus/oneplan-billing/internal/postgres"
)

func NewRepositoryParams(client postgres.IClient, logger *logger.Logger) RepositoryParams {
	return RepositoryParams{
		Client: client,
		Logger: logger,
	}
}

// Module provides all repositories for fx
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewRepositoryParams,
			NewPlanRepository,
			NewSubscriptionRepository,
			NewPaymentRepository,
			NewInvoiceRepository,
		),
	)
}
