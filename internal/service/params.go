package service

import (
	"go.uber.org/fx"

	"github.com/twelvenexus/oneplan-billing/internal/config"
	"github.com/twelvenexus/oneplan-billing/internal/domain/invoice"
	"github.com/twelvenexus/oneplan-billing/internal/domain/payment"
	"github.com/twelvenexus/oneplan-billing/internal/domain/plan"
	"github.com/twelvenexus/oneplan-billing/internal/domain/subscription"
	"github.com/twelvenexus/oneplan-billing/internal/gateway"
	"github.com/twelvenexus/oneplan-billing/internal/logger"
	"github.com/twelvenexus/oneplan-billing/internal/postgres"
)

// ServiceParams bundles common dependencies injected into services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	GatewayRegistry *gateway.Registry

	PlanRepo    plan.Repository
	SubRepo     subscription.Repository
	PaymentRepo payment.Repository
	InvoiceRepo invoice.Repository
}

func NewServiceParams(
	logger *logger.Logger,
	cfg *config.Configuration,
	db postgres.IClient,
	registry *gateway.Registry,
	planRepo plan.Repository,
	subRepo subscription.Repository,
	paymentRepo payment.Repository,
	invoiceRepo invoice.Repository,
) ServiceParams {
	return ServiceParams{
		Logger:          logger,
		Config:          cfg,
		DB:              db,
		GatewayRegistry: registry,
		PlanRepo:        planRepo,
		SubRepo:         subRepo,
		PaymentRepo:     paymentRepo,
		InvoiceRepo:     invoiceRepo,
	}
}

// Module provides all services for fx
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewServiceParams,
			NewPlanService,
			NewSubscriptionService,
			NewPaymentService,
			NewInvoiceService,
			NewSweepService,
		),
	)
}
