package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/fx"

	"github.com/twelvenexus/oneplan-billing/internal/api"
	"github.com/twelvenexus/oneplan-billing/internal/api/cron"
	v1 "github.com/twelvenexus/oneplan-billing/internal/api/v1"
	"github.com/twelvenexus/oneplan-billing/internal/config"
	"github.com/twelvenexus/oneplan-billing/internal/gateway"
	"github.com/twelvenexus/oneplan-billing/internal/gateway/phonepe"
	"github.com/twelvenexus/oneplan-billing/internal/gateway/razorpay"
	"github.com/twelvenexus/oneplan-billing/internal/httpclient"
	"github.com/twelvenexus/oneplan-billing/internal/logger"
	"github.com/twelvenexus/oneplan-billing/internal/postgres"
	"github.com/twelvenexus/oneplan-billing/internal/repository"
	"github.com/twelvenexus/oneplan-billing/internal/service"
	"github.com/twelvenexus/oneplan-billing/internal/validator"
	"github.com/twelvenexus/oneplan-billing/migrations"
)

// @title OnePlan Billing API
// @version 1.0
// @description Subscription billing and payment service
// @BasePath /v1

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	app := fx.New(
		fx.Provide(
			validator.NewValidator,
			config.NewConfig,
			logger.NewLogger,
			httpclient.NewDefaultClient,
			provideGatewayRegistry,
		),
		postgres.Module(),
		repository.Module(),
		service.Module(),
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			runMigrations,
			startServer,
		),
	)
	app.Run()
}

func provideGatewayRegistry(
	cfg *config.Configuration,
	client httpclient.Client,
	log *logger.Logger,
) *gateway.Registry {
	return gateway.NewRegistry(
		razorpay.New(cfg.Gateways.Razorpay, client, log),
		phonepe.New(cfg.Gateways.PhonePe, client, log),
	)
}

func provideHandlers(
	log *logger.Logger,
	planService service.PlanService,
	subscriptionService service.SubscriptionService,
	paymentService service.PaymentService,
	invoiceService service.InvoiceService,
	sweepService service.SweepService,
) api.Handlers {
	return api.Handlers{
		Health:           v1.NewHealthHandler(),
		Plan:             v1.NewPlanHandler(planService, log),
		Subscription:     v1.NewSubscriptionHandler(subscriptionService, log),
		Payment:          v1.NewPaymentHandler(paymentService, log),
		Invoice:          v1.NewInvoiceHandler(invoiceService, log),
		Webhook:          v1.NewWebhookHandler(paymentService, log),
		CronSubscription: cron.NewSubscriptionHandler(sweepService, log),
		CronPayment:      cron.NewPaymentHandler(sweepService, log),
		CronInvoice:      cron.NewInvoiceHandler(sweepService, log),
		CronSweep:        cron.NewSweepHandler(sweepService, log),
	}
}

func provideRouter(handlers api.Handlers) *gin.Engine {
	return api.NewRouter(handlers)
}

func runMigrations(cfg *config.Configuration, db *sqlx.DB, log *logger.Logger) error {
	if !cfg.Postgres.AutoMigrate {
		return nil
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db.DB, "."); err != nil {
		return err
	}

	log.Info("Database migrations applied")
	return nil
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infof("Starting API server on %s", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}
