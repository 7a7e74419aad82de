package api

import (
	"github.com/gin-gonic/gin"

	"github.com/twelvenexus/oneplan-billing/internal/api/cron"
	v1 "github.com/twelvenexus/oneplan-billing/internal/api/v1"
	"github.com/twelvenexus/oneplan-billing/internal/rest/middleware"
)

type Handlers struct {
	Health           *v1.HealthHandler
	Plan             *v1.PlanHandler
	Subscription     *v1.SubscriptionHandler
	Payment          *v1.PaymentHandler
	Invoice          *v1.InvoiceHandler
	Webhook          *v1.WebhookHandler
	CronSubscription *cron.SubscriptionHandler
	CronPayment      *cron.PaymentHandler
	CronInvoice      *cron.InvoiceHandler
	CronSweep        *cron.SweepHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.CORSMiddleware)
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Health)

	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	cronGroup := router.Group("/cron")
	registerCronRoutes(cronGroup, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	// Plan routes
	plans := router.Group("/plans")
	{
		plans.POST("", handlers.Plan.CreatePlan)
		plans.GET("", handlers.Plan.ListPlans)
		plans.POST("/price", handlers.Plan.CalculatePrice)
		plans.GET("/popular", handlers.Plan.ListPopularPlans)
		plans.GET("/code/:code", handlers.Plan.GetPlanByCode)
		plans.GET("/:id", handlers.Plan.GetPlan)
		plans.PUT("/:id", handlers.Plan.UpdatePlan)
		plans.DELETE("/:id", handlers.Plan.DeletePlan)
		plans.POST("/:id/activate", handlers.Plan.ActivatePlan)
		plans.POST("/:id/deactivate", handlers.Plan.DeactivatePlan)
		plans.POST("/:id/popular", handlers.Plan.MarkPopular)
	}

	// Subscription routes
	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("", handlers.Subscription.CreateSubscription)
		subscriptions.GET("", handlers.Subscription.ListSubscriptions)
		subscriptions.POST("/trial", handlers.Subscription.StartTrial)
		subscriptions.GET("/tenant/:tenant_id", handlers.Subscription.GetActiveSubscription)
		subscriptions.GET("/tenant/:tenant_id/features/:feature", handlers.Subscription.HasFeature)
		subscriptions.GET("/tenant/:tenant_id/features/:feature/limit", handlers.Subscription.GetFeatureLimit)
		subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
		subscriptions.PUT("/:id", handlers.Subscription.UpdateSubscription)
		subscriptions.POST("/:id/pause", handlers.Subscription.PauseSubscription)
		subscriptions.POST("/:id/resume", handlers.Subscription.ResumeSubscription)
		subscriptions.POST("/:id/cancel", handlers.Subscription.CancelSubscription)
	}

	// Payment routes
	payments := router.Group("/payments")
	{
		payments.POST("", handlers.Payment.InitiatePayment)
		payments.GET("", handlers.Payment.ListPayments)
		payments.POST("/complete", handlers.Payment.CompletePayment)
		payments.GET("/revenue", handlers.Payment.GetRevenue)
		payments.GET("/order/:order_id", handlers.Payment.GetPaymentByGatewayOrderID)
		payments.GET("/:id", handlers.Payment.GetPayment)
		payments.POST("/:id/refund", handlers.Payment.RefundPayment)
	}

	// Payment method routes
	paymentMethods := router.Group("/payment-methods")
	{
		paymentMethods.POST("", handlers.Payment.SavePaymentMethod)
		paymentMethods.GET("/tenant/:tenant_id", handlers.Payment.ListPaymentMethods)
		paymentMethods.GET("/:id", handlers.Payment.GetPaymentMethod)
		paymentMethods.POST("/:id/default", handlers.Payment.SetDefaultPaymentMethod)
		paymentMethods.DELETE("/:id", handlers.Payment.DeletePaymentMethod)
	}

	// Invoice routes
	invoices := router.Group("/invoices")
	{
		invoices.GET("", handlers.Invoice.ListInvoices)
		invoices.POST("/generate", handlers.Invoice.GenerateInvoice)
		invoices.GET("/number/:number", handlers.Invoice.GetInvoiceByNumber)
		invoices.GET("/:id", handlers.Invoice.GetInvoice)
		invoices.POST("/:id/issue", handlers.Invoice.IssueInvoice)
		invoices.POST("/:id/pay", handlers.Invoice.MarkInvoicePaid)
		invoices.POST("/:id/void", handlers.Invoice.VoidInvoice)
	}

	// Gateway webhook callbacks
	router.POST("/webhooks/:gateway", handlers.Webhook.HandleWebhook)
}

// registerCronRoutes exposes the scheduled sweeps as endpoints so an
// external scheduler can trigger them.
func registerCronRoutes(router *gin.RouterGroup, handlers Handlers) {
	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("/renewals", handlers.CronSubscription.ProcessDueRenewals)
		subscriptions.POST("/trials/expire", handlers.CronSubscription.ProcessExpiredTrials)
		subscriptions.POST("/expire", handlers.CronSubscription.ProcessExpiredSubscriptions)
	}

	payments := router.Group("/payments")
	{
		payments.POST("/stale", handlers.CronPayment.ProcessStalePayments)
	}

	invoices := router.Group("/invoices")
	{
		invoices.POST("/overdue", handlers.CronInvoice.ProcessOverdueInvoices)
	}

	router.POST("/run-all", handlers.CronSweep.RunAll)
}
