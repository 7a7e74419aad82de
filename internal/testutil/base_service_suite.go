package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/twelvenexus/oneplan-billing/internal/config"
	"github.com/twelvenexus/oneplan-billing/internal/domain/invoice"
	"github.com/twelvenexus/oneplan-billing/internal/domain/payment"
	"github.com/twelvenexus/oneplan-billing/internal/domain/plan"
	"github.com/twelvenexus/oneplan-billing/internal/domain/subscription"
	"github.com/twelvenexus/oneplan-billing/internal/gateway"
	"github.com/twelvenexus/oneplan-billing/internal/logger"
	"github.com/twelvenexus/oneplan-billing/internal/postgres"
	"github.com/twelvenexus/oneplan-billing/internal/types"
	"github.com/twelvenexus/oneplan-billing/internal/validator"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	PlanRepo         plan.Repository
	SubscriptionRepo subscription.Repository
	PaymentRepo      payment.Repository
	InvoiceRepo      invoice.Repository
}

// BaseServiceTestSuite provides common functionality for all service
// test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	stores   Stores
	db       postgres.IClient
	logger   *logger.Logger
	config   *config.Configuration
	gateways map[types.PaymentGatewayType]*MockGateway
	registry *gateway.Registry
	now      time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	s.config = config.GetDefaultConfig()
	var err error
	s.logger, err = logger.NewLogger(s.config)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = SetupContext()
}

func (s *BaseServiceTestSuite) setupStores() {
	planStore := NewInMemoryPlanStore()
	subscriptionStore := NewInMemorySubscriptionStore()
	paymentStore := NewInMemoryPaymentStore()
	invoiceStore := NewInMemoryInvoiceStore()

	s.stores = Stores{
		PlanRepo:         planStore,
		SubscriptionRepo: subscriptionStore,
		PaymentRepo:      paymentStore,
		InvoiceRepo:      invoiceStore,
	}

	s.db = NewMockPostgresClient(planStore, subscriptionStore, paymentStore, invoiceStore)

	razorpay := NewMockGateway(types.PaymentGatewayTypeRazorpay)
	phonepe := NewMockGateway(types.PaymentGatewayTypePhonePe)
	s.gateways = map[types.PaymentGatewayType]*MockGateway{
		types.PaymentGatewayTypeRazorpay: razorpay,
		types.PaymentGatewayTypePhonePe:  phonepe,
	}
	s.registry = gateway.NewRegistry(razorpay, phonepe)
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.PlanRepo.(*InMemoryPlanStore).Clear()
	s.stores.SubscriptionRepo.(*InMemorySubscriptionStore).Clear()
	s.stores.PaymentRepo.(*InMemoryPaymentStore).Clear()
	s.stores.InvoiceRepo.(*InMemoryInvoiceStore).Clear()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetGatewayRegistry returns the registry of mock gateways
func (s *BaseServiceTestSuite) GetGatewayRegistry() *gateway.Registry {
	return s.registry
}

// GetMockGateway returns the mock adapter for a gateway type
func (s *BaseServiceTestSuite) GetMockGateway(gatewayType types.PaymentGatewayType) *MockGateway {
	return s.gateways[gatewayType]
}

// GetNow returns the time captured at test setup
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}
