package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/twelvenexus/oneplan-billing/internal/domain/payment"
	"github.com/twelvenexus/oneplan-billing/internal/logger"
	"github.com/twelvenexus/oneplan-billing/internal/postgres"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

type paymentRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewPaymentRepository(params RepositoryParams) payment.Repository {
	return &paymentRepository{
		client: params.Client,
		logger: params.Logger,
	}
}

type paymentRow struct {
	ID                string          `db:"id"`
	SubscriptionID    string          `db:"subscription_id"`
	InvoiceID         *string         `db:"invoice_id"`
	Gateway           string          `db:"gateway"`
	GatewayOrderID    string          `db:"gateway_order_id"`
	GatewayPaymentID  *string         `db:"gateway_payment_id"`
	GatewayRefundID   *string         `db:"gateway_refund_id"`
	Amount            decimal.Decimal `db:"amount"`
	RefundedAmount    decimal.Decimal `db:"refunded_amount"`
	Currency          string          `db:"currency"`
	PaymentStatus     string          `db:"payment_status"`
	PaymentMethodType string          `db:"payment_method_type"`
	PaymentMethodID   *string         `db:"payment_method_id"`
	FailureReason     *string         `db:"failure_reason"`
	RefundReason      *string         `db:"refund_reason"`
	CompletedAt       *time.Time      `db:"completed_at"`
	RefundedAt        *time.Time      `db:"refunded_at"`
	Metadata          []byte          `db:"metadata"`

	types.BaseModel
}

const paymentColumns = `id, subscription_id, invoice_id, gateway, gateway_order_id,
	gateway_payment_id, gateway_refund_id, amount, refunded_amount, currency,
	payment_status, payment_method_type, payment_method_id, failure_reason,
	refund_reason, completed_at, refunded_at, metadata,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func paymentToRow(p *payment.Payment) (*paymentRow, error) {
	metadata, err := marshalJSON(p.Metadata)
	if err != nil {
		return nil, err
	}
	return &paymentRow{
		ID:                p.ID,
		SubscriptionID:    p.SubscriptionID,
		InvoiceID:         p.InvoiceID,
		Gateway:           p.Gateway.String(),
		GatewayOrderID:    p.GatewayOrderID,
		GatewayPaymentID:  p.GatewayPaymentID,
		GatewayRefundID:   p.GatewayRefundID,
		Amount:            p.Amount,
		RefundedAmount:    p.RefundedAmount,
		Currency:          p.Currency,
		PaymentStatus:     p.PaymentStatus.String(),
		PaymentMethodType: p.PaymentMethodType.String(),
		PaymentMethodID:   p.PaymentMethodID,
		FailureReason:     p.FailureReason,
		RefundReason:      p.RefundReason,
		CompletedAt:       p.CompletedAt,
		RefundedAt:        p.RefundedAt,
		Metadata:          metadata,
		BaseModel:         p.BaseModel,
	}, nil
}

func (r *paymentRow) toDomain() (*payment.Payment, error) {
	p := &payment.Payment{
		ID:                r.ID,
		TenantID:          r.TenantID,
		SubscriptionID:    r.SubscriptionID,
		InvoiceID:         r.InvoiceID,
		Gateway:           types.PaymentGatewayType(r.Gateway),
		GatewayOrderID:    r.GatewayOrderID,
		GatewayPaymentID:  r.GatewayPaymentID,
		GatewayRefundID:   r.GatewayRefundID,
		Amount:            r.Amount,
		RefundedAmount:    r.RefundedAmount,
		Currency:          r.Currency,
		PaymentStatus:     types.PaymentStatus(r.PaymentStatus),
		PaymentMethodType: types.PaymentMethodType(r.PaymentMethodType),
		PaymentMethodID:   r.PaymentMethodID,
		FailureReason:     r.FailureReason,
		RefundReason:      r.RefundReason,
		CompletedAt:       r.CompletedAt,
		RefundedAt:        r.RefundedAt,
		BaseModel:         r.BaseModel,
	}
	if err := unmarshalJSON(r.Metadata, &p.Metadata); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	row, err := paymentToRow(p)
	if err != nil {
		return err
	}

	_, err = r.client.Querier(ctx).NamedExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES (:id, :subscription_id, :invoice_id, :gateway, :gateway_order_id,
			:gateway_payment_id, :gateway_refund_id, :amount, :refunded_amount, :currency,
			:payment_status, :payment_method_type, :payment_method_id, :failure_reason,
			:refund_reason, :completed_at, :refunded_at, :metadata,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`,
		row)
	return wrapDBError(err, "Failed to create payment")
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	var row paymentRow
	err := r.client.Querier(ctx).GetContext(ctx, &row, `
		SELECT `+paymentColumns+` FROM payments
		WHERE id = $1 AND status != 'deleted'`, id)
	if err != nil {
		return nil, wrapDBError(err, "Payment not found")
	}
	return row.toDomain()
}

// GetByGatewayOrderID locks the row when called inside a transaction,
// so concurrent webhook and verify completions serialize on it.
func (r *paymentRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE gateway_order_id = $1 AND status != 'deleted'`
	if r.client.TxFromContext(ctx) != nil {
		query += ` FOR UPDATE`
	}

	var row paymentRow
	if err := r.client.Querier(ctx).GetContext(ctx, &row, query, gatewayOrderID); err != nil {
		return nil, wrapDBError(err, "Payment not found for gateway order")
	}
	return row.toDomain()
}

func buildPaymentFilter(filter *types.PaymentFilter) (string, []interface{}) {
	clauses := []string{`status != 'deleted'`}
	args := []interface{}{}

	if filter == nil {
		return strings.Join(clauses, " AND "), args
	}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.TenantID != "" {
		clauses = append(clauses, "tenant_id = "+arg(filter.TenantID))
	}
	if filter.SubscriptionID != "" {
		clauses = append(clauses, "subscription_id = "+arg(filter.SubscriptionID))
	}
	if len(filter.Statuses) > 0 {
		statuses := lo.Map(filter.Statuses, func(s types.PaymentStatus, _ int) string {
			return s.String()
		})
		clauses = append(clauses, "payment_status = ANY("+arg(pqStringArray(statuses))+")")
	}
	if filter.CreatedBefore != nil {
		clauses = append(clauses, "created_at <= "+arg(*filter.CreatedBefore))
	}

	return strings.Join(clauses, " AND "), args
}

func (r *paymentRepository) List(ctx context.Context, filter *types.PaymentFilter) ([]*payment.Payment, error) {
	where, args := buildPaymentFilter(filter)
	query := fmt.Sprintf(`
		SELECT %s FROM payments
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		paymentColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.GetLimit(), filter.GetOffset())

	var rows []paymentRow
	if err := r.client.Querier(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapDBError(err, "Failed to list payments")
	}

	payments := make([]*payment.Payment, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func (r *paymentRepository) TotalRevenue(ctx context.Context, tenantID string, start, end time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.client.Querier(ctx).GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE tenant_id = $1
		  AND payment_status = $2
		  AND completed_at BETWEEN $3 AND $4
		  AND status != 'deleted'`,
		tenantID, types.PaymentStatusCompleted.String(), start, end)
	if err != nil {
		return decimal.Zero, wrapDBError(err, "Failed to compute revenue")
	}
	return total, nil
}

func (r *paymentRepository) Count(ctx context.Context, filter *types.PaymentFilter) (int, error) {
	where, args := buildPaymentFilter(filter)
	query := "SELECT COUNT(*) FROM payments WHERE " + where

	var count int
	if err := r.client.Querier(ctx).GetContext(ctx, &count, query, args...); err != nil {
		return 0, wrapDBError(err, "Failed to count payments")
	}
	return count, nil
}

func (r *paymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	row, err := paymentToRow(p)
	if err != nil {
		return err
	}

	result, err := r.client.Querier(ctx).NamedExecContext(ctx, `
		UPDATE payments SET
			invoice_id = :invoice_id,
			gateway_payment_id = :gateway_payment_id,
			gateway_refund_id = :gateway_refund_id,
			refunded_amount = :refunded_amount,
			payment_status = :payment_status,
			payment_method_id = :payment_method_id,
			failure_reason = :failure_reason,
			refund_reason = :refund_reason,
			completed_at = :completed_at,
			refunded_at = :refunded_at,
			metadata = :metadata,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND status != 'deleted'`,
		row)
	if err != nil {
		return wrapDBError(err, "Failed to update payment")
	}
	return requireRowAffected(result, "Payment not found")
}

type paymentMethodRow struct {
	ID             string `db:"id"`
	Type           string `db:"type"`
	Gateway        string `db:"gateway"`
	GatewayTokenID string `db:"gateway_token_id"`
	Last4          string `db:"last4"`
	ExpiryMonth    int    `db:"expiry_month"`
	ExpiryYear     int    `db:"expiry_year"`
	IsDefault      bool   `db:"is_default"`
	Metadata       []byte `db:"metadata"`

	types.BaseModel
}

const paymentMethodColumns = `id, type, gateway, gateway_token_id, last4,
	expiry_month, expiry_year, is_default, metadata,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func paymentMethodToRow(m *payment.PaymentMethod) (*paymentMethodRow, error) {
	metadata, err := marshalJSON(m.Metadata)
	if err != nil {
		return nil, err
	}
	return &paymentMethodRow{
		ID:             m.ID,
		Type:           m.Type.String(),
		Gateway:        m.Gateway.String(),
		GatewayTokenID: m.GatewayTokenID,
		Last4:          m.Last4,
		ExpiryMonth:    m.ExpiryMonth,
		ExpiryYear:     m.ExpiryYear,
		IsDefault:      m.IsDefault,
		Metadata:       metadata,
		BaseModel:      m.BaseModel,
	}, nil
}

func (r *paymentMethodRow) toDomain() (*payment.PaymentMethod, error) {
	m := &payment.PaymentMethod{
		ID:             r.ID,
		TenantID:       r.TenantID,
		Type:           types.PaymentMethodType(r.Type),
		Gateway:        types.PaymentGatewayType(r.Gateway),
		GatewayTokenID: r.GatewayTokenID,
		Last4:          r.Last4,
		ExpiryMonth:    r.ExpiryMonth,
		ExpiryYear:     r.ExpiryYear,
		IsDefault:      r.IsDefault,
		BaseModel:      r.BaseModel,
	}
	if err := unmarshalJSON(r.Metadata, &m.Metadata); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *paymentRepository) CreateMethod(ctx context.Context, m *payment.PaymentMethod) error {
	row, err := paymentMethodToRow(m)
	if err != nil {
		return err
	}

	_, err = r.client.Querier(ctx).NamedExecContext(ctx, `
		INSERT INTO payment_methods (`+paymentMethodColumns+`)
		VALUES (:id, :type, :gateway, :gateway_token_id, :last4,
			:expiry_month, :expiry_year, :is_default, :metadata,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`,
		row)
	return wrapDBError(err, "Failed to create payment method")
}

func (r *paymentRepository) GetMethod(ctx context.Context, id string) (*payment.PaymentMethod, error) {
	var row paymentMethodRow
	err := r.client.Querier(ctx).GetContext(ctx, &row, `
		SELECT `+paymentMethodColumns+` FROM payment_methods
		WHERE id = $1 AND status != 'deleted'`, id)
	if err != nil {
		return nil, wrapDBError(err, "Payment method not found")
	}
	return row.toDomain()
}

func (r *paymentRepository) UpdateMethod(ctx context.Context, m *payment.PaymentMethod) error {
	row, err := paymentMethodToRow(m)
	if err != nil {
		return err
	}

	result, err := r.client.Querier(ctx).NamedExecContext(ctx, `
		UPDATE payment_methods SET
			last4 = :last4,
			expiry_month = :expiry_month,
			expiry_year = :expiry_year,
			is_default = :is_default,
			metadata = :metadata,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND status != 'deleted'`,
		row)
	if err != nil {
		return wrapDBError(err, "Failed to update payment method")
	}
	return requireRowAffected(result, "Payment method not found")
}

func (r *paymentRepository) DeleteMethod(ctx context.Context, id string) error {
	result, err := r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE payment_methods SET status = 'deleted', updated_at = NOW()
		WHERE id = $1 AND status != 'deleted'`, id)
	if err != nil {
		return wrapDBError(err, "Failed to delete payment method")
	}
	return requireRowAffected(result, "Payment method not found")
}

func (r *paymentRepository) ListMethods(ctx context.Context, tenantID string) ([]*payment.PaymentMethod, error) {
	var rows []paymentMethodRow
	err := r.client.Querier(ctx).SelectContext(ctx, &rows, `
		SELECT `+paymentMethodColumns+` FROM payment_methods
		WHERE tenant_id = $1 AND status != 'deleted'
		ORDER BY is_default DESC, created_at DESC`, tenantID)
	if err != nil {
		return nil, wrapDBError(err, "Failed to list payment methods")
	}

	methods := make([]*payment.PaymentMethod, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, nil
}
